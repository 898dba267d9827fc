package mcpserver

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/erraggy/paramcontract/contract"
)

type listOperationsInput struct {
	Contracts   contractInput `json:"contracts"              jsonschema:"The contract document to list"`
	OperationID string        `json:"operation_id,omitempty" jsonschema:"Only operations whose id contains this text (case-insensitive)"`
	Method      string        `json:"method,omitempty"       jsonschema:"Only operations declaring this HTTP method"`
	Offset      int           `json:"offset,omitempty"       jsonschema:"Skip the first N results (for pagination)"`
	Limit       int           `json:"limit,omitempty"        jsonschema:"Maximum number of results to return (default 100)"`
}

type parameterSummary struct {
	Name     string `json:"name"`
	In       string `json:"in"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
	Repeated bool   `json:"repeated,omitempty"`
	Enum     []any  `json:"enum,omitempty"`
}

type operationSummary struct {
	OperationID  string             `json:"operation_id"`
	Method       string             `json:"method,omitempty"`
	Path         string             `json:"path,omitempty"`
	Mode         string             `json:"resolution_mode"`
	Parameters   []parameterSummary `json:"parameters,omitempty"`
	ContentTypes []string           `json:"content_types,omitempty"`
}

type listOperationsOutput struct {
	Total      int                `json:"total"`
	Matched    int                `json:"matched"`
	Returned   int                `json:"returned"`
	Operations []operationSummary `json:"operations,omitempty"`
}

func handleListOperations(ctx context.Context, _ *mcp.CallToolRequest, input listOperationsInput) (*mcp.CallToolResult, listOperationsOutput, error) {
	reg, err := input.Contracts.resolve(ctx)
	if err != nil {
		return errResult(err), listOperationsOutput{}, nil
	}

	ids := reg.Operations()
	idFilter := strings.ToLower(input.OperationID)
	var matched []operationSummary
	for _, id := range ids {
		c, err := reg.Lookup(id)
		if err != nil {
			continue
		}
		if idFilter != "" && !strings.Contains(strings.ToLower(id), idFilter) {
			continue
		}
		if input.Method != "" && !strings.EqualFold(c.Method, input.Method) {
			continue
		}
		matched = append(matched, summarize(c))
	}

	page := paginate(matched, input.Offset, input.Limit)
	return nil, listOperationsOutput{
		Total:      len(ids),
		Matched:    len(matched),
		Returned:   len(page),
		Operations: page,
	}, nil
}

func summarize(c *contract.OperationContract) operationSummary {
	s := operationSummary{
		OperationID:  c.OperationID,
		Method:       c.Method,
		Path:         c.Path,
		Mode:         string(c.Mode()),
		Parameters:   makeSlice[parameterSummary](len(c.Parameters)),
		ContentTypes: makeSlice[string](len(c.Bodies)),
	}
	for _, p := range c.Parameters {
		s.Parameters = append(s.Parameters, parameterSummary{
			Name:     p.Name,
			In:       string(p.Location),
			Type:     string(p.Type),
			Required: p.Required,
			Repeated: p.Repeated,
			Enum:     p.Enum,
		})
	}
	for _, b := range c.Bodies {
		s.ContentTypes = append(s.ContentTypes, string(b.ContentType))
	}
	return s
}
