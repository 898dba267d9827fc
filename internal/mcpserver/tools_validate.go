package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/erraggy/paramcontract/errformat"
	"github.com/erraggy/paramcontract/httpvalidator"
)

type validateRequestInput struct {
	Contracts   contractInput     `json:"contracts"              jsonschema:"The contract document holding the operation"`
	OperationID string            `json:"operation_id"           jsonschema:"Operation to validate against"`
	Method      string            `json:"method,omitempty"       jsonschema:"HTTP method. Defaults to the contract's method, or GET"`
	URL         string            `json:"url"                    jsonschema:"Request URL or path with query string, e.g. /hosts/7?verbose=true"`
	Headers     map[string]string `json:"headers,omitempty"      jsonschema:"Request headers by name"`
	Cookies     []string          `json:"cookies,omitempty"      jsonschema:"Cookie header lines, e.g. session=abc; theme=dark"`
	ContentType string            `json:"content_type,omitempty" jsonschema:"Content-Type of the body, including parameters such as the multipart boundary"`
	Body        string            `json:"body,omitempty"         jsonschema:"Raw request body"`
	ErrorFormat string            `json:"error_format,omitempty" jsonschema:"Rendered error shape: simple or problem. Defaults to PARAMCONTRACT_ERROR_FORMAT"`
}

type validationIssue struct {
	Location string `json:"location"`
	Name     string `json:"name,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

type validateRequestOutput struct {
	Valid     bool              `json:"valid"`
	Values    map[string]any    `json:"values,omitempty"`
	Sources   map[string]string `json:"sources,omitempty"`
	Fallbacks map[string]string `json:"fallbacks,omitempty"`
	Errors    []validationIssue `json:"errors,omitempty"`
	Status    int               `json:"status,omitempty"`
	ErrorBody string            `json:"error_body,omitempty"`
}

func handleValidateRequest(ctx context.Context, _ *mcp.CallToolRequest, input validateRequestInput) (*mcp.CallToolResult, validateRequestOutput, error) {
	if input.OperationID == "" {
		return errResult(fmt.Errorf("operation_id is required")), validateRequestOutput{}, nil
	}
	if input.URL == "" {
		return errResult(fmt.Errorf("url is required")), validateRequestOutput{}, nil
	}

	format := cfg.ErrorFormat
	if input.ErrorFormat != "" {
		f, err := errformat.ByName(input.ErrorFormat)
		if err != nil {
			return errResult(err), validateRequestOutput{}, nil
		}
		format = f
	}

	reg, err := input.Contracts.resolve(ctx)
	if err != nil {
		return errResult(err), validateRequestOutput{}, nil
	}
	c, err := reg.Lookup(input.OperationID)
	if err != nil {
		return errResult(err), validateRequestOutput{}, nil
	}

	method := strings.ToUpper(input.Method)
	if method == "" {
		method = c.Method
	}
	if method == "" {
		method = http.MethodGet
	}

	header := make(http.Header, len(input.Headers)+2)
	for name, value := range input.Headers {
		header.Add(name, value)
	}
	if len(input.Cookies) > 0 {
		header["Cookie"] = append(header["Cookie"], input.Cookies...)
	}
	if input.ContentType != "" {
		header.Set("Content-Type", input.ContentType)
	}

	desc, err := httpvalidator.FromURL(method, input.URL, c.Path, header, []byte(input.Body))
	if err != nil {
		return errResult(err), validateRequestOutput{}, nil
	}

	v, err := httpvalidator.New(httpvalidator.WithMaxBodySize(cfg.MaxBodySize))
	if err != nil {
		return errResult(err), validateRequestOutput{}, nil
	}
	result := v.Validate(c, desc)

	output := validateRequestOutput{
		Valid:  result.Valid,
		Errors: makeSlice[validationIssue](len(result.Errors)),
	}
	if len(result.Values) > 0 {
		output.Values = result.Values
	}
	if len(result.Sources) > 0 {
		output.Sources = make(map[string]string, len(result.Sources))
		for name, loc := range result.Sources {
			output.Sources[name] = string(loc)
		}
	}
	if fallbacks := result.Fallbacks(c); len(fallbacks) > 0 {
		output.Fallbacks = make(map[string]string, len(fallbacks))
		for name, loc := range fallbacks {
			output.Fallbacks[name] = string(loc)
		}
	}
	for _, e := range result.Errors {
		output.Errors = append(output.Errors, validationIssue{
			Location: string(e.Location),
			Name:     e.Name,
			Code:     string(e.Code),
			Message:  e.Message,
		})
	}
	if !result.Valid {
		output.Status = format.StatusCode()
		output.ErrorBody = string(format.Render(result.Errors))
	}
	return nil, output, nil
}
