package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/erraggy/paramcontract/pcerrors"
)

type checkInput struct {
	Contracts contractInput `json:"contracts" jsonschema:"The contract document to check"`
}

type contractIssue struct {
	Operation string `json:"operation,omitempty"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
}

type checkOutput struct {
	Valid          bool            `json:"valid"`
	OperationCount int             `json:"operation_count"`
	Operations     []string        `json:"operations,omitempty"`
	ErrorCount     int             `json:"error_count"`
	Errors         []contractIssue `json:"errors,omitempty"`
}

func handleCheckContracts(ctx context.Context, _ *mcp.CallToolRequest, input checkInput) (*mcp.CallToolResult, checkOutput, error) {
	reg, err := input.Contracts.resolve(ctx)
	if err != nil {
		issues := pcerrors.ContractErrors(err)
		if len(issues) == 0 {
			// Not a contract problem: bad input, unreadable file, undecodable document.
			return errResult(err), checkOutput{}, nil
		}
		output := checkOutput{
			ErrorCount: len(issues),
			Errors:     makeSlice[contractIssue](len(issues)),
		}
		for _, e := range issues {
			output.Errors = append(output.Errors, contractIssue{
				Operation: e.Operation,
				Field:     e.Field,
				Message:   issueMessage(e),
			})
		}
		return nil, output, nil
	}

	return nil, checkOutput{
		Valid:          true,
		OperationCount: reg.Len(),
		Operations:     reg.Operations(),
	}, nil
}

func issueMessage(e *pcerrors.ContractError) string {
	msg := e.Message
	if e.Cause != nil {
		if msg != "" {
			msg += ": "
		}
		msg += sanitizeError(e.Cause)
	}
	return msg
}
