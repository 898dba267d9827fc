package httpvalidator

import (
	"fmt"

	"github.com/erraggy/paramcontract/contract"
)

// Code classifies a ValidationError.
type Code string

// Error codes. The first six are produced by request validation. CodeUnknownOperation
// and CodeInvalidContract are caller and load-time conditions that surfaces such as
// the CLI and MCP server report with the same vocabulary.
const (
	CodeMissingRequiredParameter Code = "MissingRequiredParameter"
	CodeTypeMismatch             Code = "TypeMismatch"
	CodeEnumViolation            Code = "EnumViolation"
	CodeUnsupportedContentType   Code = "UnsupportedContentType"
	CodeBodySchemaViolation      Code = "BodySchemaViolation"
	CodeBodyTooLarge             Code = "BodyTooLarge"
	CodeUnknownOperation         Code = "UnknownOperation"
	CodeInvalidContract          Code = "InvalidContract"
)

// ValidationError is a single request-time validation failure.
type ValidationError struct {
	// Location is where the failing value was expected. Body field and
	// body-level errors use contract.LocationBody.
	Location contract.Location `json:"location"`

	// Name is the parameter or body field name. Empty for body-level errors
	// such as CodeBodyTooLarge.
	Name string `json:"name,omitempty"`

	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// String returns a compact log-friendly form.
func (e ValidationError) String() string {
	if e.Name == "" {
		return fmt.Sprintf("%s %s: %s", e.Code, e.Location, e.Message)
	}
	return fmt.Sprintf("%s %s.%s: %s", e.Code, e.Location, e.Name, e.Message)
}

// Result is the outcome of validating one request against one contract.
// It is created fresh for every call and returned by value.
type Result struct {
	// Valid is true if no errors were found.
	Valid bool `json:"valid"`

	// Errors lists every failure: parameters in declaration order, then the body.
	Errors []ValidationError `json:"errors,omitempty"`

	// Values maps parameter and declared body field names to their coerced
	// values (string, int64, bool, or []any for repeated parameters).
	// A parameter wins over a body field with the same name.
	Values map[string]any `json:"values"`

	// Sources records the location that actually supplied each entry in Values.
	// It differs from the declared location only under contract.ModeMerged.
	Sources map[string]contract.Location `json:"sources"`
}

// Fallbacks returns the names of parameters satisfied by a location other than
// the one declared for them, mapped to that location.
func (r *Result) Fallbacks(c *contract.OperationContract) map[string]contract.Location {
	out := make(map[string]contract.Location)
	for _, p := range c.Parameters {
		if src, ok := r.Sources[p.Name]; ok && src != p.Location {
			out[p.Name] = src
		}
	}
	return out
}

func newResult() Result {
	return Result{
		Valid:   true,
		Values:  make(map[string]any),
		Sources: make(map[string]contract.Location),
	}
}

func (r *Result) addError(loc contract.Location, name string, code Code, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{
		Location: loc,
		Name:     name,
		Code:     code,
		Message:  message,
	})
}
