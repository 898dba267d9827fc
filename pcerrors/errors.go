package pcerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrInvalidContract indicates a contract or contract document is malformed.
	ErrInvalidContract = errors.New("invalid contract")

	// ErrParse indicates a contract document could not be decoded.
	ErrParse = errors.New("parse error")

	// ErrUnknownOperation indicates a registry lookup for an absent operation.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrConfig indicates an invalid configuration.
	ErrConfig = errors.New("configuration error")
)

// ContractError represents a single load-time invariant violation.
type ContractError struct {
	// Operation is the operationId of the offending contract (empty if unknown)
	Operation string
	// Field is the path of the offending field within the contract (e.g., "parameters[1].in")
	Field string
	// Value is the problematic value (may be nil)
	Value any
	// Message describes the violation
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ContractError) Error() string {
	msg := "invalid contract"
	if e.Operation != "" {
		msg += " " + fmt.Sprintf("%q", e.Operation)
	}
	if e.Field != "" {
		msg += " at " + e.Field
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ContractError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ContractError) Is(target error) bool {
	return target == ErrInvalidContract
}

// ParseError represents a failure to decode a contract document.
type ParseError struct {
	// Path is the file path or source identifier
	Path string
	// Format is the document format that was attempted ("yaml", "json", "toml")
	Format string
	// Message describes the decoding failure
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ParseError) Error() string {
	msg := "parse error"
	if e.Path != "" {
		msg += " in " + e.Path
	}
	if e.Format != "" {
		msg += " (" + e.Format + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
// An undecodable document is also an invalid contract.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse || target == ErrInvalidContract
}

// UnknownOperationError is returned by registry lookups for absent operations.
type UnknownOperationError struct {
	// OperationID is the identifier that was looked up
	OperationID string
}

// Error returns a human-readable error message.
func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q", e.OperationID)
}

// Is reports whether target matches this error type.
func (e *UnknownOperationError) Is(target error) bool {
	return target == ErrUnknownOperation
}

// ConfigError represents an invalid configuration or input.
type ConfigError struct {
	// Option is the name of the problematic configuration option
	Option string
	// Value is the invalid value that was provided (may be nil)
	Value any
	// Message describes the configuration error
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Option != "" {
		msg += " for " + e.Option
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// ContractErrors returns every *ContractError in err's tree, in order.
// Wrapped and joined errors are walked. Other errors are skipped.
func ContractErrors(err error) []*ContractError {
	var out []*ContractError
	var walk func(error)
	walk = func(e error) {
		switch x := e.(type) {
		case nil:
		case *ContractError:
			out = append(out, x)
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(x.Unwrap())
		}
	}
	walk(err)
	return out
}
