// Package pcerrors provides structured error types for the paramcontract library.
//
// Import path: github.com/erraggy/paramcontract/pcerrors
//
// These errors describe failures of the caller or the deployment, never failures of an
// individual request: a malformed request is always reported inside a validation result,
// while a malformed contract or an unknown operation surfaces as a Go error.
//
// # Error Types
//
//   - [ContractError]: a contract violates a load-time invariant
//   - [ParseError]: a contract document could not be decoded
//   - [UnknownOperationError]: a lookup named an operation the registry does not hold
//   - [ConfigError]: an invalid option or environment value
//
// # Sentinel Errors
//
//   - [ErrInvalidContract]: matches any [ContractError] and any [ParseError]
//   - [ErrParse]: matches any [ParseError]
//   - [ErrUnknownOperation]: matches any [UnknownOperationError]
//   - [ErrConfig]: matches any [ConfigError]
//
// # Usage Examples
//
// Registry loading fails as a whole. The returned error joins one [ContractError] per
// problem found:
//
//	reg, err := contract.LoadFile("contracts.yaml")
//	if errors.Is(err, pcerrors.ErrInvalidContract) {
//	    log.Fatal(err) // deployment error, the process must not start
//	}
//
// Extract the offending operation and field with errors.As:
//
//	var cErr *pcerrors.ContractError
//	if errors.As(err, &cErr) {
//	    fmt.Printf("%s: %s\n", cErr.Operation, cErr.Field)
//	}
package pcerrors
