package httpvalidator

import (
	"fmt"

	"github.com/erraggy/paramcontract/contract"
)

// Validator validates requests against operation contracts.
//
// A Validator holds only its configuration, so one instance may be shared by any
// number of goroutines. Create one with New:
//
//	v, err := httpvalidator.New(httpvalidator.WithMaxBodySize(1 << 20))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result := v.Validate(c, desc)
//	if !result.Valid {
//	    // render result.Errors
//	}
type Validator struct {
	maxBodySize int64
}

// New creates a Validator. Without options the body size limit is
// DefaultMaxBodySize.
func New(opts ...Option) (*Validator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.maxBodySize == 0 {
		cfg.maxBodySize = DefaultMaxBodySize
	}
	return &Validator{maxBodySize: cfg.maxBodySize}, nil
}

// MaxBodySize returns the configured body size limit in bytes.
func (v *Validator) MaxBodySize() int64 {
	return v.maxBodySize
}

// Validate checks d against c and returns every failure found.
//
// Parameters are checked in declaration order, then the body. Malformed request
// input never aborts validation; it is reported in the result.
func (v *Validator) Validate(c *contract.OperationContract, d *RequestDescriptor) Result {
	result := newResult()
	r := newResolver(d, v.maxBodySize)
	mode := c.Mode()

	reserved := make(map[string]bool, len(c.Parameters))
	for i := range c.Parameters {
		p := &c.Parameters[i]
		reserved[p.Name] = true
		v.validateParameter(r, p, mode, &result)
	}

	if c.HasBody() || exceedsLimit(d, v.maxBodySize) {
		validateBody(c, r.parsedBody(), v.maxBodySize, reserved, &result)
	}
	return result
}

func (v *Validator) validateParameter(r *resolver, p *contract.ParameterSpec, mode contract.ResolutionMode, result *Result) {
	raws, source, present := r.resolve(p, mode)
	if !present {
		if p.Required {
			result.addError(p.Location, p.Name, CodeMissingRequiredParameter,
				fmt.Sprintf("missing required %s parameter", p.Location))
		}
		return
	}

	// Cookie values may carry session tokens and are never echoed.
	redact := source == contract.LocationCookie
	suffix := ""
	if source != p.Location {
		suffix = fmt.Sprintf(" (resolved from %s)", source)
	}

	typed := make([]any, 0, len(raws))
	ok := true
	for _, raw := range raws {
		value, err := coerce(raw, p.Type)
		if err != nil {
			result.addError(p.Location, p.Name, CodeTypeMismatch, typeMismatchMessage(raw, p.Type, redact)+suffix)
			ok = false
			continue
		}
		if !inEnum(value, p.Enum) {
			result.addError(p.Location, p.Name, CodeEnumViolation, enumMessage(value, p.Enum, redact)+suffix)
			ok = false
			continue
		}
		typed = append(typed, value)
	}
	if !ok {
		return
	}

	if p.Repeated {
		result.Values[p.Name] = typed
	} else {
		result.Values[p.Name] = typed[0]
	}
	result.Sources[p.Name] = source
}

// ValidateOperation looks operationID up in reg and validates d against it.
// The lookup error is returned unchanged, so errors.Is(err,
// pcerrors.ErrUnknownOperation) holds for absent operations.
func (v *Validator) ValidateOperation(reg *contract.Registry, operationID string, d *RequestDescriptor) (Result, error) {
	c, err := reg.Lookup(operationID)
	if err != nil {
		return Result{}, err
	}
	return v.Validate(c, d), nil
}
