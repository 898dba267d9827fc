package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/erraggy/paramcontract/pcerrors"
)

// Registry holds validated operation contracts keyed by operationId.
//
// A Registry is built once by Load (or one of the document loaders) and is never
// mutated afterward, so lookups need no synchronization and a single Registry may
// be shared by any number of goroutines.
type Registry struct {
	operations map[string]*OperationContract
	ids        []string
	routes     *PathMatcherSet
}

// Option configures registry loading.
type Option func(*loadConfig)

type loadConfig struct {
	logger Logger
	source string
}

func defaultLoadConfig() *loadConfig {
	return &loadConfig{logger: NopLogger{}}
}

// WithLogger sets the logger used while loading. Default is NopLogger.
func WithLogger(l Logger) Option {
	return func(c *loadConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSource names the origin of the contracts (a file path, for example) in log
// output and parse errors.
func WithSource(source string) Option {
	return func(c *loadConfig) {
		c.source = source
	}
}

// Load validates every contract and builds a Registry.
//
// Loading is all or nothing: if any contract is malformed no Registry is returned
// and the error joins one *pcerrors.ContractError per problem, each naming the
// operation and field. The returned error matches pcerrors.ErrInvalidContract.
func Load(contracts []OperationContract, opts ...Option) (*Registry, error) {
	cfg := defaultLoadConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	reg := &Registry{
		operations: make(map[string]*OperationContract, len(contracts)),
		ids:        make([]string, 0, len(contracts)),
		routes:     &PathMatcherSet{},
	}

	var errs []error
	for i := range contracts {
		c := contracts[i].clone()
		issues := normalizeContract(&c)

		if c.OperationID != "" {
			if _, dup := reg.operations[c.OperationID]; dup {
				issues = append(issues, &pcerrors.ContractError{
					Operation: c.OperationID,
					Field:     "operationId",
					Message:   "duplicate operationId",
				})
			}
		}

		var matcher *PathMatcher
		if c.Path != "" {
			var pathIssues []error
			matcher, pathIssues = checkPathTemplate(&c)
			issues = append(issues, pathIssues...)
		}

		if len(issues) > 0 {
			errs = append(errs, issues...)
			continue
		}

		reg.operations[c.OperationID] = &c
		reg.ids = append(reg.ids, c.OperationID)
		if matcher != nil {
			reg.routes.add(matcher, c.Method, c.OperationID)
		}
	}

	if len(errs) > 0 {
		cfg.logger.Error("contract load failed", "source", cfg.source, "problems", len(errs))
		return nil, errors.Join(errs...)
	}

	slices.Sort(reg.ids)
	reg.routes.sortRoutes()
	cfg.logger.Info("contracts loaded", "source", cfg.source, "operations", len(reg.ids))
	return reg, nil
}

// Lookup returns the contract for operationID.
// The returned contract is shared and must not be modified.
func (r *Registry) Lookup(operationID string) (*OperationContract, error) {
	c, ok := r.operations[operationID]
	if !ok {
		return nil, &pcerrors.UnknownOperationError{OperationID: operationID}
	}
	return c, nil
}

// Operations returns all operationIds in lexical order.
func (r *Registry) Operations() []string {
	return slices.Clone(r.ids)
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Match finds the operation whose method and path template match a request.
// Only contracts that declare a Path take part in matching.
func (r *Registry) Match(method, path string) (operationID string, pathParams map[string]string, found bool) {
	return r.routes.Match(method, path)
}

// normalizeContract applies defaults and checks per-contract invariants in place.
func normalizeContract(c *OperationContract) []error {
	var errs []error
	fail := func(field string, value any, format string, args ...any) {
		errs = append(errs, &pcerrors.ContractError{
			Operation: c.OperationID,
			Field:     field,
			Value:     value,
			Message:   fmt.Sprintf(format, args...),
		})
	}

	if strings.TrimSpace(c.OperationID) == "" {
		fail("operationId", nil, "operationId is required")
	}

	if !c.ResolutionMode.Valid() {
		fail("resolutionMode", string(c.ResolutionMode), "unknown resolution mode (want %q or %q)", ModeStrict, ModeMerged)
	} else if c.ResolutionMode == "" {
		c.ResolutionMode = ModeStrict
	}

	if c.Method != "" {
		c.Method = strings.ToUpper(c.Method)
		if !isHTTPMethod(c.Method) {
			fail("method", c.Method, "unknown HTTP method")
		}
	}

	seen := make(map[string]int, len(c.Parameters))
	for i := range c.Parameters {
		p := &c.Parameters[i]
		field := fmt.Sprintf("parameters[%d]", i)

		if p.Name == "" {
			fail(field+".name", nil, "parameter name is required")
		}
		if !p.Location.IsParameterLocation() {
			fail(field+".in", string(p.Location), "unknown parameter location")
		}
		if !p.Type.Valid() {
			fail(field+".type", string(p.Type), "unknown parameter type")
		}

		if p.Location == LocationPath {
			if p.optionalSet {
				fail(field+".required", false, "path parameters are always required")
			}
			if p.Repeated {
				fail(field+".repeated", true, "path parameters cannot be repeated")
			}
			p.Required = true
		}

		key := string(p.Location) + ":" + p.Name
		if prev, dup := seen[key]; dup {
			fail(field+".name", p.Name, "duplicate parameter in %q (first declared at parameters[%d])", p.Location, prev)
		} else {
			seen[key] = i
		}

		if p.Type.Valid() {
			for j, v := range p.Enum {
				typed, err := coerceEnumValue(p.Type, v)
				if err != nil {
					fail(fmt.Sprintf("%s.enum[%d]", field, j), v, "%v", err)
					continue
				}
				p.Enum[j] = typed
			}
		}
	}

	bodies := make(map[ContentType]int, len(c.Bodies))
	for i := range c.Bodies {
		b := &c.Bodies[i]
		field := fmt.Sprintf("requestBody[%d]", i)

		ct := ParseContentType(string(b.ContentType))
		if !ct.Valid() {
			fail(field+".contentType", string(b.ContentType), "unsupported content type")
			continue
		}
		b.ContentType = ct
		if prev, dup := bodies[ct]; dup {
			fail(field+".contentType", string(ct), "duplicate body schema (first declared at requestBody[%d])", prev)
		} else {
			bodies[ct] = i
		}

		for _, name := range b.FieldNames() {
			prop := b.Properties[name]
			if name == "" {
				fail(field+".properties", nil, "property name is required")
			}
			if !prop.Type.Valid() {
				fail(field+".properties."+name+".type", string(prop.Type), "unknown property type")
			}
		}
	}

	return errs
}

// checkPathTemplate compiles the contract's path template and verifies that its
// placeholders and the declared path parameters are the same set.
func checkPathTemplate(c *OperationContract) (*PathMatcher, []error) {
	pm, err := NewPathMatcher(c.Path)
	if err != nil {
		return nil, []error{&pcerrors.ContractError{
			Operation: c.OperationID,
			Field:     "path",
			Value:     c.Path,
			Message:   "malformed path template",
			Cause:     err,
		}}
	}

	var errs []error
	declared := make(map[string]bool)
	for _, p := range c.Parameters {
		if p.Location == LocationPath {
			declared[p.Name] = true
		}
	}
	inTemplate := make(map[string]bool, len(pm.ParamNames()))
	for _, name := range pm.ParamNames() {
		inTemplate[name] = true
		if !declared[name] {
			errs = append(errs, &pcerrors.ContractError{
				Operation: c.OperationID,
				Field:     "path",
				Value:     c.Path,
				Message:   fmt.Sprintf("placeholder %q has no declared path parameter", name),
			})
		}
	}
	for i, p := range c.Parameters {
		if p.Location == LocationPath && !inTemplate[p.Name] {
			errs = append(errs, &pcerrors.ContractError{
				Operation: c.OperationID,
				Field:     fmt.Sprintf("parameters[%d].name", i),
				Value:     p.Name,
				Message:   fmt.Sprintf("path parameter does not appear in template %q", c.Path),
			})
		}
	}
	return pm, errs
}

// coerceEnumValue converts a declared enum value to the Go type the coercer
// produces for t, so enum checks can compare with ==.
func coerceEnumValue(t Type, v any) (any, error) {
	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeInteger:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case uint64:
			if n <= math.MaxInt64 {
				return int64(n), nil
			}
		case float64:
			if n == math.Trunc(n) && n >= -(1<<63) && n < 1<<63 {
				return int64(n), nil
			}
		case json.Number:
			if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
				return i, nil
			}
		}
	}
	return nil, fmt.Errorf("enum value %v (%T) is not of type %s", v, v, t)
}

func isHTTPMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
