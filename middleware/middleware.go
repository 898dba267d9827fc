// Package middleware validates incoming requests against a contract registry
// before they reach a handler.
//
// The operation for a request is chosen by an [OperationFunc]. The default,
// [MuxOperation], uses the name of the matched gorilla/mux route and its path
// variables:
//
//	r := mux.NewRouter()
//	r.HandleFunc("/hosts", registerHost).Methods(http.MethodPost).Name("register_host")
//	mw, err := middleware.New(registry, middleware.WithFormat(errformat.ProblemDetail()))
//	if err != nil {
//		return err
//	}
//	r.Use(mw)
//
// Rejected requests receive the configured error format and status. Accepted
// requests reach the handler with the body intact and the validation result in
// the request context.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/erraggy/paramcontract/contract"
	"github.com/erraggy/paramcontract/errformat"
	"github.com/erraggy/paramcontract/httpvalidator"
	"github.com/erraggy/paramcontract/pcerrors"
)

// DefaultRequestIDHeader carries the request id in and out of the middleware.
const DefaultRequestIDHeader = "X-Request-Id"

// OperationFunc reports which operation a request targets and its path
// parameter bindings. ok is false when the request is not covered by any
// contract; such requests pass through unvalidated.
type OperationFunc func(r *http.Request) (operationID string, pathParams map[string]string, ok bool)

// MuxOperation resolves the operation from the current gorilla/mux route name.
func MuxOperation(r *http.Request) (string, map[string]string, bool) {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "", nil, false
	}
	name := route.GetName()
	if name == "" {
		return "", nil, false
	}
	return name, mux.Vars(r), true
}

// RegistryOperation resolves the operation by matching the request method and
// path against the path templates declared in reg.
func RegistryOperation(reg *contract.Registry) OperationFunc {
	return func(r *http.Request) (string, map[string]string, bool) {
		return reg.Match(r.Method, r.URL.EscapedPath())
	}
}

type config struct {
	validator       *httpvalidator.Validator
	format          errformat.Format
	logger          contract.Logger
	metrics         *Metrics
	operation       OperationFunc
	requestIDHeader string
}

// Option configures the middleware.
type Option func(*config) error

// WithValidator sets the validator. The default is httpvalidator.New().
func WithValidator(v *httpvalidator.Validator) Option {
	return func(cfg *config) error {
		if v == nil {
			return &pcerrors.ConfigError{Option: "validator", Message: "must not be nil"}
		}
		cfg.validator = v
		return nil
	}
}

// WithFormat sets how rejected requests are rendered. The default is errformat.Simple().
func WithFormat(f errformat.Format) Option {
	return func(cfg *config) error {
		if err := f.Validate(); err != nil {
			return err
		}
		cfg.format = f
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l contract.Logger) Option {
	return func(cfg *config) error {
		if l == nil {
			l = contract.NopLogger{}
		}
		cfg.logger = l
		return nil
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *Metrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}

// WithOperationFunc replaces MuxOperation.
func WithOperationFunc(fn OperationFunc) Option {
	return func(cfg *config) error {
		if fn == nil {
			return &pcerrors.ConfigError{Option: "operationFunc", Message: "must not be nil"}
		}
		cfg.operation = fn
		return nil
	}
}

// WithRequestIDHeader changes the header the request id is read from and echoed in.
func WithRequestIDHeader(name string) Option {
	return func(cfg *config) error {
		if name == "" {
			return &pcerrors.ConfigError{Option: "requestIDHeader", Message: "must not be empty"}
		}
		cfg.requestIDHeader = http.CanonicalHeaderKey(name)
		return nil
	}
}

type contextKey int

const (
	resultKey contextKey = iota
	requestIDKey
)

// ResultFromContext returns the validation result stored by the middleware.
func ResultFromContext(ctx context.Context) (*httpvalidator.Result, bool) {
	r, ok := ctx.Value(resultKey).(*httpvalidator.Result)
	return r, ok
}

// RequestIDFromContext returns the request id assigned by the middleware.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

// New returns middleware validating requests against reg.
func New(reg *contract.Registry, opts ...Option) (func(http.Handler) http.Handler, error) {
	if reg == nil {
		return nil, &pcerrors.ConfigError{Option: "registry", Message: "must not be nil"}
	}
	cfg := &config{
		format:          errformat.Simple(),
		logger:          contract.NopLogger{},
		operation:       MuxOperation,
		requestIDHeader: DefaultRequestIDHeader,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.validator == nil {
		v, err := httpvalidator.New()
		if err != nil {
			return nil, err
		}
		cfg.validator = v
	}

	return func(next http.Handler) http.Handler {
		return &handler{reg: reg, cfg: cfg, next: next}
	}, nil
}

type handler struct {
	reg  *contract.Registry
	cfg  *config
	next http.Handler
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	requestID := r.Header.Get(h.cfg.requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(h.cfg.requestIDHeader, requestID)
	ctx := context.WithValue(r.Context(), requestIDKey, requestID)

	operationID, pathParams, ok := h.cfg.operation(r)
	if !ok {
		h.cfg.logger.Debug("no contract for request", "method", r.Method, "path", r.URL.Path, "request_id", requestID)
		h.next.ServeHTTP(w, r.WithContext(ctx))
		return
	}
	log := h.cfg.logger.With("operation", operationID, "request_id", requestID)

	c, err := h.reg.Lookup(operationID)
	if err != nil {
		log.Error("operation has no contract", "error", err)
		h.cfg.metrics.unknownOperation(operationID)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	desc, err := httpvalidator.FromRequest(r, pathParams, h.cfg.validator.MaxBodySize())
	if err != nil {
		log.Warn("request body unreadable", "error", err)
		h.reject(w, []httpvalidator.ValidationError{{
			Location: contract.LocationBody,
			Code:     httpvalidator.CodeBodySchemaViolation,
			Message:  "request body could not be read",
		}})
		return
	}

	result := h.cfg.validator.Validate(c, desc)
	h.cfg.metrics.observe(c, &result, time.Since(start))

	if !result.Valid {
		log.Warn("request rejected", "errors", len(result.Errors), "first", result.Errors[0].String())
		h.reject(w, result.Errors)
		return
	}
	if fallbacks := result.Fallbacks(c); len(fallbacks) > 0 {
		log.Debug("parameters resolved outside declared location", "sources", fallbacks)
	}

	ctx = context.WithValue(ctx, resultKey, &result)
	h.next.ServeHTTP(w, r.WithContext(ctx))
}

func (h *handler) reject(w http.ResponseWriter, errs []httpvalidator.ValidationError) {
	f := h.cfg.format
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(f.StatusCode())
	_, _ = w.Write(f.Render(errs))
}
