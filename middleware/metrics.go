package middleware

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/erraggy/paramcontract/contract"
	"github.com/erraggy/paramcontract/httpvalidator"
)

// Metrics holds the Prometheus collectors updated by the middleware.
// A nil *Metrics records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics creates the validation collectors and registers them with reg.
// Collectors that are already registered are reused, so several middleware
// instances can share one registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paramcontract_validation_requests_total",
				Help: "Total number of validated requests by outcome",
			},
			[]string{"operation", "result"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paramcontract_validation_errors_total",
				Help: "Total number of validation errors by code",
			},
			[]string{"operation", "code"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paramcontract_validation_fallbacks_total",
				Help: "Total number of parameters satisfied outside their declared location",
			},
			[]string{"operation", "source"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paramcontract_validation_duration_seconds",
				Help:    "Time spent validating a request",
				Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
			},
			[]string{"operation"},
		),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.errors, err = register(reg, m.errors); err != nil {
		return nil, err
	}
	if m.fallbacks, err = register(reg, m.fallbacks); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observe(c *contract.OperationContract, result *httpvalidator.Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	op := c.OperationID
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	if result.Valid {
		m.requests.WithLabelValues(op, "valid").Inc()
	} else {
		m.requests.WithLabelValues(op, "invalid").Inc()
	}
	for _, e := range result.Errors {
		m.errors.WithLabelValues(op, string(e.Code)).Inc()
	}
	for _, source := range result.Fallbacks(c) {
		m.fallbacks.WithLabelValues(op, string(source)).Inc()
	}
}

func (m *Metrics) unknownOperation(operationID string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operationID, "unknown_operation").Inc()
	m.errors.WithLabelValues(operationID, string(httpvalidator.CodeUnknownOperation)).Inc()
}
