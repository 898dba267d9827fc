package httpvalidator

import (
	"github.com/erraggy/paramcontract/pcerrors"
)

// DefaultMaxBodySize is the body size limit used when none is configured.
const DefaultMaxBodySize int64 = 10 << 20 // 10 MiB

// Option is a functional option for configuring a Validator.
type Option func(*config) error

// config holds the configuration for validation operations.
type config struct {
	maxBodySize int64 // 0 = DefaultMaxBodySize
}

// defaultConfig returns the default configuration.
func defaultConfig() *config {
	return &config{}
}

// WithMaxBodySize sets the maximum request body size in bytes.
// Bodies exceeding this limit produce a single CodeBodyTooLarge error and are
// never parsed. Zero selects DefaultMaxBodySize; negative values are rejected.
func WithMaxBodySize(n int64) Option {
	return func(c *config) error {
		if n < 0 {
			return &pcerrors.ConfigError{Option: "maxBodySize", Value: n, Message: "cannot be negative"}
		}
		c.maxBodySize = n
		return nil
	}
}
