package options

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erraggy/paramcontract/errformat"
	"github.com/erraggy/paramcontract/httpvalidator"
)

// EnvPrefix starts every environment variable read by paramcontract.
const EnvPrefix = "PARAMCONTRACT_"

// Settings are the validation defaults shared by every entry point.
type Settings struct {
	MaxBodySize int64
	ErrorFormat errformat.Format
}

// LoadSettings reads PARAMCONTRACT_* variables. Invalid values log a warning and
// fall back to the built-in default.
func LoadSettings() Settings {
	format := envFormat(EnvPrefix+"ERROR_FORMAT", errformat.Simple())
	format.Status = EnvInt(EnvPrefix+"ERROR_STATUS", format.Status)
	format.Quote = EnvRune(EnvPrefix+"ERROR_QUOTE", format.Quote)
	format.StatusAsString = EnvBool(EnvPrefix+"STATUS_AS_STRING", format.StatusAsString)
	if err := format.Validate(); err != nil {
		slog.Warn("invalid error format settings, using default", "error", err)
		format = errformat.Simple()
	}
	return Settings{
		MaxBodySize: EnvInt64(EnvPrefix+"MAX_BODY_SIZE", httpvalidator.DefaultMaxBodySize),
		ErrorFormat: format,
	}
}

// EnvBool reads a boolean variable.
func EnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid bool env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return b
}

// EnvInt reads a positive integer variable.
func EnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid int env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

// EnvInt64 reads a positive 64-bit integer variable.
func EnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		slog.Warn("invalid int env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

// EnvDuration reads a positive duration such as "15m".
func EnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

// EnvRune reads a variable holding exactly one character.
func EnvRune(key string, fallback rune) rune {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	r, size := utf8.DecodeRuneInString(v)
	if r == utf8.RuneError || size != len(v) {
		slog.Warn("invalid character env var, using default", "key", key, "value", v, "default", string(fallback))
		return fallback
	}
	return r
}

func envFormat(key string, fallback errformat.Format) errformat.Format {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := errformat.ByName(v)
	if err != nil {
		slog.Warn("invalid error format env var, using default", "key", key, "value", v, "default", fallback.Style)
		return fallback
	}
	return f
}
