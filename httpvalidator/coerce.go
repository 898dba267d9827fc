package httpvalidator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/erraggy/paramcontract/contract"
)

var errTypeMismatch = errors.New("type mismatch")

// coerce converts a raw string to the declared primitive type.
//
//   - integer: optional sign and decimal digits only, within int64 range
//   - boolean: "true" or "false", case-insensitively
//   - string: any value, including the empty string
func coerce(raw string, t contract.Type) (any, error) {
	switch t {
	case contract.TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errTypeMismatch
		}
		return n, nil
	case contract.TypeBoolean:
		switch strings.ToLower(raw) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, errTypeMismatch
	default:
		return raw, nil
	}
}

// inEnum reports whether v is one of the allowed values. An empty enum allows all.
func inEnum(v any, enum []any) bool {
	if len(enum) == 0 {
		return true
	}
	for _, e := range enum {
		if v == e {
			return true
		}
	}
	return false
}

func typeMismatchMessage(raw string, t contract.Type, redact bool) string {
	if redact {
		return fmt.Sprintf("value is not a valid %s", t)
	}
	return fmt.Sprintf("value %q is not a valid %s", truncateForError(raw), t)
}

func enumMessage(v any, enum []any, redact bool) string {
	allowed := make([]string, len(enum))
	for i, e := range enum {
		allowed[i] = fmt.Sprint(e)
	}
	if redact {
		return fmt.Sprintf("value is not one of [%s]", strings.Join(allowed, ", "))
	}
	return fmt.Sprintf("value %s is not one of [%s]", truncateForError(fmt.Sprint(v)), strings.Join(allowed, ", "))
}

// maxErrorValueLen bounds echoed request values in error messages.
const maxErrorValueLen = 64

func truncateForError(s string) string {
	if len(s) <= maxErrorValueLen {
		return s
	}
	return strings.ToValidUTF8(s[:maxErrorValueLen], "") + "..."
}
