// Package errformat renders validation errors into the two client-error bodies
// seen in production and parses them back.
//
// The simple form carries the status as a string and double-quotes names:
//
//	{"status": "400", "title": "Bad Request", "detail": "missing parameter \"host_alias\" in \"query\""}
//
// The problem-detail form carries the status as a number and single-quotes names:
//
//	{"type": "about:blank", "title": "Bad Request", "detail": "Missing query parameter 'host_alias'", "status": 400}
//
// Quote character, status encoding, title and status are fields of Format, so
// either shape can be adjusted per deployment. One error renders as one object;
// several render as a JSON array of objects in order.
package errformat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/erraggy/paramcontract/httpvalidator"
	"github.com/erraggy/paramcontract/pcerrors"
)

// Style selects the field layout of a rendered error.
type Style string

// Styles.
const (
	StyleSimple  Style = "simple"
	StyleProblem Style = "problem"
)

// Format describes how errors are rendered.
type Format struct {
	Style Style

	// Quote surrounds names and locations in the detail text.
	Quote rune

	// StatusAsString renders the status as "400" instead of 400.
	StatusAsString bool

	Title  string
	Status int

	// Type is the problem type URI. Only used by StyleProblem.
	Type string
}

// Simple returns the simple format preset.
func Simple() Format {
	return Format{
		Style:          StyleSimple,
		Quote:          '"',
		StatusAsString: true,
		Title:          http.StatusText(http.StatusBadRequest),
		Status:         http.StatusBadRequest,
	}
}

// ProblemDetail returns the problem-detail format preset.
func ProblemDetail() Format {
	return Format{
		Style:  StyleProblem,
		Quote:  '\'',
		Title:  http.StatusText(http.StatusBadRequest),
		Status: http.StatusBadRequest,
		Type:   "about:blank",
	}
}

// ByName returns the preset named "simple" or "problem".
func ByName(name string) (Format, error) {
	switch Style(strings.ToLower(strings.TrimSpace(name))) {
	case StyleSimple:
		return Simple(), nil
	case StyleProblem:
		return ProblemDetail(), nil
	default:
		return Format{}, &pcerrors.ConfigError{Option: "errorFormat", Value: name, Message: `must be "simple" or "problem"`}
	}
}

// Validate checks that f can render and parse unambiguously.
func (f Format) Validate() error {
	switch {
	case f.Style != StyleSimple && f.Style != StyleProblem:
		return &pcerrors.ConfigError{Option: "style", Value: string(f.Style), Message: "unknown style"}
	case f.Quote == 0 || f.Quote == '\\' || !utf8.ValidRune(f.Quote):
		return &pcerrors.ConfigError{Option: "quote", Value: string(f.Quote), Message: "must be a printable character other than backslash"}
	case f.Status < 100 || f.Status > 599:
		return &pcerrors.ConfigError{Option: "status", Value: f.Status, Message: "must be an HTTP status code"}
	}
	return nil
}

// ContentType returns the media type of rendered bodies.
func (f Format) ContentType() string {
	if f.Style == StyleProblem {
		return "application/problem+json"
	}
	return "application/json"
}

// Detail returns the human-readable detail text for one error.
func (f Format) Detail(e httpvalidator.ValidationError) string {
	problem := f.Style == StyleProblem
	switch {
	case e.Code == httpvalidator.CodeMissingRequiredParameter && problem:
		return fmt.Sprintf("Missing %s parameter %s", e.Location, f.quote(e.Name))
	case e.Code == httpvalidator.CodeMissingRequiredParameter:
		return fmt.Sprintf("missing parameter %s in %s", f.quote(e.Name), f.quote(string(e.Location)))
	case e.Name == "" && problem:
		return "Invalid " + string(e.Location) + ": " + e.Message
	case e.Name == "":
		return "invalid " + string(e.Location) + ": " + e.Message
	case problem:
		return fmt.Sprintf("Invalid %s parameter %s: %s", e.Location, f.quote(e.Name), e.Message)
	default:
		return fmt.Sprintf("invalid parameter %s in %s: %s", f.quote(e.Name), f.quote(string(e.Location)), e.Message)
	}
}

// quote wraps s in the quote character, escaping the quote and backslash.
func (f Format) quote(s string) string {
	q := string(f.Quote)
	var b strings.Builder
	b.WriteString(q)
	for _, r := range s {
		if r == f.Quote || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteString(q)
	return b.String()
}

// Render serializes errs. A single error renders as an object and several as an
// array. Separators are ", " and ": ", and HTML characters are not escaped.
func (f Format) Render(errs []httpvalidator.ValidationError) []byte {
	var buf bytes.Buffer
	if len(errs) == 1 {
		f.renderOne(&buf, errs[0])
		return buf.Bytes()
	}
	buf.WriteByte('[')
	for i, e := range errs {
		if i > 0 {
			buf.WriteString(", ")
		}
		f.renderOne(&buf, e)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

func (f Format) renderOne(buf *bytes.Buffer, e httpvalidator.ValidationError) {
	buf.WriteByte('{')
	if f.Style == StyleProblem {
		writeField(buf, "type", f.problemType())
		buf.WriteString(", ")
		writeField(buf, "title", f.Title)
		buf.WriteString(", ")
		writeField(buf, "detail", f.Detail(e))
		buf.WriteString(", ")
		f.writeStatus(buf)
	} else {
		f.writeStatus(buf)
		buf.WriteString(", ")
		writeField(buf, "title", f.Title)
		buf.WriteString(", ")
		writeField(buf, "detail", f.Detail(e))
	}
	buf.WriteByte('}')
}

func (f Format) problemType() string {
	if f.Type == "" {
		return "about:blank"
	}
	return f.Type
}

func (f Format) writeStatus(buf *bytes.Buffer) {
	status := strconv.Itoa(f.Status)
	if f.StatusAsString {
		writeField(buf, "status", status)
		return
	}
	writeString(buf, "status")
	buf.WriteString(": ")
	buf.WriteString(status)
}

func writeField(buf *bytes.Buffer, key, value string) {
	writeString(buf, key)
	buf.WriteString(": ")
	writeString(buf, value)
}

// writeString appends s as a JSON string without HTML escaping.
func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // encoding a string cannot fail
	buf.Truncate(buf.Len() - 1)
}

// StatusCode returns the HTTP status the format renders.
func (f Format) StatusCode() int {
	return f.Status
}
