package errformat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/erraggy/paramcontract/contract"
	"github.com/erraggy/paramcontract/httpvalidator"
)

// detailPattern recognizes one rendered detail shape. Group indexes of zero mean
// the shape does not carry that part.
type detailPattern struct {
	re        *regexp.Regexp
	locGroup  int
	nameGroup int
	msgGroup  int
	locQuoted bool
	code      httpvalidator.Code
}

// detailPatterns returns the detail matchers for f, most specific first.
func (f Format) detailPatterns() []detailPattern {
	quoted := quotedPattern(f.Quote)
	if f.Style == StyleProblem {
		return []detailPattern{
			{re: regexp.MustCompile(`^Missing (\w+) parameter ` + quoted + `$`), locGroup: 1, nameGroup: 2, code: httpvalidator.CodeMissingRequiredParameter},
			{re: regexp.MustCompile(`(?s)^Invalid (\w+) parameter ` + quoted + `: (.*)$`), locGroup: 1, nameGroup: 2, msgGroup: 3},
			{re: regexp.MustCompile(`(?s)^Invalid (\w+): (.*)$`), locGroup: 1, msgGroup: 2},
		}
	}
	return []detailPattern{
		{re: regexp.MustCompile(`^missing parameter ` + quoted + ` in ` + quoted + `$`), nameGroup: 1, locGroup: 2, locQuoted: true, code: httpvalidator.CodeMissingRequiredParameter},
		{re: regexp.MustCompile(`(?s)^invalid parameter ` + quoted + ` in ` + quoted + `: (.*)$`), nameGroup: 1, locGroup: 2, locQuoted: true, msgGroup: 3},
		{re: regexp.MustCompile(`(?s)^invalid (\w+): (.*)$`), locGroup: 1, msgGroup: 2},
	}
}

// quotedPattern matches a quoted string with backslash escapes and captures its
// still-escaped content.
func quotedPattern(q rune) string {
	return fmt.Sprintf(`\x{%x}((?:[^\x{%x}\\]|\\.)*)\x{%x}`, q, q, q)
}

func unquote(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

// problemBody is the union of both layouts.
type problemBody struct {
	Type   string          `json:"type"`
	Title  string          `json:"title"`
	Detail string          `json:"detail"`
	Status json.RawMessage `json:"status"`
}

// Parse reverses Render, recovering location and name for every error. Codes are
// recovered for missing parameters only; other errors carry the message text.
func (f Format) Parse(data []byte) ([]httpvalidator.ValidationError, error) {
	trimmed := bytes.TrimSpace(data)
	var bodies []problemBody
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &bodies); err != nil {
			return nil, fmt.Errorf("errformat: decoding error list: %w", err)
		}
	} else {
		var one problemBody
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("errformat: decoding error: %w", err)
		}
		bodies = []problemBody{one}
	}

	patterns := f.detailPatterns()
	out := make([]httpvalidator.ValidationError, 0, len(bodies))
	for i, b := range bodies {
		e, ok := f.parseDetail(b.Detail, patterns)
		if !ok {
			return nil, fmt.Errorf("errformat: error %d: unrecognized detail %q", i, b.Detail)
		}
		out = append(out, e)
	}
	return out, nil
}

func (f Format) parseDetail(detail string, patterns []detailPattern) (httpvalidator.ValidationError, bool) {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(detail)
		if m == nil {
			continue
		}
		e := httpvalidator.ValidationError{Code: p.code}
		loc := m[p.locGroup]
		if p.locQuoted {
			loc = unquote(loc)
		}
		e.Location = contract.Location(loc)
		if p.nameGroup > 0 {
			e.Name = unquote(m[p.nameGroup])
		}
		if p.msgGroup > 0 {
			e.Message = m[p.msgGroup]
		}
		return e, true
	}
	return httpvalidator.ValidationError{}, false
}
