package httpvalidator

import (
	"net/url"
	"slices"
	"strings"

	"github.com/erraggy/paramcontract/contract"
	"golang.org/x/text/cases"
)

// queryPair is one key=value pair of a query string. ok is false when the value
// holds a malformed percent-escape.
type queryPair struct {
	key   string
	value string
	ok    bool
}

// resolver extracts raw parameter values from one descriptor. It is created per
// validation call and lazily caches the parsed query string, cookies and body.
type resolver struct {
	desc        *RequestDescriptor
	maxBodySize int64

	query   []queryPair
	cookies map[string]string
	body    *parsedBody
	fold    cases.Caser
}

func newResolver(d *RequestDescriptor, maxBodySize int64) *resolver {
	return &resolver{desc: d, maxBodySize: maxBodySize, fold: cases.Fold()}
}

// resolve returns the raw values for spec and the location that supplied them.
// Non-repeated parameters yield exactly one value when present.
func (r *resolver) resolve(spec *contract.ParameterSpec, mode contract.ResolutionMode) (values []string, source contract.Location, present bool) {
	if values, ok := r.lookup(spec.Location, spec.Name, spec.Repeated); ok {
		return values, spec.Location, true
	}
	for _, loc := range mode.Fallback() {
		if loc == spec.Location {
			continue
		}
		if values, ok := r.lookup(loc, spec.Name, spec.Repeated); ok {
			return values, loc, true
		}
	}
	return nil, "", false
}

func (r *resolver) lookup(loc contract.Location, name string, repeated bool) ([]string, bool) {
	var values []string
	switch loc {
	case contract.LocationQuery:
		values = r.queryValues(name)
	case contract.LocationPath:
		if v, ok := r.desc.PathParams[name]; ok {
			values = []string{v}
		}
	case contract.LocationHeader:
		values = r.headerValues(name)
	case contract.LocationCookie:
		if v, ok := r.cookieValue(name); ok {
			values = []string{v}
		}
	case contract.LocationBody:
		if v, ok := r.parsedBody().lookup(name); ok {
			values = []string{v}
		}
	}
	if len(values) == 0 {
		return nil, false
	}
	if !repeated {
		values = values[:1]
	}
	return values, true
}

// queryValues returns every well-formed value of key in order of appearance.
func (r *resolver) queryValues(key string) []string {
	if r.query == nil {
		r.query = parseQuery(r.desc.RawQuery)
	}
	var values []string
	for _, p := range r.query {
		if p.key == key && p.ok {
			values = append(values, p.value)
		}
	}
	return values
}

// parseQuery splits a raw query string into ordered pairs. A pair whose key is
// malformed is dropped; a pair whose value is malformed is kept but marked bad.
func parseQuery(raw string) []queryPair {
	pairs := make([]queryPair, 0)
	for raw != "" {
		var part string
		part, raw, _ = strings.Cut(raw, "&")
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(v)
		pairs = append(pairs, queryPair{key: key, value: value, ok: err == nil})
	}
	return pairs
}

// headerValues looks name up case-insensitively. Keys that fold to the same
// name contribute their values in sorted key order.
func (r *resolver) headerValues(name string) []string {
	if len(r.desc.Header) == 0 {
		return nil
	}

	want := r.fold.String(name)
	var keys []string
	for k := range r.desc.Header {
		if r.fold.String(k) == want {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	var values []string
	for _, k := range keys {
		values = append(values, r.desc.Header[k]...)
	}
	return values
}

// cookieValue returns the last value sent for name across all Cookie lines.
func (r *resolver) cookieValue(name string) (string, bool) {
	if r.cookies == nil {
		r.cookies = parseCookies(r.desc.Cookies)
	}
	v, ok := r.cookies[name]
	return v, ok
}

// parseCookies splits Cookie header lines into name/value pairs, later pairs
// replacing earlier ones. Values are taken as sent apart from one pair of
// surrounding double quotes, so characters outside the RFC 6265 cookie-octet
// set (such as the braces and commas of a JSON value) are kept rather than
// dropping the cookie. Pairs with an empty name are skipped.
func parseCookies(lines []string) map[string]string {
	cookies := make(map[string]string)
	for _, line := range lines {
		for part := range strings.SplitSeq(line, ";") {
			name, value, _ := strings.Cut(part, "=")
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			value = strings.TrimSpace(value)
			if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
				value = value[1 : len(value)-1]
			}
			cookies[name] = value
		}
	}
	return cookies
}

func (r *resolver) parsedBody() *parsedBody {
	if r.body == nil {
		r.body = parseBody(r.desc, r.maxBodySize)
	}
	return r.body
}
