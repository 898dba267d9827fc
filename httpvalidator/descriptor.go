package httpvalidator

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"

	"github.com/erraggy/paramcontract/contract"
)

// RequestDescriptor is a normalized view of one incoming request.
//
// A descriptor is built once per request, before validation, and must not be
// modified afterward. Validation only reads it, so the caller keeps ownership.
type RequestDescriptor struct {
	Method string

	// PathParams holds the bindings of the matched path template. Matching is
	// the job of the router; the values are used as given.
	PathParams map[string]string

	// RawQuery is the query string without the leading '?'.
	RawQuery string

	Header http.Header

	// Cookies holds the raw Cookie header lines.
	Cookies []string

	// ContentType is the raw Content-Type header value.
	ContentType string

	// ContentLength is the declared body length, or -1 when unknown.
	ContentLength int64

	// Body holds the materialized body bytes. Builders read at most one byte
	// beyond the configured maximum, enough to detect an oversized body.
	Body []byte
}

// FromRequest builds a descriptor from an *http.Request.
//
// At most maxBodySize+1 body bytes are read. The request body is replaced so the
// downstream handler can still read the complete body. A maxBodySize of zero
// selects DefaultMaxBodySize.
func FromRequest(r *http.Request, pathParams map[string]string, maxBodySize int64) (*RequestDescriptor, error) {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	d := &RequestDescriptor{
		Method:        r.Method,
		PathParams:    pathParams,
		RawQuery:      r.URL.RawQuery,
		Header:        r.Header,
		Cookies:       r.Header.Values("Cookie"),
		ContentType:   r.Header.Get("Content-Type"),
		ContentLength: r.ContentLength,
	}

	if r.Body == nil || r.Body == http.NoBody {
		return d, nil
	}

	limit := maxBodySize
	if limit < math.MaxInt64 {
		limit++
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("httpvalidator: reading request body: %w", err)
	}
	d.Body = body
	r.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(body), r.Body), closer: r.Body}
	return d, nil
}

// replayBody serves already-read bytes followed by the unread remainder.
type replayBody struct {
	io.Reader
	closer io.Closer
}

func (b *replayBody) Close() error { return b.closer.Close() }

// FromURL builds a descriptor from a method, an absolute or relative URL and an
// optional path template such as "/hosts/{host_id}". When template is set the
// URL path must match it, and the bindings are unescaped into PathParams.
func FromURL(method, rawURL, template string, header http.Header, body []byte) (*RequestDescriptor, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("httpvalidator: parsing URL: %w", err)
	}
	if header == nil {
		header = http.Header{}
	}

	d := &RequestDescriptor{
		Method:        method,
		PathParams:    map[string]string{},
		RawQuery:      u.RawQuery,
		Header:        header,
		Cookies:       header.Values("Cookie"),
		ContentType:   header.Get("Content-Type"),
		ContentLength: int64(len(body)),
		Body:          body,
	}

	if template == "" {
		return d, nil
	}
	pm, err := contract.NewPathMatcher(template)
	if err != nil {
		return nil, fmt.Errorf("httpvalidator: %w", err)
	}
	ok, raw := pm.Match(u.EscapedPath())
	if !ok {
		return nil, fmt.Errorf("httpvalidator: path %q does not match template %q", u.Path, template)
	}
	for name, v := range raw {
		unescaped, err := url.PathUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("httpvalidator: path parameter %q: %w", name, err)
		}
		d.PathParams[name] = unescaped
	}
	return d, nil
}
