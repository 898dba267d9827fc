package errformat

import (
	"encoding/json"
	"testing"

	"github.com/erraggy/paramcontract/contract"
	"github.com/erraggy/paramcontract/httpvalidator"
	"github.com/erraggy/paramcontract/pcerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var missingAlias = httpvalidator.ValidationError{
	Location: contract.LocationQuery,
	Name:     "host_alias",
	Code:     httpvalidator.CodeMissingRequiredParameter,
	Message:  "missing required query parameter",
}

var badPort = httpvalidator.ValidationError{
	Location: contract.LocationQuery,
	Name:     "port",
	Code:     httpvalidator.CodeTypeMismatch,
	Message:  `value "abc" is not a valid integer`,
}

func TestRenderSimple(t *testing.T) {
	got := Simple().Render([]httpvalidator.ValidationError{missingAlias})
	assert.Equal(t, `{"status": "400", "title": "Bad Request", "detail": "missing parameter \"host_alias\" in \"query\""}`, string(got))
	assert.True(t, json.Valid(got))
}

func TestRenderProblemDetail(t *testing.T) {
	got := ProblemDetail().Render([]httpvalidator.ValidationError{missingAlias})
	assert.Equal(t, `{"type": "about:blank", "title": "Bad Request", "detail": "Missing query parameter 'host_alias'", "status": 400}`, string(got))
	assert.True(t, json.Valid(got))
}

func TestRenderSeveral(t *testing.T) {
	errs := []httpvalidator.ValidationError{missingAlias, badPort}

	simple := Simple().Render(errs)
	assert.Equal(t, `[{"status": "400", "title": "Bad Request", "detail": "missing parameter \"host_alias\" in \"query\""}, `+
		`{"status": "400", "title": "Bad Request", "detail": "invalid parameter \"port\" in \"query\": value \"abc\" is not a valid integer"}]`,
		string(simple))

	problem := ProblemDetail().Render(errs)
	assert.Equal(t, `[{"type": "about:blank", "title": "Bad Request", "detail": "Missing query parameter 'host_alias'", "status": 400}, `+
		`{"type": "about:blank", "title": "Bad Request", "detail": "Invalid query parameter 'port': value \"abc\" is not a valid integer", "status": 400}]`,
		string(problem))
}

func TestRenderDoesNotEscapeHTML(t *testing.T) {
	e := httpvalidator.ValidationError{Location: contract.LocationBody, Code: httpvalidator.CodeUnsupportedContentType, Message: "content type <none> & friends"}
	got := Simple().Render([]httpvalidator.ValidationError{e})
	assert.Contains(t, string(got), `"detail": "invalid body: content type <none> & friends"`)
}

func TestRoundTrip(t *testing.T) {
	errs := []httpvalidator.ValidationError{
		missingAlias,
		badPort,
		{Location: contract.LocationCookie, Name: "sid", Code: httpvalidator.CodeMissingRequiredParameter},
		{Location: contract.LocationHeader, Name: `it's "quoted" \ here`, Code: httpvalidator.CodeEnumViolation, Message: "value x is not one of [a, b]"},
		{Location: contract.LocationBody, Code: httpvalidator.CodeBodyTooLarge, Message: "request body exceeds 10 bytes: nothing: else"},
		{Location: contract.LocationPath, Name: "host_id", Code: httpvalidator.CodeTypeMismatch, Message: "multi\nline"},
	}

	for _, f := range []Format{Simple(), ProblemDetail()} {
		t.Run(string(f.Style), func(t *testing.T) {
			parsed, err := f.Parse(f.Render(errs))
			require.NoError(t, err)
			require.Len(t, parsed, len(errs))
			for i, want := range errs {
				got := parsed[i]
				assert.Equal(t, want.Location, got.Location, "error %d", i)
				assert.Equal(t, want.Name, got.Name, "error %d", i)
				if want.Code == httpvalidator.CodeMissingRequiredParameter {
					assert.Equal(t, want.Code, got.Code, "error %d", i)
					continue
				}
				assert.Equal(t, want.Message, got.Message, "error %d", i)
			}
		})
	}

	t.Run("single object", func(t *testing.T) {
		parsed, err := ProblemDetail().Parse(ProblemDetail().Render([]httpvalidator.ValidationError{badPort}))
		require.NoError(t, err)
		require.Len(t, parsed, 1)
		assert.Equal(t, "port", parsed[0].Name)
	})
}

func TestCustomQuote(t *testing.T) {
	f := Simple()
	f.Quote = '`'
	require.NoError(t, f.Validate())

	e := httpvalidator.ValidationError{Location: contract.LocationQuery, Name: "a`b", Code: httpvalidator.CodeMissingRequiredParameter}
	rendered := f.Render([]httpvalidator.ValidationError{e})
	assert.Contains(t, string(rendered), "missing parameter `a\\\\`b` in `query`")

	parsed, err := f.Parse(rendered)
	require.NoError(t, err)
	assert.Equal(t, "a`b", parsed[0].Name)
}

func TestParseErrors(t *testing.T) {
	_, err := Simple().Parse([]byte(`not json`))
	assert.Error(t, err)

	_, err = Simple().Parse([]byte(`[{"detail": 3}]`))
	assert.Error(t, err)

	_, err = Simple().Parse([]byte(`{"status": "400", "detail": "something happened"}`))
	assert.ErrorContains(t, err, "unrecognized detail")

	// problem-style text is not recognized by the simple format
	_, err = Simple().Parse(ProblemDetail().Render([]httpvalidator.ValidationError{missingAlias}))
	assert.Error(t, err)
}

func TestByName(t *testing.T) {
	f, err := ByName(" Problem ")
	require.NoError(t, err)
	assert.Equal(t, ProblemDetail(), f)

	f, err = ByName("simple")
	require.NoError(t, err)
	assert.Equal(t, Simple(), f)

	_, err = ByName("xml")
	assert.ErrorIs(t, err, pcerrors.ErrConfig)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Simple().Validate())
	assert.NoError(t, ProblemDetail().Validate())

	tests := []struct {
		name   string
		mutate func(*Format)
	}{
		{"unknown style", func(f *Format) { f.Style = "xml" }},
		{"no quote", func(f *Format) { f.Quote = 0 }},
		{"backslash quote", func(f *Format) { f.Quote = '\\' }},
		{"status too low", func(f *Format) { f.Status = 42 }},
		{"status too high", func(f *Format) { f.Status = 600 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Simple()
			tt.mutate(&f)
			assert.ErrorIs(t, f.Validate(), pcerrors.ErrConfig)
		})
	}
}

func TestContentTypeAndStatus(t *testing.T) {
	assert.Equal(t, "application/json", Simple().ContentType())
	assert.Equal(t, "application/problem+json", ProblemDetail().ContentType())
	assert.Equal(t, 400, ProblemDetail().StatusCode())

	f := ProblemDetail()
	f.Type = ""
	assert.Contains(t, string(f.Render([]httpvalidator.ValidationError{badPort})), `"type": "about:blank"`)
}
