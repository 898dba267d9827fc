package httpvalidator

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/erraggy/paramcontract/contract"
	"github.com/erraggy/paramcontract/pcerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hostContract is the register_host contract used throughout the scenarios.
func hostContract(t *testing.T, mode contract.ResolutionMode) *contract.OperationContract {
	t.Helper()
	reg, err := contract.Load([]contract.OperationContract{{
		OperationID:    "register_host",
		ResolutionMode: mode,
		Parameters: []contract.ParameterSpec{
			{Name: "host_alias", Location: contract.LocationQuery, Required: true, Type: contract.TypeString},
			{Name: "user_tags", Location: contract.LocationQuery, Type: contract.TypeString},
		},
	}})
	require.NoError(t, err)
	c, err := reg.Lookup("register_host")
	require.NoError(t, err)
	return c
}

func mustLoad(t *testing.T, c contract.OperationContract) *contract.OperationContract {
	t.Helper()
	reg, err := contract.Load([]contract.OperationContract{c})
	require.NoError(t, err)
	out, err := reg.Lookup(c.OperationID)
	require.NoError(t, err)
	return out
}

func mustNew(t *testing.T, opts ...Option) *Validator {
	t.Helper()
	v, err := New(opts...)
	require.NoError(t, err)
	return v
}

// multipartBody encodes fields in order and returns the body and its Content-Type.
func multipartBody(t *testing.T, fields [][2]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		require.NoError(t, w.WriteField(f[0], f[1]))
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func multipartDescriptor(t *testing.T) *RequestDescriptor {
	t.Helper()
	body, ct := multipartBody(t, [][2]string{{"host_alias", "minikube"}, {"user_tags", "env:test"}})
	return &RequestDescriptor{
		Method:        http.MethodPost,
		Header:        http.Header{"Content-Type": {ct}},
		ContentType:   ct,
		ContentLength: int64(len(body)),
		Body:          body,
	}
}

func TestNew(t *testing.T) {
	t.Run("default body size", func(t *testing.T) {
		assert.Equal(t, DefaultMaxBodySize, mustNew(t).MaxBodySize())
	})

	t.Run("custom body size", func(t *testing.T) {
		assert.Equal(t, int64(512), mustNew(t, WithMaxBodySize(512)).MaxBodySize())
	})

	t.Run("negative body size is a configuration error", func(t *testing.T) {
		v, err := New(WithMaxBodySize(-1))
		assert.Nil(t, v)
		assert.True(t, errors.Is(err, pcerrors.ErrConfig))
		assert.ErrorContains(t, err, "maxBodySize")
	})
}

// =============================================================================
// Scenarios
// =============================================================================

func TestScenarioA_QueryParameters(t *testing.T) {
	v := mustNew(t)
	d := &RequestDescriptor{Method: http.MethodPost, RawQuery: "host_alias=minikube&user_tags=env:test"}

	result := v.Validate(hostContract(t, contract.ModeStrict), d)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, map[string]any{"host_alias": "minikube", "user_tags": "env:test"}, result.Values)
	assert.Equal(t, map[string]contract.Location{"host_alias": contract.LocationQuery, "user_tags": contract.LocationQuery}, result.Sources)
}

func TestScenarioB_StrictIgnoresBody(t *testing.T) {
	v := mustNew(t)
	result := v.Validate(hostContract(t, contract.ModeStrict), multipartDescriptor(t))

	assert.False(t, result.Valid)
	assert.Equal(t, []ValidationError{{
		Location: contract.LocationQuery,
		Name:     "host_alias",
		Code:     CodeMissingRequiredParameter,
		Message:  "missing required query parameter",
	}}, result.Errors)
}

func TestScenarioC_MergedFallsBackToBody(t *testing.T) {
	v := mustNew(t)
	c := hostContract(t, contract.ModeMerged)
	result := v.Validate(c, multipartDescriptor(t))

	assert.True(t, result.Valid)
	assert.Equal(t, map[string]any{"host_alias": "minikube", "user_tags": "env:test"}, result.Values)
	assert.Equal(t, contract.LocationBody, result.Sources["host_alias"])
	assert.Equal(t, map[string]contract.Location{"host_alias": contract.LocationBody, "user_tags": contract.LocationBody}, result.Fallbacks(c))
}

func TestScenarioD_BodyTooLarge(t *testing.T) {
	const limit = 64
	v := mustNew(t, WithMaxBodySize(limit))

	body := []byte(`{"host_alias": "` + strings.Repeat("x", 2*limit) + `"}`)
	require.Greater(t, len(body), 2*limit)

	c := mustLoad(t, contract.OperationContract{
		OperationID: "register_host",
		Parameters: []contract.ParameterSpec{
			{Name: "host_alias", Location: contract.LocationQuery, Required: true, Type: contract.TypeString},
		},
		Bodies: []contract.BodySchema{{
			ContentType: contract.ContentTypeJSON,
			Properties:  map[string]contract.Property{"host_alias": {Type: contract.TypeString, Required: true}},
		}},
	})
	d := &RequestDescriptor{
		RawQuery:      "host_alias=minikube",
		ContentType:   "application/json",
		ContentLength: int64(len(body)),
		Body:          body,
	}

	result := v.Validate(c, d)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeBodyTooLarge, result.Errors[0].Code)
	assert.Equal(t, contract.LocationBody, result.Errors[0].Location)
	assert.Empty(t, result.Errors[0].Name)

	t.Run("declared content length alone triggers the limit", func(t *testing.T) {
		d := &RequestDescriptor{RawQuery: "host_alias=minikube", ContentLength: limit + 1}
		result := v.Validate(c, d)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, CodeBodyTooLarge, result.Errors[0].Code)
	})

	t.Run("reported without a declared body schema", func(t *testing.T) {
		result := v.Validate(hostContract(t, contract.ModeStrict), d)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, CodeBodyTooLarge, result.Errors[0].Code)
	})
}

// =============================================================================
// Properties
// =============================================================================

func TestLocationStrictness(t *testing.T) {
	v := mustNew(t)
	body, ct := multipartBody(t, [][2]string{{"id", "7"}})
	elsewhere := &RequestDescriptor{
		PathParams:  map[string]string{"id": "7"},
		RawQuery:    "id=7",
		Header:      http.Header{"Id": {"7"}, "Content-Type": {ct}},
		Cookies:     []string{"id=7"},
		ContentType: ct,
		Body:        body,
	}

	for _, loc := range []contract.Location{contract.LocationQuery, contract.LocationPath, contract.LocationHeader, contract.LocationCookie} {
		t.Run(string(loc), func(t *testing.T) {
			c := contract.OperationContract{
				OperationID: "op",
				Parameters:  []contract.ParameterSpec{{Name: "id", Location: loc, Required: true, Type: contract.TypeInteger}},
			}
			// Remove the value from the declared location only.
			d := *elsewhere
			switch loc {
			case contract.LocationQuery:
				d.RawQuery = ""
			case contract.LocationPath:
				d.PathParams = nil
			case contract.LocationHeader:
				d.Header = http.Header{"Content-Type": {ct}}
			case contract.LocationCookie:
				d.Cookies = nil
			}

			result := v.Validate(mustLoad(t, c), &d)
			assert.False(t, result.Valid)
			require.Len(t, result.Errors, 1)
			assert.Equal(t, CodeMissingRequiredParameter, result.Errors[0].Code)
			assert.Equal(t, loc, result.Errors[0].Location)
			assert.Equal(t, "id", result.Errors[0].Name)
		})
	}
}

func TestMergedFallbackOrder(t *testing.T) {
	v := mustNew(t)
	c := mustLoad(t, contract.OperationContract{
		OperationID:    "op",
		ResolutionMode: contract.ModeMerged,
		Parameters: []contract.ParameterSpec{
			{Name: "X-Tenant", Location: contract.LocationHeader, Required: true, Type: contract.TypeString},
			{Name: "limit", Location: contract.LocationQuery, Required: true, Type: contract.TypeInteger},
		},
	})

	t.Run("query before body", func(t *testing.T) {
		d := &RequestDescriptor{
			RawQuery:    "X-Tenant=from-query",
			ContentType: "application/json",
			Body:        []byte(`{"X-Tenant": "from-body", "limit": 5}`),
		}
		result := v.Validate(c, d)
		require.True(t, result.Valid, result.Errors)
		assert.Equal(t, "from-query", result.Values["X-Tenant"])
		assert.Equal(t, contract.LocationQuery, result.Sources["X-Tenant"])
		assert.Equal(t, int64(5), result.Values["limit"])
		assert.Equal(t, contract.LocationBody, result.Sources["limit"])
	})

	t.Run("declared location first", func(t *testing.T) {
		d := &RequestDescriptor{
			Header:   http.Header{"X-Tenant": {"from-header"}},
			RawQuery: "X-Tenant=from-query&limit=1",
		}
		result := v.Validate(c, d)
		require.True(t, result.Valid)
		assert.Equal(t, "from-header", result.Values["X-Tenant"])
		assert.Equal(t, contract.LocationHeader, result.Sources["X-Tenant"])
		assert.Empty(t, result.Fallbacks(c))
	})

	t.Run("fallback value is still coerced", func(t *testing.T) {
		d := &RequestDescriptor{
			Header:      http.Header{"X-Tenant": {"t"}},
			ContentType: "application/x-www-form-urlencoded",
			Body:        []byte("limit=ten"),
		}
		result := v.Validate(c, d)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, CodeTypeMismatch, result.Errors[0].Code)
		assert.Equal(t, contract.LocationQuery, result.Errors[0].Location)
		assert.Contains(t, result.Errors[0].Message, "resolved from body")
	})

	t.Run("malformed body is not a fallback source", func(t *testing.T) {
		d := &RequestDescriptor{
			Header:      http.Header{"X-Tenant": {"t"}},
			ContentType: "application/json",
			Body:        []byte(`{"limit": 5`),
		}
		result := v.Validate(c, d)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, CodeMissingRequiredParameter, result.Errors[0].Code)
		assert.Equal(t, "limit", result.Errors[0].Name)
	})
}

func TestValidateIsIdempotent(t *testing.T) {
	v := mustNew(t)
	c := hostContract(t, contract.ModeMerged)
	d := multipartDescriptor(t)

	first := v.Validate(c, d)
	second := v.Validate(c, d)
	assert.Equal(t, first, second)

	strict := hostContract(t, contract.ModeStrict)
	assert.Equal(t, v.Validate(strict, d), v.Validate(strict, d))
}

func TestValidateAggregatesErrors(t *testing.T) {
	v := mustNew(t)
	params := make([]contract.ParameterSpec, 0, 5)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		params = append(params, contract.ParameterSpec{Name: name, Location: contract.LocationQuery, Required: true, Type: contract.TypeString})
	}
	c := mustLoad(t, contract.OperationContract{OperationID: "op", Parameters: params})

	result := v.Validate(c, &RequestDescriptor{})
	require.Len(t, result.Errors, 5)
	for i, e := range result.Errors {
		assert.Equal(t, CodeMissingRequiredParameter, e.Code)
		assert.Equal(t, params[i].Name, e.Name, "errors follow declaration order")
	}
}

func TestValidate_Parameters(t *testing.T) {
	v := mustNew(t)
	c := mustLoad(t, contract.OperationContract{
		OperationID: "get_host",
		Path:        "/hosts/{host_id}",
		Parameters: []contract.ParameterSpec{
			{Name: "host_id", Location: contract.LocationPath, Type: contract.TypeInteger},
			{Name: "verbose", Location: contract.LocationQuery, Type: contract.TypeBoolean},
			{Name: "format", Location: contract.LocationQuery, Type: contract.TypeString, Enum: []any{"json", "yaml"}},
			{Name: "tag", Location: contract.LocationQuery, Type: contract.TypeString, Repeated: true},
			{Name: "X-Request-Id", Location: contract.LocationHeader, Type: contract.TypeString},
			{Name: "session", Location: contract.LocationCookie, Type: contract.TypeInteger},
		},
	})

	t.Run("coerces every location", func(t *testing.T) {
		d := &RequestDescriptor{
			PathParams: map[string]string{"host_id": "-42"},
			RawQuery:   "verbose=TRUE&format=yaml&tag=a&tag=b&format=json",
			Header:     http.Header{"x-request-id": {"abc"}},
			Cookies:    []string{"session=1; other=x", "session=2"},
		}
		result := v.Validate(c, d)
		require.True(t, result.Valid, result.Errors)
		assert.Equal(t, map[string]any{
			"host_id":      int64(-42),
			"verbose":      true,
			"format":       "yaml",
			"tag":          []any{"a", "b"},
			"X-Request-Id": "abc",
			"session":      int64(2),
		}, result.Values)
	})

	t.Run("reports type and enum failures", func(t *testing.T) {
		d := &RequestDescriptor{
			PathParams: map[string]string{"host_id": "0x1F"},
			RawQuery:   "verbose=yes&format=YAML",
			Cookies:    []string{"session=secret-token"},
		}
		result := v.Validate(c, d)
		require.Len(t, result.Errors, 4)
		assert.Equal(t, CodeTypeMismatch, result.Errors[0].Code)
		assert.Equal(t, "host_id", result.Errors[0].Name)
		assert.Equal(t, CodeTypeMismatch, result.Errors[1].Code)
		assert.Equal(t, CodeEnumViolation, result.Errors[2].Code)
		assert.Equal(t, "format", result.Errors[2].Name)
		assert.Equal(t, CodeTypeMismatch, result.Errors[3].Code)
		assert.NotContains(t, result.Errors[3].Message, "secret-token")
		assert.Empty(t, result.Values)
	})

	t.Run("cookie value outside the cookie-octet set", func(t *testing.T) {
		c := mustLoad(t, contract.OperationContract{
			OperationID: "op",
			Parameters: []contract.ParameterSpec{
				{Name: "tags", Location: contract.LocationCookie, Required: true, Type: contract.TypeString},
			},
		})
		result := v.Validate(c, &RequestDescriptor{Cookies: []string{`tags={"a":1}`}})
		require.True(t, result.Valid, result.Errors)
		assert.Equal(t, `{"a":1}`, result.Values["tags"])
	})

	t.Run("repeated parameter checks every element", func(t *testing.T) {
		c := mustLoad(t, contract.OperationContract{
			OperationID: "op",
			Parameters: []contract.ParameterSpec{
				{Name: "n", Location: contract.LocationQuery, Type: contract.TypeInteger, Repeated: true, Enum: []any{1, 2}},
			},
		})
		result := v.Validate(c, &RequestDescriptor{RawQuery: "n=1&n=3&n=x"})
		require.Len(t, result.Errors, 2)
		assert.Equal(t, CodeEnumViolation, result.Errors[0].Code)
		assert.Equal(t, CodeTypeMismatch, result.Errors[1].Code)
	})

	t.Run("empty string is present", func(t *testing.T) {
		c := hostContract(t, contract.ModeStrict)
		result := v.Validate(c, &RequestDescriptor{RawQuery: "host_alias="})
		require.True(t, result.Valid)
		assert.Equal(t, "", result.Values["host_alias"])
	})

	t.Run("malformed escape makes the value absent", func(t *testing.T) {
		c := hostContract(t, contract.ModeStrict)
		result := v.Validate(c, &RequestDescriptor{RawQuery: "host_alias=%zz"})
		require.Len(t, result.Errors, 1)
		assert.Equal(t, CodeMissingRequiredParameter, result.Errors[0].Code)

		result = v.Validate(c, &RequestDescriptor{RawQuery: "host_alias=%zz&host_alias=ok"})
		require.True(t, result.Valid)
		assert.Equal(t, "ok", result.Values["host_alias"])
	})
}

func TestValidate_Body(t *testing.T) {
	v := mustNew(t)
	c := mustLoad(t, contract.OperationContract{
		OperationID: "create",
		Parameters: []contract.ParameterSpec{
			{Name: "name", Location: contract.LocationQuery, Type: contract.TypeString},
		},
		Bodies: []contract.BodySchema{
			{ContentType: contract.ContentTypeJSON, Properties: map[string]contract.Property{
				"name":    {Type: contract.TypeString, Required: true},
				"port":    {Type: contract.TypeInteger, Required: true},
				"enabled": {Type: contract.TypeBoolean},
			}},
			{ContentType: contract.ContentTypeForm, Properties: map[string]contract.Property{
				"port":    {Type: contract.TypeInteger, Required: true},
				"enabled": {Type: contract.TypeBoolean},
			}},
		},
	})

	tests := []struct {
		name        string
		contentType string
		body        string
		wantCodes   []Code
		wantNames   []string
		wantValues  map[string]any
	}{
		{
			name:        "valid JSON",
			contentType: "application/json; charset=utf-8",
			body:        `{"name": "db", "port": 5432, "enabled": true, "extra": "ignored"}`,
			wantValues:  map[string]any{"port": int64(5432), "enabled": true},
		},
		{
			name:        "JSON scalars must have the declared kind",
			contentType: "application/json",
			body:        `{"name": 7, "port": "5432", "enabled": "true"}`,
			wantCodes:   []Code{CodeTypeMismatch, CodeTypeMismatch, CodeTypeMismatch},
			wantNames:   []string{"enabled", "name", "port"},
		},
		{
			name:        "fractional number is not an integer",
			contentType: "application/json",
			body:        `{"name": "db", "port": 1.5}`,
			wantCodes:   []Code{CodeTypeMismatch},
			wantNames:   []string{"port"},
		},
		{
			name:        "null counts as absent",
			contentType: "application/json",
			body:        `{"name": "db", "port": null}`,
			wantCodes:   []Code{CodeBodySchemaViolation},
			wantNames:   []string{"port"},
		},
		{
			name:        "nested values are rejected",
			contentType: "application/json",
			body:        `{"name": "db", "port": 1, "meta": {"a": 1}, "tags": ["x"]}`,
			wantCodes:   []Code{CodeBodySchemaViolation, CodeBodySchemaViolation},
			wantNames:   []string{"meta", "tags"},
		},
		{
			name:        "top-level array",
			contentType: "application/json",
			body:        `[1, 2]`,
			wantCodes:   []Code{CodeBodySchemaViolation},
			wantNames:   []string{""},
		},
		{
			name:        "malformed JSON",
			contentType: "application/json",
			body:        `{"name": `,
			wantCodes:   []Code{CodeBodySchemaViolation},
			wantNames:   []string{""},
		},
		{
			name:        "form values are coerced",
			contentType: "application/x-www-form-urlencoded",
			body:        "port=8080&enabled=False&port=9090",
			wantValues:  map[string]any{"port": int64(8080), "enabled": false},
		},
		{
			name:        "form type mismatch",
			contentType: "application/x-www-form-urlencoded",
			body:        "port=http",
			wantCodes:   []Code{CodeTypeMismatch},
			wantNames:   []string{"port"},
		},
		{
			name:        "unsupported content type",
			contentType: "text/plain",
			body:        "port=1",
			wantCodes:   []Code{CodeUnsupportedContentType},
			wantNames:   []string{""},
		},
		{
			name:        "missing content type",
			body:        "port=1",
			wantCodes:   []Code{CodeUnsupportedContentType},
			wantNames:   []string{""},
		},
		{
			name:        "empty body reports required fields of the matching schema",
			contentType: "application/x-www-form-urlencoded",
			wantCodes:   []Code{CodeBodySchemaViolation},
			wantNames:   []string{"port"},
		},
		{
			name:      "empty body without content type uses the first schema",
			wantCodes: []Code{CodeBodySchemaViolation, CodeBodySchemaViolation},
			wantNames: []string{"name", "port"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &RequestDescriptor{ContentType: tt.contentType, Body: []byte(tt.body), ContentLength: int64(len(tt.body))}
			result := v.Validate(c, d)

			codes := make([]Code, 0)
			names := make([]string, 0)
			for _, e := range result.Errors {
				assert.Equal(t, contract.LocationBody, e.Location)
				codes = append(codes, e.Code)
				names = append(names, e.Name)
			}
			if tt.wantCodes == nil {
				assert.True(t, result.Valid, result.Errors)
			} else {
				assert.Equal(t, tt.wantCodes, codes)
				assert.Equal(t, tt.wantNames, names)
			}
			for name, want := range tt.wantValues {
				assert.Equal(t, want, result.Values[name], name)
				assert.Equal(t, contract.LocationBody, result.Sources[name])
			}
		})
	}

	t.Run("parameter wins over body field", func(t *testing.T) {
		d := &RequestDescriptor{
			RawQuery:    "name=from-query",
			ContentType: "application/json",
			Body:        []byte(`{"name": "from-body", "port": 1}`),
		}
		result := v.Validate(c, d)
		require.True(t, result.Valid)
		assert.Equal(t, "from-query", result.Values["name"])
		assert.Equal(t, contract.LocationQuery, result.Sources["name"])
	})

	t.Run("multipart file part contributes its file name", func(t *testing.T) {
		c := mustLoad(t, contract.OperationContract{
			OperationID: "upload",
			Bodies: []contract.BodySchema{{ContentType: contract.ContentTypeMultipart, Properties: map[string]contract.Property{
				"file": {Type: contract.TypeString, Required: true},
			}}},
		})
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		fw, err := w.CreateFormFile("file", "report.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte("a,b\n1,2\n"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		result := v.Validate(c, &RequestDescriptor{ContentType: w.FormDataContentType(), Body: buf.Bytes()})
		require.True(t, result.Valid, result.Errors)
		assert.Equal(t, "report.csv", result.Values["file"])
	})

	t.Run("multipart without boundary is malformed", func(t *testing.T) {
		c := mustLoad(t, contract.OperationContract{
			OperationID: "upload",
			Bodies:      []contract.BodySchema{{ContentType: contract.ContentTypeMultipart}},
		})
		result := v.Validate(c, &RequestDescriptor{ContentType: "multipart/form-data", Body: []byte("x")})
		require.Len(t, result.Errors, 1)
		assert.Equal(t, CodeBodySchemaViolation, result.Errors[0].Code)
	})
}

func TestValidateOperation(t *testing.T) {
	reg, err := contract.Load([]contract.OperationContract{*hostContract(t, contract.ModeStrict)})
	require.NoError(t, err)
	v := mustNew(t)

	result, err := v.ValidateOperation(reg, "register_host", &RequestDescriptor{RawQuery: "host_alias=a"})
	require.NoError(t, err)
	assert.True(t, result.Valid)

	_, err = v.ValidateOperation(reg, "missing", &RequestDescriptor{})
	assert.True(t, errors.Is(err, pcerrors.ErrUnknownOperation))
}

func TestValidateConcurrently(t *testing.T) {
	v := mustNew(t)
	c := hostContract(t, contract.ModeMerged)
	d := multipartDescriptor(t)
	want := v.Validate(c, d)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, v.Validate(c, d))
		}()
	}
	wg.Wait()
}

func TestValidationError_String(t *testing.T) {
	e := ValidationError{Location: contract.LocationQuery, Name: "host_alias", Code: CodeMissingRequiredParameter, Message: "missing required query parameter"}
	assert.Equal(t, "MissingRequiredParameter query.host_alias: missing required query parameter", e.String())

	e = ValidationError{Location: contract.LocationBody, Code: CodeBodyTooLarge, Message: "too big"}
	assert.Equal(t, "BodyTooLarge body: too big", e.String())
}
