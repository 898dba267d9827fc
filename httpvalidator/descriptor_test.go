package httpvalidator

import (
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erraggy/paramcontract/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRequest(t *testing.T) {
	t.Run("captures every request part", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hosts?host_alias=minikube", strings.NewReader(`{"a": 1}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Add("Cookie", "session=1")
		req.Header.Add("Cookie", "theme=dark")

		d, err := FromRequest(req, map[string]string{"id": "7"}, 0)
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, d.Method)
		assert.Equal(t, "host_alias=minikube", d.RawQuery)
		assert.Equal(t, "application/json", d.ContentType)
		assert.Equal(t, []string{"session=1", "theme=dark"}, d.Cookies)
		assert.Equal(t, map[string]string{"id": "7"}, d.PathParams)
		assert.Equal(t, int64(8), d.ContentLength)
		assert.Equal(t, `{"a": 1}`, string(d.Body))
	})

	t.Run("reads at most one byte beyond the limit", func(t *testing.T) {
		payload := strings.Repeat("x", 100)
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))

		d, err := FromRequest(req, nil, 10)
		require.NoError(t, err)
		assert.Len(t, d.Body, 11)
		assert.True(t, exceedsLimit(d, 10))

		rest, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, payload, string(rest), "handler still sees the whole body")
		assert.NoError(t, req.Body.Close())
	})

	t.Run("largest limit still reads the body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"a":"b"}`))
		req.Header.Set("Content-Type", "application/json")

		d, err := FromRequest(req, nil, math.MaxInt64)
		require.NoError(t, err)
		assert.Equal(t, `{"a":"b"}`, string(d.Body))

		c := mustLoad(t, contract.OperationContract{
			OperationID: "op",
			Bodies: []contract.BodySchema{
				{ContentType: contract.ContentTypeJSON, Properties: map[string]contract.Property{
					"a": {Type: contract.TypeString, Required: true},
				}},
			},
		})
		result := mustNew(t, WithMaxBodySize(math.MaxInt64)).Validate(c, d)
		require.True(t, result.Valid, result.Errors)
		assert.Equal(t, "b", result.Values["a"])
	})

	t.Run("no body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		d, err := FromRequest(req, nil, 0)
		require.NoError(t, err)
		assert.Empty(t, d.Body)
	})

	t.Run("read failure", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(failingReader{}))
		_, err := FromRequest(req, nil, 0)
		assert.ErrorContains(t, err, "reading request body")
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestFromURL(t *testing.T) {
	t.Run("binds and unescapes path parameters", func(t *testing.T) {
		header := http.Header{"Content-Type": {"application/x-www-form-urlencoded"}, "Cookie": {"a=1"}}
		d, err := FromURL(http.MethodPut, "http://localhost:8080/hosts/mini%20kube?verbose=true", "/hosts/{host_id}", header, []byte("x=1"))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"host_id": "mini kube"}, d.PathParams)
		assert.Equal(t, "verbose=true", d.RawQuery)
		assert.Equal(t, "application/x-www-form-urlencoded", d.ContentType)
		assert.Equal(t, []string{"a=1"}, d.Cookies)
		assert.Equal(t, int64(3), d.ContentLength)
	})

	t.Run("without template", func(t *testing.T) {
		d, err := FromURL(http.MethodGet, "/hosts?x=1", "", nil, nil)
		require.NoError(t, err)
		assert.Empty(t, d.PathParams)
		assert.NotNil(t, d.Header)
	})

	t.Run("path does not match template", func(t *testing.T) {
		_, err := FromURL(http.MethodGet, "/users/1", "/hosts/{host_id}", nil, nil)
		assert.ErrorContains(t, err, "does not match template")
	})

	t.Run("malformed URL", func(t *testing.T) {
		_, err := FromURL(http.MethodGet, "http://[::1", "", nil, nil)
		assert.ErrorContains(t, err, "parsing URL")
	})
}
