package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const hostsDocument = `
operations:
  - operationId: register_host
    method: POST
    path: /hosts
    resolutionMode: merged
    parameters:
      - {name: host_alias, in: query, type: string, required: true}
      - {name: user_tags, in: query, type: string}
    requestBody:
      - contentType: application/x-www-form-urlencoded
        properties:
          note: {type: string}
  - operationId: get_host
    method: GET
    path: /hosts/{host_id}
    parameters:
      - {name: host_id, in: path, type: integer}
      - {name: verbose, in: query, type: boolean}
      - {name: limit, in: query, type: integer, enum: [10, 20]}
`

const brokenDocument = `
operations:
  - operationId: get_host
  - operationId: get_host
  - operationId: put_host
    path: /hosts/{host_id}
    parameters:
      - {name: host_id, in: path, type: integer, required: false}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// syncBuffer is a bytes.Buffer safe for a command writing from another goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return executeContext(context.Background(), nil, args...)
}

func executeContext(ctx context.Context, stdin *bytes.Buffer, args ...string) (stdout, stderr string, err error) {
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}
