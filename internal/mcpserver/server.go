// Package mcpserver implements an MCP (Model Context Protocol) server
// that exposes paramcontract capabilities as MCP tools over stdio.
package mcpserver

import (
	"context"
	"regexp"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/erraggy/paramcontract"
)

const serverInstructions = `paramcontract MCP server: checks parameter contract documents and validates HTTP requests against them.

Contract documents are YAML, JSON or TOML files with an "operations" list, or OpenAPI 3 documents. Each tool takes the document as exactly one of file, url or content.

Configuration: All defaults are configurable via PARAMCONTRACT_* environment variables set in your MCP client config.

Key settings:
- PARAMCONTRACT_ERROR_FORMAT (default: simple): rendered error body shape, simple or problem
- PARAMCONTRACT_ERROR_STATUS (default: 400): status code of rendered errors
- PARAMCONTRACT_MAX_BODY_SIZE (default: 10485760): largest request body that is parsed
- PARAMCONTRACT_CACHE_ENABLED (default: true): disable contract caching entirely
- PARAMCONTRACT_LIST_LIMIT (default: 100): default result limit for list_operations

Caching: Loaded contracts are cached per session. File entries use path+mtime as key (auto-invalidated on change). Inline content is keyed by its hash. URL entries are cached with a shorter TTL.`

// Run starts the MCP server over stdio and blocks until the client disconnects
// or the context is cancelled.
func Run(ctx context.Context) error {
	return RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves the tools over t.
func RunTransport(ctx context.Context, t mcp.Transport) error {
	if cfg.CacheEnabled {
		registryCache.startSweeper(ctx, cfg.CacheSweepInterval)
	}
	return newServer().Run(ctx, t)
}

func newServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "paramcontract", Version: paramcontract.Version()},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)
	registerAllTools(server)
	return server
}

func registerAllTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_contracts",
		Description: "Load a parameter contract document and check it. Returns the operations it declares, or every contract error with the operation and field it concerns. Loading is all or nothing: one bad contract rejects the document.",
	}, handleCheckContracts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_request",
		Description: "Validate one HTTP request against an operation's contract. Provide the method, the request URL, and optionally headers, cookies, content_type and body. Returns validity, the coerced parameter values, where each value was found, the validation errors, and the error body a server would send in the chosen error_format (simple or problem).",
	}, handleValidateRequest)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_operations",
		Description: "List the operations in a contract document with their method, path template, resolution mode, parameters and accepted body content types. Filter by operation_id substring or method. Use offset/limit to paginate; the default limit is configurable via PARAMCONTRACT_LIST_LIMIT.",
	}, handleListOperations)
}

// paginate applies offset/limit pagination to a slice, returning the
// requested page. A non-positive limit defaults to cfg.ListLimit.
func paginate[T any](items []T, offset, limit int) []T {
	if limit <= 0 {
		limit = cfg.ListLimit
	}
	if limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}
	if offset < 0 || offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end < offset || end > len(items) { // overflow or beyond slice
		end = len(items)
	}
	return items[offset:end]
}

// makeSlice returns nil when n is 0 (preserving omitempty JSON semantics),
// otherwise returns make([]T, 0, n) for pre-allocated appending.
func makeSlice[T any](n int) []T {
	if n == 0 {
		return nil
	}
	return make([]T, 0, n)
}

// sanitizeError strips absolute filesystem paths from error messages
// to prevent leaking internal directory structure to MCP clients.
var pathPattern = regexp.MustCompile(`(?:/(?:home|tmp|var|Users|etc|opt|usr|private|root|mnt|srv|run|snap|nix)[a-zA-Z0-9._/-]*)`)

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return pathPattern.ReplaceAllString(err.Error(), "<path>")
}

// errResult creates an MCP error result from an error.
func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: sanitizeError(err)}},
	}
}
