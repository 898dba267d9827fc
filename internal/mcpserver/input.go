package mcpserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erraggy/paramcontract/contract"
	"github.com/erraggy/paramcontract/internal/options"
)

// contractInput represents the three ways a contract document can be provided
// to a tool. Exactly one of File, URL, or Content must be set.
type contractInput struct {
	File    string `json:"file,omitempty"    jsonschema:"Path to a contract document on disk (YAML, JSON, TOML or OpenAPI 3)"`
	URL     string `json:"url,omitempty"     jsonschema:"URL to fetch a contract document from"`
	Content string `json:"content,omitempty" jsonschema:"Inline contract document content"`
	Format  string `json:"format,omitempty"  jsonschema:"Document format for url or content input: yaml, json or toml. Inferred when omitted"`
}

// cacheEntry holds a loaded registry with LRU ordering and TTL expiry.
type cacheEntry struct {
	registry  *contract.Registry
	insertAt  time.Time
	expiresAt time.Time
}

// registryCacheStore provides a session-scoped cache for loaded registries.
// File inputs are keyed by (absolutePath, modTime). Content inputs are keyed
// by a SHA-256 hash. URL inputs are keyed by URL string.
// Entries have per-type TTLs and a background sweeper removes expired entries.
type registryCacheStore struct {
	mu             sync.Mutex
	entries        map[string]*cacheEntry
	maxSize        int
	sweeperStarted atomic.Bool
}

var registryCache = &registryCacheStore{
	entries: make(map[string]*cacheEntry),
	maxSize: cfg.CacheMaxSize,
}

// get returns a cached registry or nil. Expired entries are lazily removed.
func (c *registryCacheStore) get(key string) *contract.Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
			delete(c.entries, key)
			return nil
		}
		// Touch entry for LRU.
		e.insertAt = time.Now()
		return e.registry
	}
	return nil
}

// putWithTTL stores a registry, evicting the least recently used entry if at capacity.
func (c *registryCacheStore) putWithTTL(key string, reg *contract.Registry, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry := &cacheEntry{registry: reg, insertAt: now, expiresAt: now.Add(ttl)}

	if _, ok := c.entries[key]; ok {
		c.entries[key] = entry
		return
	}

	if len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestTime time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.insertAt.Before(oldestTime) {
				oldestKey = k
				oldestTime = e.insertAt
			}
		}
		if oldestKey != "" {
			delete(c.entries, oldestKey)
		}
	}

	c.entries[key] = entry
}

// sweep removes all expired entries from the cache.
func (c *registryCacheStore) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// startSweeper launches a background goroutine that periodically removes expired entries.
// Only the first call spawns a sweeper. It stops when ctx is cancelled.
func (c *registryCacheStore) startSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	if !c.sweeperStarted.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.sweeperStarted.Store(false)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// reset clears all cached entries. Used in tests.
func (c *registryCacheStore) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// size returns the number of cached entries.
func (c *registryCacheStore) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey identifies the input for caching. Empty means do not cache.
func (s contractInput) cacheKey() string {
	switch {
	case s.File != "":
		absPath, err := filepath.Abs(s.File)
		if err != nil {
			return ""
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("file:%s:%d", absPath, info.ModTime().UnixNano())
	case s.Content != "":
		h := sha256.Sum256([]byte(s.Content))
		return fmt.Sprintf("content:%s:%s", s.Format, hex.EncodeToString(h[:]))
	case s.URL != "":
		return fmt.Sprintf("url:%s:%s", s.Format, s.URL)
	default:
		return ""
	}
}

func (s contractInput) format() (contract.Format, error) {
	switch f := contract.Format(s.Format); f {
	case contract.FormatAuto, contract.FormatYAML, contract.FormatJSON, contract.FormatTOML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q; use yaml, json or toml", s.Format)
	}
}

// resolve loads the registry from whichever input was provided, using the
// cache for all three input kinds.
func (s contractInput) resolve(ctx context.Context) (*contract.Registry, error) {
	if err := options.ValidateSingleInputSource("contracts",
		"exactly one of file, url, or content must be provided (got none)",
		"exactly one of file, url, or content must be provided (got several)",
		s.File != "", s.URL != "", s.Content != ""); err != nil {
		return nil, err
	}
	format, err := s.format()
	if err != nil {
		return nil, err
	}

	if s.Content != "" && int64(len(s.Content)) > cfg.MaxInlineSize {
		return nil, fmt.Errorf("inline content size %d bytes exceeds maximum %d bytes; use file input instead, or set PARAMCONTRACT_MAX_INLINE_SIZE to increase",
			len(s.Content), cfg.MaxInlineSize)
	}

	var key string
	var ttl time.Duration
	if cfg.CacheEnabled {
		key = s.cacheKey()
		switch {
		case s.File != "":
			ttl = cfg.CacheFileTTL
		case s.URL != "":
			ttl = cfg.CacheURLTTL
		default:
			ttl = cfg.CacheContentTTL
		}
	}

	if key != "" {
		if cached := registryCache.get(key); cached != nil {
			return cached, nil
		}
	}

	var reg *contract.Registry
	switch {
	case s.File != "":
		reg, err = contract.LoadFile(s.File)
	case s.URL != "":
		reg, err = s.loadURL(ctx, format)
	default:
		reg, err = contract.LoadBytes([]byte(s.Content), format, contract.WithSource("inline"))
	}
	if err != nil {
		return nil, err
	}

	if key != "" {
		registryCache.putWithTTL(key, reg, ttl)
	}
	return reg, nil
}

func (s contractInput) loadURL(ctx context.Context, format contract.Format) (*contract.Registry, error) {
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("url must be an absolute http or https URL")
	}
	if format == contract.FormatAuto {
		format = contract.FormatFromPath(u.Path)
	}

	data, err := newContractFetcher(cfg).fetch(ctx, s.URL)
	if err != nil {
		return nil, err
	}
	return contract.LoadBytes(data, format, contract.WithSource(s.URL))
}
