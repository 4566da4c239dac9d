package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrCacheClosed is returned by operations on a closed cache.
var ErrCacheClosed = errors.New("storage: cache is closed")

// FileCache keeps every entry in memory and persists the whole map as a
// JSON document. Writes reach disk on Flush and on Close.
type FileCache struct {
	mu     sync.RWMutex
	path   string
	data   map[Key]json.RawMessage
	dirty  bool
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// OpenFileCache loads the cache at path, starting empty if the file does
// not exist yet. A corrupt file is an error.
func OpenFileCache(path string) (*FileCache, error) {
	c := &FileCache{
		path: filepath.Clean(path),
		data: make(map[Key]json.RawMessage),
	}

	b, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("storage: read cache %q: %w", c.path, err)
	}
	if len(b) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b, &c.data); err != nil {
		return nil, fmt.Errorf("storage: decode cache %q: %w", c.path, err)
	}
	return c, nil
}

func (c *FileCache) Get(_ context.Context, key Key) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false, ErrCacheClosed
	}
	v, ok := c.data[key]
	return v, ok, nil
}

// Set stores value under key. An existing entry is kept as is.
func (c *FileCache) Set(_ context.Context, key Key, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("storage: value for %s is not JSON", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	if _, exists := c.data[key]; exists {
		return nil
	}
	c.data[key] = append(json.RawMessage(nil), value...)
	c.dirty = true
	return nil
}

// Len returns the number of stored entries.
func (c *FileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Flush writes pending entries to disk atomically.
func (c *FileCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *FileCache) flushLocked() error {
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("storage: create cache dir: %w", err)
	}
	b, err := json.Marshal(c.data)
	if err != nil {
		return fmt.Errorf("storage: encode cache: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("storage: write cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("storage: replace cache: %w", err)
	}
	c.dirty = false
	return nil
}

// Close flushes and releases the cache. Calls after the first return the
// first call's result.
func (c *FileCache) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closeErr = c.flushLocked()
		c.closed = true
	})
	return c.closeErr
}
