// Package cache keeps upstream HTTP response bodies on disk so repeated
// downloads of the same window do not hit the API again.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type entry struct {
	Key      string    `json:"key"`
	StoredAt time.Time `json:"storedAt"`
	Body     []byte    `json:"body"`
}

// DiskCache stores one JSON file per key under dir. Entries older than
// expire are treated as absent; expire <= 0 keeps entries forever.
type DiskCache struct {
	dir    string
	expire time.Duration

	mu  sync.Mutex
	now func() time.Time
}

// NewDiskCache creates the cache directory if needed.
func NewDiskCache(dir string, expire time.Duration) (*DiskCache, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory %q: %w", dir, err)
	}
	return &DiskCache{dir: dir, expire: expire, now: time.Now}, nil
}

func (c *DiskCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

// Get returns the body stored for key if present and fresh.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Key != key {
		return nil, false
	}
	if c.expire > 0 && c.now().Sub(e.StoredAt) > c.expire {
		return nil, false
	}
	return e.Body, true
}

// Set stores body under key, replacing any previous entry.
func (c *DiskCache) Set(key string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(entry{Key: key, StoredAt: c.now().UTC(), Body: body})
	if err != nil {
		return err
	}

	// Write-then-rename so readers never see a partial entry.
	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	return os.Rename(tmp.Name(), c.path(key))
}

// Purge removes expired entries and returns how many were deleted.
func (c *DiskCache) Purge() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var e entry
		stale := json.Unmarshal(data, &e) != nil ||
			(c.expire > 0 && c.now().Sub(e.StoredAt) > c.expire)
		if !stale {
			continue
		}
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
