// Package cache stores computed diagnostics on disk, keyed by the request
// parameters and guarded by a digest of the input data.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// Cache is a directory of JSON entries. A disabled cache never hits and
// ignores writes.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// Entry is the on-disk form of a cached result.
type Entry struct {
	Key       string          `json:"key"`
	InputHash string          `json:"input_hash"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New creates a cache rooted at dir. ttlHours of zero keeps entries forever.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
	}, nil
}

// Enabled reports whether the cache reads and writes entries.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Key derives a short entry key from the command name and its parameters.
func Key(command string, params ...string) string {
	d := xxhash.New()
	d.WriteString(command)
	for _, p := range params {
		d.Write([]byte{0})
		d.WriteString(p)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// HashFile computes a BLAKE3 digest of a file's contents.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// HashBytes computes a BLAKE3 digest and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Get returns the cached data for key when it was stored for the same input
// hash and has not expired. Stale entries are removed.
func (c *Cache) Get(key, inputHash string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	path := c.keyPath(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		os.Remove(path)
		return nil, false
	}

	if entry.InputHash != inputHash {
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		os.Remove(path)
		return nil, false
	}

	return entry.Data, true
}

// Set stores JSON data for key and input hash.
func (c *Cache) Set(key, inputHash string, data []byte) error {
	if !c.enabled {
		return nil
	}
	if !json.Valid(data) {
		return errors.New("cache: data is not valid JSON")
	}

	raw, err := json.Marshal(Entry{
		Key:       key,
		InputHash: inputHash,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		return err
	}

	return os.WriteFile(c.keyPath(key), raw, 0600)
}

// Load decodes a cached value into v and reports whether it was found.
func (c *Cache) Load(key, inputHash string, v any) bool {
	data, ok := c.Get(key, inputHash)
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// Store encodes v as JSON and caches it.
func (c *Cache) Store(key, inputHash string, v any) error {
	if !c.enabled {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(key, inputHash, data)
}

// Invalidate removes a cache entry.
func (c *Cache) Invalidate(key string) error {
	if !c.enabled {
		return nil
	}
	err := os.Remove(c.keyPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

func (c *Cache) keyPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Stats summarizes the cache directory.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.enabled {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		mod := info.ModTime()
		if oldest.IsZero() || mod.Before(oldest) {
			oldest = mod
		}
		if newest.IsZero() || mod.After(newest) {
			newest = mod
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}
	return stats, nil
}
