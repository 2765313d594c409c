package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	c := newTestCache(t)
	if !c.Enabled() {
		t.Error("cache should be enabled")
	}

	c, err := New("", 0, false)
	if err != nil {
		t.Fatalf("New() error for disabled cache: %v", err)
	}
	if c.Enabled() {
		t.Error("cache should be disabled")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "nested", "cache", "dir")

	if _, err := New(cacheDir, 24, true); err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		t.Error("New() should create cache directory")
	}
}

func TestKey(t *testing.T) {
	a := Key("quantile", "q=0.25,0.75")
	if a != Key("quantile", "q=0.25,0.75") {
		t.Error("Key() should be deterministic")
	}
	if a == Key("quantile", "q=0.25,0.5") {
		t.Error("Key() should change with the parameters")
	}
	if a == Key("percentiles", "q=0.25,0.75") {
		t.Error("Key() should change with the command")
	}
	// Parameter boundaries matter.
	if Key("x", "ab", "c") == Key("x", "a", "bc") {
		t.Error("Key() should separate parameters")
	}
}

func TestSetAndGet(t *testing.T) {
	c := newTestCache(t)

	key := Key("iqr", "ensemble.json")
	data := []byte(`{"p25":[1,2],"p75":[3,4]}`)

	if err := c.Set(key, "abc", data); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, ok := c.Get(key, "abc")
	if !ok {
		t.Fatal("Get() returned false for existing key")
	}
	if string(got) != string(data) {
		t.Errorf("Get() = %q, want %q", string(got), string(data))
	}

	if _, ok := c.Get(key, "other"); ok {
		t.Error("Get() should miss when the input hash differs")
	}
}

func TestGetNonExistent(t *testing.T) {
	c := newTestCache(t)

	if _, ok := c.Get("missing", "abc"); ok {
		t.Error("Get() should return false for non-existent key")
	}
}

func TestSetRejectsInvalidJSON(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set("k", "h", []byte("not json")); err == nil {
		t.Error("Set() should reject non-JSON data")
	}
}

func TestCorruptEntry(t *testing.T) {
	c := newTestCache(t)

	if err := os.WriteFile(c.keyPath("bad"), []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("bad", ""); ok {
		t.Error("Get() should miss on a corrupt entry")
	}
	if _, err := os.Stat(c.keyPath("bad")); !os.IsNotExist(err) {
		t.Error("Get() should remove a corrupt entry")
	}
}

func TestStoreAndLoad(t *testing.T) {
	c := newTestCache(t)

	type band struct {
		Percentiles []float64   `json:"percentiles"`
		Values      [][]float64 `json:"values"`
	}
	in := band{Percentiles: []float64{25, 75}, Values: [][]float64{{1.5, 2}, {3, 4.25}}}

	if err := c.Store("band", "h1", in); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	var out band
	if !c.Load("band", "h1", &out) {
		t.Fatal("Load() should hit")
	}
	if out.Values[1][1] != 4.25 || out.Percentiles[0] != 25 {
		t.Errorf("Load() = %+v, want %+v", out, in)
	}

	if c.Load("band", "h2", &out) {
		t.Error("Load() should miss for a different input hash")
	}
}

func TestInvalidate(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set("k", "h", []byte(`1`)); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := c.Invalidate("k"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, ok := c.Get("k", "h"); ok {
		t.Error("Get() should return false after Invalidate()")
	}
	if err := c.Invalidate("k"); err != nil {
		t.Errorf("Invalidate() of a missing key error: %v", err)
	}
}

func TestClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := New(dir, 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(k, "", []byte(`true`)); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("Clear() should remove the cache directory")
	}
}

func TestDisabledCache(t *testing.T) {
	c, err := New("", 0, false)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := c.Set("k", "h", []byte(`1`)); err != nil {
		t.Errorf("Set() on disabled cache error: %v", err)
	}
	if err := c.Store("k", "h", 1); err != nil {
		t.Errorf("Store() on disabled cache error: %v", err)
	}
	if _, ok := c.Get("k", "h"); ok {
		t.Error("Get() on disabled cache should return false")
	}
	if err := c.Invalidate("k"); err != nil {
		t.Errorf("Invalidate() on disabled cache error: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Errorf("Clear() on disabled cache error: %v", err)
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ensemble.json")
	if err := os.WriteFile(path, []byte(`{"members":["a"]}`), 0644); err != nil {
		t.Fatal(err)
	}

	h1, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error: %v", err)
	}
	if len(h1) != 64 {
		t.Errorf("HashFile() length = %d, want 64", len(h1))
	}
	if h1 != HashBytes([]byte(`{"members":["a"]}`)) {
		t.Error("HashFile() should match HashBytes() of the contents")
	}

	if err := os.WriteFile(path, []byte(`{"members":["b"]}`), 0644); err != nil {
		t.Fatal(err)
	}
	h2, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error: %v", err)
	}
	if h1 == h2 {
		t.Error("HashFile() should change with the contents")
	}
}

func TestHashFileNonExistent(t *testing.T) {
	if _, err := HashFile("/nonexistent/file.json"); err == nil {
		t.Error("HashFile() should return error for non-existent file")
	}
}

func TestGetStats(t *testing.T) {
	c := newTestCache(t)

	for _, k := range []string{"a", "b"} {
		if err := c.Set(k, "", []byte(`[1,2,3]`)); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
	}

	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("Entries = %d, want 2", stats.Entries)
	}
	if stats.TotalSize == 0 {
		t.Error("TotalSize should be positive")
	}

	disabled, _ := New("", 0, false)
	stats, err = disabled.GetStats()
	if err != nil {
		t.Fatalf("GetStats() on disabled cache error: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("disabled Entries = %d, want 0", stats.Entries)
	}
}

func TestTTLExpiration(t *testing.T) {
	c := newTestCache(t)

	raw, err := json.Marshal(Entry{
		Key:       "old",
		InputHash: "h",
		Timestamp: time.Now().Add(-48 * time.Hour),
		Data:      json.RawMessage(`1`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.keyPath("old"), raw, 0600); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("old", "h"); ok {
		t.Error("Get() should return false after TTL expires")
	}
	if _, err := os.Stat(c.keyPath("old")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
}
