package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Cache defaults.
const (
	// DefaultCacheBudget is the per-backend disk budget in bytes.
	DefaultCacheBudget = 100 << 20

	// DefaultCacheThreshold is the fill fraction that triggers eviction.
	DefaultCacheThreshold = 0.8

	// evictFraction is how much of the cache an eviction pass removes,
	// oldest entries first.
	evictFraction = 0.3
)

// Cache wraps a Synthesizer with a content-addressed artifact store.
// The key is derived from the backend name, its voice fingerprint, and the
// exact text, so the same phrase from the same voice is synthesized at most
// once and a voice or language change never serves stale audio. File
// modification time doubles as the recency marker: hits touch the file,
// eviction removes the oldest.
type Cache struct {
	backend   Synthesizer
	dir       string
	budget    int64
	threshold float64
	logger    *slog.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheBudget sets the disk budget in bytes.
func WithCacheBudget(bytes int64) CacheOption {
	return func(c *Cache) {
		c.budget = bytes
	}
}

// WithCacheThreshold sets the fill fraction that triggers eviction.
func WithCacheThreshold(fraction float64) CacheOption {
	return func(c *Cache) {
		c.threshold = fraction
	}
}

// WithCacheLogger sets the structured logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger.With("component", "tts.cache")
	}
}

// NewCache creates a cache in front of the given backend. Artifacts are
// stored under dir/<backend-name>/.
func NewCache(backend Synthesizer, dir string, opts ...CacheOption) (*Cache, error) {
	c := &Cache{
		backend:   backend,
		dir:       filepath.Join(dir, backend.Name()),
		budget:    DefaultCacheBudget,
		threshold: DefaultCacheThreshold,
		logger:    slog.Default().With("component", "tts.cache"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("tts cache: create dir: %w", err)
	}
	return c, nil
}

// Synthesize returns the cached artifact for the text, synthesizing and
// storing it on first use.
func (c *Cache) Synthesize(ctx context.Context, text string) (*Artifact, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	path := c.pathFor(text)

	if audio, err := os.ReadFile(path); err == nil {
		// Touch so eviction sees this entry as recently used.
		now := time.Now()
		if err := os.Chtimes(path, now, now); err != nil {
			c.logger.Debug("failed to touch cache entry", "path", path, "error", err)
		}
		c.logger.Debug("cache hit", "chars", len(text), "bytes", len(audio))
		return &Artifact{
			Audio:  audio,
			Format: c.backend.Format(),
			Path:   path,
			Cached: true,
		}, nil
	}

	if err := c.evictIfNeeded(); err != nil {
		c.logger.Warn("cache eviction failed", "error", err)
	}

	artifact, err := c.backend.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.store(path, artifact.Audio); err != nil {
		// A failed write degrades to uncached operation, never to a
		// failed turn.
		c.logger.Warn("failed to store cache entry", "path", path, "error", err)
		return artifact, nil
	}

	artifact.Path = path
	return artifact, nil
}

// pathFor derives the cache file path from the backend identity, its voice
// parameters, and the text.
func (c *Cache) pathFor(text string) string {
	key := c.backend.Name() + "\x00" + c.backend.Fingerprint() + "\x00" + text
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+c.backend.Format().Ext())
}

// store writes audio atomically via a temp file and rename.
func (c *Cache) store(path string, audio []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// evictIfNeeded removes the oldest entries when the cache exceeds its fill
// threshold.
func (c *Cache) evictIfNeeded() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	type fileInfo struct {
		path  string
		size  int64
		mtime time.Time
	}

	var files []fileInfo
	var total int64
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			path:  filepath.Join(c.dir, e.Name()),
			size:  info.Size(),
			mtime: info.ModTime(),
		})
		total += info.Size()
	}

	if float64(total) <= float64(c.budget)*c.threshold {
		return nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].mtime.Before(files[j].mtime)
	})

	remove := int(float64(len(files)) * evictFraction)
	if remove < 1 {
		remove = 1
	}

	var freed int64
	for _, f := range files[:remove] {
		if err := os.Remove(f.path); err != nil {
			c.logger.Debug("failed to remove cache entry", "path", f.path, "error", err)
			continue
		}
		freed += f.size
	}

	c.logger.Info("cache evicted",
		"removed", remove,
		"freed_bytes", freed,
		"total_bytes", total,
		"budget_bytes", c.budget,
	)
	return nil
}

// Size returns the current cache size in bytes.
func (c *Cache) Size() (int64, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if info, err := e.Info(); err == nil && !e.IsDir() {
			total += info.Size()
		}
	}
	return total, nil
}

// Name identifies the cache by its backend.
func (c *Cache) Name() string {
	return c.backend.Name()
}

// Fingerprint returns the backend's voice fingerprint.
func (c *Cache) Fingerprint() string {
	return c.backend.Fingerprint()
}

// Format returns the backend's format.
func (c *Cache) Format() Format {
	return c.backend.Format()
}

// Close closes the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// Verify Cache implements Synthesizer at compile time.
var _ Synthesizer = (*Cache)(nil)
