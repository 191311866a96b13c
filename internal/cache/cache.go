// Package cache implements the content-addressed filesystem bytecode
// cache: compiled chunks are stored as .qsc snapshot files keyed by a
// fingerprint of (source, filename, runtime version), with LRU-by-mtime
// eviction and TTL expiry.
package cache

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"quicksilver/internal/chunk"
	qerrors "quicksilver/internal/errors"
	"quicksilver/internal/snapshot"
)

const (
	cacheDirName = ".quicksilver_cache"
	cacheExt     = "qsc"
)

// Config controls where the cache lives and its eviction policy.
type Config struct {
	CacheDir string
	Enabled  bool
	MaxSize  int64         // bytes; 0 = unlimited
	MaxAge   time.Duration // 0 = unlimited
}

// DefaultConfig mirrors the reference defaults: a $HOME/.quicksilver_cache
// directory, 100MiB cap, 7-day TTL.
func DefaultConfig() Config {
	dir := cacheDirName
	if home, ok := homeDir(); ok {
		dir = filepath.Join(home, cacheDirName)
	}
	return Config{
		CacheDir: dir,
		Enabled:  true,
		MaxSize:  100 * 1024 * 1024,
		MaxAge:   7 * 24 * time.Hour,
	}
}

func homeDir() (string, bool) {
	if h := os.Getenv("HOME"); h != "" {
		return h, true
	}
	if h := os.Getenv("USERPROFILE"); h != "" {
		return h, true
	}
	return "", false
}

// Stats reports the current footprint of the cache directory.
type Stats struct {
	EntryCount int
	TotalSize  int64
}

// Cache is a bytecode cache instance. Unlike the reference implementation,
// this is never a process-global singleton — callers construct and pass
// one explicitly, so cache state never outlives a caller's own choice of
// lifetime.
type Cache struct {
	config         Config
	runtimeVersion string
}

// New constructs a Cache bound to runtimeVersion, used as part of every
// fingerprint so a runtime upgrade invalidates old entries.
func New(config Config, runtimeVersion string) *Cache {
	return &Cache{config: config, runtimeVersion: runtimeVersion}
}

func (c *Cache) ensureDir() error {
	if _, err := os.Stat(c.config.CacheDir); os.IsNotExist(err) {
		if err := os.MkdirAll(c.config.CacheDir, 0o755); err != nil {
			return qerrors.IO(err, "cache: failed to create cache directory")
		}
	}
	return nil
}

// Fingerprint computes the cache key for (source, filename): the first 8
// bytes of SHA-256(source || filename || runtimeVersion), rendered as 16
// lowercase hex digits.
func (c *Cache) Fingerprint(source, filename string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte(filename))
	h.Write([]byte(c.runtimeVersion))
	sum := h.Sum(nil)
	return fmt.Sprintf("%x", sum[:8])
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.config.CacheDir, key+"."+cacheExt)
}

func (c *Cache) isValidEntry(path string) bool {
	if c.config.MaxAge == 0 {
		return true
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < c.config.MaxAge
}

// Get loads a cached chunk for (source, filename), returning false on any
// miss — not present, expired, or corrupt. A corrupt entry is deleted
// before returning so it never wedges the cache (self-healing).
func (c *Cache) Get(source, filename string) (*chunk.Chunk, bool) {
	if !c.config.Enabled {
		return nil, false
	}

	key := c.Fingerprint(source, filename)
	path := c.path(key)

	if _, err := os.Stat(path); err != nil || !c.isValidEntry(path) {
		return nil, false
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	snap, err := snapshot.Load(f)
	if err != nil || len(snap.Chunks) == 0 {
		os.Remove(path)
		return nil, false
	}
	return snap.Chunks[0], true
}

// Put stores chunk under the fingerprint of (source, filename). Caching
// is best-effort: callers that don't care whether a write succeeded can
// ignore the error, matching the reference's `let _ = cache.put(...)`
// pattern at call sites.
func (c *Cache) Put(source, filename string, ck *chunk.Chunk) error {
	if !c.config.Enabled {
		return nil
	}
	if err := c.ensureDir(); err != nil {
		return err
	}

	key := c.Fingerprint(source, filename)
	path := c.path(key)

	display := filename
	if display == "" {
		display = "<anonymous>"
	}

	snap := snapshot.New(display, c.runtimeVersion, uint64(time.Now().Unix()))
	snap.Source = source
	snap.HasSource = true
	snap.Chunks = []*chunk.Chunk{ck}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return qerrors.IO(err, "cache: failed to create temp entry")
	}
	if err := snapshot.Save(f, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return qerrors.IO(err, "cache: failed to close temp entry")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return qerrors.IO(err, "cache: failed to finalize entry")
	}

	return c.maybeCleanup()
}

// Compile is the main cached-compilation entry point: return the cached
// chunk on a hit, otherwise call compile, store the result best-effort,
// and return it.
func (c *Cache) Compile(source, filename string, compile func(source, filename string) (*chunk.Chunk, error)) (*chunk.Chunk, error) {
	if ck, ok := c.Get(source, filename); ok {
		return ck, nil
	}

	ck, err := compile(source, filename)
	if err != nil {
		return nil, err
	}

	_ = c.Put(source, filename, ck)
	return ck, nil
}

// Clear removes every cache entry.
func (c *Cache) Clear() error {
	entries, err := c.listEntries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		os.Remove(e.path)
	}
	return nil
}

// Invalidate removes the cache entry for (source, filename), if any.
func (c *Cache) Invalidate(source, filename string) error {
	path := c.path(c.Fingerprint(source, filename))
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return qerrors.IO(err, "cache: failed to remove entry")
	}
	return nil
}

// Stats reports entry count and total size across the cache directory.
func (c *Cache) Stats() Stats {
	entries, err := c.listEntries()
	if err != nil {
		return Stats{}
	}
	stats := Stats{EntryCount: len(entries)}
	for _, e := range entries {
		stats.TotalSize += e.size
	}
	return stats
}

type cacheEntry struct {
	path    string
	size    int64
	modTime time.Time
}

func (c *Cache) listEntries() ([]cacheEntry, error) {
	if _, err := os.Stat(c.config.CacheDir); os.IsNotExist(err) {
		return nil, nil
	}

	dirEntries, err := os.ReadDir(c.config.CacheDir)
	if err != nil {
		return nil, qerrors.IO(err, "cache: failed to read cache directory")
	}

	var entries []cacheEntry
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != "."+cacheExt {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, cacheEntry{
			path:    filepath.Join(c.config.CacheDir, de.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return entries, nil
}

// maybeCleanup evicts the oldest entries (by mtime) until the cache is
// back down to half of MaxSize, leaving headroom so every Put doesn't
// immediately re-trigger a cleanup pass.
func (c *Cache) maybeCleanup() error {
	if c.config.MaxSize == 0 {
		return nil
	}

	entries, err := c.listEntries()
	if err != nil {
		return err
	}

	var total int64
	for _, e := range entries {
		total += e.size
	}
	if total <= c.config.MaxSize {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.Before(entries[j].modTime) })

	for _, e := range entries {
		if total <= c.config.MaxSize/2 {
			break
		}
		if err := os.Remove(e.path); err == nil {
			total -= e.size
		}
	}
	return nil
}
