// cmd/quicksilver/commands/cache.go
package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"quicksilver/internal/cache"
	"quicksilver/internal/telemetry"
)

func loadCache() *cache.Cache {
	return cache.New(cache.DefaultConfig(), RuntimeVersion)
}

// CacheStatsCommand prints entry count and total size, in human-readable
// form when --human is passed.
func CacheStatsCommand(args []string) error {
	human := containsFlag(args, "--human")

	c := loadCache()
	stats := c.Stats()

	if human {
		fmt.Printf("entries: %s\n", humanize.Comma(int64(stats.EntryCount)))
		fmt.Printf("total size: %s\n", humanize.Bytes(uint64(stats.TotalSize)))
	} else {
		fmt.Printf("entries: %d\n", stats.EntryCount)
		fmt.Printf("total size: %d bytes\n", stats.TotalSize)
	}
	return nil
}

// CacheClearCommand removes every cache entry.
func CacheClearCommand(args []string) error {
	c := loadCache()
	if err := c.Clear(); err != nil {
		return fmt.Errorf("cache clear failed: %w", err)
	}
	fmt.Println("cache cleared")
	return nil
}

// CacheInvalidateCommand removes the cache entry for a single source
// file.
func CacheInvalidateCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: quicksilver cache invalidate <file>")
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	c := loadCache()
	if err := c.Invalidate(string(source), args[0]); err != nil {
		return fmt.Errorf("cache invalidate failed: %w", err)
	}
	fmt.Printf("invalidated cache entry for %s\n", args[0])
	return nil
}

// CacheGetCommand reports whether a source file currently has a cache hit.
// When sink is non-nil, the hit/miss is also recorded to telemetry,
// keyed by the entry's fingerprint.
func CacheGetCommand(args []string, sink *telemetry.Sink) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: quicksilver cache get <file>")
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	c := loadCache()
	ck, ok := c.Get(string(source), args[0])
	recordCacheEvent(sink, c.Fingerprint(string(source), args[0]), ok)
	if ok {
		fmt.Printf("hit: %d bytes of code, %d constants\n", len(ck.Code), len(ck.Constants))
	} else {
		fmt.Println("miss")
	}
	return nil
}

// recordCacheEvent is a best-effort telemetry call: a sink failure never
// fails the command, it only surfaces a warning on stderr.
func recordCacheEvent(sink *telemetry.Sink, fingerprint string, hit bool) {
	if sink == nil {
		return
	}
	if err := sink.RecordCacheEvent(fingerprint, hit); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: %v\n", err)
	}
}

// CachePutCommand stores a previously-compiled chunk (loaded from a
// single-chunk snapshot file) in the cache, keyed against sourceFile's
// content. Compiling sourceFile from scratch is outside this module's
// scope, so this command is the bridge an external compiler front-end
// uses to seed the cache.
func CachePutCommand(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: quicksilver cache put <snapshot-file> <source-file>")
	}
	snapshotPath, sourcePath := args[0], args[1]

	ck, err := loadChunkFromSnapshot(snapshotPath)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", sourcePath, err)
	}

	c := loadCache()
	if err := c.Put(string(source), sourcePath, ck); err != nil {
		return fmt.Errorf("cache put failed: %w", err)
	}
	fmt.Printf("cached %s under fingerprint %s\n", sourcePath, c.Fingerprint(string(source), sourcePath))
	return nil
}

func containsFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
