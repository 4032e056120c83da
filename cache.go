package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Fetcher retrieves the current listing document for a channel.
type Fetcher interface {
	Fetch(ctx context.Context, ref ChannelRef) ([]byte, error)
}

// ListingCache stores raw channel listings as files, one slot per channel,
// using the slot file's modification time as the freshness clock.
type ListingCache struct {
	dir       string
	staleness time.Duration
	fetcher   Fetcher
}

// NewListingCache creates a cache over dir with the given staleness
// threshold.
func NewListingCache(dir string, staleness time.Duration, fetcher Fetcher) *ListingCache {
	return &ListingCache{dir: dir, staleness: staleness, fetcher: fetcher}
}

// slotPath returns the slot file for a channel, keyed by kind and identifier.
func (c *ListingCache) slotPath(ref ChannelRef) string {
	return filepath.Join(c.dir, ref.Key())
}

// Get returns the cached listing for ref, refreshing the slot first when it
// is missing, older than the staleness threshold, or empty. When the fetch
// fails the previous slot contents are left untouched and the error is
// returned, so the next run retries with the cache intact.
func (c *ListingCache) Get(ctx context.Context, ref ChannelRef) ([]byte, error) {
	path := c.slotPath(ref)
	if reason := c.refreshReason(path); reason != "" {
		slog.Debug("Refreshing listing cache slot", "channel", ref.Key(), "reason", reason)
		data, err := c.fetcher.Fetch(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("fetching listing for %s: %w", ref.Key(), err)
		}
		if err := writeFileAtomic(path, data); err != nil {
			return nil, fmt.Errorf("writing cache slot for %s: %w", ref.Key(), err)
		}
	}
	return os.ReadFile(path)
}

// refreshReason decides whether the slot must be refreshed, evaluating the
// conditions in order: missing, stale, empty. Emptiness is checked after
// staleness so a failed empty write is retried on the very next run
// regardless of its age. Returns "" when the slot can be reused.
func (c *ListingCache) refreshReason(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "missing"
	}
	if time.Since(info.ModTime()) > c.staleness {
		return "stale"
	}
	if info.Size() == 0 {
		return "empty"
	}
	return ""
}

// writeFileAtomic writes data to path via a temporary file and rename, so a
// crash mid-write can never leave a half-written file behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
