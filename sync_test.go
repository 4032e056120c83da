package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// buildListing renders a minimal listing document: a metadata segment
// followed by one entry per video, in the order given (newest first, like the
// upstream feed).
func buildListing(channelName, channelID string, videos []Video) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<?xml version=\"1.0\"?>\n<feed>\n <yt:channelId>%s</yt:channelId>\n <name>%s</name>\n", channelID, channelName)
	for _, v := range videos {
		fmt.Fprintf(&b, " <entry>\n  <yt:videoId>%s</yt:videoId>\n  <title>%s</title>\n  <published>%s</published>\n </entry>\n",
			v.ID, v.Title, v.Published.Format(time.RFC3339))
	}
	b.WriteString("</feed>\n")
	return b.String()
}

// keyedFetcher serves per-channel listings and records call counts.
type keyedFetcher struct {
	listings map[string][]byte
	errs     map[string]error
	calls    map[string]int
}

func newKeyedFetcher() *keyedFetcher {
	return &keyedFetcher{
		listings: make(map[string][]byte),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *keyedFetcher) Fetch(ctx context.Context, ref ChannelRef) ([]byte, error) {
	f.calls[ref.Key()]++
	if err := f.errs[ref.Key()]; err != nil {
		return nil, err
	}
	return f.listings[ref.Key()], nil
}

// fakeDownloader records download invocations and fails for selected ids.
type fakeDownloader struct {
	failIDs map[string]bool
	calls   []string
}

func (d *fakeDownloader) Download(ctx context.Context, videoID string) error {
	d.calls = append(d.calls, videoID)
	if d.failIDs[videoID] {
		return errors.New("exit status 1")
	}
	return nil
}

type syncFixture struct {
	cacheDir   string
	fetcher    *keyedFetcher
	downloader *fakeDownloader
	policy     *FreshnessPolicy
	syncer     *Syncer
}

func setupSyncer(t *testing.T) *syncFixture {
	t.Helper()
	db := setupTestDB(t)
	f := &syncFixture{
		cacheDir:   t.TempDir(),
		fetcher:    newKeyedFetcher(),
		downloader: &fakeDownloader{failIDs: make(map[string]bool)},
	}
	cache := NewListingCache(f.cacheDir, 12*time.Hour, f.fetcher)
	f.policy = NewFreshnessPolicy(db, 7*24*time.Hour)
	f.syncer = NewSyncer(cache, f.policy, f.downloader)
	return f
}

func TestSyncChannel_FirstRun(t *testing.T) {
	f := setupSyncer(t)
	ref := ChannelRef{Kind: KindChannel, Identifier: "ABC123"}

	backlog := Video{ID: "vidA", Title: "old one", Published: time.Now().Add(-10 * 24 * time.Hour)}
	fresh := Video{ID: "vidB", Title: "new one", Published: time.Now().Add(-24 * time.Hour)}
	listing := buildListing("test channel", "ABC123", []Video{fresh, backlog})
	f.fetcher.listings[ref.Key()] = []byte(listing)

	downloaded, failed, err := f.syncer.SyncChannel(context.Background(), ref)
	if err != nil {
		t.Fatalf("SyncChannel failed: %v", err)
	}
	if downloaded != 1 || failed != 0 {
		t.Errorf("Expected 1 download and 0 failures, got %d/%d", downloaded, failed)
	}

	if f.fetcher.calls[ref.Key()] != 1 {
		t.Errorf("Expected 1 fetch, got %d", f.fetcher.calls[ref.Key()])
	}
	if len(f.downloader.calls) != 1 || f.downloader.calls[0] != "vidB" {
		t.Errorf("Expected exactly one download of vidB, got %v", f.downloader.calls)
	}

	// Watermark advanced to the downloaded video's published time
	watermark, ok, err := lastDownloaded(f.policy.db, ref.Key())
	if err != nil || !ok {
		t.Fatalf("Expected a watermark: ok=%v err=%v", ok, err)
	}
	if !watermark.Equal(fresh.Published.Truncate(time.Second)) && !watermark.Equal(fresh.Published) {
		t.Errorf("Expected watermark near %v, got %v", fresh.Published, watermark)
	}

	// Cache slot holds the fetched listing
	slot, err := os.ReadFile(filepath.Join(f.cacheDir, ref.Key()))
	if err != nil {
		t.Fatalf("Cache slot missing: %v", err)
	}
	if string(slot) != listing {
		t.Error("Cache slot does not hold the fetched listing")
	}
}

func TestSyncChannel_Idempotent(t *testing.T) {
	f := setupSyncer(t)
	ref := ChannelRef{Kind: KindChannel, Identifier: "ABC123"}

	videos := []Video{
		{ID: "vidB", Title: "newer", Published: time.Now().Add(-24 * time.Hour)},
		{ID: "vidA", Title: "older", Published: time.Now().Add(-48 * time.Hour)},
	}
	f.fetcher.listings[ref.Key()] = []byte(buildListing("test channel", "ABC123", videos))

	for run := 0; run < 2; run++ {
		if _, _, err := f.syncer.SyncChannel(context.Background(), ref); err != nil {
			t.Fatalf("Run %d failed: %v", run+1, err)
		}
	}

	if len(f.downloader.calls) != 2 {
		t.Errorf("Expected each video downloaded exactly once in total, got %v", f.downloader.calls)
	}
	// Second run reused the fresh cache slot
	if f.fetcher.calls[ref.Key()] != 1 {
		t.Errorf("Expected 1 fetch across both runs, got %d", f.fetcher.calls[ref.Key()])
	}
}

func TestSyncChannel_OldestFirst(t *testing.T) {
	f := setupSyncer(t)
	ref := ChannelRef{Kind: KindChannel, Identifier: "ABC123"}

	videos := []Video{
		{ID: "vidC", Title: "newest", Published: time.Now().Add(-1 * 24 * time.Hour)},
		{ID: "vidB", Title: "middle", Published: time.Now().Add(-2 * 24 * time.Hour)},
		{ID: "vidA", Title: "oldest", Published: time.Now().Add(-3 * 24 * time.Hour)},
	}
	f.fetcher.listings[ref.Key()] = []byte(buildListing("test channel", "ABC123", videos))

	if _, _, err := f.syncer.SyncChannel(context.Background(), ref); err != nil {
		t.Fatal(err)
	}

	want := []string{"vidA", "vidB", "vidC"}
	if len(f.downloader.calls) != len(want) {
		t.Fatalf("Expected %d downloads, got %v", len(want), f.downloader.calls)
	}
	for i, id := range want {
		if f.downloader.calls[i] != id {
			t.Errorf("Download %d: expected %s, got %s", i, id, f.downloader.calls[i])
		}
	}
}

func TestSyncChannel_DownloadFailureKeepsVideoNew(t *testing.T) {
	f := setupSyncer(t)
	ref := ChannelRef{Kind: KindChannel, Identifier: "ABC123"}

	video := Video{ID: "vidB", Title: "flaky", Published: time.Now().Add(-24 * time.Hour)}
	f.fetcher.listings[ref.Key()] = []byte(buildListing("test channel", "ABC123", []Video{video}))
	f.downloader.failIDs["vidB"] = true

	downloaded, failed, err := f.syncer.SyncChannel(context.Background(), ref)
	if err != nil {
		t.Fatalf("SyncChannel failed: %v", err)
	}
	if downloaded != 0 || failed != 1 {
		t.Errorf("Expected 0 downloads and 1 failure, got %d/%d", downloaded, failed)
	}

	// The record was not updated, so the video is still new
	seen, err := isDownloaded(f.policy.db, ref.Key(), "vidB")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("Failed download must not be recorded")
	}

	// Next run retries and succeeds
	f.downloader.failIDs["vidB"] = false
	downloaded, failed, err = f.syncer.SyncChannel(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}
	if downloaded != 1 || failed != 0 {
		t.Errorf("Expected retry to succeed, got downloaded=%d failed=%d", downloaded, failed)
	}
}

func TestRun_IsolatesChannelFailures(t *testing.T) {
	f := setupSyncer(t)
	broken := ChannelRef{Kind: KindChannel, Identifier: "BROKEN"}
	working := ChannelRef{Kind: KindUser, Identifier: "jack"}

	f.fetcher.errs[broken.Key()] = errors.New("503 from upstream")
	video := Video{ID: "vidB", Title: "fine", Published: time.Now().Add(-24 * time.Hour)}
	f.fetcher.listings[working.Key()] = []byte(buildListing("jackisanerd", "UCjack", []Video{video}))

	stats := f.syncer.Run(context.Background(), []ChannelRef{broken, working})

	if stats.ChannelsFailed != 1 {
		t.Errorf("Expected 1 failed channel, got %d", stats.ChannelsFailed)
	}
	if stats.ChannelsSynced != 1 {
		t.Errorf("Expected 1 synced channel, got %d", stats.ChannelsSynced)
	}
	if stats.Downloaded != 1 {
		t.Errorf("Expected the working channel's video downloaded, got %d", stats.Downloaded)
	}
}

func TestSyncChannel_RecordWriteFailureAbortsChannel(t *testing.T) {
	f := setupSyncer(t)
	ref := ChannelRef{Kind: KindChannel, Identifier: "ABC123"}

	video := Video{ID: "vidB", Title: "new one", Published: time.Now().Add(-24 * time.Hour)}
	f.fetcher.listings[ref.Key()] = []byte(buildListing("test channel", "ABC123", []Video{video}))

	// Make the record store read-only: the freshness check still works, but
	// recording the download fails. A single connection keeps the pragma on
	// the connection every later statement uses.
	f.policy.db.SetMaxOpenConns(1)
	if _, err := f.policy.db.Exec("PRAGMA query_only = 1"); err != nil {
		t.Fatal(err)
	}

	downloaded, _, err := f.syncer.SyncChannel(context.Background(), ref)
	if err == nil {
		t.Fatal("Expected record write failure to abort the channel sync")
	}
	if downloaded != 0 {
		t.Errorf("Expected no download counted without a record, got %d", downloaded)
	}

	// The download itself ran, but was never recorded, so the video stays new
	if len(f.downloader.calls) != 1 {
		t.Errorf("Expected 1 download attempt, got %v", f.downloader.calls)
	}
	seen, err := isDownloaded(f.policy.db, ref.Key(), "vidB")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("Failed record write must leave the video unrecorded")
	}
}

func TestSyncChannel_CacheWriteFailureAbortsChannel(t *testing.T) {
	f := setupSyncer(t)
	ref := ChannelRef{Kind: KindChannel, Identifier: "ABC123"}

	video := Video{ID: "vidB", Title: "new one", Published: time.Now().Add(-24 * time.Hour)}
	f.fetcher.listings[ref.Key()] = []byte(buildListing("test channel", "ABC123", []Video{video}))

	// Occupy the slot path with a directory so the slot can never be written
	if err := os.Mkdir(filepath.Join(f.cacheDir, ref.Key()), 0755); err != nil {
		t.Fatal(err)
	}

	downloaded, failed, err := f.syncer.SyncChannel(context.Background(), ref)
	if err == nil {
		t.Fatal("Expected cache write failure to abort the channel sync")
	}
	if downloaded != 0 || failed != 0 {
		t.Errorf("Expected no items processed, got downloaded=%d failed=%d", downloaded, failed)
	}
	if len(f.downloader.calls) != 0 {
		t.Errorf("Expected no downloads without a usable listing, got %v", f.downloader.calls)
	}
}

func TestRun_ContinuesAfterPersistenceFailure(t *testing.T) {
	f := setupSyncer(t)
	broken := ChannelRef{Kind: KindChannel, Identifier: "BROKEN"}
	working := ChannelRef{Kind: KindUser, Identifier: "jack"}

	video := Video{ID: "vidB", Title: "fine", Published: time.Now().Add(-24 * time.Hour)}
	f.fetcher.listings[broken.Key()] = []byte(buildListing("broken channel", "BROKEN", []Video{video}))
	f.fetcher.listings[working.Key()] = []byte(buildListing("jackisanerd", "UCjack", []Video{video}))

	// Only the first channel's cache slot is unwritable
	if err := os.Mkdir(filepath.Join(f.cacheDir, broken.Key()), 0755); err != nil {
		t.Fatal(err)
	}

	stats := f.syncer.Run(context.Background(), []ChannelRef{broken, working})

	if stats.ChannelsFailed != 1 {
		t.Errorf("Expected 1 failed channel, got %d", stats.ChannelsFailed)
	}
	if stats.ChannelsSynced != 1 {
		t.Errorf("Expected the run to continue to the working channel, got %d synced", stats.ChannelsSynced)
	}
	if stats.Downloaded != 1 {
		t.Errorf("Expected the working channel's video downloaded, got %d", stats.Downloaded)
	}
}

func TestSyncChannel_DegenerateListing(t *testing.T) {
	f := setupSyncer(t)
	ref := ChannelRef{Kind: KindChannel, Identifier: "ABC123"}
	f.fetcher.listings[ref.Key()] = []byte("not really a listing")

	downloaded, failed, err := f.syncer.SyncChannel(context.Background(), ref)
	if err != nil {
		t.Fatalf("Degenerate listing should not fail the sync: %v", err)
	}
	if downloaded != 0 || failed != 0 {
		t.Errorf("Expected nothing to do, got downloaded=%d failed=%d", downloaded, failed)
	}
}
