package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// Downloader invokes the external download tool for one video.
type Downloader interface {
	Download(ctx context.Context, videoID string) error
}

// Syncer drives a sync run: per channel, obtain the listing through the
// cache, parse it, and download every video the freshness policy considers
// new.
type Syncer struct {
	cache      *ListingCache
	policy     *FreshnessPolicy
	downloader Downloader
}

// NewSyncer wires the sync pipeline together.
func NewSyncer(cache *ListingCache, policy *FreshnessPolicy, downloader Downloader) *Syncer {
	return &Syncer{cache: cache, policy: policy, downloader: downloader}
}

// SyncChannel syncs a single channel. New videos are processed oldest-first
// so that an interrupted run leaves the watermark covering a contiguous
// prefix of the channel's history. Each successful download is recorded
// immediately; a failed download is logged and skipped, leaving the video
// new for the next run.
func (s *Syncer) SyncChannel(ctx context.Context, ref ChannelRef) (downloaded, failed int, err error) {
	listing, err := s.cache.Get(ctx, ref)
	if err != nil {
		return 0, 0, err
	}

	channelRec, itemRecs := parseFeed(string(listing))
	name := channelRec["name"]
	if name == "" {
		name = ref.Identifier
	}
	slog.Info("Syncing channel", "name", name, "entries", len(itemRecs))

	videos := videosFromRecords(itemRecs)
	slices.Reverse(videos)

	for _, v := range videos {
		isNew, err := s.policy.IsNew(ref.Key(), v)
		if err != nil {
			return downloaded, failed, fmt.Errorf("checking download record: %w", err)
		}
		if !isNew {
			continue
		}

		slog.Info("Downloading video", "channel", name, "id", v.ID, "title", v.Title)
		if err := s.downloader.Download(ctx, v.ID); err != nil {
			slog.Warn("Download failed", "channel", name, "id", v.ID, "error", err)
			failed++
			continue
		}
		if err := s.policy.RecordDownloaded(ref.Key(), v); err != nil {
			return downloaded, failed, fmt.Errorf("recording download of %s: %w", v.ID, err)
		}
		downloaded++
	}

	return downloaded, failed, nil
}

// Run syncs every channel in list order. A failing channel is logged and
// skipped; it never stops the rest of the run.
func (s *Syncer) Run(ctx context.Context, channels []ChannelRef) SyncStats {
	var stats SyncStats
	for _, ref := range channels {
		downloaded, failed, err := s.SyncChannel(ctx, ref)
		stats.Downloaded += downloaded
		stats.DownloadFailed += failed
		if err != nil {
			slog.Error("Channel sync failed", "channel", ref.Key(), "error", err)
			stats.ChannelsFailed++
			continue
		}
		stats.ChannelsSynced++
	}
	return stats
}
