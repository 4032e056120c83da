package main

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// setupLogging configures the default slog logger.
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func main() {
	opts, err := loadOptions()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if opts == nil {
		// Help was shown, exit gracefully
		return
	}
	setupLogging(opts.Debug)

	channels, err := loadChannelList(opts.ChannelList)
	if err != nil {
		slog.Error("Failed to load channel list", "path", opts.ChannelList, "error", err)
		os.Exit(1)
	}
	if len(channels) == 0 {
		slog.Warn("Channel list is empty, nothing to sync", "path", opts.ChannelList)
		return
	}
	slog.Debug("Loaded channel list", "path", opts.ChannelList, "channels", len(channels))

	for _, dir := range []string{opts.CacheDir, opts.DownloadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	db, err := openDB(opts.DBPath)
	if err != nil {
		slog.Error("Failed to open download record database", "path", opts.DBPath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if _, err := pruneDownloads(db, time.Now().Add(-opts.Retention())); err != nil {
		slog.Warn("Failed to prune old download records", "error", err)
	}

	fetcher := NewFeedFetcher(opts.Timeout(), opts.UserAgent)
	cache := NewListingCache(opts.CacheDir, opts.Staleness(), fetcher)
	policy := NewFreshnessPolicy(db, opts.Lookback())
	downloader := NewCommandDownloader(opts.DownloadCmd, opts.DownloadDir)
	syncer := NewSyncer(cache, policy, downloader)

	stats := syncer.Run(context.Background(), channels)
	slog.Info("Sync run complete",
		"channels", stats.ChannelsSynced,
		"channelsFailed", stats.ChannelsFailed,
		"downloaded", stats.Downloaded,
		"downloadFailed", stats.DownloadFailed)

	if opts.FeedOutput != "" {
		if err := writeDownloadsFeed(db, opts.FeedOutput); err != nil {
			slog.Error("Failed to write downloads feed", "path", opts.FeedOutput, "error", err)
		}
	}
}
