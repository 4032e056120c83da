package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
)

// Options holds all configuration, populated from command-line flags and
// environment variables. Path options left empty default to locations under
// ~/.config/ytsync.
type Options struct {
	ChannelList string `long:"channel-list" env:"YTSYNC_CHANNEL_LIST" description:"Path to the channel list file (one kind/identifier per line)"`
	CacheDir    string `long:"cache-dir" env:"YTSYNC_CACHE_DIR" description:"Directory holding cached channel listings"`
	DBPath      string `long:"db" env:"YTSYNC_DB" description:"Path to the download record database"`
	DownloadDir string `long:"download-dir" env:"YTSYNC_DOWNLOAD_DIR" default:"." description:"Directory the download command runs in"`
	DownloadCmd string `long:"download-cmd" env:"YTSYNC_DOWNLOAD_CMD" default:"yt-dlp" description:"External command invoked with each new video id"`

	StalenessHours int `long:"staleness-hours" env:"YTSYNC_STALENESS_HOURS" default:"12" description:"Cached listing age in hours after which it is refetched"`
	LookbackDays   int `long:"lookback-days" env:"YTSYNC_LOOKBACK_DAYS" default:"7" description:"How far back the first sync of a channel reaches, in days"`
	RetentionDays  int `long:"retention-days" env:"YTSYNC_RETENTION_DAYS" default:"365" description:"Download records older than this are pruned, in days"`

	FeedOutput  string `long:"feed-output" env:"YTSYNC_FEED_OUTPUT" description:"Optional path to write an Atom feed of downloaded videos"`
	HTTPTimeout int    `long:"http-timeout" env:"YTSYNC_HTTP_TIMEOUT" default:"30" description:"Listing fetch timeout in seconds"`
	UserAgent   string `long:"user-agent" env:"YTSYNC_USER_AGENT" default:"ytsync/1.0" description:"User agent string for listing fetches"`
	Debug       bool   `long:"debug" env:"YTSYNC_DEBUG" description:"Enable debug logging"`
}

// Staleness returns the listing cache staleness threshold.
func (o *Options) Staleness() time.Duration {
	return time.Duration(o.StalenessHours) * time.Hour
}

// Lookback returns the default watermark lookback for unseen channels.
func (o *Options) Lookback() time.Duration {
	return time.Duration(o.LookbackDays) * 24 * time.Hour
}

// Retention returns the download record retention window.
func (o *Options) Retention() time.Duration {
	return time.Duration(o.RetentionDays) * 24 * time.Hour
}

// Timeout returns the listing fetch timeout.
func (o *Options) Timeout() time.Duration {
	return time.Duration(o.HTTPTimeout) * time.Second
}

// parseOptions parses the given arguments into an Options value. A nil
// Options with a nil error means help was requested and shown.
func parseOptions(args []string) (*Options, error) {
	var opts Options

	parser := flags.NewParser(&opts, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := applyDefaultPaths(&opts); err != nil {
		return nil, err
	}

	return &opts, nil
}

// loadOptions parses configuration from os.Args and the environment.
func loadOptions() (*Options, error) {
	return parseOptions(os.Args[1:])
}

// applyDefaultPaths fills in the path options that were not set explicitly.
func applyDefaultPaths(opts *Options) error {
	if opts.ChannelList != "" && opts.CacheDir != "" && opts.DBPath != "" {
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	configDir := filepath.Join(home, ".config", "ytsync")

	if opts.ChannelList == "" {
		opts.ChannelList = filepath.Join(configDir, "channel_list.txt")
	}
	if opts.CacheDir == "" {
		opts.CacheDir = filepath.Join(configDir, "cache")
	}
	if opts.DBPath == "" {
		opts.DBPath = filepath.Join(configDir, "downloads.db")
	}
	return nil
}
