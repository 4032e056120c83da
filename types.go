package main

import "time"

// ChannelKind selects which upstream listing URL template a channel uses.
type ChannelKind string

const (
	// KindChannel identifies a channel by its stable channel id.
	KindChannel ChannelKind = "channel"
	// KindUser identifies a channel by its legacy user name.
	KindUser ChannelKind = "user"
)

// ChannelRef is one parsed line of the channel list file.
type ChannelRef struct {
	Kind       ChannelKind
	Identifier string
	Note       string
}

// Key returns the string used to partition cache slots and download records.
// The kind is part of the key so channel/X and user/X never collide.
func (r ChannelRef) Key() string {
	return string(r.Kind) + "-" + r.Identifier
}

// Video is one item entry extracted from a channel listing.
type Video struct {
	ID          string
	Title       string
	Description string
	Published   time.Time
}

// DownloadRecord is one persisted "already downloaded" row.
type DownloadRecord struct {
	Channel      string
	VideoID      string
	Title        string
	Published    time.Time
	DownloadedAt time.Time
}

// SyncStats accumulates per-run counters for the closing summary.
type SyncStats struct {
	ChannelsSynced int
	ChannelsFailed int
	Downloaded     int
	DownloadFailed int
}
