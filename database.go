package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// openDB opens the download record database and creates its schema if
// needed.
func openDB(path string) (*sql.DB, error) {
	slog.Debug("Opening download record database", "path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createDownloadsTable := `
	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel TEXT NOT NULL,            -- channel key (kind-identifier)
		video_id TEXT NOT NULL,
		title TEXT,
		published TIMESTAMP NOT NULL,
		downloaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(channel, video_id)
	)`
	if _, err := db.Exec(createDownloadsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create downloads table: %w", err)
	}

	createIndexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_downloads_channel ON downloads(channel)",
		"CREATE INDEX IF NOT EXISTS idx_downloads_downloaded_at ON downloads(downloaded_at)",
	}
	for _, indexSQL := range createIndexes {
		if _, err := db.Exec(indexSQL); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create downloads index: %w", err)
		}
	}

	return db, nil
}

// isDownloaded reports whether a video has already been recorded for a
// channel.
func isDownloaded(db *sql.DB, channel, videoID string) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM downloads WHERE channel = ? AND video_id = ?", channel, videoID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query download record: %w", err)
	}
	return count > 0, nil
}

// lastDownloaded returns the published time of the most recent download
// recorded for a channel. The second return value is false when the channel
// has no records at all.
func lastDownloaded(db *sql.DB, channel string) (time.Time, bool, error) {
	var published time.Time
	err := db.QueryRow("SELECT published FROM downloads WHERE channel = ? ORDER BY published DESC LIMIT 1", channel).Scan(&published)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last download: %w", err)
	}
	return published, true, nil
}

// recordDownload persists one download record, replacing any prior row for
// the same channel and video id.
func recordDownload(db *sql.DB, rec DownloadRecord) error {
	_, err := db.Exec(`
		INSERT INTO downloads (channel, video_id, title, published, downloaded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(channel, video_id) DO UPDATE SET
			title = excluded.title,
			published = excluded.published,
			downloaded_at = excluded.downloaded_at`,
		rec.Channel, rec.VideoID, rec.Title, rec.Published, rec.DownloadedAt)
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	return nil
}

// recentDownloads returns the most recently downloaded videos across all
// channels, newest first.
func recentDownloads(db *sql.DB, limit int) ([]DownloadRecord, error) {
	rows, err := db.Query("SELECT channel, video_id, title, published, downloaded_at FROM downloads ORDER BY downloaded_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []DownloadRecord
	for rows.Next() {
		var rec DownloadRecord
		if err := rows.Scan(&rec.Channel, &rec.VideoID, &rec.Title, &rec.Published, &rec.DownloadedAt); err != nil {
			slog.Error("Error scanning download row", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// pruneDownloads removes records downloaded before the cutoff. The watermark
// keeps old items out on its own, so expired membership rows are dead weight.
func pruneDownloads(db *sql.DB, cutoff time.Time) (int64, error) {
	result, err := db.Exec("DELETE FROM downloads WHERE downloaded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune downloads: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		slog.Debug("Pruned old download records", "count", rowsAffected)
	}
	return rowsAffected, nil
}

// FreshnessPolicy answers which listed videos still need downloading, backed
// by the download record store.
type FreshnessPolicy struct {
	db       *sql.DB
	lookback time.Duration
}

// NewFreshnessPolicy creates a policy with the given first-sync lookback.
func NewFreshnessPolicy(db *sql.DB, lookback time.Duration) *FreshnessPolicy {
	return &FreshnessPolicy{db: db, lookback: lookback}
}

// IsNew reports whether a video has not been handled yet. A video is new
// when it was published strictly after the channel's watermark (the published
// time of its latest recorded download, or the lookback window on a channel
// with no records) and its id has not been recorded. The membership check
// stops a recorded id from downloading again when the upstream entry is
// republished with a bumped published time. A never-seen video published at
// or before the watermark is still skipped by the watermark gate.
func (p *FreshnessPolicy) IsNew(channel string, v Video) (bool, error) {
	watermark, ok, err := lastDownloaded(p.db, channel)
	if err != nil {
		return false, err
	}
	if !ok {
		watermark = time.Now().Add(-p.lookback)
	}
	if !v.Published.After(watermark) {
		return false, nil
	}
	seen, err := isDownloaded(p.db, channel, v.ID)
	if err != nil {
		return false, err
	}
	return !seen, nil
}

// RecordDownloaded persists a successful download for a channel.
func (p *FreshnessPolicy) RecordDownloaded(channel string, v Video) error {
	return recordDownload(p.db, DownloadRecord{
		Channel:      channel,
		VideoID:      v.ID,
		Title:        v.Title,
		Published:    v.Published,
		DownloadedAt: time.Now(),
	})
}
