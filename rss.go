package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/feeds"
)

// downloadsFeedSize caps how many records the downloads feed carries.
const downloadsFeedSize = 30

// generateDownloadsFeed creates an Atom feed from download records, newest
// first, so other tools can watch what the sync has grabbed.
func generateDownloadsFeed(records []DownloadRecord) (string, error) {
	now := time.Now()

	feed := &feeds.Feed{
		Title:       "ytsync downloads",
		Description: "Videos recently downloaded by ytsync",
		Link:        &feeds.Link{Href: "https://www.youtube.com/", Rel: "self", Type: "text/html"},
		Id:          "tag:ytsync,2024:downloads",
		Created:     now,
		Updated:     now,
	}

	for _, rec := range records {
		title := rec.Title
		if title == "" {
			title = rec.VideoID
		}

		feed.Items = append(feed.Items, &feeds.Item{
			Title:       title,
			Link:        &feeds.Link{Href: fmt.Sprintf("https://www.youtube.com/watch?v=%s", rec.VideoID)},
			Id:          fmt.Sprintf("tag:youtube.com:video:%s", rec.VideoID),
			Description: fmt.Sprintf("Downloaded from %s", rec.Channel),
			Created:     rec.Published,
			Updated:     rec.DownloadedAt,
		})
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return "", fmt.Errorf("failed to generate feed: %w", err)
	}
	return atom, nil
}

// writeDownloadsFeed writes the Atom feed of recent downloads to path.
func writeDownloadsFeed(db *sql.DB, path string) error {
	records, err := recentDownloads(db, downloadsFeedSize)
	if err != nil {
		return err
	}

	atom, err := generateDownloadsFeed(records)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating feed output directory: %w", err)
	}
	if err := writeFileAtomic(path, []byte(atom)); err != nil {
		return fmt.Errorf("writing downloads feed: %w", err)
	}

	slog.Info("Downloads feed saved", "count", len(records), "filename", path)
	return nil
}
