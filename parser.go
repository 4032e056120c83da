package main

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// entryBoundary is the literal marker separating listing entries. Everything
// before the first marker is channel metadata.
const entryBoundary = "<entry>"

// tagLineRegex matches a single-line <tag>value</tag> element, keeping the
// innermost pair on lines that carry surrounding markup. Lines without such a
// pair (open tags, attributes-only elements) simply contribute nothing.
var tagLineRegex = regexp.MustCompile(`<([^<>/]+)>([^<>]*)</[^<>]+>`)

// normalizeTag flattens namespaced tag names (yt:videoId -> yt_videoId) so
// records are plain string-keyed maps.
func normalizeTag(tag string) string {
	return strings.ReplaceAll(tag, ":", "_")
}

// parseEntry scans one listing segment line by line and collects its
// tag/value pairs. A tag repeated within the segment keeps its last value.
func parseEntry(segment string) map[string]string {
	record := make(map[string]string)
	for _, line := range strings.Split(segment, "\n") {
		if m := tagLineRegex.FindStringSubmatch(line); m != nil {
			record[normalizeTag(m[1])] = m[2]
		}
	}
	return record
}

// parseFeed splits a raw listing document into the channel record and the
// item records, in document order (newest first, per the upstream feed
// convention). A document with no entry boundary degrades to whatever fields
// its metadata yields and an empty item list; it never fails.
func parseFeed(doc string) (map[string]string, []map[string]string) {
	segments := strings.Split(doc, entryBoundary)

	channel := parseEntry(segments[0])
	items := make([]map[string]string, 0, len(segments)-1)
	for _, segment := range segments[1:] {
		items = append(items, parseEntry(segment))
	}
	return channel, items
}

// videosFromRecords converts parsed item records into Videos. Records without
// a video id or with an unparseable published time are dropped: neither can
// be checked against the download records, so downloading them could repeat
// on every run.
func videosFromRecords(records []map[string]string) []Video {
	videos := make([]Video, 0, len(records))
	for _, rec := range records {
		id := rec["yt_videoId"]
		if id == "" {
			continue
		}
		published, err := time.Parse(time.RFC3339, rec["published"])
		if err != nil {
			slog.Warn("Skipping entry with bad published time", "id", id, "published", rec["published"])
			continue
		}

		description := rec["media_description"]
		if description == "" {
			description = rec["description"]
		}

		videos = append(videos, Video{
			ID:          id,
			Title:       rec["title"],
			Description: description,
			Published:   published,
		})
	}
	return videos
}
