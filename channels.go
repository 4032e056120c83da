package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// defaultFeedBase is the upstream host serving channel listings.
const defaultFeedBase = "https://www.youtube.com"

// feedQueryParams maps each channel kind to its listing URL query parameter.
var feedQueryParams = map[ChannelKind]string{
	KindChannel: "channel_id",
	KindUser:    "user",
}

// feedURL returns the listing URL for a channel under the given base URL.
func feedURL(base string, ref ChannelRef) string {
	return fmt.Sprintf("%s/feeds/videos.xml?%s=%s", base, feedQueryParams[ref.Kind], ref.Identifier)
}

// parseChannelLine parses one channel list line of the form
// "kind/identifier" or "kind/identifier # note".
func parseChannelLine(line string) (ChannelRef, error) {
	base, note, _ := strings.Cut(line, "#")
	base = strings.TrimSpace(base)
	note = strings.TrimSpace(note)

	kind, identifier, found := strings.Cut(base, "/")
	if !found || identifier == "" {
		return ChannelRef{}, fmt.Errorf("malformed channel line %q: want kind/identifier", line)
	}

	ref := ChannelRef{Kind: ChannelKind(kind), Identifier: identifier, Note: note}
	if ref.Kind != KindChannel && ref.Kind != KindUser {
		return ChannelRef{}, fmt.Errorf("unknown channel kind %q in line %q", kind, line)
	}
	return ref, nil
}

// loadChannelList reads the channel list file, skipping blank lines and
// comment lines. A malformed channel line is an error: a typo here would
// otherwise silently drop a channel from every run.
func loadChannelList(path string) ([]ChannelRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening channel list: %w", err)
	}
	defer func() { _ = f.Close() }()

	var refs []ChannelRef
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ref, err := parseChannelLine(line)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading channel list: %w", err)
	}
	return refs, nil
}
