package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// FeedFetcher retrieves channel listing documents over HTTP.
type FeedFetcher struct {
	client    *http.Client
	userAgent string
	base      string
}

// NewFeedFetcher creates a fetcher with the given request timeout.
func NewFeedFetcher(timeout time.Duration, userAgent string) *FeedFetcher {
	return &FeedFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		base:      defaultFeedBase,
	}
}

// Fetch downloads the current listing for a channel. Any transport error or
// non-200 response is reported as a fetch failure.
func (f *FeedFetcher) Fetch(ctx context.Context, ref ChannelRef) ([]byte, error) {
	url := feedURL(f.base, ref)
	slog.Debug("Fetching channel listing", "channel", ref.Key(), "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	slog.Debug("Fetched channel listing", "channel", ref.Key(), "bytes", len(body))
	return body, nil
}
