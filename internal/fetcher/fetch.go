// Package fetcher downloads podcast RSS feeds and turns them into import
// requests.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voyagen/confsync/internal/models"
)

// maxFeedSize caps how much of a feed body is read.
const maxFeedSize = 32 << 20

// Fetcher downloads feeds with a fixed user agent and timeout.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

func New(userAgent string, timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

// FetchFeed fetches the RSS document at url and converts it.
func (f *Fetcher) FetchFeed(ctx context.Context, url string) (*models.ImportRequest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	feed, err := ParseRSS(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return feed, nil
}
