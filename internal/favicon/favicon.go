// Package favicon retrieves site favicons as base64 strings for display on
// subscriber clients.
package favicon

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const maxIconBytes = 256 * 1024

// Fetcher downloads favicons and caches them per host so that bursts of tab
// update events do not refetch the same icon.
type Fetcher struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]string
}

// NewFetcher creates a fetcher with a short request timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 3 * time.Second},
		cache:  make(map[string]string),
	}
}

// Get returns the base64-encoded favicon for the page URL's host, or an
// empty string when the icon cannot be retrieved. Failures are cached too,
// so an unreachable host is not retried on every event.
func (f *Fetcher) Get(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}

	f.mu.Lock()
	cached, ok := f.cache[u.Host]
	f.mu.Unlock()
	if ok {
		return cached
	}

	icon := f.fetch(u)

	f.mu.Lock()
	f.cache[u.Host] = icon
	f.mu.Unlock()
	return icon
}

func (f *Fetcher) fetch(page *url.URL) string {
	scheme := page.Scheme
	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}
	iconURL := scheme + "://" + page.Host + "/favicon.ico"

	resp, err := f.client.Get(iconURL)
	if err != nil {
		slog.Debug("favicon fetch failed", "url", iconURL, "error", err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Debug("favicon fetch non-200", "url", iconURL, "status", resp.StatusCode)
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIconBytes))
	if err != nil || len(data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}
