// Package probe estimates dump sizes for progress display.
//
// The Discogs API root reports entity counts under "statistics". The probe
// is optional and never affects output: any failure falls back to fixed
// defaults, and the reason is logged.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/dd2db/internal/dump"
)

// DefaultURL is the Discogs API root.
const DefaultURL = "https://api.discogs.com/"

// DefaultTimeout bounds one probe request.
const DefaultTimeout = 5 * time.Second

// maxBody caps the response read; the root document is tiny.
const maxBody = 1 << 20

// Counts maps each kind to an expected entity count.
type Counts map[dump.Kind]int64

// DefaultCounts returns rough counts of a recent monthly dump.
func DefaultCounts() Counts {
	return Counts{
		dump.Artist:  5_000_000,
		dump.Label:   1_100_000,
		dump.Master:  1_250_000,
		dump.Release: 8_500_000,
	}
}

// Hint returns the expected entity count of a run: the count of its kind,
// capped by the limit when one is set.
func (c Counts) Hint(kind dump.Kind, limit int64) int64 {
	expected := c[kind]
	if limit > 0 && (expected == 0 || limit < expected) {
		return limit
	}
	return expected
}

// Client queries the statistics endpoint.
type Client struct {
	url  string
	http *http.Client
}

// New returns a probe client. Empty url and zero timeout select defaults.
func New(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

type rootDocument struct {
	Statistics map[string]int64 `json:"statistics"`
}

// Fetch returns the counts reported by the API. Kinds the API does not
// report are absent from the result.
func (c *Client) Fetch(ctx context.Context) (Counts, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("probe request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "dd2db")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probe %s: status %s", c.url, resp.Status)
	}

	var doc rootDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("probe %s: decode: %w", c.url, err)
	}
	if len(doc.Statistics) == 0 {
		return nil, fmt.Errorf("probe %s: no statistics in response", c.url)
	}

	counts := Counts{}
	for _, k := range dump.Kinds {
		if n, ok := doc.Statistics[k.Plural()]; ok && n > 0 {
			counts[k] = n
		}
	}
	return counts, nil
}

// Counts returns the defaults overlaid with whatever the API reports. It
// never fails; the bool reports whether the API answered.
func (c *Client) Counts(ctx context.Context, log *slog.Logger) (Counts, bool) {
	counts := DefaultCounts()
	fetched, err := c.Fetch(ctx)
	if err != nil {
		log.Warn("size probe failed, using default counts", "error", err)
		return counts, false
	}
	for k, n := range fetched {
		counts[k] = n
	}
	log.Info("size probe succeeded", "counts", fetched)
	return counts, true
}
