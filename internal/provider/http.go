package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"RateSentinel/internal/model"

	"github.com/tidwall/gjson"
)

// HTTPFeed describes one named REST feed.
type HTTPFeed struct {
	URL       string
	PricePath string // gjson path to the price
	TimePath  string // optional gjson path to the observation time
}

// HTTPProvider reads prices from JSON REST endpoints.
// The feed reference is a feed name looked up in Feeds.
type HTTPProvider struct {
	Feeds  map[string]HTTPFeed
	APIKey string
	Client *http.Client
}

// NewHTTPProvider creates a provider with optional proxy support.
func NewHTTPProvider(feeds map[string]HTTPFeed, apiKey, proxyURL string) *HTTPProvider {
	return &HTTPProvider{
		Feeds:  feeds,
		APIKey: apiKey,
		Client: newHTTPClient(proxyURL, 30*time.Second),
	}
}

func (p *HTTPProvider) Name() string { return "http" }

func (p *HTTPProvider) Fetch(ctx context.Context, ref string, _ model.TokenFeedConfig) (Reading, error) {
	feed, ok := p.Feeds[ref]
	if !ok {
		return Reading{}, fmt.Errorf("http: feed %q is not configured", ref)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return Reading{}, err
	}
	req.Header.Set("Accept", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("http feed %s: %w", ref, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reading{}, fmt.Errorf("http feed %s: read body: %w", ref, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("http feed %s: status %d, body: %s", ref, resp.StatusCode, truncate(body, 200))
	}
	if !gjson.ValidBytes(body) {
		return Reading{}, fmt.Errorf("http feed %s: malformed JSON", ref)
	}

	price := gjson.GetBytes(body, feed.PricePath)
	if !price.Exists() || (price.Type != gjson.Number && price.Type != gjson.String) {
		return Reading{}, fmt.Errorf("http feed %s: %w at %q", ref, ErrNoValue, feed.PricePath)
	}
	// String prices are common ("0.9213"); Float() parses them.
	reading := Reading{Value: price.Float()}
	if price.Type == gjson.String && reading.Value == 0 {
		return Reading{}, fmt.Errorf("http feed %s: %w: %q", ref, ErrNoValue, price.Str)
	}
	if feed.TimePath != "" {
		reading.ObservedAt = parseTime(gjson.GetBytes(body, feed.TimePath))
	}
	return reading, nil
}

// parseTime accepts unix seconds, unix milliseconds or RFC3339 strings.
func parseTime(r gjson.Result) time.Time {
	switch r.Type {
	case gjson.Number:
		n := r.Int()
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		if n > 0 {
			return time.Unix(n, 0).UTC()
		}
	case gjson.String:
		if t, err := time.Parse(time.RFC3339, r.Str); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
