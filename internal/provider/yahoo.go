package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"RateSentinel/internal/model"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooProvider reads FX closes from the Yahoo Finance chart API.
// The feed reference is a Yahoo ticker such as "EURUSD=X".
type YahooProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewYahooProvider creates a Yahoo Finance provider.
func NewYahooProvider(baseURL, proxyURL string) *YahooProvider {
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	return &YahooProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  newHTTPClient(proxyURL, 30*time.Second),
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64    `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []interface{} `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (p *YahooProvider) Fetch(ctx context.Context, ticker string, _ model.TokenFeedConfig) (Reading, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=5d", p.BaseURL, url.PathEscape(ticker))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Reading{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reading{}, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return Reading{}, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return Reading{}, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return Reading{}, fmt.Errorf("yahoo: %w", ErrNoValue)
	}

	result := chart.Chart.Result[0]
	if m := result.Meta; m.RegularMarketPrice != nil && *m.RegularMarketPrice > 0 {
		r := Reading{Value: *m.RegularMarketPrice}
		if m.RegularMarketTime > 0 {
			r.ObservedAt = time.Unix(m.RegularMarketTime, 0).UTC()
		}
		return r, nil
	}

	// Fall back to the most recent non-null close.
	if len(result.Indicators.Quote) == 0 {
		return Reading{}, fmt.Errorf("yahoo: %w", ErrNoValue)
	}
	closes := result.Indicators.Quote[0].Close
	for i := len(closes) - 1; i >= 0; i-- {
		c := toFloat(closes[i])
		if c == 0 {
			continue // null bars (holidays etc.)
		}
		r := Reading{Value: c}
		if i < len(result.Timestamp) {
			r.ObservedAt = time.Unix(result.Timestamp[i], 0).UTC()
		}
		return r, nil
	}
	return Reading{}, fmt.Errorf("yahoo: %w", ErrNoValue)
}
