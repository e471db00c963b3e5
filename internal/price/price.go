// Package price supplies live and historical BTC quotes in the fund's local
// currency. Fetchers talk to public market APIs; Cache decides which of them to
// trust and when.
package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	SourceCoinGecko       = "coingecko"
	SourceBinanceFallback = "binance-fallback"
	SourceCache           = "cache"
	SourceUnavailable     = "unavailable"
)

// ErrRateLimited is returned by a fetcher when the upstream answered HTTP 429.
var ErrRateLimited = errors.New("rate limited")

// Quote is a point-in-time BTC price. A quote with Source "cache" is stale and one
// with Source "unavailable" carries zeros.
type Quote struct {
	Local          float64
	USD            float64
	Local24hChange float64
	USD24hChange   float64
	Timestamp      time.Time
	Source         string
}

// Point is one day of price history.
type Point struct {
	Date       time.Time
	PriceLocal float64
}

type Fetcher interface {
	Fetch(ctx context.Context) (Quote, error)
}

type HistoryFetcher interface {
	History(ctx context.Context, days int) ([]Point, error)
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
