package price

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

type CoinGecko struct {
	client   *http.Client
	baseURL  string
	currency string
}

// NewCoinGecko returns a client for the free CoinGecko API quoting in currency
// (lower case ISO code, e.g. "zar") and USD.
func NewCoinGecko(client *http.Client, baseURL, currency string) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}

	return &CoinGecko{
		client:   client,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		currency: strings.ToLower(currency),
	}
}

func (c *CoinGecko) Fetch(ctx context.Context) (Quote, error) {
	q := url.Values{}
	q.Set("ids", "bitcoin")
	q.Set("vs_currencies", c.currency+",usd")
	q.Set("include_24hr_change", "true")

	var body map[string]map[string]float64
	if err := getJSON(ctx, c.client, c.baseURL+"/simple/price?"+q.Encode(), &body); err != nil {
		return Quote{}, fmt.Errorf("coingecko price: %w", err)
	}

	btc, ok := body["bitcoin"]
	if !ok {
		return Quote{}, fmt.Errorf("coingecko price: missing bitcoin entry")
	}

	local, ok := btc[c.currency]
	if !ok {
		return Quote{}, fmt.Errorf("coingecko price: missing %s quote", c.currency)
	}

	return Quote{
		Local:          local,
		USD:            btc["usd"],
		Local24hChange: btc[c.currency+"_24h_change"],
		USD24hChange:   btc["usd_24h_change"],
		Source:         SourceCoinGecko,
	}, nil
}

// History returns daily-or-finer prices for the last days, rounded to whole units.
func (c *CoinGecko) History(ctx context.Context, days int) ([]Point, error) {
	q := url.Values{}
	q.Set("vs_currency", c.currency)
	q.Set("days", strconv.Itoa(days))

	var body struct {
		Prices [][2]float64 `json:"prices"`
	}

	if err := getJSON(ctx, c.client, c.baseURL+"/coins/bitcoin/market_chart?"+q.Encode(), &body); err != nil {
		return nil, fmt.Errorf("coingecko history: %w", err)
	}

	points := make([]Point, 0, len(body.Prices))

	for _, p := range body.Prices {
		ts := time.UnixMilli(int64(p[0])).UTC()

		points = append(points, Point{
			Date:       time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
			PriceLocal: decimal.NewFromFloat(p[1]).Round(0).InexactFloat64(),
		})
	}

	return points, nil
}
