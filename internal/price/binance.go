package price

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

const (
	DefaultBinanceURL = "https://api.binance.com/api/v3/ticker/price?symbol=BTCUSDT"
	DefaultFXURL      = "https://open.er-api.com/v6/latest/USD"

	// DefaultZARPerUSD is used when the FX feed answers without a ZAR rate.
	DefaultZARPerUSD = 16.1
)

// BinanceFX derives a local-currency quote from the Binance BTC/USDT ticker and a
// USD exchange rate. It carries no 24h change.
type BinanceFX struct {
	client      *http.Client
	tickerURL   string
	fxURL       string
	currency    string
	defaultRate float64
}

func NewBinanceFX(client *http.Client, tickerURL, fxURL, currency string, defaultRate float64) *BinanceFX {
	if tickerURL == "" {
		tickerURL = DefaultBinanceURL
	}

	if fxURL == "" {
		fxURL = DefaultFXURL
	}

	return &BinanceFX{
		client:      client,
		tickerURL:   tickerURL,
		fxURL:       fxURL,
		currency:    strings.ToUpper(currency),
		defaultRate: defaultRate,
	}
}

func (b *BinanceFX) Fetch(ctx context.Context) (Quote, error) {
	var (
		wg               sync.WaitGroup
		ticker           struct{ Price string }
		fx               any
		tickerErr, fxErr error
	)

	wg.Go(func() { tickerErr = getJSON(ctx, b.client, b.tickerURL, &ticker) })
	wg.Go(func() { fxErr = getJSON(ctx, b.client, b.fxURL, &fx) })
	wg.Wait()

	if tickerErr != nil {
		return Quote{}, fmt.Errorf("binance ticker: %w", tickerErr)
	}

	if fxErr != nil {
		return Quote{}, fmt.Errorf("usd exchange rate: %w", fxErr)
	}

	usd, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return Quote{}, fmt.Errorf("parsing binance price %q: %w", ticker.Price, err)
	}

	rate := decimal.NewFromFloat(b.rate(fx))

	return Quote{
		Local:  usd.Mul(rate).Round(0).InexactFloat64(),
		USD:    usd.Round(0).InexactFloat64(),
		Source: SourceBinanceFallback,
	}, nil
}

// rate reads rates.<CURRENCY> from the FX payload.
func (b *BinanceFX) rate(fx any) float64 {
	v, err := jsonpath.Get("$.rates."+b.currency, fx)
	if err != nil {
		return b.defaultRate
	}

	if list, ok := v.([]any); ok && len(list) > 0 {
		v = list[0]
	}

	r, ok := v.(float64)
	if !ok || r <= 0 {
		return b.defaultRate
	}

	return r
}
