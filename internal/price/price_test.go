package price_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zargusta/fundtracker/internal/price"
)

func TestCoinGecko_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin", r.URL.Query().Get("ids"))
		assert.Equal(t, "zar,usd", r.URL.Query().Get("vs_currencies"))
		assert.Equal(t, "true", r.URL.Query().Get("include_24hr_change"))

		w.Write([]byte(`{"bitcoin":{"zar":1850000.5,"usd":101000,"zar_24h_change":-1.25,"usd_24h_change":0.5}}`))
	}))
	defer srv.Close()

	q, err := price.NewCoinGecko(srv.Client(), srv.URL, "ZAR").Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, price.Quote{
		Local:          1850000.5,
		USD:            101000,
		Local24hChange: -1.25,
		USD24hChange:   0.5,
		Source:         price.SourceCoinGecko,
	}, q)
}

func TestCoinGecko_FetchErrors(t *testing.T) {
	type testCase struct {
		name        string
		status      int
		body        string
		rateLimited bool
	}

	tests := []testCase{
		{name: "RateLimited", status: http.StatusTooManyRequests, rateLimited: true},
		{name: "ServerError", status: http.StatusBadGateway},
		{name: "MissingCoin", status: http.StatusOK, body: `{}`},
		{name: "Garbage", status: http.StatusOK, body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := price.NewCoinGecko(srv.Client(), srv.URL, "zar").Fetch(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.rateLimited, errors.Is(err, price.ErrRateLimited))
		})
	}
}

func TestCoinGecko_History(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		assert.Equal(t, "zar", r.URL.Query().Get("vs_currency"))

		w.Write([]byte(`{"prices":[[1735689600000,1700000.4],[1735776000000,1712345.5]]}`))
	}))
	defer srv.Close()

	points, err := price.NewCoinGecko(srv.Client(), srv.URL, "zar").History(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, []price.Point{
		{Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), PriceLocal: 1700000},
		{Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), PriceLocal: 1712346},
	}, points)
}

func TestBinanceFX_Fetch(t *testing.T) {
	type testCase struct {
		name      string
		fxBody    string
		wantLocal float64
	}

	tests := []testCase{
		{name: "RateFromFeed", fxBody: `{"result":"success","rates":{"USD":1,"ZAR":18.5}}`, wantLocal: 1850000},
		{name: "MissingRate", fxBody: `{"result":"success","rates":{"USD":1}}`, wantLocal: 1610000},
		{name: "NoRates", fxBody: `{"result":"error"}`, wantLocal: 1610000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/ticker", func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"symbol":"BTCUSDT","price":"100000.00000000"}`))
			})
			mux.HandleFunc("/fx", func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(tt.fxBody))
			})

			srv := httptest.NewServer(mux)
			defer srv.Close()

			b := price.NewBinanceFX(srv.Client(), srv.URL+"/ticker", srv.URL+"/fx", "zar", price.DefaultZARPerUSD)

			q, err := b.Fetch(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantLocal, q.Local)
			assert.Equal(t, 100000.0, q.USD)
			assert.Zero(t, q.Local24hChange)
			assert.Equal(t, price.SourceBinanceFallback, q.Source)
		})
	}
}

func TestBinanceFX_TickerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := price.NewBinanceFX(srv.Client(), srv.URL, srv.URL, "zar", price.DefaultZARPerUSD).Fetch(context.Background())
	assert.Error(t, err)
}

type fakeFetcher struct {
	calls   int
	results []result
}

type result struct {
	quote price.Quote
	err   error
}

func (f *fakeFetcher) Fetch(context.Context) (price.Quote, error) {
	r := f.results[min(f.calls, len(f.results)-1)]
	f.calls++

	return r.quote, r.err
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCache_Current(t *testing.T) {
	live := price.Quote{Local: 1_800_000, USD: 100_000, Source: price.SourceCoinGecko}
	fallbackQuote := price.Quote{Local: 1_610_000, USD: 100_000, Source: price.SourceBinanceFallback}
	boom := errors.New("boom")

	t.Run("ServesFreshQuoteWithinTTL", func(t *testing.T) {
		clk := &fakeClock{t: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)}
		primary := &fakeFetcher{results: []result{{quote: live}}}
		c := price.NewCache(primary, price.WithClock(clk.now))

		first := c.Current(context.Background())
		clk.advance(time.Minute)
		second := c.Current(context.Background())

		assert.Equal(t, 1, primary.calls)
		assert.Equal(t, first, second)
		assert.Equal(t, price.SourceCoinGecko, second.Source)
		assert.Equal(t, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC), second.Timestamp)

		clk.advance(2 * time.Minute)
		c.Current(context.Background())
		assert.Equal(t, 2, primary.calls)
	})

	t.Run("RateLimitBacksOff", func(t *testing.T) {
		clk := &fakeClock{t: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)}
		primary := &fakeFetcher{results: []result{{quote: live}, {err: price.ErrRateLimited}}}
		c := price.NewCache(primary, price.WithClock(clk.now))

		c.Current(context.Background())
		clk.advance(3 * time.Minute)

		stale := c.Current(context.Background())
		assert.Equal(t, price.SourceCache, stale.Source)
		assert.Equal(t, live.Local, stale.Local)
		assert.Equal(t, 2, primary.calls)

		// Still inside the 5 minute back-off.
		clk.advance(4 * time.Minute)
		c.Current(context.Background())
		assert.Equal(t, 2, primary.calls)

		clk.advance(2 * time.Minute)
		c.Current(context.Background())
		assert.Equal(t, 3, primary.calls)
	})

	t.Run("ErrorExtendsByTTL", func(t *testing.T) {
		clk := &fakeClock{t: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)}
		primary := &fakeFetcher{results: []result{{quote: live}, {err: boom}}}
		c := price.NewCache(primary, price.WithClock(clk.now))

		c.Current(context.Background())
		clk.advance(3 * time.Minute)
		assert.Equal(t, price.SourceCache, c.Current(context.Background()).Source)

		clk.advance(3 * time.Minute)
		c.Current(context.Background())
		assert.Equal(t, 3, primary.calls)
	})

	t.Run("FallbackWhenNothingCached", func(t *testing.T) {
		primary := &fakeFetcher{results: []result{{err: boom}}}
		fallback := &fakeFetcher{results: []result{{quote: fallbackQuote}}}
		c := price.NewCache(primary, price.WithFallback(fallback))

		q := c.Current(context.Background())
		assert.Equal(t, price.SourceBinanceFallback, q.Source)
		assert.Equal(t, 1_610_000.0, q.Local)

		// The fallback quote is cached like any other.
		c.Current(context.Background())
		assert.Equal(t, 1, primary.calls)
		assert.Equal(t, 1, fallback.calls)
	})

	t.Run("Unavailable", func(t *testing.T) {
		primary := &fakeFetcher{results: []result{{err: boom}}}
		fallback := &fakeFetcher{results: []result{{err: boom}}}
		c := price.NewCache(primary, price.WithFallback(fallback))

		q := c.Current(context.Background())
		assert.Equal(t, price.SourceUnavailable, q.Source)
		assert.Zero(t, q.Local)
		assert.Zero(t, q.USD)
		assert.False(t, q.Timestamp.IsZero())
	})
}

type blockingFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	quote   price.Quote
}

func (f *blockingFetcher) Fetch(context.Context) (price.Quote, error) {
	if f.calls.Add(1) == 1 {
		close(f.started)
	}

	<-f.release

	return f.quote, nil
}

func TestCache_Current_SharesSlowRefresh(t *testing.T) {
	primary := &blockingFetcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
		quote:   price.Quote{Local: 1_800_000, Source: price.SourceCoinGecko},
	}
	c := price.NewCache(primary)

	const callers = 8

	var wg sync.WaitGroup

	quotes := make([]price.Quote, callers)

	for i := range callers {
		wg.Go(func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// The first caller abandoning its context must not spoil the shared refresh.
			if i == 0 {
				cancel()
			}

			quotes[i] = c.Current(ctx)
		})
	}

	<-primary.started
	close(primary.release)
	wg.Wait()

	assert.Equal(t, int32(1), primary.calls.Load())

	for _, q := range quotes {
		assert.Equal(t, price.SourceCoinGecko, q.Source)
		assert.Equal(t, 1_800_000.0, q.Local)
	}
}

type fakeHistory struct {
	points []price.Point
	err    error
}

func (f fakeHistory) History(context.Context, int) ([]price.Point, error) {
	return f.points, f.err
}

func TestCache_History(t *testing.T) {
	points := []price.Point{{Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), PriceLocal: 1}}

	c := price.NewCache(&fakeFetcher{}, price.WithHistory(fakeHistory{points: points}))
	assert.Equal(t, points, c.History(context.Background(), 30))

	c = price.NewCache(&fakeFetcher{}, price.WithHistory(fakeHistory{err: errors.New("down")}))
	got := c.History(context.Background(), 30)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	c = price.NewCache(&fakeFetcher{})
	assert.Empty(t, c.History(context.Background(), 30))
}
