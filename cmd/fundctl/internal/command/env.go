// Package command implements the fundctl subcommands. Each command works
// directly against the configured store, so it must not run next to a live API
// server writing the same file store.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/zargusta/fundtracker/internal/config"
	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/fund/store"
	"github.com/zargusta/fundtracker/internal/price"
)

// Quoter is the live price source used by the valuation commands.
type Quoter interface {
	Current(ctx context.Context) price.Quote
}

// Env is shared by every command of one invocation.
type Env struct {
	Config *config.Config
	Out    io.Writer
	Err    io.Writer
	Now    func() time.Time

	// Plain prints markdown as is instead of rendering it for the terminal.
	Plain bool

	// Prices defaults to the CoinGecko feed with the Binance fallback.
	Prices Quoter

	service *fund.Service
	closeFn func() error
}

// Service opens the store on first use.
func (e *Env) Service(ctx context.Context) (*fund.Service, error) {
	if e.service != nil {
		return e.service, nil
	}

	repo, closeFn, err := store.Open(ctx, e.Config)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	e.closeFn = closeFn
	e.service = fund.NewService(ctx, repo, fund.WithClock(e.Now))

	return e.service, nil
}

func (e *Env) Close() error {
	if e.closeFn == nil {
		return nil
	}

	return e.closeFn()
}

func (e *Env) Quote(ctx context.Context) price.Quote {
	if e.Prices == nil {
		cfg := e.Config.Price
		client := &http.Client{Timeout: cfg.HTTPTimeout}

		e.Prices = price.NewCache(
			price.NewCoinGecko(client, cfg.CoinGeckoURL, cfg.Currency),
			price.WithFallback(price.NewBinanceFX(client, cfg.BinanceURL, cfg.FXURL, cfg.Currency, cfg.DefaultFXRate)),
		)
	}

	return e.Prices.Current(ctx)
}

// fail reports err on the error stream and maps it to an exit status.
func (e *Env) fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(e.Err, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func (e *Env) usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.Err, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

func (e *Env) printMarkdown(md string) error {
	if e.Plain {
		_, err := io.WriteString(e.Out, md)
		return err
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}

	_, err = io.WriteString(e.Out, out)

	return err
}

// printJSON writes v as indented JSON. A non-empty path selects part of the
// document first; a string selection is printed bare so it can feed a shell.
func (e *Env) printJSON(v any, path string) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decoding: %w", err)
	}

	if path != "" {
		doc, err = jsonpath.Get(path, doc)
		if err != nil {
			return fmt.Errorf("evaluating %q: %w", path, err)
		}

		// A filter expression yields a list even for a single match.
		if list, ok := doc.([]any); ok && len(list) == 1 {
			doc = list[0]
		}
	}

	if s, ok := doc.(string); ok {
		_, err = fmt.Fprintln(e.Out, s)
		return err
	}

	enc := json.NewEncoder(e.Out)
	enc.SetIndent("", "  ")

	return enc.Encode(doc)
}
