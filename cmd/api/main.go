package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zargusta/fundtracker/internal/config"
	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/fund/store"
	fundHttp "github.com/zargusta/fundtracker/internal/http"
	"github.com/zargusta/fundtracker/internal/http/auth"
	fundHandler "github.com/zargusta/fundtracker/internal/http/fund"
	"github.com/zargusta/fundtracker/internal/importer"
	"github.com/zargusta/fundtracker/internal/price"
	"github.com/zargusta/fundtracker/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeStore()

	client := &http.Client{Timeout: cfg.Price.HTTPTimeout}

	coingecko := price.NewCoinGecko(client, cfg.Price.CoinGeckoURL, cfg.Price.Currency)

	var (
		fundService   = fund.NewService(ctx, repo, fund.WithLogger(logger))
		importService = importer.NewService(fundService)
		prices        = price.NewCache(coingecko,
			price.WithFallback(price.NewBinanceFX(client, cfg.Price.BinanceURL, cfg.Price.FXURL, cfg.Price.Currency, cfg.Price.DefaultFXRate)),
			price.WithHistory(coingecko),
			price.WithTTL(cfg.Price.CacheTTL),
			price.WithLogger(logger),
		)
		authenticator = auth.New(cfg.Admin.Key, cfg.Admin.JWTSecret, cfg.Admin.SessionTTL)
	)

	if cfg.Admin.Key == "" {
		logger.Warn("ADMIN_KEY is not set, admin endpoints are locked")
	}

	jobs, err := scheduler.New(prices, cfg.Price.RefreshInterval, logger)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	if err := jobs.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	defer func() {
		if err := jobs.Stop(); err != nil {
			logger.Error("failed to stop scheduler", "error", err)
		}
	}()

	router := fundHttp.New(
		fundHttp.Options{
			Version:        cfg.App.Version,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Timeout:        cfg.Server.Timeout,
		},
		fundHandler.NewHandler(fundService, prices, cfg.App.Version, time.Now),
		fundHandler.NewAdminHandler(fundService, importService, authenticator),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("starting server", "port", srv.Addr, "store", cfg.Store.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
