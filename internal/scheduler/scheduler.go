// Package scheduler runs the background jobs of the API server.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/zargusta/fundtracker/internal/price"
)

const refreshTimeout = 30 * time.Second

// QuoteSource is satisfied by *price.Cache.
type QuoteSource interface {
	Current(ctx context.Context) price.Quote
}

// Scheduler keeps the price cache warm so that request handlers rarely wait on
// the upstream API.
type Scheduler struct {
	scheduler gocron.Scheduler
	prices    QuoteSource
	interval  time.Duration
	logger    *slog.Logger
}

func New(prices QuoteSource, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		prices:    prices,
		interval:  interval,
		logger:    logger,
	}, nil
}

// Start registers the jobs and starts the scheduler. The first price refresh runs immediately.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.refreshPrice),
		gocron.WithName("price-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("registering price-refresh job: %w", err)
	}

	s.scheduler.Start()
	s.logger.Info("scheduler started", "price_refresh_interval", s.interval)

	return nil
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) refreshPrice() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	q := s.prices.Current(ctx)

	if q.Source == price.SourceUnavailable {
		s.logger.Warn("price refresh found no usable quote")
		return
	}

	s.logger.Info("price refreshed", "source", q.Source, "local", q.Local, "usd", q.USD)
}
