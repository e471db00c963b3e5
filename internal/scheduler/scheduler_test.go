package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zargusta/fundtracker/internal/price"
	"github.com/zargusta/fundtracker/internal/scheduler"
)

type countingSource struct {
	calls atomic.Int32
}

func (c *countingSource) Current(context.Context) price.Quote {
	c.calls.Add(1)
	return price.Quote{Local: 1, Source: price.SourceCoinGecko}
}

func TestScheduler_RefreshesPrice(t *testing.T) {
	src := &countingSource{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := scheduler.New(src, 50*time.Millisecond, logger)
	require.NoError(t, err)

	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return src.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
}
