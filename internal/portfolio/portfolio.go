// Package portfolio values the fund against a live price quote.
package portfolio

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/price"
)

// Snapshot is a point-in-time valuation. It is computed per request and never stored.
type Snapshot struct {
	TotalBtc          float64
	ValueZar          float64
	ValueUsd          float64
	TotalInvestedZar  float64
	ProfitLossZar     float64
	ProfitLossPct     float64
	TargetProgressPct float64
	DaysToTarget      int
	PriceZar          float64
	PriceSource       string
	Members           map[string]MemberValue
}

// MemberValue is an active member's equal share valued at the quote price.
type MemberValue struct {
	BtcShare float64
	ValueZar float64
	SharePct float64
}

// Calculate derives a Snapshot. It is pure: the same inputs always give the same output.
//
// Non-finite quote values are treated as zero so that a broken price feed can never
// leak NaN or Inf into the result. Rounding is half away from zero.
func Calculate(summary fund.Summary, info fund.Info, quote price.Quote, now time.Time) Snapshot {
	local := finite(quote.Local)
	usd := finite(quote.USD)

	totalBtc := summary.TotalBtcAcquired
	invested := summary.TotalContributionsZar

	valueZar := totalBtc * local
	pnl := valueZar - invested

	var pnlPct float64
	if invested > 0 {
		pnlPct = pnl / invested * 100
	}

	var progress float64
	if info.TargetAmountZar > 0 {
		progress = min(100, valueZar/info.TargetAmountZar*100)
	}

	members := make(map[string]MemberValue, len(summary.MemberShares))
	for name, share := range summary.MemberShares {
		members[name] = MemberValue{
			BtcShare: share.BtcShare,
			ValueZar: round(share.BtcShare*local, 0),
			SharePct: share.SharePct,
		}
	}

	return Snapshot{
		TotalBtc:          totalBtc,
		ValueZar:          round(valueZar, 0),
		ValueUsd:          round(totalBtc*usd, 0),
		TotalInvestedZar:  invested,
		ProfitLossZar:     round(pnl, 0),
		ProfitLossPct:     round(pnlPct, 2),
		TargetProgressPct: round(progress, 2),
		DaysToTarget:      daysUntil(info.TargetDate, now),
		PriceZar:          local,
		PriceSource:       quote.Source,
		Members:           members,
	}
}

// daysUntil counts partial days as whole ones and never goes below zero.
func daysUntil(target, now time.Time) int {
	if target.IsZero() {
		return 0
	}

	days := math.Ceil(target.Sub(now).Hours() / 24)

	return int(max(0, days))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return v
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(finite(v)).Round(places).InexactFloat64()
}
