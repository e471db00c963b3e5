// Package report renders the fund state as a Markdown document for the CLI and the
// HTML report endpoint.
package report

import (
	"bytes"
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/zargusta/fundtracker/internal/analytics"
	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/portfolio"
	"github.com/zargusta/fundtracker/internal/price"
)

// Ledger is the read side of fund.Service.
type Ledger interface {
	Summary() fund.Summary
	Info() fund.Info
	Members() []fund.Member
	Contributions() []fund.Contribution
	Purchases() []fund.Purchase
}

type Input struct {
	Info      fund.Info
	Summary   fund.Summary
	Portfolio portfolio.Snapshot
	Analytics analytics.Result
	Now       time.Time
}

// Build gathers everything the report shows, valued at quote.
func Build(l Ledger, quote price.Quote, now time.Time) Input {
	summary := l.Summary()
	info := l.Info()

	return Input{
		Info:      info,
		Summary:   summary,
		Portfolio: portfolio.Calculate(summary, info, quote, now),
		Analytics: analytics.Compute(l.Contributions(), l.Purchases(), l.Members(), now),
		Now:       now,
	}
}

// ZAR formats a rand amount with the currency's grapheme and grouping.
func ZAR(v float64) string {
	return money.NewFromFloat(v, money.ZAR).Display()
}

// BTC formats a bitcoin amount to satoshi precision.
func BTC(v float64) string {
	return fmt.Sprintf("%.8f BTC", v)
}

func Markdown(in Input) string {
	var b strings.Builder

	name := in.Info.Name
	if name == "" {
		name = "Fund"
	}

	fmt.Fprintf(&b, "# %s\n\n", name)

	if in.Info.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", in.Info.Description)
	}

	fmt.Fprintf(&b, "Report generated %s.\n\n", in.Now.Format("2 January 2006 15:04 MST"))

	writePortfolio(&b, in)
	writeShares(&b, in.Portfolio)
	writeMonthly(&b, in.Analytics.Monthly)
	writeStreaks(&b, in.Analytics)

	return b.String()
}

func writePortfolio(b *strings.Builder, in Input) {
	p := in.Portfolio

	b.WriteString("## Portfolio\n\n")
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(b, "| Holdings | %s |\n", BTC(p.TotalBtc))
	fmt.Fprintf(b, "| BTC price | %s (%s) |\n", ZAR(p.PriceZar), p.PriceSource)
	fmt.Fprintf(b, "| Value | %s |\n", ZAR(p.ValueZar))
	fmt.Fprintf(b, "| Invested | %s |\n", ZAR(p.TotalInvestedZar))
	fmt.Fprintf(b, "| Profit/loss | %s (%+.2f%%) |\n", ZAR(p.ProfitLossZar), p.ProfitLossPct)

	if in.Info.TargetAmountZar > 0 {
		fmt.Fprintf(b, "| Target | %s by %s |\n", ZAR(in.Info.TargetAmountZar), in.Info.TargetDate.Format(time.DateOnly))
		fmt.Fprintf(b, "| Progress | %.2f%% |\n", p.TargetProgressPct)
		fmt.Fprintf(b, "| Days to target | %d |\n", p.DaysToTarget)
	}

	fmt.Fprintf(b, "| Active members | %d of %d |\n\n", in.Summary.ActiveMembers, in.Summary.TotalMembersAllTime)
}

func writeShares(b *strings.Builder, p portfolio.Snapshot) {
	if len(p.Members) == 0 {
		return
	}

	b.WriteString("## Member shares\n\n")
	b.WriteString("| Member | Share | BTC | Value |\n|---|---:|---:|---:|\n")

	for _, name := range slices.Sorted(maps.Keys(p.Members)) {
		m := p.Members[name]
		fmt.Fprintf(b, "| %s | %.2f%% | %s | %s |\n", name, m.SharePct, BTC(m.BtcShare), ZAR(m.ValueZar))
	}

	b.WriteString("\n")
}

func writeMonthly(b *strings.Builder, monthly []analytics.MonthlySnapshot) {
	if len(monthly) == 0 {
		return
	}

	b.WriteString("## Monthly\n\n")
	b.WriteString("| Month | Contributed | Cumulative | BTC bought | Avg cost | Active |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")

	for _, m := range monthly {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %d |\n",
			m.Month, ZAR(m.ContributionsZar), ZAR(m.CumulativeInvestedZar),
			BTC(m.BtcBought), ZAR(m.AvgCostBasis), m.ActiveMembers)
	}

	b.WriteString("\n")
}

func writeStreaks(b *strings.Builder, a analytics.Result) {
	b.WriteString("## Contributions\n\n")
	fmt.Fprintf(b, "- Current streak: %d months\n", a.Streaks.Current)
	fmt.Fprintf(b, "- Longest streak: %d months\n", a.Streaks.Longest)

	if len(a.Streaks.MissedMonths) > 0 {
		fmt.Fprintf(b, "- Missed months: %s\n", strings.Join(a.Streaks.MissedMonths, ", "))
	}

	if a.Stats.TotalMonths > 0 {
		fmt.Fprintf(b, "- Average per month: %s\n", ZAR(a.Stats.AvgMonthlyZar))
		fmt.Fprintf(b, "- Best month: %s (%s)\n", a.Stats.MaxMonthLabel, ZAR(a.Stats.MaxMonthZar))
	}

	if a.CostBasis.TotalBtc > 0 {
		fmt.Fprintf(b, "- Weighted average cost: %s per BTC\n", ZAR(a.CostBasis.WeightedAvgZar))
	}
}

// HTML renders a Markdown report as a standalone HTML page.
func HTML(markdown, title string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	page.WriteString(html.EscapeString(title))
	page.WriteString("</title></head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")

	return page.Bytes(), nil
}
