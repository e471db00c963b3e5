// Package analytics derives time-series statistics from the fund ledger.
package analytics

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zargusta/fundtracker/internal/fund"
)

const monthLayout = "2006-01"

type MonthlySnapshot struct {
	Month                 string
	ContributionsZar      float64
	CumulativeInvestedZar float64
	BtcBought             float64
	CumulativeBtc         float64
	AvgCostBasis          float64
	ActiveMembers         int
	Contributors          []string
}

// MemberAnalytics reports what a member paid in. SharePercent is proportional to
// contributions and is unrelated to the equal ownership split in fund.Summary.
type MemberAnalytics struct {
	Name              string
	TotalContributed  float64
	ContributionCount int
	FirstContribution time.Time
	LastContribution  time.Time
	SharePercent      float64
	Status            fund.Status
}

type Streaks struct {
	Current      int
	Longest      int
	MissedMonths []string
}

type CostBasis struct {
	WeightedAvgZar   float64
	TotalInvestedZar float64
	TotalBtc         float64
}

type ContributionStats struct {
	AvgMonthlyZar float64
	MaxMonthZar   float64
	MaxMonthLabel string
	TotalMonths   int
}

type Result struct {
	Monthly   []MonthlySnapshot
	Members   []MemberAnalytics
	Streaks   Streaks
	CostBasis CostBasis
	Stats     ContributionStats
}

type monthContrib struct {
	total float64
	names []string
}

type monthPurchase struct {
	btc   float64
	spent float64
}

type memberTotal struct {
	total       float64
	count       int
	first, last time.Time
}

// Compute runs the full analytics pass. It does no I/O and does not modify its inputs;
// now only decides the last month of the streak window.
func Compute(contributions []fund.Contribution, purchases []fund.Purchase, members []fund.Member, now time.Time) Result {
	// Contribution months keep first-seen order; the max-month label depends on it.
	var contribOrder []string

	byMonth := make(map[string]*monthContrib)

	for _, c := range contributions {
		key := c.Date.Format(monthLayout)

		mc, ok := byMonth[key]
		if !ok {
			mc = &monthContrib{}
			byMonth[key] = mc
			contribOrder = append(contribOrder, key)
		}

		mc.total += c.AmountZar

		if !slices.Contains(mc.names, c.MemberName) {
			mc.names = append(mc.names, c.MemberName)
		}
	}

	bought := make(map[string]*monthPurchase)

	for _, p := range purchases {
		key := p.Date.Format(monthLayout)

		mp, ok := bought[key]
		if !ok {
			mp = &monthPurchase{}
			bought[key] = mp
		}

		mp.btc += p.BtcBought
		mp.spent += p.Cost()
	}

	months := slices.Clone(contribOrder)
	for key := range bought {
		if _, ok := byMonth[key]; !ok {
			months = append(months, key)
		}
	}

	slices.Sort(months)

	return Result{
		Monthly:   snapshots(months, byMonth, bought, members),
		Members:   memberAnalytics(contributions, members),
		Streaks:   streaks(months, byMonth, now),
		CostBasis: costBasis(purchases),
		Stats:     stats(contribOrder, byMonth),
	}
}

func snapshots(months []string, byMonth map[string]*monthContrib, bought map[string]*monthPurchase, members []fund.Member) []MonthlySnapshot {
	out := make([]MonthlySnapshot, 0, len(months))

	var cumInvested, cumBtc, cumSpent float64

	for _, key := range months {
		snap := MonthlySnapshot{Month: key, Contributors: []string{}}

		if mc, ok := byMonth[key]; ok {
			snap.ContributionsZar = mc.total
			snap.Contributors = slices.Clone(mc.names)
		}

		if mp, ok := bought[key]; ok {
			snap.BtcBought = mp.btc
			cumBtc += mp.btc
			cumSpent += mp.spent
		}

		cumInvested += snap.ContributionsZar

		snap.CumulativeInvestedZar = cumInvested
		snap.CumulativeBtc = cumBtc

		if cumBtc > 0 {
			snap.AvgCostBasis = round(cumSpent/cumBtc, 0)
		}

		snap.ActiveMembers = activeAt(members, monthEnd(key))

		out = append(out, snap)
	}

	return out
}

// monthEnd approximates the end of a month by its 28th day, which every month has.
// Members joining or leaving on the 29th to 31st are counted as if in the next month.
func monthEnd(key string) time.Time {
	t, _ := time.Parse(monthLayout, key)
	return time.Date(t.Year(), t.Month(), 28, 0, 0, 0, 0, time.UTC)
}

func activeAt(members []fund.Member, end time.Time) int {
	n := 0

	for _, m := range members {
		if m.JoinedDate.After(end) {
			continue
		}

		if m.LeaveDate != nil && m.LeaveDate.Before(end) {
			continue
		}

		n++
	}

	return n
}

func memberAnalytics(contributions []fund.Contribution, members []fund.Member) []MemberAnalytics {
	totals := make(map[string]*memberTotal)

	var grand float64

	for _, c := range contributions {
		mt, ok := totals[c.MemberName]
		if !ok {
			mt = &memberTotal{first: c.Date, last: c.Date}
			totals[c.MemberName] = mt
		}

		mt.total += c.AmountZar
		mt.count++

		if c.Date.Before(mt.first) {
			mt.first = c.Date
		}

		if c.Date.After(mt.last) {
			mt.last = c.Date
		}

		grand += c.AmountZar
	}

	out := make([]MemberAnalytics, 0, len(members))

	for _, m := range members {
		ma := MemberAnalytics{Name: m.Name, Status: m.Status}

		if mt, ok := totals[m.Name]; ok {
			ma.TotalContributed = mt.total
			ma.ContributionCount = mt.count
			ma.FirstContribution = mt.first
			ma.LastContribution = mt.last
		}

		if grand > 0 {
			ma.SharePercent = round(ma.TotalContributed/grand*100, 2)
		}

		out = append(out, ma)
	}

	slices.SortStableFunc(out, func(a, b MemberAnalytics) int {
		switch {
		case a.TotalContributed > b.TotalContributed:
			return -1
		case a.TotalContributed < b.TotalContributed:
			return 1
		default:
			return 0
		}
	})

	return out
}

// streaks walks every calendar month from the first observed month through the
// month of now. A month is hit when it has at least one contribution.
func streaks(months []string, byMonth map[string]*monthContrib, now time.Time) Streaks {
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	start := current
	if len(months) > 0 {
		start, _ = time.Parse(monthLayout, months[0])
	}

	s := Streaks{MissedMonths: []string{}}

	var hits []bool

	for m := start; !m.After(current); m = m.AddDate(0, 1, 0) {
		key := m.Format(monthLayout)

		_, hit := byMonth[key]
		if !hit {
			s.MissedMonths = append(s.MissedMonths, key)
		}

		hits = append(hits, hit)
	}

	for i := len(hits) - 1; i >= 0 && hits[i]; i-- {
		s.Current++
	}

	run := 0

	for _, hit := range hits {
		if !hit {
			run = 0
			continue
		}

		run++
		s.Longest = max(s.Longest, run)
	}

	return s
}

func costBasis(purchases []fund.Purchase) CostBasis {
	var cb CostBasis

	for _, p := range purchases {
		cb.TotalInvestedZar += p.Cost()
		cb.TotalBtc += p.BtcBought
	}

	if cb.TotalBtc > 0 {
		cb.WeightedAvgZar = round(cb.TotalInvestedZar/cb.TotalBtc, 0)
	}

	return cb
}

func stats(order []string, byMonth map[string]*monthContrib) ContributionStats {
	st := ContributionStats{TotalMonths: len(order)}
	if len(order) == 0 {
		return st
	}

	var sum float64

	for _, key := range order {
		total := byMonth[key].total
		sum += total

		if total > st.MaxMonthZar {
			st.MaxMonthZar = total
		}
	}

	// First month in insertion order that reaches the max.
	for _, key := range order {
		if byMonth[key].total == st.MaxMonthZar {
			st.MaxMonthLabel = key
			break
		}
	}

	st.AvgMonthlyZar = round(sum/float64(len(order)), 0)

	return st
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
