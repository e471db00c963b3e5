package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zargusta/fundtracker/internal/analytics"
	"github.com/zargusta/fundtracker/internal/fund"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func contribution(date time.Time, name string, amount float64) fund.Contribution {
	return fund.Contribution{Date: date, MemberName: name, AmountZar: amount, Type: fund.ContributionTypeContribution}
}

func TestCompute_Streaks(t *testing.T) {
	type testCase struct {
		name          string
		contributions []fund.Contribution
		purchases     []fund.Purchase
		now           time.Time
		want          analytics.Streaks
	}

	tests := []testCase{
		{
			name: "GapBreaksCurrentStreak",
			contributions: []fund.Contribution{
				contribution(day(2025, 1, 5), "Alice", 100),
				contribution(day(2025, 2, 5), "Alice", 100),
				contribution(day(2025, 4, 5), "Alice", 100),
			},
			now:  day(2025, 4, 20),
			want: analytics.Streaks{Current: 1, Longest: 2, MissedMonths: []string{"2025-03"}},
		},
		{
			name: "CurrentMonthNotYetPaid",
			contributions: []fund.Contribution{
				contribution(day(2024, 11, 1), "Alice", 100),
				contribution(day(2024, 12, 1), "Bob", 100),
				contribution(day(2025, 1, 1), "Alice", 100),
			},
			now:  day(2025, 2, 10),
			want: analytics.Streaks{Current: 0, Longest: 3, MissedMonths: []string{"2025-02"}},
		},
		{
			name: "PurchaseMonthStartsWindow",
			contributions: []fund.Contribution{
				contribution(day(2025, 2, 1), "Alice", 100),
			},
			purchases: []fund.Purchase{{Date: day(2024, 12, 15), BtcBought: 0.01, PriceZar: 1_000_000}},
			now:       day(2025, 2, 28),
			want:      analytics.Streaks{Current: 1, Longest: 1, MissedMonths: []string{"2024-12", "2025-01"}},
		},
		{
			name: "Empty",
			now:  day(2025, 2, 28),
			want: analytics.Streaks{MissedMonths: []string{"2025-02"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analytics.Compute(tt.contributions, tt.purchases, nil, tt.now)
			assert.Equal(t, tt.want, got.Streaks)
		})
	}
}

func TestCompute_MonthlySnapshots(t *testing.T) {
	members := []fund.Member{
		{ID: 1, Name: "Alice", JoinedDate: day(2025, 1, 1), Status: fund.StatusActive},
		{ID: 2, Name: "Bob", JoinedDate: day(2025, 1, 28), Status: fund.StatusActive},
		{ID: 3, Name: "Charlie", JoinedDate: day(2025, 1, 29), Status: fund.StatusActive},
		{ID: 4, Name: "Dana", JoinedDate: day(2024, 6, 1), LeaveDate: new(day(2025, 2, 27)), Status: fund.StatusLeft},
	}

	contributions := []fund.Contribution{
		contribution(day(2025, 1, 3), "Alice", 1000),
		contribution(day(2025, 1, 4), "Bob", 500),
		contribution(day(2025, 1, 9), "Alice", 250),
		contribution(day(2025, 3, 2), "Charlie", 2000),
	}

	purchases := []fund.Purchase{
		{Date: day(2025, 1, 10), BtcBought: 0.001, PriceZar: 1_000_000, AmountInvested: new(1200.0)},
		{Date: day(2025, 2, 14), BtcBought: 0.002, PriceZar: 1_100_000},
	}

	got := analytics.Compute(contributions, purchases, members, day(2025, 3, 31))
	require.Len(t, got.Monthly, 3)

	jan, feb, mar := got.Monthly[0], got.Monthly[1], got.Monthly[2]

	assert.Equal(t, "2025-01", jan.Month)
	assert.Equal(t, 1750.0, jan.ContributionsZar)
	assert.Equal(t, 1750.0, jan.CumulativeInvestedZar)
	assert.Equal(t, []string{"Alice", "Bob"}, jan.Contributors)
	assert.InDelta(t, 0.001, jan.CumulativeBtc, 1e-12)
	assert.Equal(t, 1_200_000.0, jan.AvgCostBasis)
	// Alice, Bob (joined on the 28th) and Dana; Charlie joined after the 28th.
	assert.Equal(t, 3, jan.ActiveMembers)

	assert.Equal(t, "2025-02", feb.Month)
	assert.Zero(t, feb.ContributionsZar)
	assert.Equal(t, 1750.0, feb.CumulativeInvestedZar)
	assert.Equal(t, []string{}, feb.Contributors)
	assert.InDelta(t, 0.003, feb.CumulativeBtc, 1e-12)
	assert.Equal(t, 1_133_333.0, feb.AvgCostBasis)
	// Dana left before the 28th.
	assert.Equal(t, 3, feb.ActiveMembers)

	assert.Equal(t, "2025-03", mar.Month)
	assert.Equal(t, 3750.0, mar.CumulativeInvestedZar)
	assert.Equal(t, []string{"Charlie"}, mar.Contributors)
	assert.Equal(t, 3, mar.ActiveMembers)

	assert.Equal(t, analytics.CostBasis{WeightedAvgZar: 1_133_333, TotalInvestedZar: 3400, TotalBtc: 0.003}, roundBtc(got.CostBasis))
}

func roundBtc(cb analytics.CostBasis) analytics.CostBasis {
	cb.TotalBtc = float64(int(cb.TotalBtc*1e8+0.5)) / 1e8
	return cb
}

func TestCompute_MemberAnalytics(t *testing.T) {
	members := []fund.Member{
		{ID: 1, Name: "Alice", Status: fund.StatusActive},
		{ID: 2, Name: "Bob", Status: fund.StatusActive},
		{ID: 3, Name: "Charlie", Status: fund.StatusLeft},
		{ID: 4, Name: "Erin", Status: fund.StatusActive},
	}

	contributions := []fund.Contribution{
		contribution(day(2025, 2, 1), "Bob", 1000),
		contribution(day(2025, 1, 1), "Bob", 1000),
		contribution(day(2025, 1, 1), "Alice", 3000),
		contribution(day(2025, 1, 1), "Charlie", 1000),
		// A contributor who is no longer in the member list still counts towards the total.
		contribution(day(2025, 1, 1), "Old Name", 1000),
	}

	got := analytics.Compute(contributions, nil, members, day(2025, 2, 15)).Members
	require.Len(t, got, 4)

	assert.Equal(t, "Alice", got[0].Name)
	assert.Equal(t, 3000.0, got[0].TotalContributed)
	assert.Equal(t, 42.86, got[0].SharePercent)

	assert.Equal(t, "Bob", got[1].Name)
	assert.Equal(t, 2, got[1].ContributionCount)
	assert.Equal(t, day(2025, 1, 1), got[1].FirstContribution)
	assert.Equal(t, day(2025, 2, 1), got[1].LastContribution)
	assert.Equal(t, 28.57, got[1].SharePercent)

	assert.Equal(t, "Charlie", got[2].Name)
	assert.Equal(t, fund.StatusLeft, got[2].Status)
	assert.Equal(t, 14.29, got[2].SharePercent)

	assert.Equal(t, "Erin", got[3].Name)
	assert.Zero(t, got[3].TotalContributed)
	assert.Zero(t, got[3].SharePercent)
	assert.True(t, got[3].FirstContribution.IsZero())
}

func TestCompute_ContributionStats(t *testing.T) {
	contributions := []fund.Contribution{
		contribution(day(2025, 3, 1), "Alice", 1500),
		contribution(day(2025, 1, 1), "Alice", 1000),
		contribution(day(2025, 1, 2), "Bob", 500),
		contribution(day(2025, 2, 1), "Alice", 700),
	}

	got := analytics.Compute(contributions, nil, nil, day(2025, 3, 31)).Stats

	// March and January tie; March was seen first.
	assert.Equal(t, analytics.ContributionStats{
		AvgMonthlyZar: 1233,
		MaxMonthZar:   1500,
		MaxMonthLabel: "2025-03",
		TotalMonths:   3,
	}, got)
}

func TestCompute_Empty(t *testing.T) {
	got := analytics.Compute(nil, nil, nil, day(2025, 3, 31))

	assert.Empty(t, got.Monthly)
	assert.Empty(t, got.Members)
	assert.Equal(t, analytics.CostBasis{}, got.CostBasis)
	assert.Equal(t, analytics.ContributionStats{}, got.Stats)
}
