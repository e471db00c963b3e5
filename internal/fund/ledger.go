package fund

import (
	"slices"
	"time"
)

type EntryType string

const (
	EntryTypeAll          EntryType = "all"
	EntryTypeContribution EntryType = "contribution"
	EntryTypePurchase     EntryType = "purchase"
)

// LedgerEntry is a contribution or a purchase flattened into one history row.
// Member is empty for purchases; Btc and PriceZar are zero for contributions.
type LedgerEntry struct {
	Date      time.Time
	Type      EntryType
	Member    string
	AmountZar float64
	Btc       float64
	PriceZar  float64
	Notes     string
}

type LedgerFilter struct {
	Type   EntryType
	Member string
	Page   int
	Limit  int
}

type LedgerPage struct {
	Entries []LedgerEntry
	Total   int
	Page    int
	Limit   int
	Pages   int
}

const (
	defaultLedgerLimit = 50
	minLedgerLimit     = 10
	maxLedgerLimit     = 100
)

// Ledger returns the combined contribution and purchase history, newest first.
// The member filter only narrows contributions: purchases belong to the whole fund.
func (s *Service) Ledger(filter LedgerFilter) LedgerPage {
	if filter.Type == "" {
		filter.Type = EntryTypeAll
	}

	page := max(filter.Page, 1)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLedgerLimit
	}

	limit = min(max(limit, minLedgerLimit), maxLedgerLimit)

	s.mu.RLock()

	var entries []LedgerEntry

	if filter.Type == EntryTypeAll || filter.Type == EntryTypeContribution {
		for _, c := range s.state.Contributions {
			if filter.Member != "" && c.MemberName != filter.Member {
				continue
			}

			entries = append(entries, LedgerEntry{
				Date:      c.Date,
				Type:      EntryTypeContribution,
				Member:    c.MemberName,
				AmountZar: c.AmountZar,
			})
		}
	}

	if filter.Type == EntryTypeAll || filter.Type == EntryTypePurchase {
		for _, p := range s.state.Purchases {
			var invested float64
			if p.AmountInvested != nil {
				invested = *p.AmountInvested
			}

			entries = append(entries, LedgerEntry{
				Date:      p.Date,
				Type:      EntryTypePurchase,
				AmountZar: invested,
				Btc:       p.BtcBought,
				PriceZar:  p.PriceZar,
				Notes:     p.Notes,
			})
		}
	}

	s.mu.RUnlock()

	slices.SortStableFunc(entries, func(a, b LedgerEntry) int {
		return b.Date.Compare(a.Date)
	})

	total := len(entries)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	return LedgerPage{
		Entries: entries[start:end],
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   (total + limit - 1) / limit,
	}
}
