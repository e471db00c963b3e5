package fund

import (
	"maps"
	"time"
)

// buildSummary derives the fund summary from the ledger state.
//
// Ownership is split equally among active members regardless of how much each one
// contributed; MemberContributions only reports the money trail.
func buildSummary(s *State, now time.Time) *Summary {
	contributions := make(map[string]float64)
	for _, c := range s.Contributions {
		contributions[c.MemberName] += c.AmountZar
	}

	// Buyouts replay in order: the buyer absorbs the amount, the seller is zeroed.
	for _, b := range s.Buyouts {
		contributions[b.Buyer] += b.AmountZar
		contributions[b.Seller] = 0
	}

	var total float64
	for _, v := range contributions {
		total += v
	}

	var active []Member
	for _, m := range s.Members {
		if m.Status == StatusActive {
			active = append(active, m)
		}
	}

	holdings := s.Info.CurrentBtcHoldings

	var sharePct, btcShare float64
	if len(active) > 0 {
		sharePct = 100 / float64(len(active))
		btcShare = holdings / float64(len(active))
	}

	shares := make(map[string]MemberShare, len(active))
	for _, m := range active {
		shares[m.Name] = MemberShare{
			ContributedZar: contributions[m.Name],
			SharePct:       sharePct,
			BtcShare:       btcShare,
		}
	}

	transitions := maps.Clone(s.Info.MemberTransitions)
	if transitions == nil {
		transitions = map[string]any{}
	}

	return &Summary{
		TotalContributionsZar: total,
		TotalBtcAcquired:      holdings,
		NumberOfPurchases:     len(s.Purchases),
		NumberOfContributions: len(s.Contributions),
		ActiveMembers:         len(active),
		TotalMembersAllTime:   len(s.Members),
		MemberContributions:   contributions,
		MemberShares:          shares,
		DataUpdated:           now,
		LastBtcPurchase:       s.Info.LastPurchaseDate,
		MemberTransitions:     transitions,
	}
}

// clone returns a copy whose maps can be mutated by callers without touching the memo.
func (s *Summary) clone() Summary {
	c := *s
	c.MemberContributions = maps.Clone(s.MemberContributions)
	c.MemberShares = maps.Clone(s.MemberShares)
	c.MemberTransitions = maps.Clone(s.MemberTransitions)

	return c
}
