package fund

import (
	"maps"
	"slices"
	"time"
)

// State is the full persisted ledger: the unit the Repository loads and saves.
type State struct {
	Members       []Member
	Contributions []Contribution
	Purchases     []Purchase
	Buyouts       []Buyout
	Info          Info
}

// NewState returns the empty default state used when nothing can be loaded.
func NewState() *State {
	return &State{
		Info: Info{MemberTransitions: map[string]any{}},
	}
}

// Clone returns a deep copy so that a failed save never leaks into the live state.
func (s *State) Clone() *State {
	c := &State{
		Members:       make([]Member, len(s.Members)),
		Contributions: slices.Clone(s.Contributions),
		Purchases:     make([]Purchase, len(s.Purchases)),
		Buyouts:       slices.Clone(s.Buyouts),
		Info:          s.Info,
	}

	for i, m := range s.Members {
		if m.LeaveDate != nil {
			m.LeaveDate = new(*m.LeaveDate)
		}

		c.Members[i] = m
	}

	for i, p := range s.Purchases {
		if p.AmountInvested != nil {
			p.AmountInvested = new(*p.AmountInvested)
		}

		if p.RecordedAt != nil {
			p.RecordedAt = new(*p.RecordedAt)
		}

		c.Purchases[i] = p
	}

	c.Info.MemberTransitions = maps.Clone(s.Info.MemberTransitions)

	return c
}

func (s *State) memberIndex(id int) int {
	return slices.IndexFunc(s.Members, func(m Member) bool { return m.ID == id })
}

func (s *State) memberByName(name string) (Member, bool) {
	for _, m := range s.Members {
		if m.Name == name {
			return m, true
		}
	}

	return Member{}, false
}

func (s *State) nextMemberID() int {
	maxID := 0
	for _, m := range s.Members {
		maxID = max(maxID, m.ID)
	}

	return maxID + 1
}

func (s *State) lastHoldings() float64 {
	if len(s.Purchases) == 0 {
		return 0
	}

	return s.Purchases[len(s.Purchases)-1].TotalHoldings
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
