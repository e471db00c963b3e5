package fund

import (
	"time"
)

// Status represents whether a member still participates in the fund.
type Status string

const (
	StatusActive Status = "active"
	StatusLeft   Status = "left"
)

// Role represents the permissions a member holds in the group.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ContributionType is the kind of a contribution record. Only one exists today.
type ContributionType string

const ContributionTypeContribution ContributionType = "contribution"

// Member is a participant of the fund. Members are never deleted, only marked as left.
type Member struct {
	ID         int
	Name       string
	JoinedDate time.Time
	LeaveDate  *time.Time
	Status     Status
	Role       Role
}

// Contribution is an immutable ZAR payment made by a member.
// MemberName is captured at write time and is never relabelled.
type Contribution struct {
	Date       time.Time
	MemberID   int
	MemberName string
	AmountZar  float64
	Type       ContributionType
}

// Purchase is a BTC acquisition. TotalHoldings is the running total after this purchase.
type Purchase struct {
	Date           time.Time
	BtcBought      float64
	TotalHoldings  float64
	PriceZar       float64
	AmountInvested *float64
	Notes          string
	RecordedAt     *time.Time
}

// Cost returns the ZAR spent on the purchase, derived from the unit price when the
// invested amount was not recorded.
func (p Purchase) Cost() float64 {
	if p.AmountInvested != nil {
		return *p.AmountInvested
	}

	return p.BtcBought * p.PriceZar
}

// Buyout transfers the contribution credit of a departing member to another member.
type Buyout struct {
	Date      time.Time
	Buyer     string
	Seller    string
	AmountZar float64
	Reason    string
}

// Info is the fund metadata singleton.
type Info struct {
	Name               string
	TargetDate         time.Time
	TargetAmountZar    float64
	CreatedDate        time.Time
	Description        string
	BtcPurchaser       string
	CurrentBtcHoldings float64
	LastPurchaseDate   time.Time
	MemberTransitions  map[string]any
}

// MemberShare is a member's equal-split claim on the fund holdings.
// ContributedZar is informational and never influences SharePct or BtcShare.
type MemberShare struct {
	ContributedZar float64
	SharePct       float64
	BtcShare       float64
}

// Summary is derived from the ledger state on every mutation. It is not a source of truth.
type Summary struct {
	TotalContributionsZar float64
	TotalBtcAcquired      float64
	NumberOfPurchases     int
	NumberOfContributions int
	ActiveMembers         int
	TotalMembersAllTime   int
	MemberContributions   map[string]float64
	MemberShares          map[string]MemberShare
	DataUpdated           time.Time
	LastBtcPurchase       time.Time
	MemberTransitions     map[string]any
}

// HoldingsAdjustment is the outcome of a manual wallet reconciliation.
type HoldingsAdjustment struct {
	Previous float64
	Current  float64
	Reason   string
}

// AuditEntry is one line of the write-only audit trail.
type AuditEntry struct {
	Timestamp time.Time
	Action    string
	Fields    map[string]any
}
