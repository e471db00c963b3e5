package store

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/zargusta/fundtracker/internal/fund"
)

// document is the snake_case layout of historical_data.json. It is shared by the
// file and SQL stores so that a data directory can be moved between them.
type document struct {
	Members       []rawMember       `json:"members"`
	BtcPurchases  []rawPurchase     `json:"btc_purchases"`
	Contributions []rawContribution `json:"contributions"`
	Buyouts       []rawBuyout       `json:"buyouts"`
	FundInfo      rawInfo           `json:"fund_info"`
}

type rawMember struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	JoinedDate string  `json:"joined_date"`
	LeaveDate  *string `json:"leave_date"`
	Status     string  `json:"status"`
	Role       string  `json:"role"`
}

type rawPurchase struct {
	Date           string   `json:"date"`
	BtcBought      float64  `json:"btc_bought"`
	TotalHoldings  float64  `json:"total_holdings"`
	PriceZar       float64  `json:"price_zar"`
	AmountInvested *float64 `json:"amount_invested,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	RecordedAt     string   `json:"recorded_at,omitempty"`
}

type rawContribution struct {
	Date       string  `json:"date"`
	MemberID   int     `json:"member_id"`
	MemberName string  `json:"member_name"`
	AmountZar  float64 `json:"amount_zar"`
	Type       string  `json:"type"`
}

type rawBuyout struct {
	Date      string  `json:"date,omitempty"`
	Buyer     string  `json:"buyer"`
	Seller    string  `json:"seller"`
	AmountZar float64 `json:"amount_zar"`
	Reason    string  `json:"reason,omitempty"`
}

type rawInfo struct {
	Name               string         `json:"name"`
	TargetDate         string         `json:"target_date"`
	TargetAmountZar    float64        `json:"target_amount_zar"`
	CreatedDate        string         `json:"created_date"`
	Description        string         `json:"description"`
	BtcPurchaser       string         `json:"btc_purchaser"`
	CurrentBtcHoldings float64        `json:"current_btc_holdings"`
	LastPurchaseDate   string         `json:"last_purchase_date"`
	MemberTransitions  map[string]any `json:"member_transitions"`

	// Older data files kept buyouts inside fund_info. They are read once and
	// moved to the top-level collection on the next save.
	LegacyBuyouts []rawBuyout `json:"buyouts,omitempty"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.DateOnly)
}

// parseDate accepts a calendar day or a full RFC 3339 timestamp; the latter is
// truncated to its day.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}

	return fund.Day(t), nil
}

func encodeState(s *fund.State) ([]byte, error) {
	doc := document{
		Members:       make([]rawMember, 0, len(s.Members)),
		BtcPurchases:  make([]rawPurchase, 0, len(s.Purchases)),
		Contributions: make([]rawContribution, 0, len(s.Contributions)),
		Buyouts:       make([]rawBuyout, 0, len(s.Buyouts)),
		FundInfo: rawInfo{
			Name:               s.Info.Name,
			TargetDate:         formatDate(s.Info.TargetDate),
			TargetAmountZar:    s.Info.TargetAmountZar,
			CreatedDate:        formatDate(s.Info.CreatedDate),
			Description:        s.Info.Description,
			BtcPurchaser:       s.Info.BtcPurchaser,
			CurrentBtcHoldings: s.Info.CurrentBtcHoldings,
			LastPurchaseDate:   formatDate(s.Info.LastPurchaseDate),
			MemberTransitions:  s.Info.MemberTransitions,
		},
	}

	if doc.FundInfo.MemberTransitions == nil {
		doc.FundInfo.MemberTransitions = map[string]any{}
	}

	for _, m := range s.Members {
		rm := rawMember{
			ID:         m.ID,
			Name:       m.Name,
			JoinedDate: formatDate(m.JoinedDate),
			Status:     string(m.Status),
			Role:       string(m.Role),
		}

		if m.LeaveDate != nil {
			rm.LeaveDate = new(formatDate(*m.LeaveDate))
		}

		doc.Members = append(doc.Members, rm)
	}

	for _, p := range s.Purchases {
		rp := rawPurchase{
			Date:           formatDate(p.Date),
			BtcBought:      p.BtcBought,
			TotalHoldings:  p.TotalHoldings,
			PriceZar:       p.PriceZar,
			AmountInvested: p.AmountInvested,
			Notes:          p.Notes,
		}

		if p.RecordedAt != nil {
			rp.RecordedAt = p.RecordedAt.UTC().Format(time.RFC3339Nano)
		}

		doc.BtcPurchases = append(doc.BtcPurchases, rp)
	}

	for _, c := range s.Contributions {
		doc.Contributions = append(doc.Contributions, rawContribution{
			Date:       formatDate(c.Date),
			MemberID:   c.MemberID,
			MemberName: c.MemberName,
			AmountZar:  c.AmountZar,
			Type:       string(c.Type),
		})
	}

	for _, b := range s.Buyouts {
		doc.Buyouts = append(doc.Buyouts, rawBuyout{
			Date:      formatDate(b.Date),
			Buyer:     b.Buyer,
			Seller:    b.Seller,
			AmountZar: b.AmountZar,
			Reason:    b.Reason,
		})
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding fund document: %w", err)
	}

	return body, nil
}

func decodeState(body []byte) (*fund.State, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decoding fund document: %w", err)
	}

	s := fund.NewState()

	var err error

	info := doc.FundInfo
	s.Info = fund.Info{
		Name:               info.Name,
		TargetAmountZar:    info.TargetAmountZar,
		Description:        info.Description,
		BtcPurchaser:       info.BtcPurchaser,
		CurrentBtcHoldings: info.CurrentBtcHoldings,
		MemberTransitions:  maps.Clone(info.MemberTransitions),
	}

	if s.Info.MemberTransitions == nil {
		s.Info.MemberTransitions = map[string]any{}
	}

	if s.Info.TargetDate, err = parseDate(info.TargetDate); err != nil {
		return nil, fmt.Errorf("fund_info.target_date: %w", err)
	}

	if s.Info.CreatedDate, err = parseDate(info.CreatedDate); err != nil {
		return nil, fmt.Errorf("fund_info.created_date: %w", err)
	}

	if s.Info.LastPurchaseDate, err = parseDate(info.LastPurchaseDate); err != nil {
		return nil, fmt.Errorf("fund_info.last_purchase_date: %w", err)
	}

	for i, rm := range doc.Members {
		m := fund.Member{
			ID:     rm.ID,
			Name:   rm.Name,
			Status: fund.Status(rm.Status),
			Role:   fund.Role(rm.Role),
		}

		if m.JoinedDate, err = parseDate(rm.JoinedDate); err != nil {
			return nil, fmt.Errorf("members[%d].joined_date: %w", i, err)
		}

		if rm.LeaveDate != nil && *rm.LeaveDate != "" {
			leave, err := parseDate(*rm.LeaveDate)
			if err != nil {
				return nil, fmt.Errorf("members[%d].leave_date: %w", i, err)
			}

			m.LeaveDate = &leave
		}

		s.Members = append(s.Members, m)
	}

	for i, rp := range doc.BtcPurchases {
		p := fund.Purchase{
			BtcBought:      rp.BtcBought,
			TotalHoldings:  rp.TotalHoldings,
			PriceZar:       rp.PriceZar,
			AmountInvested: rp.AmountInvested,
			Notes:          rp.Notes,
		}

		if p.Date, err = parseDate(rp.Date); err != nil {
			return nil, fmt.Errorf("btc_purchases[%d].date: %w", i, err)
		}

		if rp.RecordedAt != "" {
			recorded, err := time.Parse(time.RFC3339Nano, rp.RecordedAt)
			if err != nil {
				return nil, fmt.Errorf("btc_purchases[%d].recorded_at: %w", i, err)
			}

			p.RecordedAt = &recorded
		}

		s.Purchases = append(s.Purchases, p)
	}

	for i, rc := range doc.Contributions {
		c := fund.Contribution{
			MemberID:   rc.MemberID,
			MemberName: rc.MemberName,
			AmountZar:  rc.AmountZar,
			Type:       fund.ContributionType(rc.Type),
		}

		if c.Type == "" {
			c.Type = fund.ContributionTypeContribution
		}

		if c.Date, err = parseDate(rc.Date); err != nil {
			return nil, fmt.Errorf("contributions[%d].date: %w", i, err)
		}

		s.Contributions = append(s.Contributions, c)
	}

	for i, rb := range append(info.LegacyBuyouts, doc.Buyouts...) {
		b := fund.Buyout{
			Buyer:     rb.Buyer,
			Seller:    rb.Seller,
			AmountZar: rb.AmountZar,
			Reason:    rb.Reason,
		}

		if b.Date, err = parseDate(rb.Date); err != nil {
			return nil, fmt.Errorf("buyouts[%d].date: %w", i, err)
		}

		s.Buyouts = append(s.Buyouts, b)
	}

	return s, nil
}

// summaryDocument is the camelCase layout of fund_summary.json.
type summaryDocument struct {
	TotalContributionsZar float64                 `json:"totalContributionsZar"`
	TotalBtcAcquired      float64                 `json:"totalBtcAcquired"`
	NumberOfPurchases     int                     `json:"numberOfPurchases"`
	NumberOfContributions int                     `json:"numberOfContributions"`
	ActiveMembers         int                     `json:"activeMembers"`
	TotalMembersAllTime   int                     `json:"totalMembersAllTime"`
	MemberContributions   map[string]float64      `json:"memberContributions"`
	MemberShares          map[string]summaryShare `json:"memberShares"`
	DataUpdated           string                  `json:"dataUpdated"`
	LastBtcPurchase       string                  `json:"lastBtcPurchase"`
	MemberTransitions     map[string]any          `json:"memberTransitions"`
}

type summaryShare struct {
	ContributedZar float64 `json:"contributedZar"`
	SharePct       float64 `json:"sharePct"`
	BtcShare       float64 `json:"btcShare"`
}

func encodeSummary(s *fund.Summary) ([]byte, error) {
	doc := summaryDocument{
		TotalContributionsZar: s.TotalContributionsZar,
		TotalBtcAcquired:      s.TotalBtcAcquired,
		NumberOfPurchases:     s.NumberOfPurchases,
		NumberOfContributions: s.NumberOfContributions,
		ActiveMembers:         s.ActiveMembers,
		TotalMembersAllTime:   s.TotalMembersAllTime,
		MemberContributions:   s.MemberContributions,
		MemberShares:          make(map[string]summaryShare, len(s.MemberShares)),
		DataUpdated:           s.DataUpdated.UTC().Format(time.RFC3339),
		LastBtcPurchase:       formatDate(s.LastBtcPurchase),
		MemberTransitions:     s.MemberTransitions,
	}

	for name, share := range s.MemberShares {
		doc.MemberShares[name] = summaryShare(share)
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding fund summary: %w", err)
	}

	return body, nil
}
