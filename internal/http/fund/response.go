package fund

import (
	"maps"
	"time"

	"github.com/zargusta/fundtracker/internal/analytics"
	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/importer"
	"github.com/zargusta/fundtracker/internal/portfolio"
	"github.com/zargusta/fundtracker/internal/price"
)

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.DateOnly)
}

type memberResponse struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	JoinedDate string      `json:"joinedDate"`
	LeaveDate  *string     `json:"leaveDate"`
	Status     fund.Status `json:"status"`
	Role       fund.Role   `json:"role"`
}

func toMember(m fund.Member) memberResponse {
	resp := memberResponse{
		ID:         m.ID,
		Name:       m.Name,
		JoinedDate: day(m.JoinedDate),
		Status:     m.Status,
		Role:       m.Role,
	}

	if m.LeaveDate != nil {
		resp.LeaveDate = new(day(*m.LeaveDate))
	}

	return resp
}

func toMembers(ms []fund.Member) []memberResponse {
	resp := make([]memberResponse, len(ms))
	for i, m := range ms {
		resp[i] = toMember(m)
	}

	return resp
}

type contributionResponse struct {
	Date       string                `json:"date"`
	MemberID   int                   `json:"memberId"`
	MemberName string                `json:"memberName"`
	AmountZar  float64               `json:"amountZar"`
	Type       fund.ContributionType `json:"type"`
}

func toContribution(c fund.Contribution) contributionResponse {
	return contributionResponse{
		Date:       day(c.Date),
		MemberID:   c.MemberID,
		MemberName: c.MemberName,
		AmountZar:  c.AmountZar,
		Type:       c.Type,
	}
}

func toContributions(cs []fund.Contribution) []contributionResponse {
	resp := make([]contributionResponse, len(cs))
	for i, c := range cs {
		resp[i] = toContribution(c)
	}

	return resp
}

type purchaseResponse struct {
	Date           string   `json:"date"`
	BtcBought      float64  `json:"btcBought"`
	TotalHoldings  float64  `json:"totalHoldings"`
	PriceZar       float64  `json:"priceZar"`
	AmountInvested *float64 `json:"amountInvested,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

func toPurchase(p fund.Purchase) purchaseResponse {
	return purchaseResponse{
		Date:           day(p.Date),
		BtcBought:      p.BtcBought,
		TotalHoldings:  p.TotalHoldings,
		PriceZar:       p.PriceZar,
		AmountInvested: p.AmountInvested,
		Notes:          p.Notes,
	}
}

func toPurchases(ps []fund.Purchase) []purchaseResponse {
	resp := make([]purchaseResponse, len(ps))
	for i, p := range ps {
		resp[i] = toPurchase(p)
	}

	return resp
}

type buyoutResponse struct {
	Date      string  `json:"date"`
	Buyer     string  `json:"buyer"`
	Seller    string  `json:"seller"`
	AmountZar float64 `json:"amountZar"`
	Reason    string  `json:"reason,omitempty"`
}

func toBuyout(b fund.Buyout) buyoutResponse {
	return buyoutResponse{
		Date:      day(b.Date),
		Buyer:     b.Buyer,
		Seller:    b.Seller,
		AmountZar: b.AmountZar,
		Reason:    b.Reason,
	}
}

func toBuyouts(bs []fund.Buyout) []buyoutResponse {
	resp := make([]buyoutResponse, len(bs))
	for i, b := range bs {
		resp[i] = toBuyout(b)
	}

	return resp
}

type infoResponse struct {
	Name               string         `json:"name"`
	TargetDate         string         `json:"targetDate"`
	TargetAmountZar    float64        `json:"targetAmountZar"`
	CreatedDate        string         `json:"createdDate"`
	Description        string         `json:"description"`
	BtcPurchaser       string         `json:"btcPurchaser"`
	CurrentBtcHoldings float64        `json:"currentBtcHoldings"`
	LastPurchaseDate   string         `json:"lastPurchaseDate"`
	MemberTransitions  map[string]any `json:"memberTransitions,omitempty"`
}

func toInfo(i fund.Info) infoResponse {
	return infoResponse{
		Name:               i.Name,
		TargetDate:         day(i.TargetDate),
		TargetAmountZar:    i.TargetAmountZar,
		CreatedDate:        day(i.CreatedDate),
		Description:        i.Description,
		BtcPurchaser:       i.BtcPurchaser,
		CurrentBtcHoldings: i.CurrentBtcHoldings,
		LastPurchaseDate:   day(i.LastPurchaseDate),
		MemberTransitions:  i.MemberTransitions,
	}
}

type shareResponse struct {
	ContributedZar float64 `json:"contributedZar"`
	SharePct       float64 `json:"sharePct"`
	BtcShare       float64 `json:"btcShare"`
}

type summaryResponse struct {
	TotalContributionsZar float64                  `json:"totalContributionsZar"`
	TotalBtcAcquired      float64                  `json:"totalBtcAcquired"`
	NumberOfPurchases     int                      `json:"numberOfPurchases"`
	NumberOfContributions int                      `json:"numberOfContributions"`
	ActiveMembers         int                      `json:"activeMembers"`
	TotalMembersAllTime   int                      `json:"totalMembersAllTime"`
	MemberContributions   map[string]float64       `json:"memberContributions"`
	MemberShares          map[string]shareResponse `json:"memberShares"`
	DataUpdated           time.Time                `json:"dataUpdated"`
	LastBtcPurchase       string                   `json:"lastBtcPurchase"`
	MemberTransitions     map[string]any           `json:"memberTransitions,omitempty"`
}

func toSummary(s fund.Summary) summaryResponse {
	shares := make(map[string]shareResponse, len(s.MemberShares))
	for name, sh := range s.MemberShares {
		shares[name] = shareResponse(sh)
	}

	return summaryResponse{
		TotalContributionsZar: s.TotalContributionsZar,
		TotalBtcAcquired:      s.TotalBtcAcquired,
		NumberOfPurchases:     s.NumberOfPurchases,
		NumberOfContributions: s.NumberOfContributions,
		ActiveMembers:         s.ActiveMembers,
		TotalMembersAllTime:   s.TotalMembersAllTime,
		MemberContributions:   maps.Clone(s.MemberContributions),
		MemberShares:          shares,
		DataUpdated:           s.DataUpdated,
		LastBtcPurchase:       day(s.LastBtcPurchase),
		MemberTransitions:     s.MemberTransitions,
	}
}

type quoteResponse struct {
	Zar          float64   `json:"zar"`
	Usd          float64   `json:"usd"`
	Zar24hChange float64   `json:"zar_24h_change"`
	Usd24hChange float64   `json:"usd_24h_change"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
}

func toQuote(q price.Quote) quoteResponse {
	return quoteResponse{
		Zar:          q.Local,
		Usd:          q.USD,
		Zar24hChange: q.Local24hChange,
		Usd24hChange: q.USD24hChange,
		Timestamp:    q.Timestamp,
		Source:       q.Source,
	}
}

type pointResponse struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

func toPoints(ps []price.Point) []pointResponse {
	resp := make([]pointResponse, len(ps))
	for i, p := range ps {
		resp[i] = pointResponse{Date: day(p.Date), Price: p.PriceLocal}
	}

	return resp
}

type memberValueResponse struct {
	BtcShare float64 `json:"btcShare"`
	ValueZar float64 `json:"valueZar"`
	SharePct float64 `json:"sharePct"`
}

type portfolioResponse struct {
	TotalBtc          float64                        `json:"totalBtc"`
	ValueZar          float64                        `json:"valueZar"`
	ValueUsd          float64                        `json:"valueUsd"`
	TotalInvestedZar  float64                        `json:"totalInvestedZar"`
	ProfitLossZar     float64                        `json:"profitLossZar"`
	ProfitLossPct     float64                        `json:"profitLossPct"`
	TargetProgressPct float64                        `json:"targetProgressPct"`
	DaysToTarget      int                            `json:"daysToTarget"`
	Members           map[string]memberValueResponse `json:"members"`
	Price             quoteResponse                  `json:"price"`
}

func toPortfolio(s portfolio.Snapshot, q price.Quote) portfolioResponse {
	members := make(map[string]memberValueResponse, len(s.Members))
	for name, m := range s.Members {
		members[name] = memberValueResponse(m)
	}

	return portfolioResponse{
		TotalBtc:          s.TotalBtc,
		ValueZar:          s.ValueZar,
		ValueUsd:          s.ValueUsd,
		TotalInvestedZar:  s.TotalInvestedZar,
		ProfitLossZar:     s.ProfitLossZar,
		ProfitLossPct:     s.ProfitLossPct,
		TargetProgressPct: s.TargetProgressPct,
		DaysToTarget:      s.DaysToTarget,
		Members:           members,
		Price:             toQuote(q),
	}
}

type monthlyResponse struct {
	Month                 string   `json:"month"`
	ContributionsZar      float64  `json:"contributionsZar"`
	CumulativeInvestedZar float64  `json:"cumulativeInvestedZar"`
	BtcBought             float64  `json:"btcBought"`
	CumulativeBtc         float64  `json:"cumulativeBtc"`
	AvgCostBasis          float64  `json:"avgCostBasis"`
	ActiveMembers         int      `json:"activeMembers"`
	Contributors          []string `json:"contributors"`
}

type memberAnalyticsResponse struct {
	Name              string      `json:"name"`
	TotalContributed  float64     `json:"totalContributed"`
	ContributionCount int         `json:"contributionCount"`
	FirstContribution string      `json:"firstContribution,omitempty"`
	LastContribution  string      `json:"lastContribution,omitempty"`
	SharePercent      float64     `json:"sharePercent"`
	Status            fund.Status `json:"status"`
}

type streaksResponse struct {
	Current      int      `json:"current"`
	Longest      int      `json:"longest"`
	MissedMonths []string `json:"missedMonths"`
}

type costBasisResponse struct {
	WeightedAvgZar   float64 `json:"weightedAvgZar"`
	TotalInvestedZar float64 `json:"totalInvestedZar"`
	TotalBtc         float64 `json:"totalBtc"`
}

type statsResponse struct {
	AvgMonthlyZar float64 `json:"avgMonthlyZar"`
	MaxMonthZar   float64 `json:"maxMonthZar"`
	MaxMonthLabel string  `json:"maxMonthLabel"`
	TotalMonths   int     `json:"totalMonths"`
}

type analyticsResponse struct {
	Monthly   []monthlyResponse         `json:"monthly"`
	Members   []memberAnalyticsResponse `json:"members"`
	Streaks   streaksResponse           `json:"streaks"`
	CostBasis costBasisResponse         `json:"costBasis"`
	Stats     statsResponse             `json:"contributionStats"`
}

func toAnalytics(r analytics.Result) analyticsResponse {
	resp := analyticsResponse{
		Monthly:   make([]monthlyResponse, len(r.Monthly)),
		Members:   make([]memberAnalyticsResponse, len(r.Members)),
		Streaks:   streaksResponse{Current: r.Streaks.Current, Longest: r.Streaks.Longest, MissedMonths: r.Streaks.MissedMonths},
		CostBasis: costBasisResponse(r.CostBasis),
		Stats:     statsResponse(r.Stats),
	}

	if resp.Streaks.MissedMonths == nil {
		resp.Streaks.MissedMonths = []string{}
	}

	for i, m := range r.Monthly {
		resp.Monthly[i] = monthlyResponse(m)
		if resp.Monthly[i].Contributors == nil {
			resp.Monthly[i].Contributors = []string{}
		}
	}

	for i, m := range r.Members {
		resp.Members[i] = memberAnalyticsResponse{
			Name:              m.Name,
			TotalContributed:  m.TotalContributed,
			ContributionCount: m.ContributionCount,
			FirstContribution: day(m.FirstContribution),
			LastContribution:  day(m.LastContribution),
			SharePercent:      m.SharePercent,
			Status:            m.Status,
		}
	}

	return resp
}

type holdingsResponse struct {
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	Reason   string  `json:"reason"`
}

type paymentResponse struct {
	MemberID   int     `json:"memberId"`
	MemberName string  `json:"memberName"`
	AmountZar  float64 `json:"amountZar"`
}

type roundResponse struct {
	Date             string            `json:"date"`
	PaymentsRecorded int               `json:"paymentsRecorded"`
	TotalZar         float64           `json:"totalZar"`
	Payments         []paymentResponse `json:"payments"`
}

func toRound(r *fund.Round) roundResponse {
	resp := roundResponse{
		Date:             day(r.Date),
		PaymentsRecorded: len(r.Contributions),
		TotalZar:         r.TotalZar,
		Payments:         make([]paymentResponse, len(r.Contributions)),
	}

	for i, c := range r.Contributions {
		resp.Payments[i] = paymentResponse{MemberID: c.MemberID, MemberName: c.MemberName, AmountZar: c.AmountZar}
	}

	return resp
}

type importResponse struct {
	Charset  string          `json:"charset"`
	Payments int             `json:"payments"`
	TotalZar float64         `json:"totalZar"`
	Rounds   []roundResponse `json:"rounds"`
}

func toImport(r *importer.Result) importResponse {
	resp := importResponse{
		Charset:  string(r.Charset),
		Payments: r.Payments,
		TotalZar: r.TotalZar,
		Rounds:   make([]roundResponse, len(r.Rounds)),
	}

	for i, round := range r.Rounds {
		resp.Rounds[i] = toRound(round)
	}

	return resp
}

type ledgerEntryResponse struct {
	Date      string         `json:"date"`
	Type      fund.EntryType `json:"type"`
	Member    *string        `json:"member"`
	AmountZar float64        `json:"amountZar"`
	Btc       *float64       `json:"btc"`
	PriceZar  *float64       `json:"priceZar"`
	Notes     string         `json:"notes"`
}

type ledgerResponse struct {
	Entries []ledgerEntryResponse `json:"entries"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	Limit   int                   `json:"limit"`
	Pages   int                   `json:"pages"`
}

func toLedger(p fund.LedgerPage) ledgerResponse {
	resp := ledgerResponse{
		Entries: make([]ledgerEntryResponse, len(p.Entries)),
		Total:   p.Total,
		Page:    p.Page,
		Limit:   p.Limit,
		Pages:   p.Pages,
	}

	for i, e := range p.Entries {
		entry := ledgerEntryResponse{
			Date:      day(e.Date),
			Type:      e.Type,
			AmountZar: e.AmountZar,
			Notes:     e.Notes,
		}

		if e.Type == fund.EntryTypeContribution {
			entry.Member = new(e.Member)
		} else {
			entry.Btc = new(e.Btc)
			entry.PriceZar = new(e.PriceZar)
		}

		resp.Entries[i] = entry
	}

	return resp
}

// toAudit flattens an entry back into the one-object-per-line shape of the log file.
func toAudit(entries []fund.AuditEntry) []map[string]any {
	resp := make([]map[string]any, len(entries))
	for i, e := range entries {
		obj := make(map[string]any, len(e.Fields)+2)
		maps.Copy(obj, e.Fields)

		if !e.Timestamp.IsZero() {
			obj["timestamp"] = e.Timestamp
		}

		if e.Action != "" {
			obj["action"] = e.Action
		}

		resp[i] = obj
	}

	return resp
}
