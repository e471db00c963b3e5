package fund

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=fund
type Repository interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State, summary *Summary) error

	AppendAudit(ctx context.Context, entry AuditEntry) error
	ReadAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// Service is the fund ledger. It owns every mutation and keeps the derived Summary
// in step with the persisted state.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	state   *State
	summary *Summary
}

type Option func(*Service)

// WithClock overrides the wall clock used for record dates and summary timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService loads the ledger from repo. A load failure is not fatal: the service
// starts from an empty state and logs the cause.
func NewService(ctx context.Context, repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	state, err := repo.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load fund state, starting empty", "error", err)
		state = NewState()
	}

	s.state = state
	s.summary = buildSummary(state, s.now())

	return s
}

func (s *Service) Members() []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.state.Members)
}

func (s *Service) ActiveMembers() []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []Member

	for _, m := range s.state.Members {
		if m.Status == StatusActive {
			active = append(active, m)
		}
	}

	return active
}

func (s *Service) Member(id int) (Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.state.memberIndex(id)
	if idx < 0 {
		return Member{}, memberNotFound(id)
	}

	return s.state.Members[idx], nil
}

func (s *Service) Contributions() []Contribution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.state.Contributions)
}

func (s *Service) Purchases() []Purchase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.state.Purchases)
}

func (s *Service) Buyouts() []Buyout {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.state.Buyouts)
}

func (s *Service) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.Clone().Info
}

// Summary returns the memoized summary. It only changes after a successful mutation.
func (s *Service) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.summary.clone()
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditLog returns the most recent audit entries, newest first.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	limit = min(limit, maxAuditLimit)

	entries, err := s.repo.ReadAudit(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}

	return entries, nil
}

func (s *Service) AddContribution(ctx context.Context, memberID int, memberName string, amountZar float64) (*Contribution, error) {
	if err := positive("amountZar", amountZar); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.state.memberIndex(memberID)
	if idx < 0 {
		return nil, memberNotFound(memberID)
	}

	name := strings.TrimSpace(memberName)
	if name == "" {
		name = s.state.Members[idx].Name
	}

	c := Contribution{
		Date:       Day(s.now()),
		MemberID:   memberID,
		MemberName: name,
		AmountZar:  amountZar,
		Type:       ContributionTypeContribution,
	}

	next := s.state.Clone()
	next.Contributions = append(next.Contributions, c)

	err := s.commit(ctx, next, s.entry("addContribution", map[string]any{
		"memberId":   memberID,
		"memberName": name,
		"amountZar":  amountZar,
	}))
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// PaymentParams is one member's payment in a bulk payment round.
// When MemberID is zero the member is resolved by name.
type PaymentParams struct {
	MemberID   int
	MemberName string
	AmountZar  float64
}

// Round is the result of a bulk payment round.
type Round struct {
	Date          time.Time
	Contributions []Contribution
	TotalZar      float64
}

// AddContributions records a payment round atomically: either every payment is
// persisted or none is.
func (s *Service) AddContributions(ctx context.Context, date time.Time, payments []PaymentParams) (*Round, error) {
	rounds, err := s.AddRounds(ctx, []RoundParams{{Date: date, Payments: payments}})
	if err != nil {
		return nil, err
	}

	return rounds[0], nil
}

// RoundParams is one dated payment round. A zero Date means today.
type RoundParams struct {
	Date     time.Time
	Payments []PaymentParams
}

// AddRounds records several payment rounds in a single write. A failure in any
// round leaves the ledger untouched.
func (s *Service) AddRounds(ctx context.Context, params []RoundParams) ([]*Round, error) {
	if len(params) == 0 {
		return nil, invalid("rounds", "must not be empty")
	}

	for i, rp := range params {
		if err := validatePayments(rp.Payments); err != nil {
			return nil, roundError(params, i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	rounds := make([]*Round, 0, len(params))

	var audits []AuditEntry

	for i, rp := range params {
		round, entries, err := s.buildRound(rp)
		if err != nil {
			return nil, roundError(params, i, err)
		}

		next.Contributions = append(next.Contributions, round.Contributions...)
		rounds = append(rounds, round)
		audits = append(audits, entries...)
	}

	if err := s.commit(ctx, next, audits...); err != nil {
		return nil, err
	}

	return rounds, nil
}

func validatePayments(payments []PaymentParams) error {
	if len(payments) == 0 {
		return invalid("payments", "must not be empty")
	}

	for i, p := range payments {
		if err := positive(fmt.Sprintf("payments[%d].amountZar", i), p.AmountZar); err != nil {
			return err
		}
	}

	return nil
}

// roundError only names the round when there is more than one.
func roundError(params []RoundParams, i int, err error) error {
	if len(params) == 1 {
		return err
	}

	date := "today"
	if !params[i].Date.IsZero() {
		date = params[i].Date.Format(time.DateOnly)
	}

	return fmt.Errorf("round %s: %w", date, err)
}

// buildRound resolves the round's members against the current state. Callers hold s.mu.
func (s *Service) buildRound(rp RoundParams) (*Round, []AuditEntry, error) {
	date := rp.Date
	if date.IsZero() {
		date = s.now()
	}

	round := &Round{Date: Day(date)}
	audits := make([]AuditEntry, 0, len(rp.Payments)+1)

	for i, p := range rp.Payments {
		m, err := s.resolveMember(p)
		if err != nil {
			return nil, nil, fmt.Errorf("payments[%d]: %w", i, err)
		}

		name := strings.TrimSpace(p.MemberName)
		if name == "" || p.MemberID == 0 {
			name = m.Name
		}

		c := Contribution{
			Date:       round.Date,
			MemberID:   m.ID,
			MemberName: name,
			AmountZar:  p.AmountZar,
			Type:       ContributionTypeContribution,
		}

		round.Contributions = append(round.Contributions, c)
		round.TotalZar += c.AmountZar

		audits = append(audits, s.entry("addContribution", map[string]any{
			"memberId":   c.MemberID,
			"memberName": c.MemberName,
			"amountZar":  c.AmountZar,
		}))
	}

	audits = append(audits, s.entry("bulkPayment", map[string]any{
		"date":             round.Date.Format(time.DateOnly),
		"paymentsRecorded": len(round.Contributions),
		"totalZar":         round.TotalZar,
	}))

	return round, audits, nil
}

func (s *Service) resolveMember(p PaymentParams) (Member, error) {
	if p.MemberID != 0 {
		idx := s.state.memberIndex(p.MemberID)
		if idx < 0 {
			return Member{}, memberNotFound(p.MemberID)
		}

		return s.state.Members[idx], nil
	}

	name := strings.TrimSpace(p.MemberName)
	if name == "" {
		return Member{}, invalid("memberName", "required when memberId is not set")
	}

	for _, m := range s.state.Members {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}

	return Member{}, fmt.Errorf("member %q: %w", name, ErrNotFound)
}

type PurchaseParams struct {
	BtcBought      float64
	PriceZar       float64
	AmountInvested *float64
	Notes          string
}

// AddPurchase appends a BTC purchase. TotalHoldings continues from the previous
// purchase, and the fund's cached holdings follow it.
func (s *Service) AddPurchase(ctx context.Context, params PurchaseParams) (*Purchase, error) {
	if err := positive("btcBought", params.BtcBought); err != nil {
		return nil, err
	}

	if err := positive("priceZar", params.PriceZar); err != nil {
		return nil, err
	}

	if params.AmountInvested != nil {
		if err := positive("amountInvested", *params.AmountInvested); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := Purchase{
		Date:          Day(now),
		BtcBought:     params.BtcBought,
		TotalHoldings: s.state.lastHoldings() + params.BtcBought,
		PriceZar:      params.PriceZar,
		Notes:         strings.TrimSpace(params.Notes),
		RecordedAt:    new(now.UTC()),
	}

	if params.AmountInvested != nil {
		p.AmountInvested = new(*params.AmountInvested)
	}

	next := s.state.Clone()
	next.Purchases = append(next.Purchases, p)
	next.Info.CurrentBtcHoldings = p.TotalHoldings
	next.Info.LastPurchaseDate = p.Date

	fields := map[string]any{
		"btcBought":     p.BtcBought,
		"priceZar":      p.PriceZar,
		"totalHoldings": p.TotalHoldings,
		"notes":         p.Notes,
	}
	if p.AmountInvested != nil {
		fields["amountInvested"] = *p.AmountInvested
	}

	if err := s.commit(ctx, next, s.entry("addPurchase", fields)); err != nil {
		return nil, err
	}

	return &p, nil
}

// AddMember registers a new active member with id max(existing)+1. Names are
// unique regardless of case since shares and buyouts are keyed by name.
func (s *Service) AddMember(ctx context.Context, name string, role Role, joinedDate time.Time) (*Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "must not be empty")
	}

	if role == "" {
		role = RoleMember
	}

	if role != RoleAdmin && role != RoleMember {
		return nil, invalid("role", "must be %q or %q, got %q", RoleAdmin, RoleMember, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.state.Members {
		if strings.EqualFold(existing.Name, name) {
			return nil, invalid("name", "%q is already taken by member #%d", name, existing.ID)
		}
	}

	if joinedDate.IsZero() {
		joinedDate = s.now()
	}

	m := Member{
		ID:         s.state.nextMemberID(),
		Name:       name,
		JoinedDate: Day(joinedDate),
		Status:     StatusActive,
		Role:       role,
	}

	next := s.state.Clone()
	next.Members = append(next.Members, m)

	err := s.commit(ctx, next, s.entry("addMember", map[string]any{
		"id":         m.ID,
		"name":       m.Name,
		"role":       m.Role,
		"joinedDate": m.JoinedDate.Format(time.DateOnly),
	}))
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// MemberPatch is a partial update of a member. Nil fields are left untouched.
type MemberPatch struct {
	Status    *Status
	LeaveDate *time.Time
}

// UpdateMember applies patch to member id. Marking a member as left without a leave
// date stamps today; re-activating a member clears the leave date.
func (s *Service) UpdateMember(ctx context.Context, id int, patch MemberPatch) (*Member, error) {
	if patch.Status == nil && patch.LeaveDate == nil {
		return nil, invalid("patch", "at least one of status or leaveDate is required")
	}

	if patch.Status != nil && *patch.Status != StatusActive && *patch.Status != StatusLeft {
		return nil, invalid("status", "must be %q or %q, got %q", StatusActive, StatusLeft, *patch.Status)
	}

	if patch.Status != nil && *patch.Status == StatusActive && patch.LeaveDate != nil {
		return nil, invalid("leaveDate", "cannot be set together with status %q", StatusActive)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.state.memberIndex(id)
	if idx < 0 {
		return nil, memberNotFound(id)
	}

	next := s.state.Clone()
	m := &next.Members[idx]

	if patch.Status != nil {
		m.Status = *patch.Status
	}

	if patch.LeaveDate != nil {
		m.LeaveDate = new(Day(*patch.LeaveDate))
	}

	switch {
	case m.Status == StatusLeft && m.LeaveDate == nil:
		m.LeaveDate = new(Day(s.now()))
	case m.Status == StatusActive && patch.Status != nil:
		m.LeaveDate = nil
	case m.Status == StatusActive && m.LeaveDate != nil:
		return nil, invalid("leaveDate", "cannot be set on an active member without status %q", StatusLeft)
	}

	fields := map[string]any{"id": id, "status": m.Status}
	if m.LeaveDate != nil {
		fields["leaveDate"] = m.LeaveDate.Format(time.DateOnly)
	}

	updated := *m
	if err := s.commit(ctx, next, s.entry("updateMember", fields)); err != nil {
		return nil, err
	}

	return &updated, nil
}

// AdjustHoldings overrides the cached BTC holdings for wallet reconciliation.
// The purchase ledger itself is left as is.
func (s *Service) AdjustHoldings(ctx context.Context, newHoldings float64, reason string) (*HoldingsAdjustment, error) {
	if math.IsNaN(newHoldings) || math.IsInf(newHoldings, 0) || newHoldings < 0 {
		return nil, invalid("newHoldings", "must be a non-negative number")
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	adj := HoldingsAdjustment{
		Previous: s.state.Info.CurrentBtcHoldings,
		Current:  newHoldings,
		Reason:   reason,
	}

	next := s.state.Clone()
	next.Info.CurrentBtcHoldings = newHoldings

	err := s.commit(ctx, next, s.entry("adjustHoldings", map[string]any{
		"previous": adj.Previous,
		"current":  adj.Current,
		"reason":   adj.Reason,
	}))
	if err != nil {
		return nil, err
	}

	return &adj, nil
}

type BuyoutParams struct {
	Buyer     string
	Seller    string
	AmountZar float64
	Reason    string
}

// AddBuyout records a transfer of contribution credit from seller to buyer.
func (s *Service) AddBuyout(ctx context.Context, params BuyoutParams) (*Buyout, error) {
	buyer := strings.TrimSpace(params.Buyer)
	seller := strings.TrimSpace(params.Seller)

	if buyer == "" || seller == "" {
		return nil, invalid("buyer/seller", "must not be empty")
	}

	if buyer == seller {
		return nil, invalid("seller", "must differ from buyer")
	}

	if err := positive("amountZar", params.AmountZar); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{buyer, seller} {
		if _, ok := s.state.memberByName(name); !ok {
			return nil, fmt.Errorf("member %q: %w", name, ErrNotFound)
		}
	}

	b := Buyout{
		Date:      Day(s.now()),
		Buyer:     buyer,
		Seller:    seller,
		AmountZar: params.AmountZar,
		Reason:    strings.TrimSpace(params.Reason),
	}

	next := s.state.Clone()
	next.Buyouts = append(next.Buyouts, b)

	err := s.commit(ctx, next, s.entry("addBuyout", map[string]any{
		"buyer":     b.Buyer,
		"seller":    b.Seller,
		"amountZar": b.AmountZar,
		"reason":    b.Reason,
	}))
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// commit persists next and swaps it in. The caller must hold s.mu.
// Audit entries are written after the state is durable and their failures are only logged.
func (s *Service) commit(ctx context.Context, next *State, audits ...AuditEntry) error {
	summary := buildSummary(next, s.now())

	if err := s.repo.Save(ctx, next, summary); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}

	s.state = next
	s.summary = summary

	for _, entry := range audits {
		if err := s.repo.AppendAudit(ctx, entry); err != nil {
			s.logger.Warn("failed to write audit entry", "action", entry.Action, "error", err)
		}
	}

	return nil
}

func (s *Service) entry(action string, fields map[string]any) AuditEntry {
	return AuditEntry{
		Timestamp: s.now().UTC(),
		Action:    action,
		Fields:    fields,
	}
}

func positive(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return invalid(field, "must be a positive number")
	}

	return nil
}
