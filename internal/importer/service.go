package importer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zargusta/fundtracker/internal/encoding"
	"github.com/zargusta/fundtracker/internal/fund"
)

// Ledger is the part of fund.Service the importer writes through.
type Ledger interface {
	Members() []fund.Member
	AddRounds(ctx context.Context, rounds []fund.RoundParams) ([]*fund.Round, error)
}

type Result struct {
	Charset  encoding.Charset
	Rounds   []*fund.Round
	Payments int
	TotalZar float64
}

type Service struct {
	ledger  Ledger
	parsers map[Format]Parser
}

func NewService(ledger Ledger) *Service {
	return &Service{
		ledger: ledger,
		parsers: map[Format]Parser{
			FormatCSV:  NewCSVParser(),
			FormatJSON: NewJSONParser(),
		},
	}
}

// Import parses r and records one payment round per distinct date. Rows without a
// date fall into defaultDate's round (today when zero). The file is written in one
// ledger mutation, so any bad row or storage failure leaves the ledger untouched.
func (s *Service) Import(ctx context.Context, format Format, r io.Reader, defaultDate time.Time) (*Result, error) {
	parser, ok := s.parsers[format]
	if !ok {
		return nil, fmt.Errorf("%w: unknown import format %q", fund.ErrValidation, format)
	}

	text, charset, err := encoding.ToUTF8(r)
	if err != nil {
		return nil, fmt.Errorf("detecting encoding: %w", err)
	}

	payments, err := parser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fund.ErrValidation, err)
	}

	if len(payments) == 0 {
		return nil, fmt.Errorf("%w: no payments found", fund.ErrValidation)
	}

	if err := checkMembers(s.ledger.Members(), payments); err != nil {
		return nil, err
	}

	var params []fund.RoundParams
	for _, g := range groupByDate(payments, defaultDate) {
		params = append(params, fund.RoundParams{Date: g.date, Payments: g.params})
	}

	rounds, err := s.ledger.AddRounds(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("recording payments: %w", err)
	}

	res := &Result{Charset: charset, Rounds: rounds}

	for _, round := range rounds {
		res.Payments += len(round.Contributions)
		res.TotalZar += round.TotalZar
	}

	return res, nil
}

func checkMembers(members []fund.Member, payments []Payment) error {
	ids := make(map[int]bool, len(members))
	names := make(map[string]bool, len(members))

	for _, m := range members {
		ids[m.ID] = true
		names[strings.ToLower(m.Name)] = true
	}

	for _, p := range payments {
		switch {
		case p.MemberID != 0 && !ids[p.MemberID]:
			return fmt.Errorf("line %d: member %d: %w", p.Line, p.MemberID, fund.ErrNotFound)
		case p.MemberID == 0 && !names[strings.ToLower(p.MemberName)]:
			return fmt.Errorf("line %d: member %q: %w", p.Line, p.MemberName, fund.ErrNotFound)
		}
	}

	return nil
}

type dateGroup struct {
	date   time.Time
	params []fund.PaymentParams
}

// groupByDate keeps the order in which dates first appear in the file.
func groupByDate(payments []Payment, defaultDate time.Time) []dateGroup {
	var groups []dateGroup

	index := make(map[string]int)

	for _, p := range payments {
		date := p.Date
		if date.IsZero() {
			date = defaultDate
		}

		key := formatRoundDate(date)

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, dateGroup{date: date})
		}

		groups[i].params = append(groups[i].params, fund.PaymentParams{
			MemberID:   p.MemberID,
			MemberName: p.MemberName,
			AmountZar:  p.AmountZar,
		})
	}

	return groups
}

func formatRoundDate(t time.Time) string {
	if t.IsZero() {
		return "today"
	}

	return t.Format(time.DateOnly)
}
