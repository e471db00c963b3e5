package importer_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/text/encoding/charmap"

	"github.com/zargusta/fundtracker/internal/encoding"
	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/importer"
)

type fakeLedger struct {
	members []fund.Member
	calls   [][]fund.RoundParams
	saved   []fund.Contribution
	fail    bool
}

func (f *fakeLedger) Members() []fund.Member {
	return f.members
}

// AddRounds mirrors the all-or-nothing write of fund.Service.
func (f *fakeLedger) AddRounds(_ context.Context, params []fund.RoundParams) ([]*fund.Round, error) {
	f.calls = append(f.calls, params)

	var (
		rounds  []*fund.Round
		pending []fund.Contribution
	)

	for _, rp := range params {
		round := &fund.Round{Date: rp.Date}
		for _, p := range rp.Payments {
			round.Contributions = append(round.Contributions, fund.Contribution{
				Date: rp.Date, MemberID: p.MemberID, MemberName: p.MemberName, AmountZar: p.AmountZar,
			})
			round.TotalZar += p.AmountZar
		}

		rounds = append(rounds, round)
		pending = append(pending, round.Contributions...)
	}

	if f.fail {
		return nil, errors.New("saving state: disk full")
	}

	f.saved = append(f.saved, pending...)

	return rounds, nil
}

func newLedger() *fakeLedger {
	return &fakeLedger{members: []fund.Member{
		{ID: 1, Name: "Alice", Status: fund.StatusActive},
		{ID: 2, Name: "Bob", Status: fund.StatusActive},
		{ID: 3, Name: "Renée", Status: fund.StatusActive},
	}}
}

func TestService_Import_GroupsByDate(t *testing.T) {
	ledger := newLedger()
	svc := importer.NewService(ledger)

	csv := `date;member;amount
2025-03-01;Alice;1000
;bob;500
2025-02-01;Bob;750
2025-03-01;Renée;250
`

	res, err := svc.Import(context.Background(), importer.FormatCSV, strings.NewReader(csv), date(2025, 3, 15))
	require.NoError(t, err)

	assert.Equal(t, encoding.UTF8, res.Charset)
	assert.Equal(t, 4, res.Payments)
	assert.InDelta(t, 2500, res.TotalZar, 1e-9)

	require.Len(t, ledger.calls, 1)

	rounds := ledger.calls[0]
	require.Len(t, rounds, 3)
	assert.Equal(t, date(2025, 3, 1), rounds[0].Date)
	assert.Equal(t, []fund.PaymentParams{
		{MemberName: "Alice", AmountZar: 1000},
		{MemberName: "Renée", AmountZar: 250},
	}, rounds[0].Payments)
	assert.Equal(t, date(2025, 3, 15), rounds[1].Date)
	assert.Equal(t, date(2025, 2, 1), rounds[2].Date)

	require.Len(t, res.Rounds, 3)
	assert.Len(t, ledger.saved, 4)
}

func TestService_Import_Windows1252(t *testing.T) {
	ledger := newLedger()
	svc := importer.NewService(ledger)

	raw, err := charmap.Windows1252.NewEncoder().Bytes([]byte("member;amount\nRenée;R 300,00\n"))
	require.NoError(t, err)

	res, err := svc.Import(context.Background(), importer.FormatCSV, bytes.NewReader(raw), time.Time{})
	require.NoError(t, err)

	require.Len(t, ledger.calls, 1)
	require.Len(t, ledger.calls[0], 1)
	assert.Equal(t, "Renée", ledger.calls[0][0].Payments[0].MemberName)
	assert.True(t, ledger.calls[0][0].Date.IsZero())
	assert.NotEqual(t, encoding.UTF8, res.Charset)
}

func TestService_Import_Errors(t *testing.T) {
	type testCase struct {
		name      string
		format    importer.Format
		input     string
		fail      bool
		wantIs    error
		wantErr   string
		wantCalls int
	}

	tests := []testCase{
		{
			name:    "UnknownFormat",
			format:  "xlsx",
			input:   "",
			wantIs:  fund.ErrValidation,
			wantErr: "unknown import format",
		},
		{
			name:    "ParseError",
			format:  importer.FormatCSV,
			input:   "member;amount\nAlice;-1\n",
			wantIs:  fund.ErrValidation,
			wantErr: "line 2",
		},
		{
			name:    "Empty",
			format:  importer.FormatCSV,
			input:   "member;amount\n",
			wantIs:  fund.ErrValidation,
			wantErr: "no payments found",
		},
		{
			name:      "UnknownMemberRejectsWholeFile",
			format:    importer.FormatCSV,
			input:     "date;member;amount\n2025-01-01;Alice;100\n2025-02-01;Mallory;100\n",
			wantIs:    fund.ErrNotFound,
			wantErr:   `line 3: member "Mallory"`,
			wantCalls: 0,
		},
		{
			name:      "UnknownMemberID",
			format:    importer.FormatJSON,
			input:     `{"payments":[{"memberId":9,"amountZar":100}]}`,
			wantIs:    fund.ErrNotFound,
			wantErr:   "line 1: member 9",
			wantCalls: 0,
		},
		{
			name:      "LedgerFailure",
			format:    importer.FormatCSV,
			input:     "date;member;amount\n2025-01-01;Alice;100\n2025-02-01;Bob;100\n",
			fail:      true,
			wantErr:   "recording payments: saving state: disk full",
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newLedger()
			ledger.fail = tt.fail

			res, err := importer.NewService(ledger).Import(context.Background(), tt.format, strings.NewReader(tt.input), time.Time{})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Empty(t, ledger.saved)

			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}

			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Len(t, ledger.calls, tt.wantCalls)
		})
	}
}

func TestService_Import_StorageFailureRecordsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	state := fund.NewState()
	state.Members = newLedger().members

	repo := fund.NewMockRepository(ctrl)
	repo.EXPECT().Load(gomock.Any()).Return(state, nil)
	repo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	ledger := fund.NewService(context.Background(), repo)

	csv := "date;member;amount\n2025-01-01;Alice;100\n2025-02-01;Bob;100\n"

	_, err := importer.NewService(ledger).Import(context.Background(), importer.FormatCSV, strings.NewReader(csv), time.Time{})
	require.ErrorContains(t, err, "saving state: disk full")
	assert.Empty(t, ledger.Contributions())

	repo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	repo.EXPECT().AppendAudit(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	res, err := importer.NewService(ledger).Import(context.Background(), importer.FormatCSV, strings.NewReader(csv), time.Time{})
	require.NoError(t, err)
	assert.Len(t, res.Rounds, 2)
	assert.Len(t, ledger.Contributions(), 2)
}
