package store_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zargusta/fundtracker/internal/config"
	"github.com/zargusta/fundtracker/internal/database"
	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/fund/store"
)

var now = time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

func clock() time.Time { return now }

func newSQLiteStore(t *testing.T) *store.SQLStore {
	t.Helper()

	db, err := database.New(context.Background(), database.DriverSQLite, filepath.Join(t.TempDir(), "fund.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return store.NewSQLStore(db, database.DriverSQLite)
}

func newFileStore(t *testing.T) *store.FileStore {
	t.Helper()

	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	return s
}

func TestStores_RoundTrip(t *testing.T) {
	type testCase struct {
		name string
		repo func(t *testing.T) fund.Repository
	}

	tests := []testCase{
		{name: "File", repo: func(t *testing.T) fund.Repository { return newFileStore(t) }},
		{name: "SQLite", repo: func(t *testing.T) fund.Repository { return newSQLiteStore(t) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := tt.repo(t)

			svc := fund.NewService(ctx, repo, fund.WithClock(clock))

			alice, err := svc.AddMember(ctx, "Alice", fund.RoleAdmin, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
			require.NoError(t, err)

			bob, err := svc.AddMember(ctx, "Bob", fund.RoleMember, time.Time{})
			require.NoError(t, err)

			_, err = svc.AddContribution(ctx, alice.ID, "", 7000)
			require.NoError(t, err)

			_, err = svc.AddContribution(ctx, bob.ID, "Bobby", 3000)
			require.NoError(t, err)

			_, err = svc.AddPurchase(ctx, fund.PurchaseParams{BtcBought: 0.03, PriceZar: 333333, AmountInvested: new(10000.0), Notes: "dca"})
			require.NoError(t, err)

			_, err = svc.UpdateMember(ctx, bob.ID, fund.MemberPatch{Status: new(fund.StatusLeft)})
			require.NoError(t, err)

			_, err = svc.AddBuyout(ctx, fund.BuyoutParams{Buyer: "Alice", Seller: "Bob", AmountZar: 3000})
			require.NoError(t, err)

			reloaded := fund.NewService(ctx, repo, fund.WithClock(clock))

			assert.Equal(t, svc.Members(), reloaded.Members())
			assert.Equal(t, svc.Contributions(), reloaded.Contributions())
			assert.Equal(t, svc.Purchases(), reloaded.Purchases())
			assert.Equal(t, svc.Buyouts(), reloaded.Buyouts())
			assert.Equal(t, svc.Info(), reloaded.Info())
			assert.Equal(t, svc.Summary(), reloaded.Summary())

			entries, err := reloaded.AuditLog(ctx, 3)
			require.NoError(t, err)
			require.Len(t, entries, 3)
			assert.Equal(t, "addBuyout", entries[0].Action)
			assert.Equal(t, "updateMember", entries[1].Action)
			assert.Equal(t, "addPurchase", entries[2].Action)
			assert.Equal(t, now, entries[0].Timestamp)
			assert.Equal(t, "Alice", entries[0].Fields["buyer"])
		})
	}
}

func TestStores_EmptyLoad(t *testing.T) {
	ctx := context.Background()

	for name, repo := range map[string]fund.Repository{
		"File":   newFileStore(t),
		"SQLite": newSQLiteStore(t),
	} {
		t.Run(name, func(t *testing.T) {
			state, err := repo.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, state.Members)
			assert.NotNil(t, state.Info.MemberTransitions)

			entries, err := repo.ReadAudit(ctx, 10)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

const legacyDocument = `{
  "members": [
    {"id": 1, "name": "Alice", "joined_date": "2024-01-01", "leave_date": null, "status": "active", "role": "admin"},
    {"id": 2, "name": "Charlie", "joined_date": "2024-01-01", "leave_date": "2024-06-30", "status": "left", "role": "member"}
  ],
  "btc_purchases": [
    {"date": "2024-01-10", "btc_bought": 0.01, "total_holdings": 0.01, "price_zar": 800000}
  ],
  "contributions": [
    {"date": "2024-01-05", "member_id": 1, "member_name": "Alice", "amount_zar": 4000, "type": "contribution"},
    {"date": "2024-01-05", "member_id": 2, "member_name": "Charlie", "amount_zar": 4000, "type": "contribution"}
  ],
  "fund_info": {
    "name": "Augusta",
    "target_date": "2027-08-01",
    "target_amount_zar": 300000,
    "created_date": "2024-01-01T08:00:00.000Z",
    "description": "",
    "btc_purchaser": "Alice",
    "current_btc_holdings": 0.01,
    "last_purchase_date": "2024-01-10",
    "member_transitions": {"charlie_left": "2024-06-30"},
    "buyouts": [{"buyer": "Alice", "seller": "Charlie", "amount_zar": 4000}]
  }
}`

func TestFileStore_LegacyDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "historical_data.json"), []byte(legacyDocument), 0o644))

	s, err := store.NewFileStore(dir)
	require.NoError(t, err)

	state, err := s.Load(ctx)
	require.NoError(t, err)

	require.Len(t, state.Buyouts, 1)
	assert.Equal(t, "Charlie", state.Buyouts[0].Seller)
	assert.True(t, state.Buyouts[0].Date.IsZero())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), state.Info.CreatedDate)
	assert.Equal(t, time.Date(2027, 8, 1, 0, 0, 0, 0, time.UTC), state.Info.TargetDate)
	require.NotNil(t, state.Members[1].LeaveDate)
	assert.Nil(t, state.Members[0].LeaveDate)

	svc := fund.NewService(ctx, s, fund.WithClock(clock))
	summary := svc.Summary()
	assert.Equal(t, 8000.0, summary.MemberContributions["Alice"])
	assert.Equal(t, 0.0, summary.MemberContributions["Charlie"])

	// The next save moves the buyout out of fund_info.
	_, err = svc.AdjustHoldings(ctx, 0.0101, "wallet sync")
	require.NoError(t, err)

	body, err := os.ReadFile(filepath.Join(dir, "historical_data.json"))
	require.NoError(t, err)
	var saved struct {
		Buyouts  []map[string]any `json:"buyouts"`
		FundInfo map[string]any   `json:"fund_info"`
	}
	require.NoError(t, json.Unmarshal(body, &saved))
	assert.Len(t, saved.Buyouts, 1)
	assert.NotContains(t, saved.FundInfo, "buyouts")

	reloaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, reloaded.Buyouts, 1)

	_, err = os.Stat(filepath.Join(dir, "fund_summary.json"))
	assert.NoError(t, err)
}

func TestFileStore_CorruptDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "historical_data.json"), []byte("{not json"), 0o644))

	s, err := store.NewFileStore(dir)
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	assert.Error(t, err)

	// The service degrades to an empty ledger instead of failing.
	svc := fund.NewService(context.Background(), s, fund.WithClock(clock))
	assert.Empty(t, svc.Members())
}

func TestFileStore_ReadAudit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	lines := "" +
		`{"timestamp":"2025-01-01T00:00:00.000Z","action":"addMember","name":"Alice"}` + "\n" +
		"garbage line\n" +
		"\n" +
		`{"timestamp":"2025-01-02T00:00:00.000Z","action":"addContribution","amountZar":500}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audit-log.jsonl"), []byte(lines), 0o644))

	s, err := store.NewFileStore(dir)
	require.NoError(t, err)

	type testCase struct {
		name        string
		limit       int
		wantActions []string
	}

	tests := []testCase{
		{name: "All", limit: 10, wantActions: []string{"addContribution", "", "addMember"}},
		{name: "Newest", limit: 1, wantActions: []string{"addContribution"}},
		{name: "Two", limit: 2, wantActions: []string{"addContribution", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.ReadAudit(ctx, tt.limit)
			require.NoError(t, err)

			var actions []string
			for _, e := range entries {
				actions = append(actions, e.Action)
			}

			assert.Equal(t, tt.wantActions, actions)
		})
	}

	entries, err := s.ReadAudit(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "garbage line", entries[1].Fields["raw"])
	assert.Equal(t, 500.0, entries[0].Fields["amountZar"])
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), entries[0].Timestamp)
}

func TestFileStore_AppendAudit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := store.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.AppendAudit(ctx, fund.AuditEntry{Timestamp: now, Action: "adjustHoldings", Fields: map[string]any{"reason": "sync"}}))
	require.NoError(t, s.AppendAudit(ctx, fund.AuditEntry{Timestamp: now, Action: "addMember"}))

	body, err := os.ReadFile(filepath.Join(dir, "audit-log.jsonl"))
	require.NoError(t, err)

	assert.Equal(t,
		`{"action":"adjustHoldings","reason":"sync","timestamp":"2025-03-15T10:30:00.000Z"}`+"\n"+
			`{"action":"addMember","timestamp":"2025-03-15T10:30:00.000Z"}`+"\n",
		string(body),
	)
}

func TestOpen(t *testing.T) {
	type testCase struct {
		name    string
		backend string
		want    any
	}

	tests := []testCase{
		{name: "File", backend: config.BackendFile, want: &store.FileStore{}},
		{name: "SQLite", backend: config.BackendSQLite, want: &store.SQLStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()

			var cfg config.Config
			cfg.Store.Backend = tt.backend
			cfg.Store.DataDir = filepath.Join(dir, "data")
			cfg.Store.SQLitePath = filepath.Join(dir, "db", "fund.db")

			repo, closeFn, err := store.Open(context.Background(), &cfg)
			require.NoError(t, err)

			t.Cleanup(func() { assert.NoError(t, closeFn()) })

			assert.IsType(t, tt.want, repo)

			state, err := repo.Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, state.Members)
		})
	}
}
