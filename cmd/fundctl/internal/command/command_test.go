package command_test

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zargusta/fundtracker/cmd/fundctl/internal/command"
	"github.com/zargusta/fundtracker/internal/config"
	"github.com/zargusta/fundtracker/internal/price"
)

var now = time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

type fixedQuote float64

func (q fixedQuote) Current(context.Context) price.Quote {
	return price.Quote{Local: float64(q), USD: float64(q) / 18, Timestamp: now, Source: price.SourceCoinGecko}
}

type harness struct {
	env *command.Env
	out *bytes.Buffer
	err *bytes.Buffer
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Store.Backend = config.BackendFile
	cfg.Store.DataDir = dir

	h := &harness{out: &bytes.Buffer{}, err: &bytes.Buffer{}, dir: dir}
	h.env = &command.Env{
		Config: cfg,
		Out:    h.out,
		Err:    h.err,
		Now:    func() time.Time { return now },
		Plain:  true,
		Prices: fixedQuote(1000000),
	}

	t.Cleanup(func() { _ = h.env.Close() })

	return h
}

// run executes one subcommand and returns its output, resetting the buffers.
func (h *harness) run(t *testing.T, args ...string) (subcommands.ExitStatus, string) {
	t.Helper()

	h.out.Reset()
	h.err.Reset()

	for _, cmds := range command.Commands(h.env) {
		for _, cmd := range cmds {
			if cmd.Name() != args[0] {
				continue
			}

			fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
			cmd.SetFlags(fs)
			require.NoError(t, fs.Parse(args[1:]))

			return cmd.Execute(context.Background(), fs), h.out.String() + h.err.String()
		}
	}

	t.Fatalf("unknown command %q", args[0])

	return subcommands.ExitFailure, ""
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()

	status, out := h.run(t, args...)
	require.Equal(t, subcommands.ExitSuccess, status, out)

	return out
}

func seeded(t *testing.T) *harness {
	t.Helper()

	h := newHarness(t)
	h.mustRun(t, "add-member", "-name", "Alice", "-role", "admin", "-joined", "2025-01-01")
	h.mustRun(t, "add-member", "-name", "Bob", "-joined", "2025-01-01")
	h.mustRun(t, "add-contribution", "-member", "1", "-amount", "700")
	h.mustRun(t, "add-contribution", "-member", "bob", "-amount", "300")
	h.mustRun(t, "add-purchase", "-btc", "0.001", "-price", "1000000", "-notes", "march")

	return h
}

func TestRecordAndSummary(t *testing.T) {
	h := seeded(t)

	type testCase struct {
		name string
		path string
		want string
	}

	tests := []testCase{
		{name: "total contributions", path: "$.TotalContributionsZar", want: "1000"},
		{name: "holdings", path: "$.TotalBtcAcquired", want: "0.001"},
		{name: "equal share", path: "$.MemberShares.Bob.SharePct", want: "50"},
		{name: "contributed is informational", path: "$.MemberContributions.Alice", want: "700"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := h.mustRun(t, "summary", "-path", tc.path)
			assert.Equal(t, tc.want, strings.TrimSpace(out))
		})
	}
}

func TestPortfolio(t *testing.T) {
	h := seeded(t)

	out := h.mustRun(t, "portfolio")

	var snapshot struct {
		ValueZar      float64
		ProfitLossZar float64
		PriceSource   string
	}
	require.NoError(t, json.Unmarshal([]byte(out), &snapshot))

	assert.InDelta(t, 1000, snapshot.ValueZar, 1e-9)
	assert.InDelta(t, 0, snapshot.ProfitLossZar, 1e-9)
	assert.Equal(t, price.SourceCoinGecko, snapshot.PriceSource)
}

func TestAnalytics(t *testing.T) {
	h := seeded(t)

	out := h.mustRun(t, "analytics", "-path", "$.Stats.MaxMonthLabel")
	assert.Equal(t, "2025-03", strings.TrimSpace(out))
}

func TestReport(t *testing.T) {
	h := seeded(t)

	out := h.mustRun(t, "report")
	assert.Contains(t, out, "| Bob |")

	page := filepath.Join(h.dir, "report.html")
	h.mustRun(t, "report", "-html", page)

	body, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<table>")
}

func TestLedgerAndAuditLog(t *testing.T) {
	h := seeded(t)

	out := h.mustRun(t, "ledger", "-type", "purchase")
	assert.Contains(t, out, "Page 1 of 1, 1 entries.")
	assert.Contains(t, out, "march")

	out = h.mustRun(t, "audit-log", "-n", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "addPurchase")
}

func TestMembersLifecycle(t *testing.T) {
	h := seeded(t)

	out := h.mustRun(t, "set-status", "-id", "2", "-status", "left")
	assert.Equal(t, "Bob is now left\n", out)

	assert.Equal(t, "100", strings.TrimSpace(h.mustRun(t, "summary", "-path", "$.MemberShares.Alice.SharePct")))

	out = h.mustRun(t, "buyout", "-buyer", "Alice", "-seller", "Bob", "-amount", "300")
	assert.Contains(t, out, "Alice bought out Bob")

	out = h.mustRun(t, "adjust-holdings", "-btc", "0.0012", "-reason", "wallet sync")
	assert.Equal(t, "Holdings 0.00100000 -> 0.00120000 BTC\n", out)
}

func TestImport(t *testing.T) {
	h := seeded(t)

	file := filepath.Join(h.dir, "march.csv")
	require.NoError(t, os.WriteFile(file, []byte("date;member;amount\n2025-03-01;Alice;R 1 000,00\n2025-03-01;Bob;500\n"), 0o644))

	out := h.mustRun(t, "import", file)
	assert.Contains(t, out, "2025-03-01  2 payments")
	assert.Contains(t, out, "Imported 2 payments")

	assert.Equal(t, "2500", strings.TrimSpace(h.mustRun(t, "summary", "-path", "$.TotalContributionsZar")))
}

func TestErrors(t *testing.T) {
	type testCase struct {
		name       string
		args       []string
		wantStatus subcommands.ExitStatus
		wantOutput string
	}

	tests := []testCase{
		{
			name:       "missing member name",
			args:       []string{"add-member"},
			wantStatus: subcommands.ExitUsageError,
			wantOutput: "-name is required",
		},
		{
			name:       "unknown member",
			args:       []string{"add-contribution", "-member", "Zed", "-amount", "10"},
			wantStatus: subcommands.ExitFailure,
			wantOutput: "not found",
		},
		{
			name:       "non-positive amount",
			args:       []string{"add-contribution", "-member", "1", "-amount", "0"},
			wantStatus: subcommands.ExitFailure,
			wantOutput: "amountZar",
		},
		{
			name:       "bad ledger type",
			args:       []string{"ledger", "-type", "swap"},
			wantStatus: subcommands.ExitUsageError,
			wantOutput: "-type must be",
		},
		{
			name:       "import without file",
			args:       []string{"import"},
			wantStatus: subcommands.ExitUsageError,
			wantOutput: "exactly one file",
		},
		{
			name:       "bad json path",
			args:       []string{"summary", "-path", "$.["},
			wantStatus: subcommands.ExitFailure,
			wantOutput: "evaluating",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := seeded(t)

			status, out := h.run(t, tc.args...)
			assert.Equal(t, tc.wantStatus, status)
			assert.Contains(t, out, tc.wantOutput)
		})
	}
}

func TestCompletion(t *testing.T) {
	global := flag.NewFlagSet("fundctl", flag.ContinueOnError)
	global.Bool("plain", false, "")

	root := command.Completion(global)

	require.Contains(t, root.Sub, "import")
	assert.Contains(t, root.Sub["ledger"].Flags, "type")
	assert.Contains(t, root.Sub["summary"].Flags, "path")
	assert.NotNil(t, root.Sub["import"].Args)
	assert.Contains(t, root.Flags, "plain")
}
