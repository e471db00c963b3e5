package command

import (
	"context"
	"flag"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/google/subcommands"

	"github.com/zargusta/fundtracker/internal/analytics"
	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/portfolio"
	"github.com/zargusta/fundtracker/internal/report"
)

type summaryCmd struct {
	env  *Env
	path string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print the derived fund summary as JSON" }
func (*summaryCmd) Usage() string {
	return `fundctl summary [-path <jsonpath>]

  Prints totals, member contributions and equal shares.
  -path selects part of the document, e.g. '$.MemberShares.Alice.BtcShare'.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.path, "path", "", "JSONPath expression selecting part of the output")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	if err := c.env.printJSON(svc.Summary(), c.path); err != nil {
		return c.env.fail(err)
	}

	return subcommands.ExitSuccess
}

type portfolioCmd struct {
	env  *Env
	path string
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "value the fund at the live BTC price" }
func (*portfolioCmd) Usage() string {
	return `fundctl portfolio [-path <jsonpath>]

  Fetches the BTC price and prints the valuation as JSON, e.g. -path '$.ValueZar'.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.path, "path", "", "JSONPath expression selecting part of the output")
}

func (c *portfolioCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	snapshot := portfolio.Calculate(svc.Summary(), svc.Info(), c.env.Quote(ctx), c.env.Now())

	if err := c.env.printJSON(snapshot, c.path); err != nil {
		return c.env.fail(err)
	}

	return subcommands.ExitSuccess
}

type analyticsCmd struct {
	env  *Env
	path string
}

func (*analyticsCmd) Name() string     { return "analytics" }
func (*analyticsCmd) Synopsis() string { return "print monthly history, streaks and cost basis" }
func (*analyticsCmd) Usage() string {
	return `fundctl analytics [-path <jsonpath>]

  Prints the analytics document as JSON, e.g. -path '$.Streaks.MissedMonths'.
`
}

func (c *analyticsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.path, "path", "", "JSONPath expression selecting part of the output")
}

func (c *analyticsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	result := analytics.Compute(svc.Contributions(), svc.Purchases(), svc.Members(), c.env.Now())

	if err := c.env.printJSON(result, c.path); err != nil {
		return c.env.fail(err)
	}

	return subcommands.ExitSuccess
}

type reportCmd struct {
	env  *Env
	html string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "render the fund report" }
func (*reportCmd) Usage() string {
	return `fundctl report [-html <file>]

  Renders the portfolio, member shares and monthly history in the terminal.
  With -html the report is written to a standalone HTML page instead.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.html, "html", "", "Write the report as HTML to this file")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	in := report.Build(svc, c.env.Quote(ctx), c.env.Now())
	md := report.Markdown(in)

	if c.html == "" {
		if err := c.env.printMarkdown(md); err != nil {
			return c.env.fail(err)
		}

		return subcommands.ExitSuccess
	}

	page, err := report.HTML(md, in.Info.Name)
	if err != nil {
		return c.env.fail(err)
	}

	if err := os.WriteFile(c.html, page, 0o644); err != nil {
		return c.env.fail(fmt.Errorf("writing %s: %w", c.html, err))
	}

	fmt.Fprintf(c.env.Out, "Report written to %s\n", c.html)

	return subcommands.ExitSuccess
}

type ledgerCmd struct {
	env    *Env
	kind   string
	member string
	page   int
	limit  int
}

func (*ledgerCmd) Name() string     { return "ledger" }
func (*ledgerCmd) Synopsis() string { return "list contributions and purchases, newest first" }
func (*ledgerCmd) Usage() string {
	return `fundctl ledger [-type all|contribution|purchase] [-member <name>] [-page <n>] [-limit <n>]

  The member filter only narrows contributions.
`
}

func (c *ledgerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "type", string(fund.EntryTypeAll), "Entry type: all, contribution or purchase")
	f.StringVar(&c.member, "member", "", "Only show contributions by this member")
	f.IntVar(&c.page, "page", 1, "Page number")
	f.IntVar(&c.limit, "limit", 50, "Entries per page (10 to 100)")
}

func (c *ledgerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	kind := fund.EntryType(c.kind)
	switch kind {
	case fund.EntryTypeAll, fund.EntryTypeContribution, fund.EntryTypePurchase:
	default:
		return c.env.usage("-type must be all, contribution or purchase, got %q", c.kind)
	}

	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	page := svc.Ledger(fund.LedgerFilter{Type: kind, Member: c.member, Page: c.page, Limit: c.limit})

	var b strings.Builder

	fmt.Fprintf(&b, "## Ledger\n\nPage %d of %d, %d entries.\n\n", page.Page, page.Pages, page.Total)

	if len(page.Entries) > 0 {
		b.WriteString("| Date | Type | Member | Amount | BTC | Price | Notes |\n")
		b.WriteString("|---|---|---|---:|---:|---:|---|\n")

		for _, e := range page.Entries {
			btc, unit := "", ""
			if e.Type == fund.EntryTypePurchase {
				btc = fmt.Sprintf("%.8f", e.Btc)
				unit = report.ZAR(e.PriceZar)
			}

			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				e.Date.Format("2006-01-02"), e.Type, e.Member, report.ZAR(e.AmountZar), btc, unit, strings.ReplaceAll(e.Notes, "|", `\|`))
		}
	}

	if err := c.env.printMarkdown(b.String()); err != nil {
		return c.env.fail(err)
	}

	return subcommands.ExitSuccess
}

type auditLogCmd struct {
	env   *Env
	limit int
}

func (*auditLogCmd) Name() string     { return "audit-log" }
func (*auditLogCmd) Synopsis() string { return "print the most recent audit entries" }
func (*auditLogCmd) Usage() string {
	return `fundctl audit-log [-n <entries>]
`
}

func (c *auditLogCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 50, "Number of entries, newest first")
}

func (c *auditLogCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	entries, err := svc.AuditLog(ctx, c.limit)
	if err != nil {
		return c.env.fail(err)
	}

	for _, e := range entries {
		fmt.Fprintf(c.env.Out, "%s  %-18s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, formatFields(e.Fields))
	}

	return subcommands.ExitSuccess
}

func formatFields(fields map[string]any) string {
	keys := slices.Sorted(maps.Keys(fields))

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}

	return strings.Join(parts, " ")
}
