package command

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/importer"
	"github.com/zargusta/fundtracker/internal/report"
)

// parseDate accepts an empty string as "today".
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.DateOnly, s)
}

type addMemberCmd struct {
	env    *Env
	name   string
	role   string
	joined string
}

func (*addMemberCmd) Name() string     { return "add-member" }
func (*addMemberCmd) Synopsis() string { return "register a new active member" }
func (*addMemberCmd) Usage() string {
	return `fundctl add-member -name <name> [-role member|admin] [-joined YYYY-MM-DD]
`
}

func (c *addMemberCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Member name (required)")
	f.StringVar(&c.role, "role", string(fund.RoleMember), "Member role: member or admin")
	f.StringVar(&c.joined, "joined", "", "Join date, defaults to today")
}

func (c *addMemberCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.name == "" {
		return c.env.usage("-name is required")
	}

	joined, err := parseDate(c.joined)
	if err != nil {
		return c.env.usage("-joined must be YYYY-MM-DD, got %q", c.joined)
	}

	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	m, err := svc.AddMember(ctx, c.name, fund.Role(c.role), joined)
	if err != nil {
		return c.env.fail(err)
	}

	fmt.Fprintf(c.env.Out, "Added %s as member #%d (%s), joined %s\n", m.Name, m.ID, m.Role, m.JoinedDate.Format(time.DateOnly))

	return subcommands.ExitSuccess
}

type setStatusCmd struct {
	env    *Env
	id     int
	status string
	leave  string
}

func (*setStatusCmd) Name() string     { return "set-status" }
func (*setStatusCmd) Synopsis() string { return "mark a member as left or active again" }
func (*setStatusCmd) Usage() string {
	return `fundctl set-status -id <member id> -status active|left [-leave YYYY-MM-DD]

  Leaving without -leave stamps today. Re-activating clears the leave date.
`
}

func (c *setStatusCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.id, "id", 0, "Member id (required)")
	f.StringVar(&c.status, "status", "", "New status: active or left")
	f.StringVar(&c.leave, "leave", "", "Leave date")
}

func (c *setStatusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.id <= 0 {
		return c.env.usage("-id is required")
	}

	var patch fund.MemberPatch

	if c.status != "" {
		patch.Status = new(fund.Status(c.status))
	}

	if c.leave != "" {
		d, err := parseDate(c.leave)
		if err != nil {
			return c.env.usage("-leave must be YYYY-MM-DD, got %q", c.leave)
		}

		patch.LeaveDate = &d
	}

	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	m, err := svc.UpdateMember(ctx, c.id, patch)
	if err != nil {
		return c.env.fail(err)
	}

	fmt.Fprintf(c.env.Out, "%s is now %s\n", m.Name, m.Status)

	return subcommands.ExitSuccess
}

type contributeCmd struct {
	env    *Env
	member string
	amount float64
}

func (*contributeCmd) Name() string     { return "add-contribution" }
func (*contributeCmd) Synopsis() string { return "record a contribution for today" }
func (*contributeCmd) Usage() string {
	return `fundctl add-contribution -member <id or name> -amount <zar>
`
}

func (c *contributeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.member, "member", "", "Member id or name (required)")
	f.Float64Var(&c.amount, "amount", 0, "Amount in ZAR (required)")
}

func (c *contributeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.member == "" {
		return c.env.usage("-member is required")
	}

	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	id, err := strconv.Atoi(c.member)
	if err != nil {
		id = memberIDByName(svc.Members(), c.member)
	}

	contribution, err := svc.AddContribution(ctx, id, "", c.amount)
	if err != nil {
		return c.env.fail(err)
	}

	fmt.Fprintf(c.env.Out, "Recorded %s from %s\n", report.ZAR(contribution.AmountZar), contribution.MemberName)

	return subcommands.ExitSuccess
}

// memberIDByName returns 0 when nobody matches, which the ledger reports as not found.
func memberIDByName(members []fund.Member, name string) int {
	for _, m := range members {
		if strings.EqualFold(m.Name, strings.TrimSpace(name)) {
			return m.ID
		}
	}

	return 0
}

type purchaseCmd struct {
	env      *Env
	btc      float64
	price    float64
	invested float64
	notes    string
}

func (*purchaseCmd) Name() string     { return "add-purchase" }
func (*purchaseCmd) Synopsis() string { return "record a BTC purchase" }
func (*purchaseCmd) Usage() string {
	return `fundctl add-purchase -btc <amount> -price <zar per btc> [-invested <zar>] [-notes <text>]
`
}

func (c *purchaseCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.btc, "btc", 0, "BTC bought (required)")
	f.Float64Var(&c.price, "price", 0, "Price paid per BTC in ZAR (required)")
	f.Float64Var(&c.invested, "invested", 0, "ZAR spent including fees, if known")
	f.StringVar(&c.notes, "notes", "", "Free text notes")
}

func (c *purchaseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	params := fund.PurchaseParams{BtcBought: c.btc, PriceZar: c.price, Notes: c.notes}

	f.Visit(func(fl *flag.Flag) {
		if fl.Name == "invested" {
			params.AmountInvested = &c.invested
		}
	})

	p, err := svc.AddPurchase(ctx, params)
	if err != nil {
		return c.env.fail(err)
	}

	fmt.Fprintf(c.env.Out, "Recorded %.8f BTC at %s, holdings now %.8f BTC\n", p.BtcBought, report.ZAR(p.PriceZar), p.TotalHoldings)

	return subcommands.ExitSuccess
}

type adjustHoldingsCmd struct {
	env    *Env
	btc    float64
	reason string
}

func (*adjustHoldingsCmd) Name() string     { return "adjust-holdings" }
func (*adjustHoldingsCmd) Synopsis() string { return "reconcile BTC holdings with the wallet" }
func (*adjustHoldingsCmd) Usage() string {
	return `fundctl adjust-holdings -btc <holdings> [-reason <text>]
`
}

func (c *adjustHoldingsCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.btc, "btc", -1, "New total holdings (required)")
	f.StringVar(&c.reason, "reason", "", "Why the holdings changed")
}

func (c *adjustHoldingsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.btc < 0 {
		return c.env.usage("-btc is required")
	}

	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	adj, err := svc.AdjustHoldings(ctx, c.btc, c.reason)
	if err != nil {
		return c.env.fail(err)
	}

	fmt.Fprintf(c.env.Out, "Holdings %.8f -> %.8f BTC\n", adj.Previous, adj.Current)

	return subcommands.ExitSuccess
}

type buyoutCmd struct {
	env    *Env
	buyer  string
	seller string
	amount float64
	reason string
}

func (*buyoutCmd) Name() string     { return "buyout" }
func (*buyoutCmd) Synopsis() string { return "record a member buying out another member's credit" }
func (*buyoutCmd) Usage() string {
	return `fundctl buyout -buyer <name> -seller <name> -amount <zar> [-reason <text>]
`
}

func (c *buyoutCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.buyer, "buyer", "", "Buying member (required)")
	f.StringVar(&c.seller, "seller", "", "Departing member (required)")
	f.Float64Var(&c.amount, "amount", 0, "ZAR paid (required)")
	f.StringVar(&c.reason, "reason", "", "Free text reason")
}

func (c *buyoutCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	b, err := svc.AddBuyout(ctx, fund.BuyoutParams{Buyer: c.buyer, Seller: c.seller, AmountZar: c.amount, Reason: c.reason})
	if err != nil {
		return c.env.fail(err)
	}

	fmt.Fprintf(c.env.Out, "%s bought out %s for %s\n", b.Buyer, b.Seller, report.ZAR(b.AmountZar))

	return subcommands.ExitSuccess
}

type importCmd struct {
	env    *Env
	format string
	date   string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "record payment rounds from a CSV or JSON file" }
func (*importCmd) Usage() string {
	return `fundctl import [-format csv|json] [-date YYYY-MM-DD] <file>

  Rows are grouped into one round per date. Rows without a date use -date,
  or today. The whole file is recorded at once: an unknown member or a
  storage failure records nothing.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.format, "format", "", "File format, guessed from the extension by default")
	f.StringVar(&c.date, "date", "", "Date for rows that have none")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return c.env.usage("expected exactly one file")
	}

	path := f.Arg(0)

	format := importer.Format(strings.ToLower(c.format))
	if format == "" {
		format = importer.FormatCSV
		if strings.EqualFold(filepath.Ext(path), ".json") {
			format = importer.FormatJSON
		}
	}

	date, err := parseDate(c.date)
	if err != nil {
		return c.env.usage("-date must be YYYY-MM-DD, got %q", c.date)
	}

	file, err := os.Open(path)
	if err != nil {
		return c.env.fail(err)
	}
	defer file.Close()

	svc, err := c.env.Service(ctx)
	if err != nil {
		return c.env.fail(err)
	}

	res, err := importer.NewService(svc).Import(ctx, format, file, date)
	if err != nil {
		return c.env.fail(err)
	}

	for _, r := range res.Rounds {
		fmt.Fprintf(c.env.Out, "%s  %d payments  %s\n", r.Date.Format(time.DateOnly), len(r.Contributions), report.ZAR(r.TotalZar))
	}

	fmt.Fprintf(c.env.Out, "Imported %d payments totalling %s (%s)\n", res.Payments, report.ZAR(res.TotalZar), res.Charset)

	return subcommands.ExitSuccess
}
