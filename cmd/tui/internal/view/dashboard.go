package view

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/portfolio"
	"github.com/zargusta/fundtracker/internal/price"
)

// Quoter is the price source the screens value the fund against.
type Quoter interface {
	Current(ctx context.Context) price.Quote
}

type DashboardModel struct {
	CommonModel
	fundService *fund.Service
	prices      Quoter

	snapshot portfolio.Snapshot
	quote    price.Quote
	info     fund.Info
	summary  fund.Summary
	loading  bool
}

func NewDashboardModel(svc *fund.Service, prices Quoter) DashboardModel {
	return DashboardModel{
		fundService: svc,
		prices:      prices,
		loading:     true,
	}
}

func (m DashboardModel) Title() string     { return "Dashboard" }
func (m DashboardModel) ShortHelp() string { return "Esc: back | r: refresh price" }

func (m DashboardModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardMsg:
		m.loading = false
		m.quote = msg.quote
		m.info = msg.info
		m.summary = msg.summary
		m.snapshot = portfolio.Calculate(msg.summary, msg.info, msg.quote, msg.now)

		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		}
	}

	return m, nil
}

func (m DashboardModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Fetching BTC price...")
	}

	s := m.snapshot

	lines := []string{
		titleStyle.Render(m.info.Name),
		"",
		row("BTC price", fmt.Sprintf("%s (%s)", FormatZar(s.PriceZar), s.PriceSource)),
		row("Holdings", FormatBtc(s.TotalBtc)),
		row("Value", FormatZar(s.ValueZar)),
		row("Invested", FormatZar(s.TotalInvestedZar)),
		row("Profit/loss", signed(s.ProfitLossZar, fmt.Sprintf("%s (%s)", FormatZar(s.ProfitLossZar), FormatPct(s.ProfitLossPct)))),
	}

	if m.info.TargetAmountZar > 0 {
		lines = append(lines,
			row("Target", fmt.Sprintf("%s by %s", FormatZar(m.info.TargetAmountZar), FormatDate(m.info.TargetDate))),
			row("Progress", fmt.Sprintf("%.2f%% (%d days left)", s.TargetProgressPct, s.DaysToTarget)),
		)
	}

	lines = append(lines,
		row("Active members", fmt.Sprintf("%d of %d", m.summary.ActiveMembers, m.summary.TotalMembersAllTime)),
		row("Last purchase", FormatDate(m.summary.LastBtcPurchase)),
	)

	if m.quote.Source == price.SourceUnavailable {
		lines = append(lines, "", lossStyle.Render("No price available, values are zero."))
	}

	shares := make([]string, 0, len(s.Members))
	for _, name := range slices.Sorted(maps.Keys(s.Members)) {
		mv := s.Members[name]
		shares = append(shares, row(name, fmt.Sprintf("%s  %s  %.2f%%", FormatBtc(mv.BtcShare), FormatZar(mv.ValueZar), mv.SharePct)))
	}

	content := panelStyle.Render(strings.Join(lines, "\n"))
	if len(shares) > 0 {
		content = lipgloss.JoinHorizontal(lipgloss.Top,
			content,
			panelStyle.Render(titleStyle.Render("Member shares")+"\n\n"+strings.Join(shares, "\n")),
		)
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

// Messages

type dashboardMsg struct {
	quote   price.Quote
	info    fund.Info
	summary fund.Summary
	now     time.Time
}

func (m DashboardModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := PriceCtx()
		defer cancel()

		return dashboardMsg{
			quote:   m.prices.Current(ctx),
			info:    m.fundService.Info(),
			summary: m.fundService.Summary(),
			now:     time.Now(),
		}
	}
}
