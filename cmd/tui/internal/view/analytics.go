package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zargusta/fundtracker/internal/analytics"
	"github.com/zargusta/fundtracker/internal/fund"
)

type AnalyticsModel struct {
	CommonModel

	result  analytics.Result
	monthly table.Model
	members table.Model
	focus   int
}

func NewAnalyticsModel(svc *fund.Service) AnalyticsModel {
	result := analytics.Compute(svc.Contributions(), svc.Purchases(), svc.Members(), time.Now())

	monthly := table.New(
		table.WithColumns([]table.Column{
			{Title: "Month", Width: 8},
			{Title: "Contributed", Width: 14},
			{Title: "Invested", Width: 14},
			{Title: "BTC bought", Width: 12},
			{Title: "Avg cost", Width: 14},
			{Title: "Active", Width: 6},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	rows := make([]table.Row, len(result.Monthly))
	for i, s := range result.Monthly {
		rows[i] = table.Row{
			s.Month,
			FormatZar(s.ContributionsZar),
			FormatZar(s.CumulativeInvestedZar),
			fmt.Sprintf("%.8f", s.BtcBought),
			FormatZar(s.AvgCostBasis),
			fmt.Sprint(s.ActiveMembers),
		}
	}
	monthly.SetRows(rows)

	members := table.New(
		table.WithColumns([]table.Column{
			{Title: "Member", Width: 16},
			{Title: "Total", Width: 14},
			{Title: "Count", Width: 6},
			{Title: "Last", Width: 12},
			{Title: "Share", Width: 8},
		}),
		table.WithHeight(12),
	)

	rows = make([]table.Row, len(result.Members))
	for i, m := range result.Members {
		rows[i] = table.Row{
			m.Name,
			FormatZar(m.TotalContributed),
			fmt.Sprint(m.ContributionCount),
			FormatDate(m.LastContribution),
			fmt.Sprintf("%.1f%%", m.SharePercent),
		}
	}
	members.SetRows(rows)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	monthly.SetStyles(s)
	members.SetStyles(s)

	return AnalyticsModel{
		result:  result,
		monthly: monthly,
		members: members,
	}
}

func (m AnalyticsModel) Title() string     { return "Analytics" }
func (m AnalyticsModel) ShortHelp() string { return "Esc: back | Tab: switch table" }

func (m AnalyticsModel) Init() tea.Cmd {
	return nil
}

func (m AnalyticsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "tab":
			m.focus = 1 - m.focus
			if m.focus == 0 {
				m.monthly.Focus()
				m.members.Blur()
			} else {
				m.members.Focus()
				m.monthly.Blur()
			}

			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.monthly, cmd = m.monthly.Update(msg)
	} else {
		m.members, cmd = m.members.Update(msg)
	}

	return m, cmd
}

func (m AnalyticsModel) View() string {
	r := m.result

	missed := "none"
	if len(r.Streaks.MissedMonths) > 0 {
		missed = strings.Join(r.Streaks.MissedMonths, ", ")
	}

	best := "-"
	if r.Stats.MaxMonthLabel != "" {
		best = fmt.Sprintf("%s (%s)", r.Stats.MaxMonthLabel, FormatZar(r.Stats.MaxMonthZar))
	}

	stats := panelStyle.Render(strings.Join([]string{
		titleStyle.Render("Contributions"),
		"",
		row("Current streak", fmt.Sprintf("%d months", r.Streaks.Current)),
		row("Longest streak", fmt.Sprintf("%d months", r.Streaks.Longest)),
		row("Missed months", missed),
		row("Average month", FormatZar(r.Stats.AvgMonthlyZar)),
		row("Best month", best),
		row("Weighted avg cost", FormatZar(r.CostBasis.WeightedAvgZar)),
	}, "\n"))

	border := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240"))

	tables := lipgloss.JoinHorizontal(lipgloss.Top,
		border.Render(m.monthly.View()),
		border.Render(m.members.View()),
	)

	return lipgloss.NewStyle().Padding(1).Render(lipgloss.JoinVertical(lipgloss.Left, stats, tables))
}
