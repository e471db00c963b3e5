package view

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/zargusta/fundtracker/internal/report"
)

const (
	storeTimeout = 5 * time.Second
	priceTimeout = 15 * time.Second
)

// FormatZar renders a rand amount with the currency symbol and grouping.
func FormatZar(v float64) string {
	return report.ZAR(v)
}

func FormatBtc(v float64) string {
	return report.BTC(v)
}

// FormatDate formats a time.Time into YYYY-MM-DD, or "-" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Format(time.DateOnly)
}

func FormatPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// StoreCtx returns a context with a standard timeout for ledger writes.
func StoreCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

func PriceCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), priceTimeout)
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Width(22)
	faintStyle  = lipgloss.NewStyle().Faint(true)
	panelStyle  = lipgloss.NewStyle().Padding(1, 2).BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func signed(v float64, s string) string {
	if v < 0 {
		return lossStyle.Render(s)
	}

	return gainStyle.Render(s)
}
