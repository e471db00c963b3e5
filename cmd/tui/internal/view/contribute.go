package view

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/zargusta/fundtracker/internal/fund"
)

// ContributionModel records a single payment for an active member.
type ContributionModel struct {
	CommonModel
	fundService *fund.Service

	form   *huh.Form
	saving bool
	done   bool
	status string
}

func NewContributionModel(svc *fund.Service) ContributionModel {
	return ContributionModel{
		fundService: svc,
		form:        contributionForm(svc.ActiveMembers()),
	}
}

func contributionForm(members []fund.Member) *huh.Form {
	options := make([]huh.Option[int], len(members))
	for i, m := range members {
		options[i] = huh.NewOption(m.Name, m.ID)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Key("member").
				Title("Member").
				Options(options...),

			huh.NewInput().
				Key("amount").
				Title("Amount (ZAR)").
				Placeholder("500.00").
				Validate(func(s string) error {
					_, err := parseZar(s)
					return err
				}),
		),
	).WithWidth(45).WithShowHelp(false)
}

func parseZar(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(s, ",", "")), 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("enter a positive amount")
	}

	return v, nil
}

func (m ContributionModel) Title() string { return "Record Contribution" }

func (m ContributionModel) ShortHelp() string {
	if m.done {
		return "Esc: back | n: record another"
	}

	return "Navigate form | Esc: back"
}

func (m ContributionModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m ContributionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case contributionSavedMsg:
		m.saving = false
		m.done = true

		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.status = fmt.Sprintf("Recorded %s from %s on %s.", FormatZar(msg.c.AmountZar), msg.c.MemberName, FormatDate(msg.c.Date))

		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m, Back
		}

		if m.done && msg.String() == "n" {
			next := NewContributionModel(m.fundService)
			return next, next.Init()
		}
	}

	if m.done || m.saving {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.saving = true

	return m, m.saveCmd()
}

func (m ContributionModel) View() string {
	if len(m.fundService.ActiveMembers()) == 0 {
		return lipgloss.NewStyle().Padding(2).Render("There are no active members.")
	}

	if m.done {
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	}

	if m.saving {
		return lipgloss.NewStyle().Padding(2).Render("Saving...")
	}

	return lipgloss.NewStyle().Padding(1).Render(panelStyle.Width(50).Render(m.form.View()))
}

// Messages

type contributionSavedMsg struct {
	c   *fund.Contribution
	err error
}

func (m ContributionModel) saveCmd() tea.Cmd {
	id, _ := m.form.Get("member").(int)
	amount, _ := parseZar(m.form.GetString("amount"))

	return func() tea.Msg {
		ctx, cancel := StoreCtx()
		defer cancel()

		c, err := m.fundService.AddContribution(ctx, id, "", amount)

		return contributionSavedMsg{c: c, err: err}
	}
}
