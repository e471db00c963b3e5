package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/zargusta/fundtracker/internal/fund"
)

type membersState int

const (
	membersStateBrowse membersState = iota
	membersStateAdd
)

type MembersModel struct {
	CommonModel
	fundService *fund.Service

	state   membersState
	table   table.Model
	members []fund.Member
	form    *huh.Form

	// Cycles between all, active and left.
	statusFilterIdx int

	status string
}

var memberFilters = []struct {
	label  string
	status fund.Status
}{
	{label: "All"},
	{label: "Active", status: fund.StatusActive},
	{label: "Left", status: fund.StatusLeft},
}

func NewMembersModel(svc *fund.Service) MembersModel {
	columns := []table.Column{
		{Title: "ID", Width: 4},
		{Title: "Name", Width: 20},
		{Title: "Role", Width: 8},
		{Title: "Status", Width: 8},
		{Title: "Joined", Width: 12},
		{Title: "Left", Width: 12},
		{Title: "Contributed", Width: 16},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

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
	t.SetStyles(s)

	m := MembersModel{
		fundService: svc,
		table:       t,
	}
	m.reload()

	return m
}

func (m MembersModel) Title() string { return "Members" }

func (m MembersModel) ShortHelp() string {
	if m.state == membersStateAdd {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | a: add | x: toggle left/active | s: status filter"
}

func (m MembersModel) Init() tea.Cmd {
	return nil
}

func (m MembersModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case memberSavedMsg:
		m.status = msg.text
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}

		m.state = membersStateBrowse
		m.form = nil
		m.table.Focus()
		m.reload()

		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	if m.state == membersStateAdd {
		return m.updateAdd(msg)
	}

	return m.updateBrowse(msg)
}

func (m MembersModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "a":
			return m.enterAddMode()
		case "x":
			return m, m.toggleCmd()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % len(memberFilters)
			m.reload()

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m MembersModel) enterAddMode() (tea.Model, tea.Cmd) {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Name").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name cannot be empty")
					}

					return nil
				}),

			huh.NewConfirm().
				Key("admin").
				Title("Admin?"),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = membersStateAdd
	m.table.Blur()

	return m, m.form.Init()
}

func (m MembersModel) updateAdd(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = membersStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.addCmd()
}

func (m MembersModel) View() string {
	header := fmt.Sprintf("Filter: [s] Status: %s", activeStyle.Render(memberFilters[m.statusFilterIdx].label))

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.state == membersStateAdd && m.form != nil {
		panel := panelStyle.Width(48).Render("New member\n\n" + m.form.View())
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = faintStyle.Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *MembersModel) reload() {
	want := memberFilters[m.statusFilterIdx].status
	contributed := m.fundService.Summary().MemberContributions

	m.members = nil
	rows := make([]table.Row, 0)

	for _, mem := range m.fundService.Members() {
		if want != "" && mem.Status != want {
			continue
		}

		left := "-"
		if mem.LeaveDate != nil {
			left = FormatDate(*mem.LeaveDate)
		}

		m.members = append(m.members, mem)
		rows = append(rows, table.Row{
			fmt.Sprint(mem.ID),
			mem.Name,
			string(mem.Role),
			string(mem.Status),
			FormatDate(mem.JoinedDate),
			left,
			FormatZar(contributed[mem.Name]),
		})
	}

	m.table.SetRows(rows)
}

// Messages

type memberSavedMsg struct {
	text string
	err  error
}

func (m MembersModel) addCmd() tea.Cmd {
	name := m.form.GetString("name")

	role := fund.RoleMember
	if m.form.GetBool("admin") {
		role = fund.RoleAdmin
	}

	return func() tea.Msg {
		ctx, cancel := StoreCtx()
		defer cancel()

		added, err := m.fundService.AddMember(ctx, name, role, time.Time{})
		if err != nil {
			return memberSavedMsg{err: err}
		}

		return memberSavedMsg{text: fmt.Sprintf("Added %s as member #%d.", added.Name, added.ID)}
	}
}

func (m MembersModel) toggleCmd() tea.Cmd {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.members) {
		return nil
	}

	mem := m.members[idx]

	next := fund.StatusLeft
	if mem.Status == fund.StatusLeft {
		next = fund.StatusActive
	}

	return func() tea.Msg {
		ctx, cancel := StoreCtx()
		defer cancel()

		updated, err := m.fundService.UpdateMember(ctx, mem.ID, fund.MemberPatch{Status: &next})
		if err != nil {
			return memberSavedMsg{err: err}
		}

		return memberSavedMsg{text: fmt.Sprintf("%s is now %s.", updated.Name, updated.Status)}
	}
}
