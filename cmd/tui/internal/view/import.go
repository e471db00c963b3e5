package view

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/importer"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateFormatSelect importState = iota
	importStateFilePick
	importStateImporting
	importStateResult
)

type ImportModel struct {
	CommonModel
	importService *importer.Service

	state          importState
	filePicker     filepicker.Model
	selectedFormat importer.Format
	formatOptions  []importer.Format
	formatCursor   int

	rounds list.Model

	status string
	err    error
}

func NewImportModel(impSvc *importer.Service) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ImportModel{
		importService: impSvc,
		filePicker:    fp,
		formatOptions: []importer.Format{importer.FormatCSV, importer.FormatJSON},
	}
}

func (m ImportModel) Title() string { return "Import Payments" }

func (m ImportModel) ShortHelp() string {
	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.filePicker.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

		if m.state == importStateFormatSelect {
			return m.updateFormatSelect(msg)
		}

		if m.state == importStateResult && m.err == nil {
			var cmd tea.Cmd
			m.rounds, cmd = m.rounds.Update(msg)

			return m, cmd
		}

	case importResultMsg:
		m.state = importStateResult

		if msg.result != nil {
			items := make([]list.Item, len(msg.result.Rounds))
			for i, r := range msg.result.Rounds {
				items[i] = roundItem{round: r}
			}

			m.rounds = list.New(items, roundDelegate{}, 80, 20)
			m.rounds.Title = "Recorded rounds"
			m.rounds.SetShowStatusBar(false)
			m.rounds.SetFilteringEnabled(false)
			m.rounds.SetShowHelp(false)

			m.status = fmt.Sprintf("Imported %d payments totalling %s (%s).",
				msg.result.Payments, FormatZar(msg.result.TotalZar), msg.result.Charset)
		}

		if msg.err != nil {
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}

		return m, nil
	}

	if m.state != importStateFilePick {
		return m, nil
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.state = importStateImporting
		m.status = fmt.Sprintf("Importing from %s...", path)

		return m, m.importCmd(path)
	}

	return m, cmd
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStateFilePick:
		m.state = importStateFormatSelect
		return m, nil
	case importStateResult:
		m.state = importStateFormatSelect
		m.err = nil
		m.status = ""

		return m, nil
	}

	return m, Back
}

func (m ImportModel) updateFormatSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.formatCursor > 0 {
			m.formatCursor--
		}
	case tea.KeyDown:
		if m.formatCursor < len(m.formatOptions)-1 {
			m.formatCursor++
		}
	case tea.KeyEnter:
		m.selectedFormat = m.formatOptions[m.formatCursor]
		m.filePicker.AllowedTypes = []string{"." + string(m.selectedFormat)}
		m.state = importStateFilePick

		return m, m.filePicker.Init()
	}

	return m, nil
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateFormatSelect:
		return m.viewFormatSelect()
	case importStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("Select %s file to import:\n\n%s", strings.ToUpper(string(m.selectedFormat)), m.filePicker.View()),
		)
	case importStateImporting:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case importStateResult:
		return m.viewResult()
	}

	return ""
}

func (m ImportModel) viewFormatSelect() string {
	var b strings.Builder

	b.WriteString("Select file format:\n\n")

	for i, f := range m.formatOptions {
		cursor := " "
		if i == m.formatCursor {
			cursor = ">"
		}

		fmt.Fprintf(&b, "%s %s\n", cursor, strings.ToUpper(string(f)))
	}

	b.WriteString("\n" + faintStyle.Render("Rows without a date are recorded for today."))

	return lipgloss.NewStyle().Padding(2).Render(b.String())
}

func (m ImportModel) viewResult() string {
	style := lipgloss.NewStyle().Padding(2)

	if m.err != nil {
		return style.Render(lossStyle.Render(m.status) + "\n\n(Esc to go back)")
	}

	return style.Render(gainStyle.Render(m.status) + "\n\n" + m.rounds.View() + "\n(Esc to go back)")
}

// Messages

type importResultMsg struct {
	result *importer.Result
	err    error
}

func (m ImportModel) importCmd(path string) tea.Cmd {
	format := m.selectedFormat

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return importResultMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		result, err := m.importService.Import(ctx, format, f, time.Time{})
		if err != nil {
			return importResultMsg{result: result, err: fmt.Errorf("%s: %w", filepath.Base(path), err)}
		}

		return importResultMsg{result: result}
	}
}

// Round list item

type roundItem struct {
	round *fund.Round
}

func (i roundItem) Title() string       { return FormatDate(i.round.Date) }
func (i roundItem) Description() string { return "" }
func (i roundItem) FilterValue() string { return "" }

type roundDelegate struct{}

func (d roundDelegate) Height() int                             { return 2 }
func (d roundDelegate) Spacing() int                            { return 0 }
func (d roundDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d roundDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(roundItem)
	if !ok {
		return
	}

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
	}

	names := make([]string, len(item.round.Contributions))
	for i, p := range item.round.Contributions {
		names[i] = p.MemberName
	}

	fmt.Fprintf(w, "%s%s  %d payments  %s\n      %s\n",
		cursor,
		FormatDate(item.round.Date),
		len(item.round.Contributions),
		FormatZar(item.round.TotalZar),
		strings.Join(names, ", "),
	)
}
