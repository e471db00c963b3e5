package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/zargusta/fundtracker/cmd/tui/internal/view"
	"github.com/zargusta/fundtracker/internal/config"
	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/fund/store"
	"github.com/zargusta/fundtracker/internal/importer"
	"github.com/zargusta/fundtracker/internal/price"
)

type model struct {
	fundService   *fund.Service
	importService *importer.Service
	prices        view.Quoter

	currentView View

	dashboardView    view.DashboardModel
	membersView      view.MembersModel
	contributionView view.ContributionModel
	importView       view.ImportModel
	analyticsView    view.AnalyticsModel
}

type View int

const (
	ViewMenu         View = 0
	ViewDashboard    View = 1
	ViewMembers      View = 2
	ViewContribution View = 3
	ViewImport       View = 4
	ViewAnalytics    View = 5
)

func initialModel(ctx context.Context, cfg *config.Config) (model, func() error) {
	repo, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: cfg.Price.HTTPTimeout}
	coingecko := price.NewCoinGecko(client, cfg.Price.CoinGeckoURL, cfg.Price.Currency)

	fundSvc := fund.NewService(ctx, repo)
	impSvc := importer.NewService(fundSvc)
	prices := price.NewCache(coingecko,
		price.WithFallback(price.NewBinanceFX(client, cfg.Price.BinanceURL, cfg.Price.FXURL, cfg.Price.Currency, cfg.Price.DefaultFXRate)),
		price.WithTTL(cfg.Price.CacheTTL),
	)

	return model{
		fundService:   fundSvc,
		importService: impSvc,
		prices:        prices,
		currentView:   ViewMenu,
		importView:    view.NewImportModel(impSvc),
	}, closeStore
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewDashboard
				m.dashboardView = view.NewDashboardModel(m.fundService, m.prices)

				return m, m.dashboardView.Init()
			case "2":
				m.currentView = ViewMembers
				m.membersView = view.NewMembersModel(m.fundService)

				return m, m.membersView.Init()
			case "3":
				m.currentView = ViewContribution
				m.contributionView = view.NewContributionModel(m.fundService)

				return m, m.contributionView.Init()
			case "4":
				m.currentView = ViewImport
				return m, m.importView.Init()
			case "5":
				m.currentView = ViewAnalytics
				m.analyticsView = view.NewAnalyticsModel(m.fundService)

				return m, m.analyticsView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewDashboard:
		var newModel tea.Model
		newModel, cmd = m.dashboardView.Update(msg)
		m.dashboardView = newModel.(view.DashboardModel)
	case ViewMembers:
		var newModel tea.Model
		newModel, cmd = m.membersView.Update(msg)
		m.membersView = newModel.(view.MembersModel)
	case ViewContribution:
		var newModel tea.Model
		newModel, cmd = m.contributionView.Update(msg)
		m.contributionView = newModel.(view.ContributionModel)
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	case ViewAnalytics:
		var newModel tea.Model
		newModel, cmd = m.analyticsView.Update(msg)
		m.analyticsView = newModel.(view.AnalyticsModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			m.fundService.Info().Name + "\n\n" +
				"1. Dashboard\n" +
				"2. Members\n" +
				"3. Record Contribution\n" +
				"4. Import Payments\n" +
				"5. Analytics\n\n" +
				"q. Quit",
		)
	case ViewDashboard:
		return m.dashboardView.View()
	case ViewMembers:
		return m.membersView.View()
	case ViewContribution:
		return m.contributionView.View()
	case ViewImport:
		return m.importView.View()
	case ViewAnalytics:
		return m.analyticsView.View()
	}

	return "Unknown View"
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(cfg.Logger(os.Stderr))

	m, closeStore := initialModel(context.Background(), cfg)
	defer closeStore()

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
