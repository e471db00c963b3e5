package fund

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zargusta/fundtracker/internal/analytics"
	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/http/respond"
	"github.com/zargusta/fundtracker/internal/portfolio"
	"github.com/zargusta/fundtracker/internal/price"
	"github.com/zargusta/fundtracker/internal/report"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 365
)

// Prices is satisfied by *price.Cache.
type Prices interface {
	Current(ctx context.Context) price.Quote
	History(ctx context.Context, days int) []price.Point
}

// Handler serves the read-only fund API.
type Handler struct {
	svc     *fund.Service
	prices  Prices
	version string
	now     func() time.Time
}

func NewHandler(svc *fund.Service, prices Prices, version string, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}

	return &Handler{svc: svc, prices: prices, version: version, now: now}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.status)
	r.Get("/members", h.members)
	r.Get("/members/active", h.activeMembers)
	r.Get("/members/{id}", h.member)
	r.Get("/contributions", h.contributions)
	r.Get("/purchases", h.purchases)
	r.Get("/buyouts", h.buyouts)
	r.Get("/fund/info", h.info)
	r.Get("/fund/summary", h.summary)
	r.Get("/portfolio", h.portfolio)
	r.Get("/btc/price", h.btcPrice)
	r.Get("/btc/history", h.btcHistory)
	r.Get("/analytics", h.analytics)
	r.Get("/report", h.report)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, map[string]string{"status": "online", "version": h.version})
}

func (h *Handler) members(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, toMembers(h.svc.Members()))
}

func (h *Handler) activeMembers(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, toMembers(h.svc.ActiveMembers()))
}

func (h *Handler) member(w http.ResponseWriter, r *http.Request) {
	id, err := memberID(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	m, err := h.svc.Member(id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, toMember(m))
}

func (h *Handler) contributions(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, toContributions(h.svc.Contributions()))
}

func (h *Handler) purchases(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, toPurchases(h.svc.Purchases()))
}

func (h *Handler) buyouts(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, toBuyouts(h.svc.Buyouts()))
}

func (h *Handler) info(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, toInfo(h.svc.Info()))
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, toSummary(h.svc.Summary()))
}

func (h *Handler) portfolio(w http.ResponseWriter, r *http.Request) {
	quote := h.prices.Current(r.Context())
	snap := portfolio.Calculate(h.svc.Summary(), h.svc.Info(), quote, h.now())

	respond.JSON(w, r, http.StatusOK, toPortfolio(snap, quote))
}

func (h *Handler) btcPrice(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, toQuote(h.prices.Current(r.Context())))
}

// btcHistory clamps days to 1..365; anything unparsable means the default.
func (h *Handler) btcHistory(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days == 0 {
		days = defaultHistoryDays
	}

	days = min(max(days, 1), maxHistoryDays)

	respond.JSON(w, r, http.StatusOK, toPoints(h.prices.History(r.Context(), days)))
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	res := analytics.Compute(h.svc.Contributions(), h.svc.Purchases(), h.svc.Members(), h.now())

	respond.JSON(w, r, http.StatusOK, toAnalytics(res))
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	in := report.Build(h.svc, h.prices.Current(r.Context()), h.now())

	page, err := report.HTML(report.Markdown(in), in.Info.Name)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func memberID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")

	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid member id %q", fund.ErrValidation, raw)
	}

	return id, nil
}
