package fund

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zargusta/fundtracker/internal/fund"
	"github.com/zargusta/fundtracker/internal/http/auth"
	"github.com/zargusta/fundtracker/internal/http/respond"
	"github.com/zargusta/fundtracker/internal/importer"
)

const maxUploadSize = 10 << 20

// AdminHandler serves the treasurer endpoints. Every route except /session sits
// behind the authenticator.
type AdminHandler struct {
	svc      *fund.Service
	importer *importer.Service
	auth     *auth.Authenticator
}

func NewAdminHandler(svc *fund.Service, importSvc *importer.Service, authn *auth.Authenticator) *AdminHandler {
	return &AdminHandler{svc: svc, importer: importSvc, auth: authn}
}

func (h *AdminHandler) Routes(r chi.Router) {
	r.Post("/session", h.session)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Get("/audit-log", h.auditLog)
		r.Get("/ledger", h.ledger)
		r.Post("/import", h.importFile)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))

			r.Post("/members", h.addMember)
			r.Patch("/members/{id}", h.updateMember)
			r.Post("/contributions", h.addContribution)
			r.Post("/purchases", h.addPurchase)
			r.Post("/adjust-holdings", h.adjustHoldings)
			r.Post("/bulk-payment", h.bulkPayment)
			r.Post("/buyouts", h.addBuyout)
		})
	})
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *AdminHandler) session(w http.ResponseWriter, r *http.Request) {
	if !h.auth.ValidKey(r) {
		respond.Error(w, r, fmt.Errorf("%w: admin key required", respond.ErrUnauthorized))
		return
	}

	token, expires, err := h.auth.Issue()
	if err != nil {
		respond.Fail(w, r, http.StatusNotImplemented, err.Error())
		return
	}

	respond.JSON(w, r, http.StatusCreated, sessionResponse{Token: token, ExpiresAt: expires})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", fund.ErrValidation, err)
	}

	return nil
}

// parseDay accepts an empty string as "not given".
func parseDay(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", fund.ErrValidation, field, s)
	}

	return t, nil
}

type addMemberRequest struct {
	Name       string    `json:"name"`
	Role       fund.Role `json:"role"`
	JoinedDate string    `json:"joinedDate"`
}

func (h *AdminHandler) addMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	joined, err := parseDay("joinedDate", req.JoinedDate)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	m, err := h.svc.AddMember(r.Context(), req.Name, req.Role, joined)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusCreated, toMember(*m))
}

type updateMemberRequest struct {
	Status    *fund.Status `json:"status,omitempty"`
	LeaveDate *string      `json:"leaveDate,omitempty"`
}

func (h *AdminHandler) updateMember(w http.ResponseWriter, r *http.Request) {
	id, err := memberID(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req updateMemberRequest
	if err := decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	patch := fund.MemberPatch{Status: req.Status}

	if req.LeaveDate != nil {
		d, err := parseDay("leaveDate", *req.LeaveDate)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		if !d.IsZero() {
			patch.LeaveDate = &d
		}
	}

	m, err := h.svc.UpdateMember(r.Context(), id, patch)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, toMember(*m))
}

type addContributionRequest struct {
	MemberID   int     `json:"memberId"`
	MemberName string  `json:"memberName"`
	AmountZar  float64 `json:"amountZar"`
}

func (h *AdminHandler) addContribution(w http.ResponseWriter, r *http.Request) {
	var req addContributionRequest
	if err := decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	c, err := h.svc.AddContribution(r.Context(), req.MemberID, req.MemberName, req.AmountZar)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusCreated, toContribution(*c))
}

type addPurchaseRequest struct {
	BtcBought      float64  `json:"btcBought"`
	PriceZar       float64  `json:"priceZar"`
	AmountInvested *float64 `json:"amountInvested,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

func (h *AdminHandler) addPurchase(w http.ResponseWriter, r *http.Request) {
	var req addPurchaseRequest
	if err := decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	p, err := h.svc.AddPurchase(r.Context(), fund.PurchaseParams{
		BtcBought:      req.BtcBought,
		PriceZar:       req.PriceZar,
		AmountInvested: req.AmountInvested,
		Notes:          req.Notes,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusCreated, toPurchase(*p))
}

type adjustHoldingsRequest struct {
	NewHoldings *float64 `json:"newHoldings"`
	Reason      string   `json:"reason"`
}

func (h *AdminHandler) adjustHoldings(w http.ResponseWriter, r *http.Request) {
	var req adjustHoldingsRequest
	if err := decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	if req.NewHoldings == nil {
		respond.Error(w, r, fmt.Errorf("%w: newHoldings is required", fund.ErrValidation))
		return
	}

	adj, err := h.svc.AdjustHoldings(r.Context(), *req.NewHoldings, req.Reason)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, holdingsResponse(*adj))
}

type bulkPaymentRequest struct {
	Date     string                   `json:"date"`
	Payments []addContributionRequest `json:"payments"`
}

func (h *AdminHandler) bulkPayment(w http.ResponseWriter, r *http.Request) {
	var req bulkPaymentRequest
	if err := decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	date, err := parseDay("date", req.Date)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	payments := make([]fund.PaymentParams, len(req.Payments))
	for i, p := range req.Payments {
		payments[i] = fund.PaymentParams(p)
	}

	round, err := h.svc.AddContributions(r.Context(), date, payments)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, toRound(round))
}

type addBuyoutRequest struct {
	Buyer     string  `json:"buyer"`
	Seller    string  `json:"seller"`
	AmountZar float64 `json:"amountZar"`
	Reason    string  `json:"reason"`
}

func (h *AdminHandler) addBuyout(w http.ResponseWriter, r *http.Request) {
	var req addBuyoutRequest
	if err := decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	b, err := h.svc.AddBuyout(r.Context(), fund.BuyoutParams(req))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusCreated, toBuyout(*b))
}

func (h *AdminHandler) auditLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.svc.AuditLog(r.Context(), limit)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, toAudit(entries))
}

func (h *AdminHandler) ledger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := fund.LedgerFilter{
		Type:   fund.EntryType(q.Get("type")),
		Member: q.Get("member"),
	}

	switch filter.Type {
	case "", fund.EntryTypeAll, fund.EntryTypeContribution, fund.EntryTypePurchase:
	default:
		respond.Error(w, r, fmt.Errorf("%w: type must be all, contribution or purchase", fund.ErrValidation))
		return
	}

	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	respond.JSON(w, r, http.StatusOK, toLedger(h.svc.Ledger(filter)))
}

// importFile takes a multipart upload: "file" plus optional "format" (csv or json,
// guessed from the file name otherwise) and "date" for rows without one.
func (h *AdminHandler) importFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respond.Error(w, r, fmt.Errorf("%w: failed to parse form: %v", fund.ErrValidation, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, r, fmt.Errorf("%w: file field is required", fund.ErrValidation))
		return
	}
	defer file.Close()

	format := importer.Format(strings.ToLower(r.FormValue("format")))
	if format == "" {
		format = importer.FormatCSV
		if strings.HasSuffix(strings.ToLower(header.Filename), ".json") {
			format = importer.FormatJSON
		}
	}

	date, err := parseDay("date", r.FormValue("date"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	res, err := h.importer.Import(r.Context(), format, file, date)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusCreated, toImport(res))
}
