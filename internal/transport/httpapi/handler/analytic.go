package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/platform/analytic"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// AnalyticService defines the analytic accounting operations exposed over HTTP
type AnalyticService interface {
	CreateAccount(ctx context.Context, scope ledger.Scope, account *analytic.Account) (*analytic.Account, error)
	ListAccounts(ctx context.Context, scope ledger.Scope) ([]*analytic.Account, error)
	Archive(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*analytic.Account, error)
	AddLine(ctx context.Context, scope ledger.Scope, line *analytic.Line) (*analytic.Line, error)
	Balance(ctx context.Context, scope ledger.Scope, accountID uuid.UUID, from, to *time.Time) (*analytic.Balance, error)
}

// AnalyticHandler handles analytic accounts and lines
type AnalyticHandler struct {
	analytic AnalyticService
	logger   *logger.Logger
}

// NewAnalyticHandler creates a new analytic handler
func NewAnalyticHandler(svc AnalyticService, log *logger.Logger) *AnalyticHandler {
	return &AnalyticHandler{
		analytic: svc,
		logger:   log.WithField("handler", "analytic"),
	}
}

// CreateAnalyticAccountRequest represents the analytic account creation request
type CreateAnalyticAccountRequest struct {
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// AnalyticLineRequest represents an amount booked on an analytic account
type AnalyticLineRequest struct {
	Name   string `json:"name"`
	Date   string `json:"date,omitempty"`
	Amount string `json:"amount"`
}

// CreateAccount handles POST /analytic-accounts
func (h *AnalyticHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req CreateAnalyticAccountRequest
	if !decode(w, r, &req) {
		return
	}

	account, err := h.analytic.CreateAccount(r.Context(), scope, &analytic.Account{Name: req.Name, Code: req.Code})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, account)
}

// ListAccounts handles GET /analytic-accounts
func (h *AnalyticHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	accounts, err := h.analytic.ListAccounts(r.Context(), scope)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}

// Archive handles POST /analytic-accounts/{id}/archive
func (h *AnalyticHandler) Archive(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	account, err := h.analytic.Archive(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, account)
}

// AddLine handles POST /analytic-accounts/{id}/lines
func (h *AnalyticHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req AnalyticLineRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	line, err := h.analytic.AddLine(r.Context(), scope, &analytic.Line{
		AccountID: id,
		Name:      req.Name,
		Date:      date,
		Amount:    amount,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, line)
}

// Balance handles GET /analytic-accounts/{id}/balance?from=&to=
func (h *AnalyticHandler) Balance(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	from, err := parseOptionalDate(r.URL.Query().Get("from"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	to, err := parseOptionalDate(r.URL.Query().Get("to"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	balance, err := h.analytic.Balance(r.Context(), scope, id, from, to)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, balance)
}
