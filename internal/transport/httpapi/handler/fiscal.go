package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/platform/fiscal"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// FiscalService defines the fiscal year and period operations exposed over HTTP
type FiscalService interface {
	CreateYear(ctx context.Context, scope ledger.Scope, year *fiscal.FiscalYear) (*fiscal.FiscalYear, error)
	GetYear(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*fiscal.FiscalYear, error)
	ListPeriods(ctx context.Context, scope ledger.Scope, yearID uuid.UUID) ([]*fiscal.Period, error)
	CreatePeriods(ctx context.Context, scope ledger.Scope, yearID uuid.UUID) ([]*fiscal.Period, error)
	ClosePeriod(ctx context.Context, scope ledger.Scope, periodID uuid.UUID) (*fiscal.Period, error)
	ReopenPeriod(ctx context.Context, scope ledger.Scope, periodID uuid.UUID) (*fiscal.Period, error)
	CloseYear(ctx context.Context, scope ledger.Scope, yearID uuid.UUID) (*fiscal.FiscalYear, error)
	ReopenYear(ctx context.Context, scope ledger.Scope, yearID uuid.UUID) (*fiscal.FiscalYear, error)
}

// FiscalHandler handles fiscal years and periods
type FiscalHandler struct {
	fiscal FiscalService
	logger *logger.Logger
}

// NewFiscalHandler creates a new fiscal handler
func NewFiscalHandler(svc FiscalService, log *logger.Logger) *FiscalHandler {
	return &FiscalHandler{
		fiscal: svc,
		logger: log.WithField("handler", "fiscal"),
	}
}

// CreateYearRequest represents the fiscal year creation request
type CreateYearRequest struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

// PeriodsResponse lists the periods of a year
type PeriodsResponse struct {
	Periods []*fiscal.Period `json:"periods"`
}

// CreateYear handles POST /fiscal-years
func (h *FiscalHandler) CreateYear(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req CreateYearRequest
	if !decode(w, r, &req) {
		return
	}
	from, err := parseDate(req.DateFrom)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	to, err := parseDate(req.DateTo)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	year, err := h.fiscal.CreateYear(r.Context(), scope, &fiscal.FiscalYear{
		Name:     req.Name,
		Code:     req.Code,
		DateFrom: from,
		DateTo:   to,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, year)
}

// GetYear handles GET /fiscal-years/{id}
func (h *FiscalHandler) GetYear(w http.ResponseWriter, r *http.Request) {
	h.year(w, r, http.StatusOK, h.fiscal.GetYear)
}

// CloseYear handles POST /fiscal-years/{id}/close
func (h *FiscalHandler) CloseYear(w http.ResponseWriter, r *http.Request) {
	h.year(w, r, http.StatusOK, h.fiscal.CloseYear)
}

// ReopenYear handles POST /fiscal-years/{id}/reopen
func (h *FiscalHandler) ReopenYear(w http.ResponseWriter, r *http.Request) {
	h.year(w, r, http.StatusOK, h.fiscal.ReopenYear)
}

func (h *FiscalHandler) year(w http.ResponseWriter, r *http.Request, status int, fn func(context.Context, ledger.Scope, uuid.UUID) (*fiscal.FiscalYear, error)) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	year, err := fn(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, status, year)
}

// ListPeriods handles GET /fiscal-years/{id}/periods
func (h *FiscalHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	h.periods(w, r, http.StatusOK, h.fiscal.ListPeriods)
}

// CreatePeriods handles POST /fiscal-years/{id}/periods; one period per month
func (h *FiscalHandler) CreatePeriods(w http.ResponseWriter, r *http.Request) {
	h.periods(w, r, http.StatusCreated, h.fiscal.CreatePeriods)
}

func (h *FiscalHandler) periods(w http.ResponseWriter, r *http.Request, status int, fn func(context.Context, ledger.Scope, uuid.UUID) ([]*fiscal.Period, error)) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	periods, err := fn(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, status, PeriodsResponse{Periods: periods})
}

// ClosePeriod handles POST /periods/{id}/close
func (h *FiscalHandler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	h.period(w, r, h.fiscal.ClosePeriod)
}

// ReopenPeriod handles POST /periods/{id}/reopen
func (h *FiscalHandler) ReopenPeriod(w http.ResponseWriter, r *http.Request) {
	h.period(w, r, h.fiscal.ReopenPeriod)
}

func (h *FiscalHandler) period(w http.ResponseWriter, r *http.Request, fn func(context.Context, ledger.Scope, uuid.UUID) (*fiscal.Period, error)) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	period, err := fn(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, period)
}
