package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/platform/chart"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// ChartService defines the chart of accounts operations exposed over HTTP
type ChartService interface {
	CreateAccount(ctx context.Context, account *chart.Account) (*chart.Account, error)
	GetAccount(ctx context.Context, companyID, id uuid.UUID) (*chart.Account, error)
	ListAccounts(ctx context.Context, companyID uuid.UUID) ([]*chart.Account, error)
	SetParent(ctx context.Context, companyID, id uuid.UUID, parentID *uuid.UUID) (*chart.Account, error)
	Deprecate(ctx context.Context, companyID, id uuid.UUID) (*chart.Account, error)
	CreateJournal(ctx context.Context, journal *chart.Journal) (*chart.Journal, error)
	ListJournals(ctx context.Context, companyID uuid.UUID) ([]*chart.Journal, error)
	CreateTax(ctx context.Context, tax *chart.Tax) (*chart.Tax, error)
	ListTaxes(ctx context.Context, companyID uuid.UUID) ([]*chart.Tax, error)
	ComputeTax(ctx context.Context, companyID uuid.UUID, taxIDs []uuid.UUID, priceUnit, quantity decimal.Decimal) (*chart.TaxResult, error)
}

// ChartHandler handles accounts, journals and taxes
type ChartHandler struct {
	chart  ChartService
	logger *logger.Logger
}

// NewChartHandler creates a new chart handler
func NewChartHandler(svc ChartService, log *logger.Logger) *ChartHandler {
	return &ChartHandler{
		chart:  svc,
		logger: log.WithField("handler", "chart"),
	}
}

// CreateAccountRequest represents the account creation request
type CreateAccountRequest struct {
	Code      string            `json:"code"`
	Name      string            `json:"name"`
	Type      chart.AccountType `json:"type"`
	ParentID  *uuid.UUID        `json:"parent_id,omitempty"`
	Reconcile bool              `json:"reconcile"`
	TaxIDs    []uuid.UUID       `json:"tax_ids,omitempty"`
}

// SetParentRequest moves an account in the hierarchy; a null parent makes it a root
type SetParentRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

// CreateJournalRequest represents the journal creation request
type CreateJournalRequest struct {
	Code              string            `json:"code"`
	Name              string            `json:"name"`
	Type              chart.JournalType `json:"type"`
	DefaultAccountID  *uuid.UUID        `json:"default_account_id,omitempty"`
	SuspenseAccountID *uuid.UUID        `json:"suspense_account_id,omitempty"`
	ProfitAccountID   *uuid.UUID        `json:"profit_account_id,omitempty"`
	LossAccountID     *uuid.UUID        `json:"loss_account_id,omitempty"`
}

// CreateTaxRequest represents the tax creation request
type CreateTaxRequest struct {
	Name         string              `json:"name"`
	Use          chart.TaxUse        `json:"use"`
	AmountType   chart.TaxAmountType `json:"amount_type"`
	Amount       string              `json:"amount"`
	PriceInclude bool                `json:"price_include"`
	AccountID    *uuid.UUID          `json:"account_id,omitempty"`
	ChildIDs     []uuid.UUID         `json:"child_ids,omitempty"`
}

// ComputeTaxRequest represents a tax computation request
type ComputeTaxRequest struct {
	TaxIDs    []uuid.UUID `json:"tax_ids"`
	PriceUnit string      `json:"price_unit"`
	Quantity  string      `json:"quantity,omitempty"`
}

// CreateAccount handles POST /accounts
func (h *ChartHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}

	account, err := h.chart.CreateAccount(r.Context(), &chart.Account{
		CompanyID: scope.CompanyID,
		Code:      req.Code,
		Name:      req.Name,
		Type:      req.Type,
		ParentID:  req.ParentID,
		Reconcile: req.Reconcile,
		TaxIDs:    req.TaxIDs,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, account)
}

// GetAccount handles GET /accounts/{id}
func (h *ChartHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	account, err := h.chart.GetAccount(r.Context(), scope.CompanyID, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, account)
}

// ListAccounts handles GET /accounts
func (h *ChartHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	accounts, err := h.chart.ListAccounts(r.Context(), scope.CompanyID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}

// SetParent handles PUT /accounts/{id}/parent
func (h *ChartHandler) SetParent(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req SetParentRequest
	if !decode(w, r, &req) {
		return
	}

	account, err := h.chart.SetParent(r.Context(), scope.CompanyID, id, req.ParentID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, account)
}

// DeprecateAccount handles POST /accounts/{id}/deprecate
func (h *ChartHandler) DeprecateAccount(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	account, err := h.chart.Deprecate(r.Context(), scope.CompanyID, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, account)
}

// CreateJournal handles POST /journals
func (h *ChartHandler) CreateJournal(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req CreateJournalRequest
	if !decode(w, r, &req) {
		return
	}

	journal, err := h.chart.CreateJournal(r.Context(), &chart.Journal{
		CompanyID:         scope.CompanyID,
		Code:              req.Code,
		Name:              req.Name,
		Type:              req.Type,
		DefaultAccountID:  req.DefaultAccountID,
		SuspenseAccountID: req.SuspenseAccountID,
		ProfitAccountID:   req.ProfitAccountID,
		LossAccountID:     req.LossAccountID,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, journal)
}

// ListJournals handles GET /journals
func (h *ChartHandler) ListJournals(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	journals, err := h.chart.ListJournals(r.Context(), scope.CompanyID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"journals": journals})
}

// CreateTax handles POST /taxes
func (h *ChartHandler) CreateTax(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req CreateTaxRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	tax, err := h.chart.CreateTax(r.Context(), &chart.Tax{
		CompanyID:    scope.CompanyID,
		Name:         req.Name,
		Use:          req.Use,
		AmountType:   req.AmountType,
		Amount:       amount,
		PriceInclude: req.PriceInclude,
		AccountID:    req.AccountID,
		ChildIDs:     req.ChildIDs,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, tax)
}

// ListTaxes handles GET /taxes
func (h *ChartHandler) ListTaxes(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	taxes, err := h.chart.ListTaxes(r.Context(), scope.CompanyID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"taxes": taxes})
}

// ComputeTax handles POST /taxes/compute; quantity defaults to 1
func (h *ChartHandler) ComputeTax(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req ComputeTaxRequest
	if !decode(w, r, &req) {
		return
	}
	price, err := decimal.NewFromString(req.PriceUnit)
	if err != nil {
		badRequest(w, "invalid price_unit")
		return
	}
	quantity := decimal.NewFromInt(1)
	if req.Quantity != "" {
		if quantity, err = decimal.NewFromString(req.Quantity); err != nil {
			badRequest(w, "invalid quantity")
			return
		}
	}

	result, err := h.chart.ComputeTax(r.Context(), scope.CompanyID, req.TaxIDs, price, quantity)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
