package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/module/budget"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// BudgetService defines the budget operations exposed over HTTP
type BudgetService interface {
	Create(ctx context.Context, scope ledger.Scope, b *budget.Budget) (*budget.Budget, error)
	Get(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*budget.Budget, error)
	List(ctx context.Context, scope ledger.Scope) ([]*budget.Budget, error)
	AddLine(ctx context.Context, scope ledger.Scope, budgetID uuid.UUID, line *budget.Line) (*budget.Line, error)
	RemoveLine(ctx context.Context, scope ledger.Scope, budgetID, lineID uuid.UUID) error
	Confirm(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*budget.Budget, error)
	Validate(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*budget.Budget, error)
	Done(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*budget.Budget, error)
	Cancel(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*budget.Budget, error)
	ResetToDraft(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*budget.Budget, error)
	CreatePost(ctx context.Context, scope ledger.Scope, post *budget.Post) (*budget.Post, error)
	Report(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*budget.Report, error)
}

// BudgetHandler handles budget requests
type BudgetHandler struct {
	budgets BudgetService
	logger  *logger.Logger
}

// NewBudgetHandler creates a new budget handler
func NewBudgetHandler(svc BudgetService, log *logger.Logger) *BudgetHandler {
	return &BudgetHandler{
		budgets: svc,
		logger:  log.WithField("handler", "budget"),
	}
}

// CreateBudgetRequest represents the budget creation request
type CreateBudgetRequest struct {
	Name     string              `json:"name"`
	DateFrom string              `json:"date_from"`
	DateTo   string              `json:"date_to"`
	Lines    []BudgetLineRequest `json:"lines,omitempty"`
}

// BudgetLineRequest represents a planned amount
type BudgetLineRequest struct {
	Name              string     `json:"name,omitempty"`
	AccountID         *uuid.UUID `json:"account_id,omitempty"`
	AnalyticAccountID *uuid.UUID `json:"analytic_account_id,omitempty"`
	PostID            *uuid.UUID `json:"post_id,omitempty"`
	PlannedAmount     string     `json:"planned_amount"`
}

func (req BudgetLineRequest) toLine() (*budget.Line, error) {
	planned, err := parseAmount(req.PlannedAmount)
	if err != nil {
		return nil, err
	}
	return &budget.Line{
		Name:              req.Name,
		AccountID:         req.AccountID,
		AnalyticAccountID: req.AnalyticAccountID,
		PostID:            req.PostID,
		PlannedAmount:     planned,
	}, nil
}

// CreatePostRequest represents a budgetary position
type CreatePostRequest struct {
	Name       string      `json:"name"`
	Code       string      `json:"code,omitempty"`
	AccountIDs []uuid.UUID `json:"account_ids"`
}

// CreateBudget handles POST /budgets
func (h *BudgetHandler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req CreateBudgetRequest
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
	b := &budget.Budget{Name: req.Name, DateFrom: from, DateTo: to}
	for _, l := range req.Lines {
		line, err := l.toLine()
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		b.Lines = append(b.Lines, line)
	}

	created, err := h.budgets.Create(r.Context(), scope, b)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// ListBudgets handles GET /budgets
func (h *BudgetHandler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	budgets, err := h.budgets.List(r.Context(), scope)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"budgets": budgets})
}

// GetBudget handles GET /budgets/{id}
func (h *BudgetHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.budgets.Get)
}

// AddLine handles POST /budgets/{id}/lines
func (h *BudgetHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req BudgetLineRequest
	if !decode(w, r, &req) {
		return
	}
	line, err := req.toLine()
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	created, err := h.budgets.AddLine(r.Context(), scope, id, line)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// RemoveLine handles DELETE /budgets/{id}/lines/{lineID}
func (h *BudgetHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}

	if err := h.budgets.RemoveLine(r.Context(), scope, id, lineID); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Confirm handles POST /budgets/{id}/confirm
func (h *BudgetHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.budgets.Confirm)
}

// Validate handles POST /budgets/{id}/validate
func (h *BudgetHandler) Validate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.budgets.Validate)
}

// Done handles POST /budgets/{id}/done
func (h *BudgetHandler) Done(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.budgets.Done)
}

// Cancel handles POST /budgets/{id}/cancel
func (h *BudgetHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.budgets.Cancel)
}

// ResetToDraft handles POST /budgets/{id}/draft
func (h *BudgetHandler) ResetToDraft(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.budgets.ResetToDraft)
}

func (h *BudgetHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, ledger.Scope, uuid.UUID) (*budget.Budget, error)) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	b, err := fn(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, b)
}

// Report handles GET /budgets/{id}/report
func (h *BudgetHandler) Report(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.budgets.Report(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// CreatePost handles POST /budget-posts
func (h *BudgetHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req CreatePostRequest
	if !decode(w, r, &req) {
		return
	}

	post, err := h.budgets.CreatePost(r.Context(), scope, &budget.Post{
		Name:       req.Name,
		Code:       req.Code,
		AccountIDs: req.AccountIDs,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, post)
}
