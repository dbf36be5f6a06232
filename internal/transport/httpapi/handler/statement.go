package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/module/statement"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// StatementService defines the bank statement operations exposed over HTTP
type StatementService interface {
	Create(ctx context.Context, scope ledger.Scope, st *statement.Statement) (*statement.Statement, error)
	Get(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*statement.Statement, error)
	List(ctx context.Context, scope ledger.Scope, journalID *uuid.UUID) ([]*statement.Statement, error)
	AddLine(ctx context.Context, scope ledger.Scope, id uuid.UUID, line *statement.Line) (*statement.Line, error)
	RemoveLine(ctx context.Context, scope ledger.Scope, id, lineID uuid.UUID) error
	MatchLine(ctx context.Context, scope ledger.Scope, id, lineID, entryID uuid.UUID) (*statement.Line, error)
	BookLine(ctx context.Context, scope ledger.Scope, id, lineID, counterpartID uuid.UUID) (*statement.Line, error)
	UnmatchLine(ctx context.Context, scope ledger.Scope, id, lineID uuid.UUID) (*statement.Line, error)
	Confirm(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*statement.Statement, error)
	Reopen(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*statement.Statement, error)
}

// StatementHandler handles bank statement requests
type StatementHandler struct {
	statements StatementService
	logger     *logger.Logger
}

// NewStatementHandler creates a new statement handler
func NewStatementHandler(svc StatementService, log *logger.Logger) *StatementHandler {
	return &StatementHandler{
		statements: svc,
		logger:     log.WithField("handler", "statement"),
	}
}

// CreateStatementRequest represents the statement creation request
type CreateStatementRequest struct {
	JournalID      uuid.UUID              `json:"journal_id"`
	Name           string                 `json:"name,omitempty"`
	Date           string                 `json:"date,omitempty"`
	BalanceStart   string                 `json:"balance_start,omitempty"`
	BalanceEndReal string                 `json:"balance_end_real,omitempty"`
	Lines          []StatementLineRequest `json:"lines,omitempty"`
}

// StatementLineRequest represents one bank transaction
type StatementLineRequest struct {
	Date      string     `json:"date,omitempty"`
	Name      string     `json:"name"`
	Ref       string     `json:"ref,omitempty"`
	PartnerID *uuid.UUID `json:"partner_id,omitempty"`
	Amount    string     `json:"amount"`
}

func (req StatementLineRequest) toLine() (*statement.Line, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	return &statement.Line{
		Date:      date,
		Name:      req.Name,
		Ref:       req.Ref,
		PartnerID: req.PartnerID,
		Amount:    amount,
	}, nil
}

// MatchLineRequest links a statement line to a posted entry
type MatchLineRequest struct {
	EntryID uuid.UUID `json:"entry_id"`
}

// BookLineRequest books a statement line against a counterpart account
type BookLineRequest struct {
	AccountID uuid.UUID `json:"account_id"`
}

// CreateStatement handles POST /statements
func (h *StatementHandler) CreateStatement(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req CreateStatementRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	start, err := parseAmount(req.BalanceStart)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	end, err := parseAmount(req.BalanceEndReal)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	st := &statement.Statement{
		JournalID:      req.JournalID,
		Name:           req.Name,
		Date:           date,
		BalanceStart:   start,
		BalanceEndReal: end,
	}
	for _, l := range req.Lines {
		line, err := l.toLine()
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		st.Lines = append(st.Lines, line)
	}

	created, err := h.statements.Create(r.Context(), scope, st)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// ListStatements handles GET /statements?journal_id=
func (h *StatementHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var journalID *uuid.UUID
	if v := r.URL.Query().Get("journal_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			badRequest(w, "invalid journal_id")
			return
		}
		journalID = &id
	}

	statements, err := h.statements.List(r.Context(), scope, journalID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"statements": statements})
}

// GetStatement handles GET /statements/{id}
func (h *StatementHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	h.statement(w, r, h.statements.Get)
}

// Confirm handles POST /statements/{id}/confirm
func (h *StatementHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.statement(w, r, h.statements.Confirm)
}

// Reopen handles POST /statements/{id}/reopen
func (h *StatementHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.statement(w, r, h.statements.Reopen)
}

func (h *StatementHandler) statement(w http.ResponseWriter, r *http.Request, fn func(context.Context, ledger.Scope, uuid.UUID) (*statement.Statement, error)) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	st, err := fn(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

// AddLine handles POST /statements/{id}/lines
func (h *StatementHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req StatementLineRequest
	if !decode(w, r, &req) {
		return
	}
	line, err := req.toLine()
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	created, err := h.statements.AddLine(r.Context(), scope, id, line)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// lineIDs reads the statement and line ids from the path
func lineIDs(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return id, lineID, true
}

// RemoveLine handles DELETE /statements/{id}/lines/{lineID}
func (h *StatementHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, lineID, ok := lineIDs(w, r)
	if !ok {
		return
	}

	if err := h.statements.RemoveLine(r.Context(), scope, id, lineID); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MatchLine handles POST /statements/{id}/lines/{lineID}/match
func (h *StatementHandler) MatchLine(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, lineID, ok := lineIDs(w, r)
	if !ok {
		return
	}

	var req MatchLineRequest
	if !decode(w, r, &req) {
		return
	}

	line, err := h.statements.MatchLine(r.Context(), scope, id, lineID, req.EntryID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, line)
}

// BookLine handles POST /statements/{id}/lines/{lineID}/book
func (h *StatementHandler) BookLine(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, lineID, ok := lineIDs(w, r)
	if !ok {
		return
	}

	var req BookLineRequest
	if !decode(w, r, &req) {
		return
	}

	line, err := h.statements.BookLine(r.Context(), scope, id, lineID, req.AccountID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, line)
}

// UnmatchLine handles POST /statements/{id}/lines/{lineID}/unmatch
func (h *StatementHandler) UnmatchLine(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, lineID, ok := lineIDs(w, r)
	if !ok {
		return
	}

	line, err := h.statements.UnmatchLine(r.Context(), scope, id, lineID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, line)
}
