package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

// Reconciler defines the settlement operations exposed over HTTP
type Reconciler interface {
	Reconcile(ctx context.Context, scope ledger.Scope, lineIDs []uuid.UUID) (*ledger.ReconcileResult, error)
	UnreconcilePartial(ctx context.Context, scope ledger.Scope, partialIDs []uuid.UUID) error
	UnreconcileFull(ctx context.Context, scope ledger.Scope, fullID uuid.UUID) error
	UnreconcileLines(ctx context.Context, scope ledger.Scope, lineIDs []uuid.UUID) error
}

// ReconcileHandler handles reconciliation requests
type ReconcileHandler struct {
	reconciler Reconciler
	logger     *logger.Logger
}

// NewReconcileHandler creates a new reconciliation handler
func NewReconcileHandler(reconciler Reconciler, log *logger.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		reconciler: reconciler,
		logger:     log.WithField("handler", "reconcile"),
	}
}

// LineIDsRequest carries the lines to reconcile or unreconcile
type LineIDsRequest struct {
	LineIDs []uuid.UUID `json:"line_ids"`
}

// PartialIDsRequest carries the partial settlements to remove
type PartialIDsRequest struct {
	PartialIDs []uuid.UUID `json:"partial_ids"`
}

// PartialResponse represents a partial settlement
type PartialResponse struct {
	ID               string  `json:"id"`
	DebitLineID      string  `json:"debit_line_id"`
	CreditLineID     string  `json:"credit_line_id"`
	Amount           string  `json:"amount"`
	MaxDate          string  `json:"max_date"`
	FullSettlementID *string `json:"full_settlement_id,omitempty"`
}

// FullResponse represents a full settlement
type FullResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	PartialIDs []string `json:"partial_ids"`
	LineIDs    []string `json:"line_ids"`
}

// ReconcileResponse represents the outcome of a reconciliation
type ReconcileResponse struct {
	Partials []PartialResponse `json:"partials"`
	Full     *FullResponse     `json:"full,omitempty"`
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func toReconcileResponse(res *ledger.ReconcileResult) ReconcileResponse {
	resp := ReconcileResponse{Partials: make([]PartialResponse, 0, len(res.Partials))}
	for _, p := range res.Partials {
		resp.Partials = append(resp.Partials, PartialResponse{
			ID:               p.ID.String(),
			DebitLineID:      p.DebitLineID.String(),
			CreditLineID:     p.CreditLineID.String(),
			Amount:           money.Format(p.Amount),
			MaxDate:          formatDate(p.MaxDate),
			FullSettlementID: idString(p.FullSettlementID),
		})
	}
	if res.Full != nil {
		resp.Full = &FullResponse{
			ID:         res.Full.ID.String(),
			Name:       res.Full.Name,
			PartialIDs: idStrings(res.Full.PartialIDs),
			LineIDs:    idStrings(res.Full.LineIDs),
		}
	}
	return resp
}

// Reconcile handles POST /reconciliations
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req LineIDsRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.reconciler.Reconcile(r.Context(), scope, req.LineIDs)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toReconcileResponse(res))
}

// UnreconcilePartials handles DELETE /reconciliations/partials
func (h *ReconcileHandler) UnreconcilePartials(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req PartialIDsRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.reconciler.UnreconcilePartial(r.Context(), scope, req.PartialIDs); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnreconcileLines handles DELETE /reconciliations/lines
func (h *ReconcileHandler) UnreconcileLines(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req LineIDsRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.reconciler.UnreconcileLines(r.Context(), scope, req.LineIDs); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnreconcileFull handles DELETE /reconciliations/full/{id}
func (h *ReconcileHandler) UnreconcileFull(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.reconciler.UnreconcileFull(r.Context(), scope, id); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
