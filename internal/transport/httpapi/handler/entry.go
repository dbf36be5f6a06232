package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

// LedgerService defines the ledger operations exposed over HTTP
type LedgerService interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateEntry(ctx context.Context, scope ledger.Scope, in ledger.NewEntry) (*ledger.Entry, error)
	GetEntry(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) (*ledger.Entry, error)
	ListEntries(ctx context.Context, scope ledger.Scope, filter ledger.EntryFilter) ([]*ledger.Entry, error)
	AddLine(ctx context.Context, scope ledger.Scope, entryID uuid.UUID, in ledger.NewLine) (*ledger.Line, error)
	UpdateLine(ctx context.Context, scope ledger.Scope, entryID, lineID uuid.UUID, change ledger.LineChange) (*ledger.Line, error)
	RemoveLine(ctx context.Context, scope ledger.Scope, entryID, lineID uuid.UUID) error
	DeleteEntry(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) error
	Post(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) (*ledger.Entry, error)
	Cancel(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) (*ledger.Entry, error)
	Reopen(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) (*ledger.Entry, error)
	Reverse(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) (*ledger.Entry, error)
	EntryAmounts(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) (*ledger.EntryAmounts, error)
	PaymentState(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) (ledger.PaymentState, error)
	Residual(ctx context.Context, scope ledger.Scope, lineID uuid.UUID) (decimal.Decimal, error)
	AccountBalance(ctx context.Context, scope ledger.Scope, accountID uuid.UUID) (*ledger.AccountBalance, error)
}

// EntryHandler handles journal entry requests
type EntryHandler struct {
	ledger LedgerService
	logger *logger.Logger
}

// NewEntryHandler creates a new entry handler
func NewEntryHandler(ledger LedgerService, log *logger.Logger) *EntryHandler {
	return &EntryHandler{
		ledger: ledger,
		logger: log.WithField("handler", "entry"),
	}
}

// CreateEntryRequest represents the entry creation request
type CreateEntryRequest struct {
	JournalID uuid.UUID        `json:"journal_id"`
	Date      string           `json:"date,omitempty"`
	Ref       string           `json:"ref,omitempty"`
	MoveType  string           `json:"move_type,omitempty"`
	PartnerID *uuid.UUID       `json:"partner_id,omitempty"`
	Lines     []AddLineRequest `json:"lines,omitempty"`
}

// AddLineRequest represents a line to append to a draft entry
type AddLineRequest struct {
	AccountID         uuid.UUID  `json:"account_id"`
	Name              string     `json:"name,omitempty"`
	Debit             string     `json:"debit,omitempty"`
	Credit            string     `json:"credit,omitempty"`
	PartnerID         *uuid.UUID `json:"partner_id,omitempty"`
	DateMaturity      string     `json:"date_maturity,omitempty"`
	AnalyticAccountID *uuid.UUID `json:"analytic_account_id,omitempty"`
}

func (req AddLineRequest) toNewLine() (ledger.NewLine, error) {
	debit, err := parseAmount(req.Debit)
	if err != nil {
		return ledger.NewLine{}, err
	}
	credit, err := parseAmount(req.Credit)
	if err != nil {
		return ledger.NewLine{}, err
	}
	maturity, err := parseOptionalDate(req.DateMaturity)
	if err != nil {
		return ledger.NewLine{}, err
	}
	return ledger.NewLine{
		AccountID:         req.AccountID,
		Name:              req.Name,
		Debit:             debit,
		Credit:            credit,
		PartnerID:         req.PartnerID,
		DateMaturity:      maturity,
		AnalyticAccountID: req.AnalyticAccountID,
	}, nil
}

// UpdateLineRequest changes a draft line; absent fields stay as they are
type UpdateLineRequest struct {
	Name              *string    `json:"name,omitempty"`
	Debit             *string    `json:"debit,omitempty"`
	Credit            *string    `json:"credit,omitempty"`
	DateMaturity      *string    `json:"date_maturity,omitempty"`
	AnalyticAccountID *uuid.UUID `json:"analytic_account_id,omitempty"`
}

func (req UpdateLineRequest) toChange() (ledger.LineChange, error) {
	change := ledger.LineChange{Name: req.Name, AnalyticAccountID: req.AnalyticAccountID}
	if req.Debit != nil {
		debit, err := parseAmount(*req.Debit)
		if err != nil {
			return change, err
		}
		change.Debit = &debit
	}
	if req.Credit != nil {
		credit, err := parseAmount(*req.Credit)
		if err != nil {
			return change, err
		}
		change.Credit = &credit
	}
	if req.DateMaturity != nil {
		maturity, err := parseOptionalDate(*req.DateMaturity)
		if err != nil {
			return change, err
		}
		change.DateMaturity = maturity
	}
	return change, nil
}

// LineResponse represents an entry line
type LineResponse struct {
	ID                string  `json:"id"`
	AccountID         string  `json:"account_id"`
	Name              string  `json:"name,omitempty"`
	Debit             string  `json:"debit"`
	Credit            string  `json:"credit"`
	Balance           string  `json:"balance"`
	PartnerID         *string `json:"partner_id,omitempty"`
	DateMaturity      *string `json:"date_maturity,omitempty"`
	AnalyticAccountID *string `json:"analytic_account_id,omitempty"`
	Reconciled        bool    `json:"reconciled"`
}

// EntryResponse represents a journal entry
type EntryResponse struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Ref             string         `json:"ref,omitempty"`
	Date            string         `json:"date"`
	State           string         `json:"state"`
	MoveType        string         `json:"move_type"`
	JournalID       string         `json:"journal_id"`
	JournalCode     string         `json:"journal_code,omitempty"`
	PartnerID       *string        `json:"partner_id,omitempty"`
	ReversedEntryID *string        `json:"reversed_entry_id,omitempty"`
	TotalDebit      string         `json:"total_debit"`
	TotalCredit     string         `json:"total_credit"`
	AmountUntaxed   *string        `json:"amount_untaxed,omitempty"`
	AmountTax       *string        `json:"amount_tax,omitempty"`
	AmountTotal     *string        `json:"amount_total,omitempty"`
	AmountResidual  *string        `json:"amount_residual,omitempty"`
	PaymentState    string         `json:"payment_state,omitempty"`
	Lines           []LineResponse `json:"lines"`
}

// EntriesListResponse represents the response for listing entries
type EntriesListResponse struct {
	Entries []EntryResponse `json:"entries"`
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func amountString(d decimal.Decimal) *string {
	s := money.Format(d)
	return &s
}

func toLineResponse(l *ledger.Line) LineResponse {
	return LineResponse{
		ID:                l.ID.String(),
		AccountID:         l.AccountID.String(),
		Name:              l.Name,
		Debit:             money.Format(l.Debit),
		Credit:            money.Format(l.Credit),
		Balance:           money.Format(l.Balance()),
		PartnerID:         idString(l.PartnerID),
		DateMaturity:      formatOptionalDate(l.DateMaturity),
		AnalyticAccountID: idString(l.AnalyticAccountID),
		Reconciled:        l.Reconciled(),
	}
}

func toEntryResponse(e *ledger.Entry) EntryResponse {
	resp := EntryResponse{
		ID:              e.ID.String(),
		Name:            e.Name,
		Ref:             e.Ref,
		Date:            formatDate(e.Date),
		State:           string(e.State),
		MoveType:        string(e.MoveType),
		JournalID:       e.JournalID.String(),
		JournalCode:     e.JournalCode,
		PartnerID:       idString(e.PartnerID),
		ReversedEntryID: idString(e.ReversedEntryID),
		TotalDebit:      money.Format(e.TotalDebit()),
		TotalCredit:     money.Format(e.TotalCredit()),
		Lines:           make([]LineResponse, 0, len(e.Lines)),
	}
	for _, l := range e.Lines {
		resp.Lines = append(resp.Lines, toLineResponse(l))
	}
	return resp
}

// withAmounts adds the derived invoice amounts and payment state
func (h *EntryHandler) withAmounts(ctx context.Context, scope ledger.Scope, e *ledger.Entry) (EntryResponse, error) {
	resp := toEntryResponse(e)

	amounts, err := h.ledger.EntryAmounts(ctx, scope, e.ID)
	if err != nil {
		return resp, err
	}
	state, err := h.ledger.PaymentState(ctx, scope, e.ID)
	if err != nil {
		return resp, err
	}
	resp.AmountUntaxed = amountString(amounts.Untaxed)
	resp.AmountTax = amountString(amounts.Tax)
	resp.AmountTotal = amountString(amounts.Total)
	resp.AmountResidual = amountString(amounts.Residual)
	resp.PaymentState = string(state)
	return resp, nil
}

// CreateEntry handles POST /entries; lines given in the body are added to the draft
func (h *EntryHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req CreateEntryRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	lines := make([]ledger.NewLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		in, err := l.toNewLine()
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		lines = append(lines, in)
	}

	var entry *ledger.Entry
	err = h.ledger.WithinTx(r.Context(), func(ctx context.Context) error {
		var err error
		entry, err = h.ledger.CreateEntry(ctx, scope, ledger.NewEntry{
			JournalID: req.JournalID,
			Date:      date,
			Ref:       req.Ref,
			MoveType:  ledger.MoveType(req.MoveType),
			PartnerID: req.PartnerID,
		})
		if err != nil {
			return err
		}
		for _, in := range lines {
			if _, err := h.ledger.AddLine(ctx, scope, entry.ID, in); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	entry, err = h.ledger.GetEntry(r.Context(), scope, entry.ID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toEntryResponse(entry))
}

// GetEntry handles GET /entries/{id}
func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.ledger.GetEntry(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	resp, err := h.withAmounts(r.Context(), scope, entry)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// ListEntries handles GET /entries?state=&journal_id=&from=&to=&limit=&offset=
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	filter, err := entryFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	entries, err := h.ledger.ListEntries(r.Context(), scope, filter)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	resp := EntriesListResponse{Entries: make([]EntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toEntryResponse(e))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// AddLine handles POST /entries/{id}/lines
func (h *EntryHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req AddLineRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.toNewLine()
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	line, err := h.ledger.AddLine(r.Context(), scope, id, in)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toLineResponse(line))
}

// UpdateLine handles PATCH /entries/{id}/lines/{lineID}
func (h *EntryHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateLineRequest
	if !decode(w, r, &req) {
		return
	}
	change, err := req.toChange()
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	line, err := h.ledger.UpdateLine(r.Context(), scope, id, lineID, change)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toLineResponse(line))
}

// RemoveLine handles DELETE /entries/{id}/lines/{lineID}
func (h *EntryHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
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

	if err := h.ledger.RemoveLine(r.Context(), scope, id, lineID); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteEntry handles DELETE /entries/{id}
func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.ledger.DeleteEntry(r.Context(), scope, id); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transition runs a state change on the entry named in the path
func (h *EntryHandler) transition(w http.ResponseWriter, r *http.Request, status int, fn func(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*ledger.Entry, error)) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entry, err := fn(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, status, toEntryResponse(entry))
}

// PostEntry handles POST /entries/{id}/post
func (h *EntryHandler) PostEntry(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, http.StatusOK, h.ledger.Post)
}

// CancelEntry handles POST /entries/{id}/cancel
func (h *EntryHandler) CancelEntry(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, http.StatusOK, h.ledger.Cancel)
}

// ReopenEntry handles POST /entries/{id}/reopen
func (h *EntryHandler) ReopenEntry(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, http.StatusOK, h.ledger.Reopen)
}

// ReverseEntry handles POST /entries/{id}/reverse; the reversal is returned
func (h *EntryHandler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, http.StatusCreated, h.ledger.Reverse)
}

// entryFilter reads the list filters from the query string
func entryFilter(r *http.Request) (ledger.EntryFilter, error) {
	q := r.URL.Query()
	var filter ledger.EntryFilter

	if v := q.Get("state"); v != "" {
		state := ledger.EntryState(v)
		filter.State = &state
	}
	for name, dst := range map[string]**uuid.UUID{"journal_id": &filter.JournalID, "partner_id": &filter.PartnerID} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, fmt.Errorf("invalid %s", name)
		}
		*dst = &id
	}
	from, err := parseOptionalDate(q.Get("from"))
	if err != nil {
		return filter, err
	}
	to, err := parseOptionalDate(q.Get("to"))
	if err != nil {
		return filter, err
	}
	filter.DateFrom, filter.DateTo = from, to

	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		return filter, fmt.Errorf("invalid limit")
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		return filter, fmt.Errorf("invalid offset")
	}
	return filter, nil
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

// ResidualResponse represents the open amount of a line
type ResidualResponse struct {
	LineID   string `json:"line_id"`
	Residual string `json:"residual"`
}

// GetResidual handles GET /lines/{id}/residual
func (h *EntryHandler) GetResidual(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	residual, err := h.ledger.Residual(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ResidualResponse{LineID: id.String(), Residual: money.Format(residual)})
}

// BalanceResponse represents the posted balance of an account
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	Balance   string `json:"balance"`
}

// GetAccountBalance handles GET /accounts/{id}/balance
func (h *EntryHandler) GetAccountBalance(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	b, err := h.ledger.AccountBalance(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, BalanceResponse{
		AccountID: b.AccountID.String(),
		Debit:     money.Format(b.Debit),
		Credit:    money.Format(b.Credit),
		Balance:   money.Format(b.Balance),
	})
}
