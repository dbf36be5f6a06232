package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/module/payment"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// PaymentService defines the payment and payment term operations exposed over HTTP
type PaymentService interface {
	Create(ctx context.Context, scope ledger.Scope, p *payment.Payment) (*payment.Payment, error)
	Get(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*payment.Payment, error)
	List(ctx context.Context, scope ledger.Scope, filter payment.Filter) ([]*payment.Payment, error)
	Post(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*payment.Payment, error)
	Cancel(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*payment.Payment, error)
	ResetToDraft(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*payment.Payment, error)
	CreateTerm(ctx context.Context, scope ledger.Scope, term *payment.PaymentTerm) (*payment.PaymentTerm, error)
	GetTerm(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*payment.PaymentTerm, error)
	ListTerms(ctx context.Context, scope ledger.Scope) ([]*payment.PaymentTerm, error)
	Schedule(ctx context.Context, scope ledger.Scope, termID uuid.UUID, amount decimal.Decimal, dateRef time.Time) ([]payment.Installment, error)
}

// PaymentHandler handles payments and payment terms
type PaymentHandler struct {
	payments PaymentService
	logger   *logger.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(svc PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: svc,
		logger:   log.WithField("handler", "payment"),
	}
}

// CreatePaymentRequest represents the payment creation request
type CreatePaymentRequest struct {
	PaymentType   payment.Type        `json:"payment_type"`
	PartnerType   payment.PartnerType `json:"partner_type"`
	PartnerID     uuid.UUID           `json:"partner_id"`
	Amount        string              `json:"amount"`
	Date          string              `json:"date,omitempty"`
	JournalID     uuid.UUID           `json:"journal_id"`
	Method        payment.Method      `json:"method,omitempty"`
	Ref           string              `json:"ref,omitempty"`
	Communication string              `json:"communication,omitempty"`
	InvoiceIDs    []uuid.UUID         `json:"invoice_ids,omitempty"`
}

// CreateTermRequest represents the payment term creation request
type CreateTermRequest struct {
	Name  string            `json:"name"`
	Note  string            `json:"note,omitempty"`
	Lines []TermLineRequest `json:"lines,omitempty"`
}

// TermLineRequest represents one installment rule
type TermLineRequest struct {
	Sequence    int               `json:"sequence,omitempty"`
	Value       payment.ValueType `json:"value"`
	ValueAmount string            `json:"value_amount,omitempty"`
	DelayType   payment.DelayType `json:"delay_type,omitempty"`
	NbDays      int               `json:"nb_days,omitempty"`
}

// ScheduleRequest asks for the installments of an amount
type ScheduleRequest struct {
	Amount  string `json:"amount"`
	DateRef string `json:"date_ref,omitempty"`
}

// ScheduleResponse lists the computed installments
type ScheduleResponse struct {
	Installments []payment.Installment `json:"installments"`
}

// CreatePayment handles POST /payments
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req CreatePaymentRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	p, err := h.payments.Create(r.Context(), scope, &payment.Payment{
		PaymentType:   req.PaymentType,
		PartnerType:   req.PartnerType,
		PartnerID:     req.PartnerID,
		Amount:        amount,
		Date:          date,
		JournalID:     req.JournalID,
		Method:        req.Method,
		Ref:           req.Ref,
		Communication: req.Communication,
		InvoiceIDs:    req.InvoiceIDs,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, p)
}

// ListPayments handles GET /payments?state=&partner_id=
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var filter payment.Filter
	q := r.URL.Query()
	if v := q.Get("state"); v != "" {
		state := payment.State(v)
		filter.State = &state
	}
	if v := q.Get("partner_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			badRequest(w, "invalid partner_id")
			return
		}
		filter.PartnerID = &id
	}

	payments, err := h.payments.List(r.Context(), scope, filter)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

// GetPayment handles GET /payments/{id}
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	h.payment(w, r, h.payments.Get)
}

// PostPayment handles POST /payments/{id}/post
func (h *PaymentHandler) PostPayment(w http.ResponseWriter, r *http.Request) {
	h.payment(w, r, h.payments.Post)
}

// CancelPayment handles POST /payments/{id}/cancel
func (h *PaymentHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	h.payment(w, r, h.payments.Cancel)
}

// ResetToDraft handles POST /payments/{id}/draft
func (h *PaymentHandler) ResetToDraft(w http.ResponseWriter, r *http.Request) {
	h.payment(w, r, h.payments.ResetToDraft)
}

func (h *PaymentHandler) payment(w http.ResponseWriter, r *http.Request, fn func(context.Context, ledger.Scope, uuid.UUID) (*payment.Payment, error)) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := fn(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

// CreateTerm handles POST /payment-terms
func (h *PaymentHandler) CreateTerm(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	var req CreateTermRequest
	if !decode(w, r, &req) {
		return
	}
	term := &payment.PaymentTerm{Name: req.Name, Note: req.Note}
	for _, l := range req.Lines {
		value, err := decimal.NewFromString(orZero(l.ValueAmount))
		if err != nil {
			badRequest(w, "invalid value_amount")
			return
		}
		delay := l.DelayType
		if delay == "" {
			delay = payment.DelayDaysAfter
		}
		term.Lines = append(term.Lines, &payment.TermLine{
			Sequence:    l.Sequence,
			Value:       l.Value,
			ValueAmount: value,
			DelayType:   delay,
			NbDays:      l.NbDays,
		})
	}

	created, err := h.payments.CreateTerm(r.Context(), scope, term)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// ListTerms handles GET /payment-terms
func (h *PaymentHandler) ListTerms(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}

	terms, err := h.payments.ListTerms(r.Context(), scope)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"terms": terms})
}

// GetTerm handles GET /payment-terms/{id}
func (h *PaymentHandler) GetTerm(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	term, err := h.payments.GetTerm(r.Context(), scope, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, term)
}

// Schedule handles POST /payment-terms/{id}/schedule
func (h *PaymentHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ScheduleRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	dateRef, err := parseDate(req.DateRef)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if dateRef.IsZero() {
		dateRef = time.Now().UTC()
	}

	installments, err := h.payments.Schedule(r.Context(), scope, id, amount, dateRef)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ScheduleResponse{Installments: installments})
}
