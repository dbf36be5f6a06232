package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/module/payment"
	"github.com/kislikjeka/grandlivre/internal/transport/httpapi/handler"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

// MockPayments is a mock implementation of handler.PaymentService
type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) payment(args mock.Arguments) (*payment.Payment, error) {
	if p := args.Get(0); p != nil {
		return p.(*payment.Payment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPayments) Create(ctx context.Context, scope ledger.Scope, p *payment.Payment) (*payment.Payment, error) {
	return m.payment(m.Called(ctx, scope, p))
}

func (m *MockPayments) Get(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*payment.Payment, error) {
	return m.payment(m.Called(ctx, scope, id))
}

func (m *MockPayments) List(ctx context.Context, scope ledger.Scope, filter payment.Filter) ([]*payment.Payment, error) {
	args := m.Called(ctx, scope, filter)
	return args.Get(0).([]*payment.Payment), args.Error(1)
}

func (m *MockPayments) Post(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*payment.Payment, error) {
	return m.payment(m.Called(ctx, scope, id))
}

func (m *MockPayments) Cancel(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*payment.Payment, error) {
	return m.payment(m.Called(ctx, scope, id))
}

func (m *MockPayments) ResetToDraft(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*payment.Payment, error) {
	return m.payment(m.Called(ctx, scope, id))
}

func (m *MockPayments) CreateTerm(ctx context.Context, scope ledger.Scope, term *payment.PaymentTerm) (*payment.PaymentTerm, error) {
	args := m.Called(ctx, scope, term)
	if t := args.Get(0); t != nil {
		return t.(*payment.PaymentTerm), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPayments) GetTerm(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*payment.PaymentTerm, error) {
	args := m.Called(ctx, scope, id)
	if t := args.Get(0); t != nil {
		return t.(*payment.PaymentTerm), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPayments) ListTerms(ctx context.Context, scope ledger.Scope) ([]*payment.PaymentTerm, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).([]*payment.PaymentTerm), args.Error(1)
}

func (m *MockPayments) Schedule(ctx context.Context, scope ledger.Scope, termID uuid.UUID, amount decimal.Decimal, dateRef time.Time) ([]payment.Installment, error) {
	args := m.Called(ctx, scope, termID, amount, dateRef)
	if i := args.Get(0); i != nil {
		return i.([]payment.Installment), args.Error(1)
	}
	return nil, args.Error(1)
}

func paymentRoutes(h *handler.PaymentHandler) http.Handler {
	return authed(func(r chi.Router) {
		r.Post("/payments", h.CreatePayment)
		r.Get("/payments", h.ListPayments)
		r.Post("/payments/{id}/post", h.PostPayment)
		r.Post("/payment-terms", h.CreateTerm)
		r.Post("/payment-terms/{id}/schedule", h.Schedule)
	})
}

func TestCreatePayment(t *testing.T) {
	svc := new(MockPayments)
	h := paymentRoutes(handler.NewPaymentHandler(svc, logger.Nop()))

	partner, journal, invoice := uuid.New(), uuid.New(), uuid.New()
	svc.On("Create", mock.Anything, testScope, mock.MatchedBy(func(p *payment.Payment) bool {
		return p.PaymentType == payment.TypeInbound &&
			p.PartnerType == payment.PartnerCustomer &&
			p.Amount.Equal(money.MustParse("120")) &&
			p.Date.Equal(time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)) &&
			len(p.InvoiceIDs) == 1 && p.InvoiceIDs[0] == invoice
	})).Return(&payment.Payment{ID: uuid.New(), Name: "PAY/00001", State: payment.StateDraft, Amount: money.MustParse("120")}, nil)

	rec := do(t, h, http.MethodPost, "/payments", map[string]interface{}{
		"payment_type": "inbound",
		"partner_type": "customer",
		"partner_id":   partner,
		"amount":       "120",
		"date":         "2024-04-02",
		"journal_id":   journal,
		"invoice_ids":  []uuid.UUID{invoice},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp map[string]interface{}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "PAY/00001", resp["name"])
	assert.Equal(t, "120", resp["amount"])
	svc.AssertExpectations(t)
}

func TestListPayments_Filter(t *testing.T) {
	svc := new(MockPayments)
	h := paymentRoutes(handler.NewPaymentHandler(svc, logger.Nop()))

	svc.On("List", mock.Anything, testScope, mock.MatchedBy(func(f payment.Filter) bool {
		return f.State != nil && *f.State == payment.StatePosted && f.PartnerID == nil
	})).Return([]*payment.Payment{}, nil)

	rec := do(t, h, http.MethodGet, "/payments?state=posted", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"payments":[]}`, rec.Body.String())
}

func TestPostPayment_AlreadyPosted(t *testing.T) {
	svc := new(MockPayments)
	h := paymentRoutes(handler.NewPaymentHandler(svc, logger.Nop()))

	id := uuid.New()
	svc.On("Post", mock.Anything, testScope, id).Return(nil, payment.ErrNotDraft)

	rec := do(t, h, http.MethodPost, "/payments/"+id.String()+"/post", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateTerm_DefaultsDelay(t *testing.T) {
	svc := new(MockPayments)
	h := paymentRoutes(handler.NewPaymentHandler(svc, logger.Nop()))

	svc.On("CreateTerm", mock.Anything, testScope, mock.MatchedBy(func(term *payment.PaymentTerm) bool {
		return term.Name == "30% now, balance 30 days" &&
			len(term.Lines) == 2 &&
			term.Lines[0].Value == payment.ValuePercent &&
			term.Lines[0].ValueAmount.Equal(decimal.NewFromInt(30)) &&
			term.Lines[0].DelayType == payment.DelayDaysAfter &&
			term.Lines[1].Value == payment.ValueBalance &&
			term.Lines[1].ValueAmount.IsZero() &&
			term.Lines[1].NbDays == 30
	})).Return(&payment.PaymentTerm{ID: uuid.New(), Name: "30% now, balance 30 days"}, nil)

	rec := do(t, h, http.MethodPost, "/payment-terms", map[string]interface{}{
		"name": "30% now, balance 30 days",
		"lines": []map[string]interface{}{
			{"value": "percent", "value_amount": "30"},
			{"value": "balance", "nb_days": 30},
		},
	})

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestSchedule(t *testing.T) {
	svc := new(MockPayments)
	h := paymentRoutes(handler.NewPaymentHandler(svc, logger.Nop()))

	termID := uuid.New()
	ref := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	svc.On("Schedule", mock.Anything, testScope, termID,
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromInt(1000)) }),
		mock.MatchedBy(func(d time.Time) bool { return d.Equal(ref) }),
	).Return([]payment.Installment{
		{Date: ref, Amount: money.MustParse("300")},
		{Date: ref.AddDate(0, 0, 30), Amount: money.MustParse("700")},
	}, nil)

	rec := do(t, h, http.MethodPost, "/payment-terms/"+termID.String()+"/schedule", map[string]interface{}{
		"amount":   "1000",
		"date_ref": "2024-01-31",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp handler.ScheduleResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Installments, 2)
	assert.True(t, resp.Installments[1].Amount.Equal(money.MustParse("700")))
}
