package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/platform/chart"
)

// Repository defines the interface for payment data access.
// Calls made inside a ledger transaction join it.
type Repository interface {
	CreatePayment(ctx context.Context, payment *Payment) error
	GetPayment(ctx context.Context, companyID, id uuid.UUID) (*Payment, error)
	// GetPaymentForUpdate locks the payment row until the transaction ends
	GetPaymentForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Payment, error)
	UpdatePayment(ctx context.Context, payment *Payment) error
	ListPayments(ctx context.Context, filter Filter) ([]*Payment, error)

	// CreateTerm stores the term with its lines
	CreateTerm(ctx context.Context, term *PaymentTerm) error
	GetTerm(ctx context.Context, companyID, id uuid.UUID) (*PaymentTerm, error)
	ListTerms(ctx context.Context, companyID uuid.UUID) ([]*PaymentTerm, error)
}

// Filter defines filters for listing payments
type Filter struct {
	CompanyID uuid.UUID
	State     *State
	PartnerID *uuid.UUID
}

// Ledger is the part of ledger.Service a payment drives
type Ledger interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateEntry(ctx context.Context, scope ledger.Scope, in ledger.NewEntry) (*ledger.Entry, error)
	AddLine(ctx context.Context, scope ledger.Scope, entryID uuid.UUID, in ledger.NewLine) (*ledger.Line, error)
	Post(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) (*ledger.Entry, error)
	Cancel(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) (*ledger.Entry, error)
	GetEntry(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) (*ledger.Entry, error)
}

// Reconciler settles the payment line against invoice lines
type Reconciler interface {
	Reconcile(ctx context.Context, scope ledger.Scope, lineIDs []uuid.UUID) (*ledger.ReconcileResult, error)
}

// Chart resolves the journal and counterpart accounts; chart.Service satisfies it
type Chart interface {
	GetJournal(ctx context.Context, companyID, id uuid.UUID) (*chart.Journal, error)
	FindAccountByType(ctx context.Context, companyID uuid.UUID, typ chart.AccountType) (*chart.Account, error)
}

// Sequencer numbers payments; ledger.Repository satisfies it
type Sequencer interface {
	NextSequence(ctx context.Context, companyID uuid.UUID, code string) (int64, error)
}
