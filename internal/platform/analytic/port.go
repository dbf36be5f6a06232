package analytic

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/ledger"
)

// Repository defines the interface for analytic data access
type Repository interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, companyID, id uuid.UUID) (*Account, error)
	GetAccountByCode(ctx context.Context, companyID uuid.UUID, code string) (*Account, error)
	ListAccounts(ctx context.Context, companyID uuid.UUID) ([]*Account, error)
	UpdateAccount(ctx context.Context, account *Account) error

	CreateLine(ctx context.Context, line *Line) error
	ListLines(ctx context.Context, filter LineFilter) ([]*Line, error)
}

// LineFilter selects analytic lines; nil dates are open bounds
type LineFilter struct {
	CompanyID uuid.UUID
	AccountID uuid.UUID
	DateFrom  *time.Time
	DateTo    *time.Time
}

// LedgerLines sums ledger lines; ledger.Repository satisfies it
type LedgerLines interface {
	SumLines(ctx context.Context, filter ledger.LineFilter) (debit, credit decimal.Decimal, err error)
}
