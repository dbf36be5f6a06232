package budget

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/ledger"
)

// Repository defines the interface for budget data access
type Repository interface {
	CreateBudget(ctx context.Context, budget *Budget) error
	// GetBudget loads the budget with its lines ordered by sequence
	GetBudget(ctx context.Context, companyID, id uuid.UUID) (*Budget, error)
	UpdateBudget(ctx context.Context, budget *Budget) error
	ListBudgets(ctx context.Context, companyID uuid.UUID) ([]*Budget, error)

	CreateLine(ctx context.Context, line *Line) error
	DeleteLine(ctx context.Context, budgetID, lineID uuid.UUID) error

	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, companyID, id uuid.UUID) (*Post, error)
}

// LedgerLines sums posted ledger lines; ledger.Repository satisfies it
type LedgerLines interface {
	SumLines(ctx context.Context, filter ledger.LineFilter) (debit, credit decimal.Decimal, err error)
}

// AnalyticAmounts sums analytic amounts; analytic.Service satisfies it
type AnalyticAmounts interface {
	SumAmount(ctx context.Context, scope ledger.Scope, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
}
