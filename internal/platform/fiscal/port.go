package fiscal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/ledger"
)

// Repository defines the interface for fiscal data access
type Repository interface {
	CreateYear(ctx context.Context, year *FiscalYear) error
	GetYear(ctx context.Context, companyID, id uuid.UUID) (*FiscalYear, error)
	ListYears(ctx context.Context, companyID uuid.UUID) ([]*FiscalYear, error)
	UpdateYear(ctx context.Context, year *FiscalYear) error

	CreatePeriod(ctx context.Context, period *Period) error
	GetPeriod(ctx context.Context, companyID, id uuid.UUID) (*Period, error)
	ListPeriods(ctx context.Context, companyID, yearID uuid.UUID) ([]*Period, error)
	UpdatePeriod(ctx context.Context, period *Period) error
	// FindPeriod returns the period containing date, or ErrPeriodNotFound
	FindPeriod(ctx context.Context, companyID uuid.UUID, date time.Time) (*Period, error)

	CreatePosition(ctx context.Context, position *Position) error
	GetPosition(ctx context.Context, companyID, id uuid.UUID) (*Position, error)
}

// EntryCounter counts ledger entries; ledger.Repository satisfies it
type EntryCounter interface {
	CountEntries(ctx context.Context, filter ledger.EntryFilter) (int, error)
}
