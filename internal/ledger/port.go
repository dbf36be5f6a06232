package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for ledger persistence operations.
// Every method is scoped to a company; a record of another company is not found.
// Calls made with a context returned by BeginTx run inside that transaction.
type Repository interface {
	// Entry operations (lines are loaded with the entry)
	CreateEntry(ctx context.Context, entry *Entry) error
	GetEntry(ctx context.Context, companyID, id uuid.UUID) (*Entry, error)
	GetEntryForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Entry, error)
	UpdateEntry(ctx context.Context, entry *Entry) error
	DeleteEntry(ctx context.Context, companyID, id uuid.UUID) error
	ListEntries(ctx context.Context, filter EntryFilter) ([]*Entry, error)
	CountEntries(ctx context.Context, filter EntryFilter) (int, error)

	// Line operations
	CreateLine(ctx context.Context, line *Line) error
	// UpdateLine persists the editable fields: name, amounts, maturity, analytic account
	UpdateLine(ctx context.Context, line *Line) error
	DeleteLine(ctx context.Context, companyID, id uuid.UUID) error
	GetLines(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*Line, error)
	GetLinesForUpdate(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*Line, error)
	SetLinesFullSettlement(ctx context.Context, companyID uuid.UUID, lineIDs []uuid.UUID, fullID *uuid.UUID) error
	ListLines(ctx context.Context, filter LineFilter) ([]*Line, error)
	SumLines(ctx context.Context, filter LineFilter) (debit, credit decimal.Decimal, err error)

	// Settlement operations
	CreatePartial(ctx context.Context, partial *PartialSettlement) error
	GetPartials(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*PartialSettlement, error)
	DeletePartial(ctx context.Context, companyID, id uuid.UUID) error
	PartialsByLines(ctx context.Context, companyID uuid.UUID, lineIDs []uuid.UUID) ([]*PartialSettlement, error)
	PartialsByFull(ctx context.Context, companyID, fullID uuid.UUID) ([]*PartialSettlement, error)
	SetPartialsFullSettlement(ctx context.Context, companyID uuid.UUID, partialIDs []uuid.UUID, fullID *uuid.UUID) error
	CreateFull(ctx context.Context, full *FullSettlement) error
	GetFull(ctx context.Context, companyID, id uuid.UUID) (*FullSettlement, error)
	DeleteFull(ctx context.Context, companyID, id uuid.UUID) error

	// NextSequence returns the next number (starting at 1) of a per-company sequence
	NextSequence(ctx context.Context, companyID uuid.UUID, code string) (int64, error)

	// Transaction management
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
	InTx(ctx context.Context) bool
}

// EntryFilter defines filters for listing entries
type EntryFilter struct {
	CompanyID uuid.UUID
	State     *EntryState
	JournalID *uuid.UUID
	PartnerID *uuid.UUID
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	Offset    int
}

// LineFilter defines filters for listing and summing lines
type LineFilter struct {
	CompanyID         uuid.UUID
	AccountID         *uuid.UUID
	AnalyticAccountID *uuid.UUID
	EntryState        *EntryState
	DateFrom          *time.Time
	DateTo            *time.Time
}

// AccountInfo is what the ledger needs to know about a chart account
type AccountInfo struct {
	ID           uuid.UUID
	Code         string
	Type         string
	Reconcilable bool
	Deprecated   bool
}

// JournalInfo is what the ledger needs to know about a journal
type JournalInfo struct {
	ID   uuid.UUID
	Code string
	Type string
}

// ChartReader resolves accounts and journals of the chart
type ChartReader interface {
	AccountInfo(ctx context.Context, companyID, accountID uuid.UUID) (*AccountInfo, error)
	JournalInfo(ctx context.Context, companyID, journalID uuid.UUID) (*JournalInfo, error)
}

// PeriodGuard rejects dates that fall in a closed fiscal period
type PeriodGuard interface {
	EnsureOpen(ctx context.Context, scope Scope, date time.Time) error
}

// BalanceCache memoises account balances; a miss returns (nil, nil)
type BalanceCache interface {
	Get(ctx context.Context, companyID, accountID uuid.UUID) (*AccountBalance, error)
	Set(ctx context.Context, balance *AccountBalance) error
	Invalidate(ctx context.Context, companyID uuid.UUID, accountIDs ...uuid.UUID) error
}

// EventPublisher delivers domain events after commit
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
