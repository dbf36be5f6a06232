package statement

import (
	"context"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/platform/chart"
)

// Repository defines the interface for statement data access
type Repository interface {
	CreateStatement(ctx context.Context, statement *Statement) error
	// GetStatement loads the statement with its lines ordered by sequence
	GetStatement(ctx context.Context, companyID, id uuid.UUID) (*Statement, error)
	// GetStatementForUpdate is GetStatement holding the header row lock,
	// which serialises every change to the statement and its lines
	GetStatementForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Statement, error)
	UpdateStatement(ctx context.Context, statement *Statement) error
	ListStatements(ctx context.Context, companyID uuid.UUID, journalID *uuid.UUID) ([]*Statement, error)

	CreateLine(ctx context.Context, line *Line) error
	UpdateLine(ctx context.Context, line *Line) error
	DeleteLine(ctx context.Context, statementID, lineID uuid.UUID) error
}

// Ledger is the part of ledger.Service statements use
type Ledger interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateEntry(ctx context.Context, scope ledger.Scope, in ledger.NewEntry) (*ledger.Entry, error)
	AddLine(ctx context.Context, scope ledger.Scope, entryID uuid.UUID, in ledger.NewLine) (*ledger.Line, error)
	Post(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) (*ledger.Entry, error)
	GetEntry(ctx context.Context, scope ledger.Scope, entryID uuid.UUID) (*ledger.Entry, error)
}

// Journals resolves the statement journal; chart.Service satisfies it
type Journals interface {
	GetJournal(ctx context.Context, companyID, id uuid.UUID) (*chart.Journal, error)
}

// Sequencer numbers statements; ledger.Repository satisfies it
type Sequencer interface {
	NextSequence(ctx context.Context, companyID uuid.UUID, code string) (int64, error)
}
