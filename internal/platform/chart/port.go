package chart

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for chart-of-accounts data access.
// Lookups are scoped to a company; a record of another company is not found.
type Repository interface {
	// Account operations
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, companyID, id uuid.UUID) (*Account, error)
	GetAccountByCode(ctx context.Context, companyID uuid.UUID, code string) (*Account, error)
	ListAccounts(ctx context.Context, companyID uuid.UUID) ([]*Account, error)
	UpdateAccount(ctx context.Context, account *Account) error

	// Journal operations
	CreateJournal(ctx context.Context, journal *Journal) error
	GetJournal(ctx context.Context, companyID, id uuid.UUID) (*Journal, error)
	GetJournalByCode(ctx context.Context, companyID uuid.UUID, code string) (*Journal, error)
	ListJournals(ctx context.Context, companyID uuid.UUID) ([]*Journal, error)

	// Tax operations
	CreateTax(ctx context.Context, tax *Tax) error
	GetTax(ctx context.Context, companyID, id uuid.UUID) (*Tax, error)
	ListTaxes(ctx context.Context, companyID uuid.UUID) ([]*Tax, error)
}
