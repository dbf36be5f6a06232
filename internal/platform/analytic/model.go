package analytic

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/kislikjeka/grandlivre/internal/shared/errors"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

var (
	ErrAccountNotFound    = apperrors.NotFound("analytic account")
	ErrMissingAccountName = apperrors.Validation("analytic account name is required")
	ErrDuplicateCode      = apperrors.Validation("analytic account code already exists in this company")
	ErrMissingLineName    = apperrors.Validation("analytic line name is required")
	ErrZeroAmount         = apperrors.Validation("analytic line amount cannot be zero")
	ErrAccountArchived    = apperrors.User("analytic account is archived")
)

// Account is a cost or profit center
type Account struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the account fields for creation
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrMissingAccountName
	}
	return nil
}

// Line is an amount booked on an analytic account outside the ledger, e.g.
// a distribution or a timesheet cost. Positive amounts are debits, negative
// amounts credits.
type Line struct {
	ID        uuid.UUID       `json:"id"`
	CompanyID uuid.UUID       `json:"company_id"`
	AccountID uuid.UUID       `json:"account_id"`
	Name      string          `json:"name"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks the line fields for creation
func (l *Line) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrMissingLineName
	}
	if money.IsZero(l.Amount) {
		return ErrZeroAmount
	}
	return nil
}

// Balance is the debit/credit summary of an analytic account
type Balance struct {
	AccountID uuid.UUID       `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Balance   decimal.Decimal `json:"balance"`
}

// add books a signed amount on the matching side
func (b *Balance) add(amount decimal.Decimal) {
	if amount.IsNegative() {
		b.Credit = b.Credit.Add(amount.Neg())
	} else {
		b.Debit = b.Debit.Add(amount)
	}
	b.Balance = b.Debit.Sub(b.Credit)
}
