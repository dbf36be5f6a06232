package statement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/pkg/money"
)

// State of a bank statement
type State string

const (
	StateOpen    State = "open"
	StateConfirm State = "confirm"
)

// Statement is a bank or cash statement imported or typed from the bank
type Statement struct {
	ID             uuid.UUID       `json:"id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	Name           string          `json:"name"`
	Date           time.Time       `json:"date"`
	JournalID      uuid.UUID       `json:"journal_id"`
	BalanceStart   decimal.Decimal `json:"balance_start"`
	BalanceEndReal decimal.Decimal `json:"balance_end_real"`
	State          State           `json:"state"`
	Lines          []*Line         `json:"lines"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// BalanceEnd is the starting balance plus every line amount
func (s *Statement) BalanceEnd() decimal.Decimal {
	total := s.BalanceStart
	for _, l := range s.Lines {
		total = total.Add(l.Amount)
	}
	return total
}

// Difference is BalanceEnd - BalanceEndReal
func (s *Statement) Difference() decimal.Decimal {
	return s.BalanceEnd().Sub(s.BalanceEndReal)
}

// IsBalanced reports whether the computed and real ending balances agree within a cent
func (s *Statement) IsBalanced() bool {
	return !s.Difference().Abs().GreaterThan(money.Epsilon)
}

// Unreconciled returns the lines not yet linked to an entry
func (s *Statement) Unreconciled() []*Line {
	var result []*Line
	for _, l := range s.Lines {
		if !l.IsReconciled() {
			result = append(result, l)
		}
	}
	return result
}

// FindLine returns the line with the given id
func (s *Statement) FindLine(id uuid.UUID) (*Line, bool) {
	for _, l := range s.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// Line is one bank movement; a positive amount is money received
type Line struct {
	ID          uuid.UUID       `json:"id"`
	StatementID uuid.UUID       `json:"statement_id"`
	Sequence    int             `json:"sequence"`
	Date        time.Time       `json:"date"`
	Name        string          `json:"name"`
	Ref         string          `json:"ref,omitempty"`
	PartnerID   *uuid.UUID      `json:"partner_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	EntryID     *uuid.UUID      `json:"entry_id,omitempty"`
}

// IsReconciled reports whether the line is linked to an entry
func (l *Line) IsReconciled() bool {
	return l.EntryID != nil
}

// Validate checks the line fields
func (l *Line) Validate() error {
	if l.Name == "" {
		return ErrMissingLineName
	}
	if money.IsZero(l.Amount) {
		return ErrZeroAmount
	}
	return nil
}
