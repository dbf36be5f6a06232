package ledger

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/pkg/money"
)

// Scope identifies the company and user an operation acts for
type Scope struct {
	CompanyID uuid.UUID
	UserID    uuid.UUID
}

// Validate rejects scopes without a company
func (s Scope) Validate() error {
	if s.CompanyID == uuid.Nil {
		return ErrMissingCompany
	}
	return nil
}

// EntryState is the lifecycle state of an entry
type EntryState string

const (
	EntryStateDraft  EntryState = "draft"
	EntryStatePosted EntryState = "posted"
	EntryStateCancel EntryState = "cancel"
)

// IsValid checks if the state is known
func (s EntryState) IsValid() bool {
	switch s {
	case EntryStateDraft, EntryStatePosted, EntryStateCancel:
		return true
	}
	return false
}

// MoveType classifies an entry
type MoveType string

const (
	MoveTypeEntry      MoveType = "entry"
	MoveTypeOutInvoice MoveType = "out_invoice"
	MoveTypeOutRefund  MoveType = "out_refund"
	MoveTypeInInvoice  MoveType = "in_invoice"
	MoveTypeInRefund   MoveType = "in_refund"
	MoveTypeOutReceipt MoveType = "out_receipt"
	MoveTypeInReceipt  MoveType = "in_receipt"
)

// IsValid checks if the move type is known
func (m MoveType) IsValid() bool {
	switch m {
	case MoveTypeEntry, MoveTypeOutInvoice, MoveTypeOutRefund, MoveTypeInInvoice,
		MoveTypeInRefund, MoveTypeOutReceipt, MoveTypeInReceipt:
		return true
	}
	return false
}

// IsInvoice reports whether amounts are split into untaxed, tax and residual
func (m MoveType) IsInvoice() bool {
	switch m {
	case MoveTypeOutInvoice, MoveTypeOutRefund, MoveTypeInInvoice, MoveTypeInRefund:
		return true
	}
	return false
}

// Account types the ledger itself needs to recognise
const (
	AccountTypeReceivable = "asset_receivable"
	AccountTypePayable    = "liability_payable"
)

// IsReceivablePayable reports whether lines on this account type carry an invoice's residual
func IsReceivablePayable(accountType string) bool {
	return accountType == AccountTypeReceivable || accountType == AccountTypePayable
}

// DraftName is the display number of an entry that was never posted
const DraftName = "/"

// Entry is a journal entry grouping balanced lines
type Entry struct {
	ID              uuid.UUID
	CompanyID       uuid.UUID
	Name            string
	Ref             string
	Date            time.Time
	State           EntryState
	MoveType        MoveType
	JournalID       uuid.UUID
	JournalCode     string
	PartnerID       *uuid.UUID
	ReversedEntryID *uuid.UUID
	PostedAt        *time.Time // set at first post, never cleared
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Lines           []*Line
}

// TotalDebit sums the debit side
func (e *Entry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit side
func (e *Entry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// IsBalanced reports whether |debit - credit| < 0.01
func (e *Entry) IsBalanced() bool {
	return money.NearlyEqual(e.TotalDebit(), e.TotalCredit())
}

// IsDraft returns true while lines may still change
func (e *Entry) IsDraft() bool {
	return e.State == EntryStateDraft
}

// WasPosted returns true once the entry has been posted at least once
func (e *Entry) WasPosted() bool {
	return e.PostedAt != nil
}

// HasFullSettlement reports whether any line is fully reconciled
func (e *Entry) HasFullSettlement() bool {
	for _, l := range e.Lines {
		if l.Reconciled() {
			return true
		}
	}
	return false
}

// CanPost checks the draft->posted preconditions without mutating the entry
func (e *Entry) CanPost() error {
	if e.State != EntryStateDraft {
		return ErrNotDraft
	}
	if len(e.Lines) == 0 {
		return ErrEmptyEntry
	}
	if !e.IsBalanced() {
		return wrapf(ErrUnbalanced, "debit=%s credit=%s", money.Format(e.TotalDebit()), money.Format(e.TotalCredit()))
	}
	return nil
}

// AccountIDs returns the distinct accounts touched by the entry
func (e *Entry) AccountIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(e.Lines))
	ids := make([]uuid.UUID, 0, len(e.Lines))
	for _, l := range e.Lines {
		if !seen[l.AccountID] {
			seen[l.AccountID] = true
			ids = append(ids, l.AccountID)
		}
	}
	return ids
}

// FindLine returns the line with the given id
func (e *Entry) FindLine(id uuid.UUID) (*Line, bool) {
	for _, l := range e.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// Line is one debit or credit movement on an account
type Line struct {
	ID                uuid.UUID
	EntryID           uuid.UUID
	CompanyID         uuid.UUID
	AccountID         uuid.UUID
	AccountType       string
	Name              string
	PartnerID         *uuid.UUID
	Debit             decimal.Decimal
	Credit            decimal.Decimal
	Date              time.Time // entry date
	DateMaturity      *time.Time
	TaxLineID         *uuid.UUID // set on lines produced by a tax
	AnalyticAccountID *uuid.UUID
	FullSettlementID  *uuid.UUID
	CreatedAt         time.Time

	// EntryState is read from the owning entry; never written through the line
	EntryState EntryState
}

// SetDebit assigns the debit and clears the credit when the new amount is non-zero
func (l *Line) SetDebit(amount decimal.Decimal) {
	l.Debit = money.Round(amount)
	if !l.Debit.IsZero() {
		l.Credit = decimal.Zero
	}
}

// SetCredit assigns the credit and clears the debit when the new amount is non-zero
func (l *Line) SetCredit(amount decimal.Decimal) {
	l.Credit = money.Round(amount)
	if !l.Credit.IsZero() {
		l.Debit = decimal.Zero
	}
}

// Balance is debit - credit
func (l *Line) Balance() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// IsDebitSide returns true for lines with a positive balance
func (l *Line) IsDebitSide() bool {
	return l.Balance().IsPositive()
}

// IsCreditSide returns true for lines with a negative balance
func (l *Line) IsCreditSide() bool {
	return l.Balance().IsNegative()
}

// Reconciled returns true when the line belongs to a full settlement
func (l *Line) Reconciled() bool {
	return l.FullSettlementID != nil
}

// Validate checks the amount invariants
func (l *Line) Validate() error {
	if l.AccountID == uuid.Nil {
		return ErrMissingAccount
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return ErrNegativeAmount
	}
	if !l.Debit.IsZero() && !l.Credit.IsZero() {
		return ErrDebitAndCredit
	}
	return nil
}

// Residual returns the unsettled part of the line given the partial settlements
func (l *Line) Residual(partials []*PartialSettlement) (decimal.Decimal, error) {
	return Residual(l, partials)
}

// PartialSettlement links one debit-side line and one credit-side line for an amount
type PartialSettlement struct {
	ID               uuid.UUID
	CompanyID        uuid.UUID
	DebitLineID      uuid.UUID
	CreditLineID     uuid.UUID
	Amount           decimal.Decimal
	FullSettlementID *uuid.UUID
	MaxDate          time.Time
	CreatedAt        time.Time
}

// Touches reports whether the settlement references the line
func (p *PartialSettlement) Touches(lineID uuid.UUID) bool {
	return p.DebitLineID == lineID || p.CreditLineID == lineID
}

// Other returns the line on the opposite side of lineID
func (p *PartialSettlement) Other(lineID uuid.UUID) uuid.UUID {
	if p.DebitLineID == lineID {
		return p.CreditLineID
	}
	return p.DebitLineID
}

// FullSettlement groups partial settlements that bring every line to zero residual
type FullSettlement struct {
	ID         uuid.UUID
	CompanyID  uuid.UUID
	Name       string
	PartialIDs []uuid.UUID
	LineIDs    []uuid.UUID
	CreatedAt  time.Time
}

// PaymentState of an invoice
type PaymentState string

const (
	PaymentStateNotPaid PaymentState = "not_paid"
	PaymentStatePartial PaymentState = "partial"
	PaymentStatePaid    PaymentState = "paid"
)

// EntryAmounts are the derived totals of an entry
type EntryAmounts struct {
	Untaxed  decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Residual decimal.Decimal
}

// AccountBalance is the posted debit, credit and balance of an account
type AccountBalance struct {
	CompanyID  uuid.UUID
	AccountID  uuid.UUID
	Debit      decimal.Decimal
	Credit     decimal.Decimal
	Balance    decimal.Decimal
	ComputedAt time.Time
}

// Day truncates t to midnight UTC; entry dates carry no time of day
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// lineLess orders lines by date, then id
func lineLess(a, b *Line) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}
