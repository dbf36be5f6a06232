package chart

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountType classifies an account; it drives reconciliation defaults and
// the internal group used by reports
type AccountType string

const (
	AccountTypeReceivable          AccountType = "asset_receivable"
	AccountTypeCash                AccountType = "asset_cash"
	AccountTypeCurrent             AccountType = "asset_current"
	AccountTypeNonCurrent          AccountType = "asset_non_current"
	AccountTypePrepayments         AccountType = "asset_prepayments"
	AccountTypeFixed               AccountType = "asset_fixed"
	AccountTypePayable             AccountType = "liability_payable"
	AccountTypeCreditCard          AccountType = "liability_credit_card"
	AccountTypeLiabilityCurrent    AccountType = "liability_current"
	AccountTypeLiabilityNonCurrent AccountType = "liability_non_current"
	AccountTypeEquity              AccountType = "equity"
	AccountTypeEquityUnaffected    AccountType = "equity_unaffected"
	AccountTypeIncome              AccountType = "income"
	AccountTypeIncomeOther         AccountType = "income_other"
	AccountTypeExpense             AccountType = "expense"
	AccountTypeDepreciation        AccountType = "expense_depreciation"
	AccountTypeDirectCost          AccountType = "expense_direct_cost"
	AccountTypeOffBalance          AccountType = "off_balance"
)

var accountTypes = map[AccountType]bool{
	AccountTypeReceivable: true, AccountTypeCash: true, AccountTypeCurrent: true,
	AccountTypeNonCurrent: true, AccountTypePrepayments: true, AccountTypeFixed: true,
	AccountTypePayable: true, AccountTypeCreditCard: true, AccountTypeLiabilityCurrent: true,
	AccountTypeLiabilityNonCurrent: true, AccountTypeEquity: true, AccountTypeEquityUnaffected: true,
	AccountTypeIncome: true, AccountTypeIncomeOther: true, AccountTypeExpense: true,
	AccountTypeDepreciation: true, AccountTypeDirectCost: true, AccountTypeOffBalance: true,
}

// IsValid checks if the account type is known
func (t AccountType) IsValid() bool {
	return accountTypes[t]
}

// InternalGroup returns asset, liability, equity, income, expense or off_balance
func (t AccountType) InternalGroup() string {
	if t == AccountTypeOffBalance {
		return "off_balance"
	}
	group, _, _ := strings.Cut(string(t), "_")
	return group
}

// IsReceivablePayable reports whether lines on this type track partner debts
func (t AccountType) IsReceivablePayable() bool {
	return t == AccountTypeReceivable || t == AccountTypePayable
}

// Account is a chart-of-accounts node of one company
type Account struct {
	ID         uuid.UUID   `json:"id"`
	CompanyID  uuid.UUID   `json:"company_id"`
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Type       AccountType `json:"type"`
	ParentID   *uuid.UUID  `json:"parent_id,omitempty"`
	Reconcile  bool        `json:"reconcile"`
	Deprecated bool        `json:"deprecated"`
	TaxIDs     []uuid.UUID `json:"tax_ids,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Validate checks the account fields for creation
func (a *Account) Validate() error {
	if len(strings.TrimSpace(a.Code)) < 3 {
		return ErrAccountCodeTooShort
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrMissingAccountName
	}
	if !a.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAccountType, a.Type)
	}
	return nil
}

// Class returns the PCG class (1 to 8) given by the first digit of the code,
// or 0 when the code does not start with one
func (a *Account) Class() int {
	if a.Code == "" {
		return 0
	}
	c := a.Code[0]
	if c < '1' || c > '8' {
		return 0
	}
	return int(c - '0')
}

// InternalGroup returns the report group of the account type
func (a *Account) InternalGroup() string {
	return a.Type.InternalGroup()
}

// JournalType classifies a journal
type JournalType string

const (
	JournalTypeSale      JournalType = "sale"
	JournalTypePurchase  JournalType = "purchase"
	JournalTypeCash      JournalType = "cash"
	JournalTypeBank      JournalType = "bank"
	JournalTypeGeneral   JournalType = "general"
	JournalTypeSituation JournalType = "situation"
)

// IsValid checks if the journal type is known
func (t JournalType) IsValid() bool {
	switch t {
	case JournalTypeSale, JournalTypePurchase, JournalTypeCash, JournalTypeBank, JournalTypeGeneral, JournalTypeSituation:
		return true
	}
	return false
}

// IsLiquidity reports whether the journal moves money (bank or cash)
func (t JournalType) IsLiquidity() bool {
	return t == JournalTypeCash || t == JournalTypeBank
}

// Journal groups entries and owns their numbering sequence
type Journal struct {
	ID                uuid.UUID   `json:"id"`
	CompanyID         uuid.UUID   `json:"company_id"`
	Code              string      `json:"code"`
	Name              string      `json:"name"`
	Type              JournalType `json:"type"`
	DefaultAccountID  *uuid.UUID  `json:"default_account_id,omitempty"`
	SuspenseAccountID *uuid.UUID  `json:"suspense_account_id,omitempty"`
	ProfitAccountID   *uuid.UUID  `json:"profit_account_id,omitempty"`
	LossAccountID     *uuid.UUID  `json:"loss_account_id,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// Validate checks the journal fields for creation
func (j *Journal) Validate() error {
	code := strings.TrimSpace(j.Code)
	if code == "" || len(code) > 5 {
		return ErrJournalCodeLength
	}
	if strings.TrimSpace(j.Name) == "" {
		return ErrMissingJournalName
	}
	if !j.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidJournalType, j.Type)
	}
	return nil
}

// SequencePrefix returns the entry name prefix for a year, e.g. "VTE/2024/"
func (j *Journal) SequencePrefix(year int) string {
	return fmt.Sprintf("%s/%d/", j.Code, year)
}
