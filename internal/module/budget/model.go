package budget

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/pkg/money"
)

// State is the lifecycle state of a budget
type State string

const (
	StateDraft    State = "draft"
	StateConfirm  State = "confirm"
	StateValidate State = "validate"
	StateDone     State = "done"
	StateCancel   State = "cancel"
)

// transitions lists the states each state can move to
var transitions = map[State][]State{
	StateDraft:    {StateConfirm, StateCancel},
	StateConfirm:  {StateValidate, StateCancel, StateDraft},
	StateValidate: {StateDone, StateCancel},
	StateCancel:   {StateDraft},
}

// CanMoveTo reports whether the lifecycle allows s → next
func (s State) CanMoveTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Budget plans amounts per account over a date range, bounds inclusive
type Budget struct {
	ID        uuid.UUID  `json:"id"`
	CompanyID uuid.UUID  `json:"company_id"`
	Name      string     `json:"name"`
	State     State      `json:"state"`
	DateFrom  time.Time  `json:"date_from"`
	DateTo    time.Time  `json:"date_to"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Lines     []*Line    `json:"lines"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Validate checks the budget header
func (b *Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrMissingName
	}
	if b.DateFrom.IsZero() || b.DateTo.IsZero() || b.DateFrom.After(b.DateTo) {
		return ErrInvalidDateRange
	}
	return nil
}

// Line is one planned amount. The practical amount is read from the
// analytic account when set, otherwise from the general account or from
// the accounts of the budgetary position.
type Line struct {
	ID                uuid.UUID       `json:"id"`
	BudgetID          uuid.UUID       `json:"budget_id"`
	Sequence          int             `json:"sequence"`
	Name              string          `json:"name,omitempty"`
	AccountID         *uuid.UUID      `json:"account_id,omitempty"`
	AnalyticAccountID *uuid.UUID      `json:"analytic_account_id,omitempty"`
	PostID            *uuid.UUID      `json:"post_id,omitempty"`
	PlannedAmount     decimal.Decimal `json:"planned_amount"`
}

// Validate checks the line fields
func (l *Line) Validate() error {
	if l.AccountID == nil && l.AnalyticAccountID == nil && l.PostID == nil {
		return ErrMissingTarget
	}
	if l.PlannedAmount.IsNegative() {
		return ErrNegativePlanned
	}
	return nil
}

// Post groups general accounts under one budgetary heading
type Post struct {
	ID         uuid.UUID   `json:"id"`
	CompanyID  uuid.UUID   `json:"company_id"`
	Name       string      `json:"name"`
	Code       string      `json:"code,omitempty"`
	AccountIDs []uuid.UUID `json:"account_ids"`
}

// Validate checks the position fields
func (p *Post) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrMissingPostName
	}
	if len(p.AccountIDs) == 0 {
		return ErrPostWithoutAccount
	}
	return nil
}

// LineReport is a budget line with its realised figures
type LineReport struct {
	Line            *Line           `json:"line"`
	PracticalAmount decimal.Decimal `json:"practical_amount"`
	Variance        decimal.Decimal `json:"variance"`
	VariancePercent decimal.Decimal `json:"variance_percent"`
}

// Report is the realised view of a budget
type Report struct {
	Budget         *Budget         `json:"budget"`
	Lines          []LineReport    `json:"lines"`
	TotalPlanned   decimal.Decimal `json:"total_planned"`
	TotalPractical decimal.Decimal `json:"total_practical"`
	TotalVariance  decimal.Decimal `json:"total_variance"`
}

var hundred = decimal.NewFromInt(100)

// Variance returns planned − practical and that difference as a percentage
// of planned. The percentage is 0 when nothing was planned.
func Variance(planned, practical decimal.Decimal) (variance, percent decimal.Decimal) {
	variance = money.Round(planned.Sub(practical))
	if planned.IsZero() {
		return variance, decimal.Zero
	}
	return variance, variance.Div(planned).Mul(hundred).Round(2)
}
