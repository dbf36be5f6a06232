package payment

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/pkg/money"
)

// ValueType says how a term line computes its amount
type ValueType string

const (
	ValueBalance ValueType = "balance" // whatever is left
	ValuePercent ValueType = "percent" // share of the total
	ValueFixed   ValueType = "fixed"   // fixed amount, capped at what is left
)

// DelayType says how a term line computes its due date
type DelayType string

const (
	DelayDaysAfter        DelayType = "days_after"
	DelayDaysEndOfMonth   DelayType = "days_end_of_month"
	DelayDaysEndOfMonthOn DelayType = "days_end_of_month_on"
)

var hundred = decimal.NewFromInt(100)

// TermLine is one installment rule of a payment term
type TermLine struct {
	ID          uuid.UUID       `json:"id"`
	TermID      uuid.UUID       `json:"term_id"`
	Sequence    int             `json:"sequence"`
	Value       ValueType       `json:"value"`
	ValueAmount decimal.Decimal `json:"value_amount"`
	DelayType   DelayType       `json:"delay_type"`
	NbDays      int             `json:"nb_days"`
}

// Validate checks one line in isolation
func (l *TermLine) Validate() error {
	switch l.Value {
	case ValueBalance:
	case ValuePercent:
		if l.ValueAmount.IsNegative() || l.ValueAmount.GreaterThan(hundred) {
			return ErrInvalidTermPercent
		}
	case ValueFixed:
		if l.ValueAmount.IsNegative() {
			return ErrInvalidTermValue
		}
	default:
		return ErrInvalidTermValue
	}
	switch l.DelayType {
	case DelayDaysAfter, DelayDaysEndOfMonth, DelayDaysEndOfMonthOn:
	default:
		return ErrInvalidDelayType
	}
	if l.NbDays < 0 {
		return ErrNegativeTermDays
	}
	return nil
}

// dueDate applies the line delay to the reference date
func (l *TermLine) dueDate(ref time.Time) time.Time {
	switch l.DelayType {
	case DelayDaysEndOfMonth:
		return endOfMonth(ref.AddDate(0, 0, l.NbDays))
	case DelayDaysEndOfMonthOn:
		return endOfMonth(ref).AddDate(0, 0, l.NbDays)
	default:
		return ref.AddDate(0, 0, l.NbDays)
	}
}

// PaymentTerm splits an invoice total into dated installments,
// e.g. "30% now, balance at 30 days end of month"
type PaymentTerm struct {
	ID        uuid.UUID   `json:"id"`
	CompanyID uuid.UUID   `json:"company_id"`
	Name      string      `json:"name"`
	Note      string      `json:"note,omitempty"`
	Active    bool        `json:"active"`
	Lines     []*TermLine `json:"lines"`
	CreatedAt time.Time   `json:"created_at"`
}

// Validate checks the term and its lines. Only the last line may be a
// balance line.
func (t *PaymentTerm) Validate() error {
	if t.Name == "" {
		return ErrMissingTermName
	}
	lines := t.sortedLines()
	for i, l := range lines {
		if err := l.Validate(); err != nil {
			return err
		}
		if l.Value == ValueBalance && i != len(lines)-1 {
			return ErrTermWithoutBalance
		}
	}
	if len(lines) > 0 && lines[len(lines)-1].Value != ValueBalance {
		return ErrTermWithoutBalance
	}
	return nil
}

func (t *PaymentTerm) sortedLines() []*TermLine {
	lines := make([]*TermLine, len(t.Lines))
	copy(lines, t.Lines)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Sequence < lines[j].Sequence })
	return lines
}

// Installment is one due amount of a payment term
type Installment struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// Compute splits value into installments relative to dateRef. Lines are
// applied in sequence order; lines yielding a zero amount produce no
// installment. A term without lines is due in full at dateRef.
func (t *PaymentTerm) Compute(value decimal.Decimal, dateRef time.Time) []Installment {
	ref := day(dateRef)
	value = money.Round(value)

	lines := t.sortedLines()
	if len(lines) == 0 {
		return []Installment{{Date: ref, Amount: value}}
	}

	remaining := value
	var result []Installment
	for _, l := range lines {
		var amount decimal.Decimal
		switch l.Value {
		case ValueFixed:
			amount = money.Min(money.Round(l.ValueAmount), remaining)
		case ValuePercent:
			amount = money.Round(value.Mul(l.ValueAmount).Div(hundred))
		default:
			amount = remaining
		}
		if amount.IsZero() {
			continue
		}
		result = append(result, Installment{Date: l.dueDate(ref), Amount: amount})
		remaining = remaining.Sub(amount)
	}
	return result
}

func endOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
