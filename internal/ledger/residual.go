package ledger

import (
	"github.com/shopspring/decimal"
)

// Residual returns |balance| minus the amounts of every partial settlement
// touching the line. Partials that do not reference the line are ignored.
// A negative result means the settlements over-allocate the line and is
// reported as ErrNegativeResidual.
func Residual(line *Line, partials []*PartialSettlement) (decimal.Decimal, error) {
	matched := decimal.Zero
	for _, p := range partials {
		if p.Touches(line.ID) {
			matched = matched.Add(p.Amount)
		}
	}

	residual := line.Balance().Abs().Sub(matched)
	if residual.IsNegative() {
		return residual, wrapf(ErrNegativeResidual, "line %s: balance=%s matched=%s",
			line.ID, line.Balance().Abs().StringFixed(2), matched.StringFixed(2))
	}
	return residual, nil
}

// ComputeAmounts derives untaxed, tax, total and residual amounts.
// Invoices split non receivable/payable lines into base and tax lines and
// take their residual from the receivable/payable lines; other entries
// report the debit total only.
func ComputeAmounts(entry *Entry, partials []*PartialSettlement) (*EntryAmounts, error) {
	amounts := &EntryAmounts{
		Untaxed:  decimal.Zero,
		Tax:      decimal.Zero,
		Residual: decimal.Zero,
	}

	if !entry.MoveType.IsInvoice() {
		amounts.Total = entry.TotalDebit()
		return amounts, nil
	}

	untaxed := decimal.Zero
	tax := decimal.Zero
	for _, l := range entry.Lines {
		if IsReceivablePayable(l.AccountType) {
			r, err := Residual(l, partials)
			if err != nil {
				return nil, err
			}
			amounts.Residual = amounts.Residual.Add(r)
			continue
		}
		if l.TaxLineID != nil {
			tax = tax.Add(l.Balance())
		} else {
			untaxed = untaxed.Add(l.Balance())
		}
	}

	// customer invoices credit income; amounts are reported unsigned
	amounts.Untaxed = untaxed.Abs()
	amounts.Tax = tax.Abs()
	amounts.Total = amounts.Untaxed.Add(amounts.Tax)
	return amounts, nil
}

// ComputePaymentState derives the payment state of an entry from its amounts
func ComputePaymentState(state EntryState, moveType MoveType, amounts *EntryAmounts) PaymentState {
	if state != EntryStatePosted || moveType == MoveTypeEntry {
		return PaymentStateNotPaid
	}
	if amounts.Residual.IsZero() {
		return PaymentStatePaid
	}
	if amounts.Residual.LessThan(amounts.Total) {
		return PaymentStatePartial
	}
	return PaymentStateNotPaid
}
