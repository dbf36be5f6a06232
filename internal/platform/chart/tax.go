package chart

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/pkg/money"
)

// TaxAmountType tells how a tax amount is computed
type TaxAmountType string

const (
	TaxAmountPercent TaxAmountType = "percent"
	TaxAmountFixed   TaxAmountType = "fixed"
	TaxAmountGroup   TaxAmountType = "group"
)

// IsValid checks if the amount type is known
func (t TaxAmountType) IsValid() bool {
	switch t {
	case TaxAmountPercent, TaxAmountFixed, TaxAmountGroup:
		return true
	}
	return false
}

// TaxUse restricts where a tax can be selected
type TaxUse string

const (
	TaxUseSale     TaxUse = "sale"
	TaxUsePurchase TaxUse = "purchase"
	TaxUseNone     TaxUse = "none"
)

// Tax is a sales or purchase tax. Group taxes apply their children in order.
type Tax struct {
	ID           uuid.UUID       `json:"id"`
	CompanyID    uuid.UUID       `json:"company_id"`
	Name         string          `json:"name"`
	Use          TaxUse          `json:"use"`
	AmountType   TaxAmountType   `json:"amount_type"`
	Amount       decimal.Decimal `json:"amount"`
	PriceInclude bool            `json:"price_include"`
	AccountID    *uuid.UUID      `json:"account_id,omitempty"`
	ChildIDs     []uuid.UUID     `json:"child_ids,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`

	// Children is filled by the service from ChildIDs
	Children []*Tax `json:"-"`
}

// Validate checks the tax fields for creation
func (t *Tax) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrMissingTaxName
	}
	if !t.AmountType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTaxAmountType, t.AmountType)
	}
	if t.AmountType == TaxAmountGroup && len(t.ChildIDs) == 0 {
		return ErrGroupWithoutChildren
	}
	return nil
}

// TaxLine is the amount one tax adds on a base
type TaxLine struct {
	TaxID     uuid.UUID       `json:"tax_id"`
	Name      string          `json:"name"`
	Base      decimal.Decimal `json:"base"`
	Amount    decimal.Decimal `json:"amount"`
	AccountID *uuid.UUID      `json:"account_id,omitempty"`
}

// TaxResult is the outcome of applying taxes to a price
type TaxResult struct {
	TotalExcluded decimal.Decimal `json:"total_excluded"`
	TotalIncluded decimal.Decimal `json:"total_included"`
	Taxes         []TaxLine       `json:"taxes"`
}

// ComputeAll applies the taxes to priceUnit × quantity.
// Price-included taxes are first extracted from the price; the remaining
// taxes are then added on the excluded base. Group taxes are flattened.
func ComputeAll(taxes []*Tax, priceUnit, quantity decimal.Decimal) TaxResult {
	base := money.Round(priceUnit.Mul(quantity))
	flat := flatten(taxes)

	// extract included taxes: base = excluded × (1 + Σrate) + Σfixed
	rates := decimal.Zero
	fixed := decimal.Zero
	for _, t := range flat {
		if !t.PriceInclude {
			continue
		}
		switch t.AmountType {
		case TaxAmountPercent:
			rates = rates.Add(t.Amount.Div(decimal.NewFromInt(100)))
		case TaxAmountFixed:
			fixed = fixed.Add(t.Amount.Mul(quantity))
		}
	}
	excludedRaw := base.Sub(fixed).Div(decimal.NewFromInt(1).Add(rates))

	result := TaxResult{Taxes: make([]TaxLine, 0, len(flat))}
	included := decimal.Zero
	for _, t := range flat {
		if !t.PriceInclude {
			continue
		}
		amount := taxAmount(t, excludedRaw, quantity)
		included = included.Add(amount)
		result.Taxes = append(result.Taxes, TaxLine{TaxID: t.ID, Name: t.Name, Amount: amount, AccountID: t.AccountID})
	}
	// rounding differences stay in the excluded total
	result.TotalExcluded = base.Sub(included)

	total := base
	for _, t := range flat {
		if t.PriceInclude {
			continue
		}
		amount := taxAmount(t, result.TotalExcluded, quantity)
		total = total.Add(amount)
		result.Taxes = append(result.Taxes, TaxLine{TaxID: t.ID, Name: t.Name, Amount: amount, AccountID: t.AccountID})
	}
	for i := range result.Taxes {
		result.Taxes[i].Base = result.TotalExcluded
	}
	result.TotalIncluded = total

	return result
}

func taxAmount(t *Tax, base, quantity decimal.Decimal) decimal.Decimal {
	switch t.AmountType {
	case TaxAmountPercent:
		return money.Round(base.Mul(t.Amount).Div(decimal.NewFromInt(100)))
	case TaxAmountFixed:
		return money.Round(t.Amount.Mul(quantity))
	}
	return decimal.Zero
}

// flatten replaces group taxes by their children
func flatten(taxes []*Tax) []*Tax {
	var flat []*Tax
	for _, t := range taxes {
		if t.AmountType == TaxAmountGroup {
			flat = append(flat, flatten(t.Children)...)
			continue
		}
		flat = append(flat, t)
	}
	return flat
}
