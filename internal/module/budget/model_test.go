package budget_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/kislikjeka/grandlivre/internal/module/budget"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

func TestVariance(t *testing.T) {
	tests := []struct {
		name        string
		planned     string
		practical   string
		wantVar     string
		wantPercent string
	}{
		{"under budget", "1000", "750", "250.00", "25.00"},
		{"on budget", "1000", "1000", "0.00", "0.00"},
		{"over budget", "1000", "1200", "-200.00", "-20.00"},
		{"nothing planned", "0", "300", "-300.00", "0.00"},
		{"nothing at all", "0", "0", "0.00", "0.00"},
		{"thirds", "300", "200", "100.00", "33.33"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			variance, percent := budget.Variance(money.MustParse(tt.planned), money.MustParse(tt.practical))
			assert.Equal(t, tt.wantVar, money.Format(variance))
			assert.Equal(t, tt.wantPercent, money.Format(percent))
		})
	}
}

func TestState_CanMoveTo(t *testing.T) {
	tests := []struct {
		from, to budget.State
		want     bool
	}{
		{budget.StateDraft, budget.StateConfirm, true},
		{budget.StateDraft, budget.StateValidate, false},
		{budget.StateConfirm, budget.StateValidate, true},
		{budget.StateConfirm, budget.StateDraft, true},
		{budget.StateValidate, budget.StateDone, true},
		{budget.StateValidate, budget.StateDraft, false},
		{budget.StateDone, budget.StateCancel, false},
		{budget.StateDone, budget.StateDraft, false},
		{budget.StateCancel, budget.StateDraft, true},
		{budget.StateCancel, budget.StateConfirm, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanMoveTo(tt.to))
		})
	}
}

func TestBudget_Validate(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dec := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, (&budget.Budget{Name: "2024", DateFrom: jan, DateTo: dec}).Validate())
	assert.NoError(t, (&budget.Budget{Name: "un jour", DateFrom: jan, DateTo: jan}).Validate())
	assert.ErrorIs(t, (&budget.Budget{Name: "2024", DateFrom: dec, DateTo: jan}).Validate(), budget.ErrInvalidDateRange)
	assert.ErrorIs(t, (&budget.Budget{DateFrom: jan, DateTo: dec}).Validate(), budget.ErrMissingName)
	assert.ErrorIs(t, (&budget.Budget{Name: "2024", DateTo: dec}).Validate(), budget.ErrInvalidDateRange)
}

func TestLine_Validate(t *testing.T) {
	account := uuid.New()
	assert.NoError(t, (&budget.Line{AccountID: &account, PlannedAmount: money.MustParse("10")}).Validate())
	assert.ErrorIs(t, (&budget.Line{PlannedAmount: money.MustParse("10")}).Validate(), budget.ErrMissingTarget)
	assert.ErrorIs(t, (&budget.Line{AccountID: &account, PlannedAmount: money.MustParse("-1")}).Validate(), budget.ErrNegativePlanned)
}
