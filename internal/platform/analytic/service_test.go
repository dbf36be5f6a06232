package analytic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/grandlivre/internal/infra/memory"
	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/platform/analytic"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

// MockLedgerLines is a mock implementation of analytic.LedgerLines
type MockLedgerLines struct {
	mock.Mock
}

func (m *MockLedgerLines) SumLines(ctx context.Context, filter ledger.LineFilter) (decimal.Decimal, decimal.Decimal, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(decimal.Decimal), args.Get(1).(decimal.Decimal), args.Error(2)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestService_CreateAccount(t *testing.T) {
	svc := analytic.NewService(memory.NewAnalyticStore(), new(MockLedgerLines), logger.Nop())
	ctx := context.Background()
	scope := ledger.Scope{CompanyID: uuid.New()}

	account, err := svc.CreateAccount(ctx, scope, &analytic.Account{Name: "Projet Alpha", Code: "ALPHA"})
	require.NoError(t, err)
	assert.True(t, account.Active)
	assert.Equal(t, scope.CompanyID, account.CompanyID)

	_, err = svc.CreateAccount(ctx, scope, &analytic.Account{Name: "Autre", Code: "ALPHA"})
	assert.ErrorIs(t, err, analytic.ErrDuplicateCode)

	_, err = svc.CreateAccount(ctx, scope, &analytic.Account{})
	assert.ErrorIs(t, err, analytic.ErrMissingAccountName)

	_, err = svc.CreateAccount(ctx, ledger.Scope{}, &analytic.Account{Name: "x"})
	assert.ErrorIs(t, err, ledger.ErrMissingCompany)
}

func TestService_AddLine(t *testing.T) {
	svc := analytic.NewService(memory.NewAnalyticStore(), new(MockLedgerLines), logger.Nop())
	ctx := context.Background()
	scope := ledger.Scope{CompanyID: uuid.New()}

	account, err := svc.CreateAccount(ctx, scope, &analytic.Account{Name: "Projet"})
	require.NoError(t, err)

	_, err = svc.AddLine(ctx, scope, &analytic.Line{AccountID: account.ID, Name: "zero", Amount: money.MustParse("0.001")})
	assert.ErrorIs(t, err, analytic.ErrZeroAmount)

	_, err = svc.AddLine(ctx, scope, &analytic.Line{AccountID: uuid.New(), Name: "x", Amount: money.MustParse("1")})
	assert.ErrorIs(t, err, analytic.ErrAccountNotFound)

	_, err = svc.Archive(ctx, scope, account.ID)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, scope, &analytic.Line{AccountID: account.ID, Name: "x", Amount: money.MustParse("1")})
	assert.ErrorIs(t, err, analytic.ErrAccountArchived)
}

func TestService_Balance_CombinesAnalyticAndLedgerLines(t *testing.T) {
	ledgerLines := new(MockLedgerLines)
	svc := analytic.NewService(memory.NewAnalyticStore(), ledgerLines, logger.Nop())
	ctx := context.Background()
	scope := ledger.Scope{CompanyID: uuid.New()}

	account, err := svc.CreateAccount(ctx, scope, &analytic.Account{Name: "Projet"})
	require.NoError(t, err)

	for _, l := range []struct {
		amount string
		on     time.Time
	}{
		{"100", date(2024, 1, 10)},
		{"-30", date(2024, 2, 10)},
		{"500", date(2025, 1, 10)},
	} {
		_, err := svc.AddLine(ctx, scope, &analytic.Line{AccountID: account.ID, Name: "repartition", Amount: money.MustParse(l.amount), Date: l.on})
		require.NoError(t, err)
	}

	from, to := date(2024, 1, 1), date(2024, 12, 31)
	ledgerLines.On("SumLines", mock.Anything, mock.MatchedBy(func(f ledger.LineFilter) bool {
		return f.CompanyID == scope.CompanyID &&
			f.AnalyticAccountID != nil && *f.AnalyticAccountID == account.ID &&
			f.EntryState != nil && *f.EntryState == ledger.EntryStatePosted &&
			f.DateFrom != nil && f.DateFrom.Equal(from)
	})).Return(money.MustParse("40"), money.MustParse("15"), nil)

	balance, err := svc.Balance(ctx, scope, account.ID, &from, &to)
	require.NoError(t, err)
	assert.Equal(t, "140.00", money.Format(balance.Debit))
	assert.Equal(t, "45.00", money.Format(balance.Credit))
	assert.Equal(t, "95.00", money.Format(balance.Balance))

	sum, err := svc.SumAmount(ctx, scope, account.ID, from, to)
	require.NoError(t, err)
	assert.Equal(t, "95.00", money.Format(sum))

	ledgerLines.AssertExpectations(t)
}

func TestService_Balance_LedgerFailure(t *testing.T) {
	ledgerLines := new(MockLedgerLines)
	svc := analytic.NewService(memory.NewAnalyticStore(), ledgerLines, logger.Nop())
	ctx := context.Background()
	scope := ledger.Scope{CompanyID: uuid.New()}

	account, err := svc.CreateAccount(ctx, scope, &analytic.Account{Name: "Projet"})
	require.NoError(t, err)

	ledgerLines.On("SumLines", mock.Anything, mock.Anything).Return(decimal.Zero, decimal.Zero, errors.New("db down"))

	_, err = svc.Balance(ctx, scope, account.ID, nil, nil)
	assert.ErrorContains(t, err, "db down")
}
