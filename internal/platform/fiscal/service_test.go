package fiscal_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/grandlivre/internal/infra/memory"
	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/platform/chart"
	"github.com/kislikjeka/grandlivre/internal/platform/fiscal"
	"github.com/kislikjeka/grandlivre/pkg/config"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

type fixture struct {
	ctx     context.Context
	scope   ledger.Scope
	fiscal  *fiscal.Service
	ledger  *ledger.Service
	chart   *chart.Service
	entries *memory.LedgerStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	entries := memory.NewLedgerStore()
	charts := chart.NewService(memory.NewChartStore(), logger.Nop())
	fiscalSvc := fiscal.NewService(memory.NewFiscalStore(), entries, logger.Nop())

	f := &fixture{
		ctx:     context.Background(),
		scope:   ledger.Scope{CompanyID: uuid.New(), UserID: uuid.New()},
		fiscal:  fiscalSvc,
		chart:   charts,
		entries: entries,
		ledger:  ledger.NewService(entries, charts, logger.Nop(), ledger.WithPeriodGuard(fiscalSvc)),
	}

	cfg, err := config.LoadChart("../../../config/pcg.yaml")
	require.NoError(t, err)
	_, err = charts.Seed(f.ctx, f.scope.CompanyID, cfg)
	require.NoError(t, err)
	return f
}

func (f *fixture) year(t *testing.T, code string, from, to time.Time) *fiscal.FiscalYear {
	t.Helper()
	y, err := f.fiscal.CreateYear(f.ctx, f.scope, &fiscal.FiscalYear{Name: "Exercice " + code, Code: code, DateFrom: from, DateTo: to})
	require.NoError(t, err)
	return y
}

// draftEntry creates a balanced miscellaneous entry dated on date
func (f *fixture) draftEntry(t *testing.T, on time.Time) *ledger.Entry {
	t.Helper()

	journal := f.journal(t, "OD")
	entry, err := f.ledger.CreateEntry(f.ctx, f.scope, ledger.NewEntry{JournalID: journal, Date: on})
	require.NoError(t, err)

	expense := f.account(t, "606000")
	bank := f.account(t, "512000")
	_, err = f.ledger.AddLine(f.ctx, f.scope, entry.ID, ledger.NewLine{AccountID: expense, Debit: money.MustParse("10")})
	require.NoError(t, err)
	_, err = f.ledger.AddLine(f.ctx, f.scope, entry.ID, ledger.NewLine{AccountID: bank, Credit: money.MustParse("10")})
	require.NoError(t, err)
	return entry
}

func (f *fixture) journal(t *testing.T, code string) uuid.UUID {
	t.Helper()
	journals, err := f.chart.ListJournals(f.ctx, f.scope.CompanyID)
	require.NoError(t, err)
	for _, j := range journals {
		if j.Code == code {
			return j.ID
		}
	}
	t.Fatalf("journal %s not seeded", code)
	return uuid.Nil
}

func (f *fixture) account(t *testing.T, code string) uuid.UUID {
	t.Helper()
	accounts, err := f.chart.ListAccounts(f.ctx, f.scope.CompanyID)
	require.NoError(t, err)
	for _, a := range accounts {
		if a.Code == code {
			return a.ID
		}
	}
	t.Fatalf("account %s not seeded", code)
	return uuid.Nil
}

// =============================================================================
// Fiscal Year Tests
// =============================================================================

func TestService_CreateYear_RejectsOverlap(t *testing.T) {
	f := newFixture(t)
	f.year(t, "2024", date(2024, 1, 1), date(2024, 12, 31))

	_, err := f.fiscal.CreateYear(f.ctx, f.scope, &fiscal.FiscalYear{Name: "Decale", Code: "2024B", DateFrom: date(2024, 7, 1), DateTo: date(2025, 6, 30)})
	assert.ErrorIs(t, err, fiscal.ErrYearOverlap)

	next, err := f.fiscal.CreateYear(f.ctx, f.scope, &fiscal.FiscalYear{Name: "Exercice 2025", Code: "2025", DateFrom: date(2025, 1, 1), DateTo: date(2025, 12, 31)})
	require.NoError(t, err)
	assert.Equal(t, fiscal.StateDraft, next.State)

	// another company is independent
	other := ledger.Scope{CompanyID: uuid.New()}
	_, err = f.fiscal.CreateYear(f.ctx, other, &fiscal.FiscalYear{Name: "Exercice 2024", Code: "2024", DateFrom: date(2024, 1, 1), DateTo: date(2024, 12, 31)})
	assert.NoError(t, err)
}

func TestService_CreatePeriods(t *testing.T) {
	f := newFixture(t)
	y := f.year(t, "2024", date(2024, 1, 1), date(2024, 12, 31))

	periods, err := f.fiscal.CreatePeriods(f.ctx, f.scope, y.ID)
	require.NoError(t, err)
	assert.Len(t, periods, 12)

	_, err = f.fiscal.CreatePeriods(f.ctx, f.scope, y.ID)
	assert.ErrorIs(t, err, fiscal.ErrPeriodsExist)

	march, err := f.fiscal.FindPeriod(f.ctx, f.scope, date(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, "2024/03", march.Code)

	_, err = f.fiscal.FindPeriod(f.ctx, f.scope, date(2023, 3, 15))
	assert.ErrorIs(t, err, fiscal.ErrPeriodNotFound)
}

// =============================================================================
// Closing Tests
// =============================================================================

func TestService_ClosePeriod_RefusedWithDrafts(t *testing.T) {
	f := newFixture(t)
	y := f.year(t, "2024", date(2024, 1, 1), date(2024, 12, 31))
	_, err := f.fiscal.CreatePeriods(f.ctx, f.scope, y.ID)
	require.NoError(t, err)
	march, err := f.fiscal.FindPeriod(f.ctx, f.scope, date(2024, 3, 1))
	require.NoError(t, err)

	entry := f.draftEntry(t, date(2024, 3, 31))

	_, err = f.fiscal.ClosePeriod(f.ctx, f.scope, march.ID)
	assert.ErrorIs(t, err, fiscal.ErrPeriodHasDrafts)

	_, err = f.ledger.Post(f.ctx, f.scope, entry.ID)
	require.NoError(t, err)

	closed, err := f.fiscal.ClosePeriod(f.ctx, f.scope, march.ID)
	require.NoError(t, err)
	assert.False(t, closed.IsOpen())
}

func TestService_EnsureOpen_BlocksPostingInClosedPeriod(t *testing.T) {
	f := newFixture(t)
	y := f.year(t, "2024", date(2024, 1, 1), date(2024, 12, 31))
	_, err := f.fiscal.CreatePeriods(f.ctx, f.scope, y.ID)
	require.NoError(t, err)
	april, err := f.fiscal.FindPeriod(f.ctx, f.scope, date(2024, 4, 1))
	require.NoError(t, err)

	_, err = f.fiscal.ClosePeriod(f.ctx, f.scope, april.ID)
	require.NoError(t, err)

	// created after closing: drafts are allowed, posting is not
	entry := f.draftEntry(t, date(2024, 4, 10))
	_, err = f.ledger.Post(f.ctx, f.scope, entry.ID)
	assert.ErrorIs(t, err, fiscal.ErrPeriodClosed)

	stored, err := f.ledger.GetEntry(f.ctx, f.scope, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStateDraft, stored.State)

	_, err = f.fiscal.ReopenPeriod(f.ctx, f.scope, april.ID)
	require.NoError(t, err)
	_, err = f.ledger.Post(f.ctx, f.scope, entry.ID)
	assert.NoError(t, err)

	// no fiscal year configured for 2030
	assert.NoError(t, f.fiscal.EnsureOpen(f.ctx, f.scope, date(2030, 1, 1)))
}

func TestService_CloseYear(t *testing.T) {
	f := newFixture(t)
	y := f.year(t, "2024", date(2024, 1, 1), date(2024, 12, 31))
	periods, err := f.fiscal.CreatePeriods(f.ctx, f.scope, y.ID)
	require.NoError(t, err)

	_, err = f.fiscal.CloseYear(f.ctx, f.scope, y.ID)
	assert.ErrorIs(t, err, fiscal.ErrYearHasOpen)

	for _, p := range periods {
		_, err := f.fiscal.ClosePeriod(f.ctx, f.scope, p.ID)
		require.NoError(t, err)
	}

	closed, err := f.fiscal.CloseYear(f.ctx, f.scope, y.ID)
	require.NoError(t, err)
	assert.Equal(t, fiscal.StateDone, closed.State)

	_, err = f.fiscal.ReopenPeriod(f.ctx, f.scope, periods[0].ID)
	assert.ErrorIs(t, err, fiscal.ErrYearClosed)

	_, err = f.fiscal.ReopenYear(f.ctx, f.scope, y.ID)
	require.NoError(t, err)
	_, err = f.fiscal.ReopenYear(f.ctx, f.scope, y.ID)
	assert.ErrorIs(t, err, fiscal.ErrYearAlreadyOpen)

	reopened, err := f.fiscal.ReopenPeriod(f.ctx, f.scope, periods[0].ID)
	require.NoError(t, err)
	assert.True(t, reopened.IsOpen())
}

func TestService_EnsureOpen_ClosedYearWithoutPeriods(t *testing.T) {
	f := newFixture(t)
	y := f.year(t, "2023", date(2023, 1, 1), date(2023, 12, 31))

	_, err := f.fiscal.CloseYear(f.ctx, f.scope, y.ID)
	require.NoError(t, err)

	err = f.fiscal.EnsureOpen(f.ctx, f.scope, date(2023, 6, 1))
	assert.ErrorIs(t, err, fiscal.ErrYearClosed)
}

// =============================================================================
// Fiscal Position Tests
// =============================================================================

func TestService_Positions(t *testing.T) {
	f := newFixture(t)
	taxes, err := f.chart.ListTaxesByUse(f.ctx, f.scope.CompanyID, chart.TaxUseSale)
	require.NoError(t, err)
	require.NotEmpty(t, taxes)

	position, err := f.fiscal.CreatePosition(f.ctx, f.scope, &fiscal.Position{
		Name:  "Export hors UE",
		Taxes: []fiscal.TaxMapping{{SourceTaxID: taxes[0].ID}},
	})
	require.NoError(t, err)

	mapped, err := f.fiscal.MapTaxes(f.ctx, f.scope, position.ID, []uuid.UUID{taxes[0].ID})
	require.NoError(t, err)
	assert.Empty(t, mapped)

	account := f.account(t, "706000")
	got, err := f.fiscal.MapAccount(f.ctx, f.scope, position.ID, account)
	require.NoError(t, err)
	assert.Equal(t, account, got)

	_, err = f.fiscal.MapTaxes(f.ctx, ledger.Scope{CompanyID: uuid.New()}, position.ID, nil)
	assert.ErrorIs(t, err, fiscal.ErrPositionNotFound)

	_, err = f.fiscal.CreatePosition(f.ctx, f.scope, &fiscal.Position{})
	assert.ErrorIs(t, err, fiscal.ErrMissingPositionName)
}
