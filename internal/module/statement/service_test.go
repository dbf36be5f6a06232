package statement_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/grandlivre/internal/infra/memory"
	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/module/statement"
	"github.com/kislikjeka/grandlivre/internal/platform/chart"
	"github.com/kislikjeka/grandlivre/pkg/config"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	ctx        context.Context
	scope      ledger.Scope
	ledger     *ledger.Service
	statements *statement.Service
	accounts   map[string]uuid.UUID
	journals   map[string]uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	entries := memory.NewLedgerStore()
	charts := chart.NewService(memory.NewChartStore(), logger.Nop())
	ldg := ledger.NewService(entries, charts, logger.Nop())

	f := &fixture{
		ctx:        context.Background(),
		scope:      ledger.Scope{CompanyID: uuid.New(), UserID: uuid.New()},
		ledger:     ldg,
		statements: statement.NewService(memory.NewStatementStore(), ldg, charts, entries, logger.Nop()),
		accounts:   make(map[string]uuid.UUID),
		journals:   make(map[string]uuid.UUID),
	}

	cfg, err := config.LoadChart("../../../config/pcg.yaml")
	require.NoError(t, err)
	_, err = charts.Seed(f.ctx, f.scope.CompanyID, cfg)
	require.NoError(t, err)

	accounts, err := charts.ListAccounts(f.ctx, f.scope.CompanyID)
	require.NoError(t, err)
	for _, a := range accounts {
		f.accounts[a.Code] = a.ID
	}
	journals, err := charts.ListJournals(f.ctx, f.scope.CompanyID)
	require.NoError(t, err)
	for _, j := range journals {
		f.journals[j.Code] = j.ID
	}
	return f
}

func (f *fixture) bankStatement(t *testing.T, start, endReal string, lines ...*statement.Line) *statement.Statement {
	t.Helper()

	st, err := f.statements.Create(f.ctx, f.scope, &statement.Statement{
		Date:           date(2024, time.April, 30),
		JournalID:      f.journals["BNK"],
		BalanceStart:   money.MustParse(start),
		BalanceEndReal: money.MustParse(endReal),
		Lines:          lines,
	})
	require.NoError(t, err)
	return st
}

func amountLine(name, amount string) *statement.Line {
	return &statement.Line{Name: name, Amount: money.MustParse(amount)}
}

// =============================================================================
// Create
// =============================================================================

func TestService_Create_NumbersPerJournalAndYear(t *testing.T) {
	f := newFixture(t)

	first := f.bankStatement(t, "0", "0")
	second := f.bankStatement(t, "0", "0")

	assert.Equal(t, "BNK/2024/0001", first.Name)
	assert.Equal(t, "BNK/2024/0002", second.Name)
	assert.Equal(t, statement.StateOpen, first.State)

	named, err := f.statements.Create(f.ctx, f.scope, &statement.Statement{
		Name:      "Releve avril",
		Date:      date(2024, time.April, 30),
		JournalID: f.journals["CSH"],
	})
	require.NoError(t, err)
	assert.Equal(t, "Releve avril", named.Name)
}

func TestService_Create_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.statements.Create(f.ctx, f.scope, &statement.Statement{JournalID: f.journals["VTE"]})
	assert.ErrorIs(t, err, statement.ErrNotLiquidityJournal)

	_, err = f.statements.Create(f.ctx, f.scope, &statement.Statement{})
	assert.ErrorIs(t, err, statement.ErrMissingJournal)

	_, err = f.statements.Create(f.ctx, f.scope, &statement.Statement{
		JournalID: f.journals["BNK"],
		Lines:     []*statement.Line{amountLine("", "10")},
	})
	assert.ErrorIs(t, err, statement.ErrMissingLineName)
}

func TestService_AddAndRemoveLine(t *testing.T) {
	f := newFixture(t)

	st := f.bankStatement(t, "100", "60", amountLine("CB RESTAURANT", "-40"))

	added, err := f.statements.AddLine(f.ctx, f.scope, st.ID, amountLine("FRAIS", "-5"))
	require.NoError(t, err)
	assert.Equal(t, 20, added.Sequence)
	assert.True(t, st.Date.Equal(added.Date))

	loaded, err := f.statements.Get(f.ctx, f.scope, st.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 2)
	assert.Equal(t, "55.00", money.Format(loaded.BalanceEnd()))

	require.NoError(t, f.statements.RemoveLine(f.ctx, f.scope, st.ID, added.ID))
	loaded, err = f.statements.Get(f.ctx, f.scope, st.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Lines, 1)

	err = f.statements.RemoveLine(f.ctx, f.scope, st.ID, uuid.New())
	assert.ErrorIs(t, err, statement.ErrLineNotFound)
}

// =============================================================================
// Reconciliation
// =============================================================================

func TestService_BookLine(t *testing.T) {
	f := newFixture(t)

	st := f.bankStatement(t, "1000", "1200",
		amountLine("VIR CLIENT DUPONT", "500"),
		amountLine("PRLV LOYER", "-300"),
	)

	received, err := f.statements.BookLine(f.ctx, f.scope, st.ID, st.Lines[0].ID, f.accounts["411000"])
	require.NoError(t, err)
	require.NotNil(t, received.EntryID)

	entry, err := f.ledger.GetEntry(f.ctx, f.scope, *received.EntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatePosted, entry.State)
	assert.Equal(t, st.Name, entry.Ref)
	for _, l := range entry.Lines {
		switch l.AccountID {
		case f.accounts["512000"]:
			assert.Equal(t, "500.00", money.Format(l.Debit))
		case f.accounts["411000"]:
			assert.Equal(t, "500.00", money.Format(l.Credit))
		default:
			t.Fatalf("unexpected account %s", l.AccountID)
		}
	}

	paid, err := f.statements.BookLine(f.ctx, f.scope, st.ID, st.Lines[1].ID, f.accounts["626000"])
	require.NoError(t, err)

	balance, err := f.ledger.AccountBalance(f.ctx, f.scope, f.accounts["512000"])
	require.NoError(t, err)
	assert.Equal(t, "200.00", money.Format(balance.Balance))

	_, err = f.statements.BookLine(f.ctx, f.scope, st.ID, paid.ID, f.accounts["626000"])
	assert.ErrorIs(t, err, statement.ErrLineMatched)
}

func TestService_BookLine_ConcurrentCallsBookOnce(t *testing.T) {
	f := newFixture(t)
	st := f.bankStatement(t, "0", "500", amountLine("VIR CLIENT DUPONT", "500"))

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.statements.BookLine(f.ctx, f.scope, st.ID, st.Lines[0].ID, f.accounts["411000"])
		}(i)
	}
	wg.Wait()

	booked := 0
	for _, err := range errs {
		if err == nil {
			booked++
			continue
		}
		assert.ErrorIs(t, err, statement.ErrLineMatched)
	}
	assert.Equal(t, 1, booked)

	bank := f.journals["BNK"]
	count, err := f.ledger.CountEntries(f.ctx, f.scope, ledger.EntryFilter{JournalID: &bank})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_MatchLine(t *testing.T) {
	f := newFixture(t)

	st := f.bankStatement(t, "0", "-80", amountLine("CHQ 0012", "-80"))

	entry, err := f.ledger.CreateEntry(f.ctx, f.scope, ledger.NewEntry{JournalID: f.journals["BNK"], Date: date(2024, time.April, 12)})
	require.NoError(t, err)
	_, err = f.ledger.AddLine(f.ctx, f.scope, entry.ID, ledger.NewLine{AccountID: f.accounts["401000"], Debit: money.MustParse("80")})
	require.NoError(t, err)
	_, err = f.ledger.AddLine(f.ctx, f.scope, entry.ID, ledger.NewLine{AccountID: f.accounts["512000"], Credit: money.MustParse("80")})
	require.NoError(t, err)

	_, err = f.statements.MatchLine(f.ctx, f.scope, st.ID, st.Lines[0].ID, entry.ID)
	assert.ErrorIs(t, err, statement.ErrEntryNotPosted)

	_, err = f.ledger.Post(f.ctx, f.scope, entry.ID)
	require.NoError(t, err)

	matched, err := f.statements.MatchLine(f.ctx, f.scope, st.ID, st.Lines[0].ID, entry.ID)
	require.NoError(t, err)
	assert.True(t, matched.IsReconciled())

	unmatched, err := f.statements.UnmatchLine(f.ctx, f.scope, st.ID, st.Lines[0].ID)
	require.NoError(t, err)
	assert.False(t, unmatched.IsReconciled())

	_, err = f.statements.UnmatchLine(f.ctx, f.scope, st.ID, st.Lines[0].ID)
	assert.ErrorIs(t, err, statement.ErrLineNotMatched)

	_, err = f.statements.MatchLine(f.ctx, f.scope, st.ID, st.Lines[0].ID, uuid.New())
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
}

// =============================================================================
// Confirm / Reopen
// =============================================================================

func TestService_Confirm(t *testing.T) {
	f := newFixture(t)

	st := f.bankStatement(t, "1000", "1450",
		amountLine("VIR CLIENT", "500"),
		amountLine("FRAIS BANCAIRES", "-50"),
	)

	_, err := f.statements.Confirm(f.ctx, f.scope, st.ID)
	require.ErrorIs(t, err, statement.ErrUnreconciledLines)
	assert.Contains(t, err.Error(), "VIR CLIENT, FRAIS BANCAIRES")

	_, err = f.statements.BookLine(f.ctx, f.scope, st.ID, st.Lines[0].ID, f.accounts["411000"])
	require.NoError(t, err)
	_, err = f.statements.BookLine(f.ctx, f.scope, st.ID, st.Lines[1].ID, f.accounts["626000"])
	require.NoError(t, err)

	confirmed, err := f.statements.Confirm(f.ctx, f.scope, st.ID)
	require.NoError(t, err)
	assert.Equal(t, statement.StateConfirm, confirmed.State)

	_, err = f.statements.AddLine(f.ctx, f.scope, st.ID, amountLine("late", "1"))
	assert.ErrorIs(t, err, statement.ErrNotOpen)
	_, err = f.statements.Confirm(f.ctx, f.scope, st.ID)
	assert.ErrorIs(t, err, statement.ErrNotOpen)

	reopened, err := f.statements.Reopen(f.ctx, f.scope, st.ID)
	require.NoError(t, err)
	assert.Equal(t, statement.StateOpen, reopened.State)

	_, err = f.statements.Reopen(f.ctx, f.scope, st.ID)
	assert.ErrorIs(t, err, statement.ErrAlreadyOpen)
}

func TestService_Confirm_BalanceMismatch(t *testing.T) {
	f := newFixture(t)

	st := f.bankStatement(t, "0", "99.98", amountLine("VIR", "100"))
	_, err := f.statements.BookLine(f.ctx, f.scope, st.ID, st.Lines[0].ID, f.accounts["411000"])
	require.NoError(t, err)

	_, err = f.statements.Confirm(f.ctx, f.scope, st.ID)
	require.ErrorIs(t, err, statement.ErrBalanceMismatch)
	assert.Contains(t, err.Error(), "computed 100.00, real 99.98")
}

func TestService_OtherCompanyCannotSeeStatement(t *testing.T) {
	f := newFixture(t)

	st := f.bankStatement(t, "0", "0")
	_, err := f.statements.Get(f.ctx, ledger.Scope{CompanyID: uuid.New()}, st.ID)
	assert.ErrorIs(t, err, statement.ErrStatementNotFound)

	list, err := f.statements.List(f.ctx, f.scope, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
