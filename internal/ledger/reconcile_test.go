package ledger_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

// invoiceAndPayment posts a receivable debit and a receivable credit and
// returns the two receivable lines
func (f *fixture) invoiceAndPayment(t *testing.T, invoiced, paid string) (*ledger.Line, *ledger.Line) {
	t.Helper()
	invoice := f.posted(t, f.sales, day(2024, 3, 1), debit(f.receivable, invoiced), credit(f.income, invoiced))
	payment := f.posted(t, f.bank, day(2024, 3, 5), debit(f.cash, paid), credit(f.receivable, paid))
	return lineOn(t, invoice, f.receivable), lineOn(t, payment, f.receivable)
}

// =============================================================================
// Matching Tests
// =============================================================================

func TestReconcile_PartialMatch(t *testing.T) {
	f := newFixture(t)
	x, y := f.invoiceAndPayment(t, "100", "60")

	result, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)

	require.Len(t, result.Partials, 1)
	p := result.Partials[0]
	assert.Equal(t, x.ID, p.DebitLineID)
	assert.Equal(t, y.ID, p.CreditLineID)
	requireAmount(t, "60.00", p.Amount)
	assert.Equal(t, day(2024, 3, 5), p.MaxDate)
	assert.Nil(t, result.Full)

	requireAmount(t, "40.00", f.residual(t, x.ID))
	requireAmount(t, "0.00", f.residual(t, y.ID))
}

func TestReconcile_FullMatch(t *testing.T) {
	f := newFixture(t)
	x, y := f.invoiceAndPayment(t, "100", "100")

	result, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)

	require.Len(t, result.Partials, 1)
	requireAmount(t, "100.00", result.Partials[0].Amount)
	require.NotNil(t, result.Full)
	assert.Equal(t, "LET00001", result.Full.Name)
	assert.ElementsMatch(t, []uuid.UUID{result.Partials[0].ID}, result.Full.PartialIDs)
	assert.ElementsMatch(t, []uuid.UUID{x.ID, y.ID}, result.Full.LineIDs)

	requireAmount(t, "0.00", f.residual(t, x.ID))
	requireAmount(t, "0.00", f.residual(t, y.ID))

	lines, err := f.repo.GetLines(f.ctx, f.scope.CompanyID, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)
	for _, l := range lines {
		require.NotNil(t, l.FullSettlementID)
		assert.Equal(t, result.Full.ID, *l.FullSettlementID)
	}
}

func TestReconcile_AlreadySettledIsNothingToMatch(t *testing.T) {
	f := newFixture(t)
	x, y := f.invoiceAndPayment(t, "100", "100")

	_, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)

	_, err = f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, y.ID})
	assert.ErrorIs(t, err, ledger.ErrNothingToMatch)

	partials, err := f.repo.PartialsByLines(f.ctx, f.scope.CompanyID, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)
	assert.Len(t, partials, 1, "second call leaves state unchanged")
}

func TestReconcile_SameSideIsNothingToMatch(t *testing.T) {
	f := newFixture(t)
	a := f.posted(t, f.sales, day(2024, 3, 1), debit(f.receivable, "10"), credit(f.income, "10"))
	b := f.posted(t, f.sales, day(2024, 3, 2), debit(f.receivable, "20"), credit(f.income, "20"))

	_, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{lineOn(t, a, f.receivable).ID, lineOn(t, b, f.receivable).ID})
	assert.ErrorIs(t, err, ledger.ErrNothingToMatch)

	_, err = f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{lineOn(t, a, f.receivable).ID})
	assert.ErrorIs(t, err, ledger.ErrNothingToMatch)
}

func TestReconcile_GreedyOrderByDateThenID(t *testing.T) {
	f := newFixture(t)
	// created out of date order on purpose
	d3 := f.posted(t, f.sales, day(2024, 3, 3), debit(f.receivable, "50"), credit(f.income, "50"))
	d1 := f.posted(t, f.sales, day(2024, 3, 1), debit(f.receivable, "50"), credit(f.income, "50"))
	d2 := f.posted(t, f.sales, day(2024, 3, 2), debit(f.receivable, "50"), credit(f.income, "50"))
	c := f.posted(t, f.bank, day(2024, 3, 10), debit(f.cash, "120"), credit(f.receivable, "120"))

	ids := []uuid.UUID{
		lineOn(t, c, f.receivable).ID,
		lineOn(t, d3, f.receivable).ID,
		lineOn(t, d2, f.receivable).ID,
		lineOn(t, d1, f.receivable).ID,
	}
	result, err := f.rec.Reconcile(f.ctx, f.scope, ids)
	require.NoError(t, err)
	require.Len(t, result.Partials, 3)

	assert.Equal(t, lineOn(t, d1, f.receivable).ID, result.Partials[0].DebitLineID)
	requireAmount(t, "50.00", result.Partials[0].Amount)
	assert.Equal(t, lineOn(t, d2, f.receivable).ID, result.Partials[1].DebitLineID)
	requireAmount(t, "50.00", result.Partials[1].Amount)
	assert.Equal(t, lineOn(t, d3, f.receivable).ID, result.Partials[2].DebitLineID)
	requireAmount(t, "20.00", result.Partials[2].Amount)
	assert.Nil(t, result.Full)

	requireAmount(t, "30.00", f.residual(t, lineOn(t, d3, f.receivable).ID))
}

func TestReconcile_SameDateTiesSettleCompletely(t *testing.T) {
	f := newFixture(t)
	a := f.posted(t, f.sales, day(2024, 3, 1), debit(f.receivable, "30"), credit(f.income, "30"))
	b := f.posted(t, f.sales, day(2024, 3, 1), debit(f.receivable, "70"), credit(f.income, "70"))
	c := f.posted(t, f.bank, day(2024, 3, 2), debit(f.cash, "50"), credit(f.receivable, "50"))
	d := f.posted(t, f.bank, day(2024, 3, 2), debit(f.cash, "50"), credit(f.receivable, "50"))

	ids := []uuid.UUID{
		lineOn(t, d, f.receivable).ID, lineOn(t, b, f.receivable).ID,
		lineOn(t, c, f.receivable).ID, lineOn(t, a, f.receivable).ID,
	}
	result, err := f.rec.Reconcile(f.ctx, f.scope, ids)
	require.NoError(t, err)
	require.NotNil(t, result.Full)
	assert.Len(t, result.Partials, 3)

	total := money.Zero
	for _, p := range result.Partials {
		total = total.Add(p.Amount)
	}
	requireAmount(t, "100.00", total)
	for _, id := range ids {
		requireAmount(t, "0.00", f.residual(t, id))
	}
}

func TestReconcile_FullSettlementCoversConnectedLines(t *testing.T) {
	f := newFixture(t)
	x, y := f.invoiceAndPayment(t, "100", "60")
	z := lineOn(t, f.posted(t, f.bank, day(2024, 3, 8), debit(f.cash, "40"), credit(f.receivable, "40")), f.receivable)

	first, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)
	assert.Nil(t, first.Full)

	second, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, z.ID})
	require.NoError(t, err)
	require.NotNil(t, second.Full)

	assert.ElementsMatch(t, []uuid.UUID{x.ID, y.ID, z.ID}, second.Full.LineIDs)
	assert.ElementsMatch(t, []uuid.UUID{first.Partials[0].ID, second.Partials[0].ID}, second.Full.PartialIDs)
}

// =============================================================================
// Precondition Tests
// =============================================================================

func TestReconcile_Preconditions(t *testing.T) {
	f := newFixture(t)
	x, _ := f.invoiceAndPayment(t, "100", "100")

	otherAccount := f.posted(t, f.bank, day(2024, 3, 5), debit(f.expense, "100"), credit(f.cash, "100"))
	_, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, lineOn(t, otherAccount, f.cash).ID})
	assert.ErrorIs(t, err, ledger.ErrAccountMismatch)

	income := f.posted(t, f.sales, day(2024, 3, 1), debit(f.cash, "5"), credit(f.income, "5"))
	refund := f.posted(t, f.sales, day(2024, 3, 2), debit(f.income, "5"), credit(f.cash, "5"))
	_, err = f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{lineOn(t, income, f.income).ID, lineOn(t, refund, f.income).ID})
	assert.ErrorIs(t, err, ledger.ErrAccountNotReconcilable)

	draft := f.draft(t, f.bank, day(2024, 3, 5), ledger.MoveTypeEntry, debit(f.cash, "100"), credit(f.receivable, "100"))
	_, err = f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, lineOn(t, draft, f.receivable).ID})
	assert.ErrorIs(t, err, ledger.ErrLineNotPosted)

	_, err = f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, uuid.New()})
	assert.ErrorIs(t, err, ledger.ErrLineNotFound)
}

// =============================================================================
// Unreconcile Tests
// =============================================================================

func TestUnreconcilePartial_RemovesFullSettlement(t *testing.T) {
	f := newFixture(t)
	x, y := f.invoiceAndPayment(t, "100", "100")

	result, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)
	require.NotNil(t, result.Full)

	require.NoError(t, f.rec.UnreconcilePartial(f.ctx, f.scope, []uuid.UUID{result.Partials[0].ID}))

	_, err = f.repo.GetFull(f.ctx, f.scope.CompanyID, result.Full.ID)
	assert.ErrorIs(t, err, ledger.ErrFullNotFound)

	requireAmount(t, "100.00", f.residual(t, x.ID))
	requireAmount(t, "100.00", f.residual(t, y.ID))

	lines, err := f.repo.GetLines(f.ctx, f.scope.CompanyID, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)
	require.Len(t, lines, 2, "lines are never deleted")
	for _, l := range lines {
		assert.Nil(t, l.FullSettlementID)
	}
}

func TestUnreconcilePartial_DissolvesFullKeepingOtherPartials(t *testing.T) {
	f := newFixture(t)
	x, y := f.invoiceAndPayment(t, "100", "60")
	z := lineOn(t, f.posted(t, f.bank, day(2024, 3, 8), debit(f.cash, "40"), credit(f.receivable, "40")), f.receivable)

	first, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)
	second, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, z.ID})
	require.NoError(t, err)
	require.NotNil(t, second.Full)

	require.NoError(t, f.rec.UnreconcilePartial(f.ctx, f.scope, []uuid.UUID{second.Partials[0].ID}))

	_, err = f.repo.GetFull(f.ctx, f.scope.CompanyID, second.Full.ID)
	assert.ErrorIs(t, err, ledger.ErrFullNotFound)

	remaining, err := f.repo.GetPartials(f.ctx, f.scope.CompanyID, []uuid.UUID{first.Partials[0].ID})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Nil(t, remaining[0].FullSettlementID)

	requireAmount(t, "40.00", f.residual(t, x.ID))
	requireAmount(t, "40.00", f.residual(t, z.ID))
}

func TestUnreconcileFull(t *testing.T) {
	f := newFixture(t)
	x, y := f.invoiceAndPayment(t, "100", "100")

	result, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)

	require.NoError(t, f.rec.UnreconcileFull(f.ctx, f.scope, result.Full.ID))

	partials, err := f.repo.PartialsByLines(f.ctx, f.scope.CompanyID, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)
	assert.Empty(t, partials)

	err = f.rec.UnreconcileFull(f.ctx, f.scope, result.Full.ID)
	assert.ErrorIs(t, err, ledger.ErrFullNotFound)

	// the invoice can be cancelled again once unreconciled
	_, err = f.svc.Cancel(f.ctx, f.scope, x.EntryID)
	assert.NoError(t, err)
}

func TestUnreconcileLines(t *testing.T) {
	f := newFixture(t)
	x, y := f.invoiceAndPayment(t, "100", "60")

	_, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)

	require.NoError(t, f.rec.UnreconcileLines(f.ctx, f.scope, []uuid.UUID{y.ID}))
	requireAmount(t, "100.00", f.residual(t, x.ID))

	// nothing left to remove
	require.NoError(t, f.rec.UnreconcileLines(f.ctx, f.scope, []uuid.UUID{y.ID}))
}

func TestUnreconcilePartial_Unknown(t *testing.T) {
	f := newFixture(t)
	err := f.rec.UnreconcilePartial(f.ctx, f.scope, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, ledger.ErrPartialNotFound)
}

// =============================================================================
// Events and Concurrency Tests
// =============================================================================

func TestReconcile_PublishesEvents(t *testing.T) {
	pub := new(MockPublisher)
	f := newFixture(t, ledger.WithPublisher(pub))
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e ledger.Event) bool {
		return e.Type == ledger.EventEntryPosted
	})).Return(nil)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e ledger.Event) bool {
		return e.Type == ledger.EventLinesReconciled && e.Data["full_settlement"] == "LET00001"
	})).Return(nil).Once()
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e ledger.Event) bool {
		return e.Type == ledger.EventSettlementRemoved
	})).Return(nil).Twice()

	x, y := f.invoiceAndPayment(t, "100", "100")
	result, err := f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, y.ID})
	require.NoError(t, err)
	require.NoError(t, f.rec.UnreconcileFull(f.ctx, f.scope, result.Full.ID))

	pub.AssertExpectations(t)
}

func TestReconcile_ConcurrentCallsDoNotOverAllocate(t *testing.T) {
	f := newFixture(t)
	invoice := f.posted(t, f.sales, day(2024, 3, 1), debit(f.receivable, "100"), credit(f.income, "100"))
	x := lineOn(t, invoice, f.receivable)

	const workers = 8
	credits := make([]uuid.UUID, workers)
	for i := range credits {
		p := f.posted(t, f.bank, day(2024, 3, 5), debit(f.cash, "100"), credit(f.receivable, "100"))
		credits[i] = lineOn(t, p, f.receivable).ID
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.rec.Reconcile(f.ctx, f.scope, []uuid.UUID{x.ID, credits[i]})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ledger.ErrNothingToMatch), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	requireAmount(t, "0.00", f.residual(t, x.ID))
}
