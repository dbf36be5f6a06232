package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/grandlivre/internal/infra/memory"
	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

var testNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// stubChart serves accounts and journals from maps
type stubChart struct {
	accounts map[uuid.UUID]*ledger.AccountInfo
	journals map[uuid.UUID]*ledger.JournalInfo
}

func newStubChart() *stubChart {
	return &stubChart{
		accounts: make(map[uuid.UUID]*ledger.AccountInfo),
		journals: make(map[uuid.UUID]*ledger.JournalInfo),
	}
}

func (c *stubChart) AccountInfo(ctx context.Context, companyID, accountID uuid.UUID) (*ledger.AccountInfo, error) {
	acc, ok := c.accounts[accountID]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return acc, nil
}

func (c *stubChart) JournalInfo(ctx context.Context, companyID, journalID uuid.UUID) (*ledger.JournalInfo, error) {
	j, ok := c.journals[journalID]
	if !ok {
		return nil, ledger.ErrJournalNotFound
	}
	return j, nil
}

func (c *stubChart) addAccount(code, typ string, reconcilable bool) uuid.UUID {
	id := uuid.New()
	c.accounts[id] = &ledger.AccountInfo{ID: id, Code: code, Type: typ, Reconcilable: reconcilable}
	return id
}

func (c *stubChart) addJournal(code, typ string) uuid.UUID {
	id := uuid.New()
	c.journals[id] = &ledger.JournalInfo{ID: id, Code: code, Type: typ}
	return id
}

// MockBalanceCache is a mock implementation of ledger.BalanceCache
type MockBalanceCache struct {
	mock.Mock
}

func (m *MockBalanceCache) Get(ctx context.Context, companyID, accountID uuid.UUID) (*ledger.AccountBalance, error) {
	args := m.Called(ctx, companyID, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.AccountBalance), args.Error(1)
}

func (m *MockBalanceCache) Set(ctx context.Context, balance *ledger.AccountBalance) error {
	args := m.Called(ctx, balance)
	return args.Error(0)
}

func (m *MockBalanceCache) Invalidate(ctx context.Context, companyID uuid.UUID, accountIDs ...uuid.UUID) error {
	args := m.Called(ctx, companyID, accountIDs)
	return args.Error(0)
}

// MockPublisher is a mock implementation of ledger.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event ledger.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockPeriodGuard is a mock implementation of ledger.PeriodGuard
type MockPeriodGuard struct {
	mock.Mock
}

func (m *MockPeriodGuard) EnsureOpen(ctx context.Context, scope ledger.Scope, date time.Time) error {
	args := m.Called(ctx, scope, date)
	return args.Error(0)
}

type fixture struct {
	ctx   context.Context
	scope ledger.Scope
	repo  *memory.LedgerStore
	chart *stubChart
	svc   *ledger.Service
	rec   *ledger.Reconciler

	sales      uuid.UUID
	bank       uuid.UUID
	receivable uuid.UUID
	income     uuid.UUID
	vat        uuid.UUID
	cash       uuid.UUID
	expense    uuid.UUID
}

func newFixture(t *testing.T, opts ...ledger.Option) *fixture {
	t.Helper()

	chart := newStubChart()
	repo := memory.NewLedgerStore()
	opts = append([]ledger.Option{ledger.WithClock(fixedClock)}, opts...)

	f := &fixture{
		ctx:        context.Background(),
		scope:      ledger.Scope{CompanyID: uuid.New(), UserID: uuid.New()},
		repo:       repo,
		chart:      chart,
		svc:        ledger.NewService(repo, chart, logger.Nop(), opts...),
		rec:        ledger.NewReconciler(repo, chart, logger.Nop(), opts...),
		sales:      chart.addJournal("VTE", "sale"),
		bank:       chart.addJournal("BNK", "bank"),
		receivable: chart.addAccount("411000", ledger.AccountTypeReceivable, true),
		income:     chart.addAccount("706000", "income", false),
		vat:        chart.addAccount("445710", "liability_current", false),
		cash:       chart.addAccount("512000", "asset_cash", false),
		expense:    chart.addAccount("606000", "expense", false),
	}
	return f
}

// lineSpec is an account with a signed amount: positive debits, negative credits
type lineSpec struct {
	account uuid.UUID
	amount  string
	tax     bool
}

func debit(account uuid.UUID, amount string) lineSpec {
	return lineSpec{account: account, amount: amount}
}
func credit(account uuid.UUID, amount string) lineSpec {
	return lineSpec{account: account, amount: "-" + amount}
}

func (f *fixture) draft(t *testing.T, journal uuid.UUID, date time.Time, moveType ledger.MoveType, specs ...lineSpec) *ledger.Entry {
	t.Helper()

	entry, err := f.svc.CreateEntry(f.ctx, f.scope, ledger.NewEntry{
		JournalID: journal,
		Date:      date,
		MoveType:  moveType,
	})
	require.NoError(t, err)

	for _, spec := range specs {
		amount := money.MustParse(spec.amount)
		in := ledger.NewLine{AccountID: spec.account}
		if amount.IsNegative() {
			in.Credit = amount.Neg()
		} else {
			in.Debit = amount
		}
		if spec.tax {
			taxID := uuid.New()
			in.TaxLineID = &taxID
		}
		_, err := f.svc.AddLine(f.ctx, f.scope, entry.ID, in)
		require.NoError(t, err)
	}

	entry, err = f.svc.GetEntry(f.ctx, f.scope, entry.ID)
	require.NoError(t, err)
	return entry
}

func (f *fixture) posted(t *testing.T, journal uuid.UUID, date time.Time, specs ...lineSpec) *ledger.Entry {
	t.Helper()

	entry := f.draft(t, journal, date, ledger.MoveTypeEntry, specs...)
	posted, err := f.svc.Post(f.ctx, f.scope, entry.ID)
	require.NoError(t, err)
	return posted
}

// lineOn returns the first line of entry on account
func lineOn(t *testing.T, entry *ledger.Entry, account uuid.UUID) *ledger.Line {
	t.Helper()
	for _, l := range entry.Lines {
		if l.AccountID == account {
			return l
		}
	}
	t.Fatalf("entry %s has no line on account %s", entry.ID, account)
	return nil
}

func (f *fixture) residual(t *testing.T, lineID uuid.UUID) decimal.Decimal {
	t.Helper()
	r, err := f.svc.Residual(f.ctx, f.scope, lineID)
	require.NoError(t, err)
	return r
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Equal(t, want, money.Format(got))
}
