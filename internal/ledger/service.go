package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

// Service orchestrates entry lifecycle, balances and derived amounts
type Service struct {
	repo      Repository
	chart     ChartReader
	periods   PeriodGuard
	cache     BalanceCache
	publisher EventPublisher
	now       Clock
	logger    *logger.Logger
}

// Option configures optional collaborators of Service and Reconciler
type Option func(*options)

type options struct {
	periods   PeriodGuard
	cache     BalanceCache
	publisher EventPublisher
	now       Clock
}

// WithPeriodGuard rejects posting into closed fiscal periods
func WithPeriodGuard(g PeriodGuard) Option {
	return func(o *options) { o.periods = g }
}

// WithBalanceCache memoises AccountBalance
func WithBalanceCache(c BalanceCache) Option {
	return func(o *options) { o.cache = c }
}

// WithPublisher emits domain events after commit
func WithPublisher(p EventPublisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithClock overrides time.Now
func WithClock(c Clock) Option {
	return func(o *options) { o.now = c }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewService creates a new ledger service
func NewService(repo Repository, chart ChartReader, log *logger.Logger, opts ...Option) *Service {
	o := buildOptions(opts)
	return &Service{
		repo:      repo,
		chart:     chart,
		periods:   o.periods,
		cache:     o.cache,
		publisher: o.publisher,
		now:       o.now,
		logger:    log.WithField("service", "ledger"),
	}
}

// WithinTx runs fn in a transaction, joining the caller's transaction when
// ctx already carries one. fn's error rolls the transaction back.
func (s *Service) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withinTx(ctx, s.repo, fn)
}

// NewEntry holds the header fields of a draft entry
type NewEntry struct {
	JournalID uuid.UUID
	Date      time.Time // zero means today
	Ref       string
	MoveType  MoveType // empty means MoveTypeEntry
	PartnerID *uuid.UUID
}

// CreateEntry creates an empty draft entry
func (s *Service) CreateEntry(ctx context.Context, scope Scope, in NewEntry) (*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	if in.MoveType == "" {
		in.MoveType = MoveTypeEntry
	}
	if !in.MoveType.IsValid() {
		return nil, wrapf(ErrInvalidMoveType, "%q", in.MoveType)
	}

	journal, err := s.chart.JournalInfo(ctx, scope.CompanyID, in.JournalID)
	if err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	now := s.now()
	entry := &Entry{
		ID:          uuid.New(),
		CompanyID:   scope.CompanyID,
		Name:        DraftName,
		Ref:         in.Ref,
		Date:        Day(date),
		State:       EntryStateDraft,
		MoveType:    in.MoveType,
		JournalID:   journal.ID,
		JournalCode: journal.Code,
		PartnerID:   in.PartnerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}

	return entry, nil
}

// NewLine holds the fields of a line added to a draft entry
type NewLine struct {
	AccountID         uuid.UUID
	Name              string
	Debit             decimal.Decimal
	Credit            decimal.Decimal
	PartnerID         *uuid.UUID
	DateMaturity      *time.Time
	TaxLineID         *uuid.UUID
	AnalyticAccountID *uuid.UUID
}

// AddLine appends a line to a draft entry
func (s *Service) AddLine(ctx context.Context, scope Scope, entryID uuid.UUID, in NewLine) (*Line, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	line := &Line{
		ID:                uuid.New(),
		EntryID:           entryID,
		CompanyID:         scope.CompanyID,
		AccountID:         in.AccountID,
		Name:              in.Name,
		PartnerID:         in.PartnerID,
		Debit:             money.Round(in.Debit),
		Credit:            money.Round(in.Credit),
		DateMaturity:      in.DateMaturity,
		TaxLineID:         in.TaxLineID,
		AnalyticAccountID: in.AnalyticAccountID,
		CreatedAt:         s.now(),
	}
	if err := line.Validate(); err != nil {
		return nil, err
	}

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.GetEntryForUpdate(ctx, scope.CompanyID, entryID)
		if err != nil {
			return err
		}
		if !entry.IsDraft() {
			return ErrNotDraft
		}

		account, err := s.chart.AccountInfo(ctx, scope.CompanyID, in.AccountID)
		if err != nil {
			return err
		}
		if account.Deprecated {
			return wrapf(ErrAccountDeprecated, "%s", account.Code)
		}

		line.AccountType = account.Type
		line.Date = entry.Date
		line.EntryState = entry.State
		if line.PartnerID == nil {
			line.PartnerID = entry.PartnerID
		}

		return s.repo.CreateLine(ctx, line)
	})
	if err != nil {
		return nil, err
	}

	return line, nil
}

// LineChange lists the fields to change on a draft line; nil leaves a field as is.
// Debit is applied before Credit, so when both are non-zero the credit wins.
type LineChange struct {
	Name              *string
	Debit             *decimal.Decimal
	Credit            *decimal.Decimal
	DateMaturity      *time.Time
	AnalyticAccountID *uuid.UUID
}

// UpdateLine edits a line of a draft entry. Setting one side of a line
// clears the other.
func (s *Service) UpdateLine(ctx context.Context, scope Scope, entryID, lineID uuid.UUID, change LineChange) (*Line, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var line *Line
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.GetEntryForUpdate(ctx, scope.CompanyID, entryID)
		if err != nil {
			return err
		}
		if !entry.IsDraft() {
			return ErrNotDraft
		}
		var ok bool
		if line, ok = entry.FindLine(lineID); !ok {
			return ErrLineNotInEntry
		}

		if change.Name != nil {
			line.Name = *change.Name
		}
		if change.Debit != nil {
			line.SetDebit(*change.Debit)
		}
		if change.Credit != nil {
			line.SetCredit(*change.Credit)
		}
		if change.DateMaturity != nil {
			line.DateMaturity = change.DateMaturity
		}
		if change.AnalyticAccountID != nil {
			line.AnalyticAccountID = change.AnalyticAccountID
		}
		if err := line.Validate(); err != nil {
			return err
		}
		return s.repo.UpdateLine(ctx, line)
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// RemoveLine deletes a line of a draft entry
func (s *Service) RemoveLine(ctx context.Context, scope Scope, entryID, lineID uuid.UUID) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	return s.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.GetEntryForUpdate(ctx, scope.CompanyID, entryID)
		if err != nil {
			return err
		}
		if !entry.IsDraft() {
			return ErrNotDraft
		}
		if _, ok := entry.FindLine(lineID); !ok {
			return ErrLineNotInEntry
		}
		return s.repo.DeleteLine(ctx, scope.CompanyID, lineID)
	})
}

// DeleteEntry removes an entry and its lines; entries that were ever posted are kept
func (s *Service) DeleteEntry(ctx context.Context, scope Scope, entryID uuid.UUID) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	return s.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.GetEntryForUpdate(ctx, scope.CompanyID, entryID)
		if err != nil {
			return err
		}
		if entry.WasPosted() || entry.State == EntryStatePosted {
			return ErrEntryWasPosted
		}
		return s.repo.DeleteEntry(ctx, scope.CompanyID, entryID)
	})
}

// Post moves a balanced draft entry to posted, numbering it on first post
func (s *Service) Post(ctx context.Context, scope Scope, entryID uuid.UUID) (*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var posted *Entry
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.GetEntryForUpdate(ctx, scope.CompanyID, entryID)
		if err != nil {
			return err
		}
		if err := entry.CanPost(); err != nil {
			return err
		}

		if s.periods != nil {
			if err := s.periods.EnsureOpen(ctx, scope, entry.Date); err != nil {
				return err
			}
		}

		if entry.Name == DraftName {
			name, err := s.nextEntryName(ctx, entry)
			if err != nil {
				return err
			}
			entry.Name = name
		}

		now := s.now()
		entry.State = EntryStatePosted
		if entry.PostedAt == nil {
			entry.PostedAt = &now
		}
		entry.UpdatedAt = now

		if err := s.repo.UpdateEntry(ctx, entry); err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		posted = entry
		return nil
	})
	if err != nil {
		s.logger.Warn("post refused", "entry_id", entryID, "error", err)
		return nil, err
	}

	s.logger.Info("entry posted", "entry_id", posted.ID, "name", posted.Name, "company_id", scope.CompanyID)
	s.invalidateBalances(ctx, posted)
	publish(ctx, s.publisher, s.logger, newEvent(scope, EventEntryPosted, posted.ID, s.now(), map[string]interface{}{
		"name":  posted.Name,
		"total": money.Format(posted.TotalDebit()),
	}))

	return posted, nil
}

// nextEntryName draws JOURNAL/YEAR/NNNN from the journal's yearly sequence
func (s *Service) nextEntryName(ctx context.Context, entry *Entry) (string, error) {
	year := entry.Date.Year()
	code := fmt.Sprintf("move/%s/%d", entry.JournalCode, year)

	n, err := s.repo.NextSequence(ctx, entry.CompanyID, code)
	if err != nil {
		return "", fmt.Errorf("failed to draw entry number: %w", err)
	}
	if n <= 0 {
		return "", wrapf(ErrSequenceExhausted, "%s returned %d", code, n)
	}

	return fmt.Sprintf("%s/%d/%04d", entry.JournalCode, year, n), nil
}

// Cancel moves a draft or posted entry to cancel. Posted entries with
// fully reconciled lines are refused.
func (s *Service) Cancel(ctx context.Context, scope Scope, entryID uuid.UUID) (*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var (
		cancelled *Entry
		wasPosted bool
	)
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.GetEntryForUpdate(ctx, scope.CompanyID, entryID)
		if err != nil {
			return err
		}

		switch entry.State {
		case EntryStateCancel:
			return ErrAlreadyCancelled
		case EntryStatePosted:
			if entry.HasFullSettlement() {
				return ErrHasSettlements
			}
			if err := s.dropPartials(ctx, entry); err != nil {
				return err
			}
			wasPosted = true
		}

		entry.State = EntryStateCancel
		entry.UpdatedAt = s.now()
		if err := s.repo.UpdateEntry(ctx, entry); err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		cancelled = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entry cancelled", "entry_id", cancelled.ID, "name", cancelled.Name, "was_posted", wasPosted)
	if wasPosted {
		s.invalidateBalances(ctx, cancelled)
		publish(ctx, s.publisher, s.logger, newEvent(scope, EventEntryCancelled, cancelled.ID, s.now(), map[string]interface{}{
			"name": cancelled.Name,
		}))
	}

	return cancelled, nil
}

// dropPartials releases the open partial settlements of a cancelled entry
// so its counterpart lines get their residual back
func (s *Service) dropPartials(ctx context.Context, entry *Entry) error {
	lineIDs := make([]uuid.UUID, 0, len(entry.Lines))
	for _, l := range entry.Lines {
		lineIDs = append(lineIDs, l.ID)
	}

	partials, err := s.repo.PartialsByLines(ctx, entry.CompanyID, lineIDs)
	if err != nil {
		return fmt.Errorf("failed to load settlements: %w", err)
	}
	for _, p := range partials {
		if err := s.repo.DeletePartial(ctx, entry.CompanyID, p.ID); err != nil {
			return fmt.Errorf("failed to delete partial settlement: %w", err)
		}
	}
	return nil
}

// Reopen moves a cancelled entry back to draft. Posted entries must be reversed instead.
func (s *Service) Reopen(ctx context.Context, scope Scope, entryID uuid.UUID) (*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var reopened *Entry
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.GetEntryForUpdate(ctx, scope.CompanyID, entryID)
		if err != nil {
			return err
		}
		if entry.State != EntryStateCancel {
			return ErrNotCancelled
		}

		entry.State = EntryStateDraft
		entry.UpdatedAt = s.now()
		if err := s.repo.UpdateEntry(ctx, entry); err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		reopened = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entry reset to draft", "entry_id", reopened.ID)
	return reopened, nil
}

// Reverse creates a draft entry dated today whose lines swap debit and
// credit of the posted original. The original is left untouched.
func (s *Service) Reverse(ctx context.Context, scope Scope, entryID uuid.UUID) (*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var reversal *Entry
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		orig, err := s.repo.GetEntry(ctx, scope.CompanyID, entryID)
		if err != nil {
			return err
		}
		if orig.State != EntryStatePosted {
			return ErrNotPosted
		}

		now := s.now()
		origID := orig.ID
		reversal = &Entry{
			ID:              uuid.New(),
			CompanyID:       scope.CompanyID,
			Name:            DraftName,
			Ref:             fmt.Sprintf("Extourne de %s", orig.Name),
			Date:            Day(now),
			State:           EntryStateDraft,
			MoveType:        orig.MoveType,
			JournalID:       orig.JournalID,
			JournalCode:     orig.JournalCode,
			PartnerID:       orig.PartnerID,
			ReversedEntryID: &origID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.repo.CreateEntry(ctx, reversal); err != nil {
			return fmt.Errorf("failed to create reversal: %w", err)
		}

		for _, l := range orig.Lines {
			line := &Line{
				ID:                uuid.New(),
				EntryID:           reversal.ID,
				CompanyID:         scope.CompanyID,
				AccountID:         l.AccountID,
				AccountType:       l.AccountType,
				Name:              l.Name,
				PartnerID:         l.PartnerID,
				Debit:             l.Credit,
				Credit:            l.Debit,
				Date:              reversal.Date,
				DateMaturity:      l.DateMaturity,
				TaxLineID:         l.TaxLineID,
				AnalyticAccountID: l.AnalyticAccountID,
				CreatedAt:         now,
				EntryState:        EntryStateDraft,
			}
			if err := s.repo.CreateLine(ctx, line); err != nil {
				return fmt.Errorf("failed to create reversal line: %w", err)
			}
			reversal.Lines = append(reversal.Lines, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entry reversed", "entry_id", entryID, "reversal_id", reversal.ID)
	return reversal, nil
}

// GetEntry retrieves an entry with its lines
func (s *Service) GetEntry(ctx context.Context, scope Scope, entryID uuid.UUID) (*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.GetEntry(ctx, scope.CompanyID, entryID)
}

// ListEntries lists entries of the scope's company
func (s *Service) ListEntries(ctx context.Context, scope Scope, filter EntryFilter) ([]*Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	filter.CompanyID = scope.CompanyID
	return s.repo.ListEntries(ctx, filter)
}

// CountEntries counts entries of the scope's company
func (s *Service) CountEntries(ctx context.Context, scope Scope, filter EntryFilter) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	filter.CompanyID = scope.CompanyID
	return s.repo.CountEntries(ctx, filter)
}

// EntryAmounts computes untaxed, tax, total and residual amounts of an entry
func (s *Service) EntryAmounts(ctx context.Context, scope Scope, entryID uuid.UUID) (*EntryAmounts, error) {
	_, amounts, err := s.entryWithAmounts(ctx, scope, entryID)
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// PaymentState computes whether an invoice is paid, partially paid or not paid
func (s *Service) PaymentState(ctx context.Context, scope Scope, entryID uuid.UUID) (PaymentState, error) {
	entry, amounts, err := s.entryWithAmounts(ctx, scope, entryID)
	if err != nil {
		return "", err
	}
	return ComputePaymentState(entry.State, entry.MoveType, amounts), nil
}

func (s *Service) entryWithAmounts(ctx context.Context, scope Scope, entryID uuid.UUID) (*Entry, *EntryAmounts, error) {
	entry, err := s.GetEntry(ctx, scope, entryID)
	if err != nil {
		return nil, nil, err
	}

	lineIDs := make([]uuid.UUID, 0, len(entry.Lines))
	for _, l := range entry.Lines {
		lineIDs = append(lineIDs, l.ID)
	}

	partials, err := s.repo.PartialsByLines(ctx, scope.CompanyID, lineIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settlements: %w", err)
	}

	amounts, err := ComputeAmounts(entry, partials)
	if err != nil {
		return nil, nil, err
	}
	return entry, amounts, nil
}

// Residual returns the unsettled amount of a line
func (s *Service) Residual(ctx context.Context, scope Scope, lineID uuid.UUID) (decimal.Decimal, error) {
	if err := scope.Validate(); err != nil {
		return decimal.Zero, err
	}

	lines, err := s.repo.GetLines(ctx, scope.CompanyID, []uuid.UUID{lineID})
	if err != nil {
		return decimal.Zero, err
	}
	if len(lines) == 0 {
		return decimal.Zero, ErrLineNotFound
	}

	partials, err := s.repo.PartialsByLines(ctx, scope.CompanyID, []uuid.UUID{lineID})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load settlements: %w", err)
	}

	return Residual(lines[0], partials)
}

// AccountBalance returns debit, credit and balance of posted lines on an account
func (s *Service) AccountBalance(ctx context.Context, scope Scope, accountID uuid.UUID) (*AccountBalance, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, scope.CompanyID, accountID)
		if err != nil {
			s.logger.Warn("balance cache read failed", "account_id", accountID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	if _, err := s.chart.AccountInfo(ctx, scope.CompanyID, accountID); err != nil {
		return nil, err
	}

	posted := EntryStatePosted
	debit, credit, err := s.repo.SumLines(ctx, LineFilter{
		CompanyID:  scope.CompanyID,
		AccountID:  &accountID,
		EntryState: &posted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sum account lines: %w", err)
	}

	balance := &AccountBalance{
		CompanyID:  scope.CompanyID,
		AccountID:  accountID,
		Debit:      debit,
		Credit:     credit,
		Balance:    debit.Sub(credit),
		ComputedAt: s.now(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, balance); err != nil {
			s.logger.Warn("balance cache write failed", "account_id", accountID, "error", err)
		}
	}

	return balance, nil
}

// invalidateBalances drops cached balances once the enclosing transaction commits
func (s *Service) invalidateBalances(ctx context.Context, entry *Entry) {
	if s.cache == nil {
		return
	}
	companyID, accountIDs, entryID := entry.CompanyID, entry.AccountIDs(), entry.ID
	afterCommit(ctx, func(ctx context.Context) {
		if err := s.cache.Invalidate(ctx, companyID, accountIDs...); err != nil {
			s.logger.Error("balance cache invalidation failed", "entry_id", entryID, "error", err)
		}
	})
}
