package statement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/platform/chart"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

// Service manages bank statements and their reconciliation with the ledger
type Service struct {
	repo      Repository
	ledger    Ledger
	journals  Journals
	sequences Sequencer
	now       func() time.Time
	logger    *logger.Logger
}

// NewService creates a new statement service
func NewService(repo Repository, ldg Ledger, journals Journals, sequences Sequencer, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		ledger:    ldg,
		journals:  journals,
		sequences: sequences,
		now:       time.Now,
		logger:    log.WithField("service", "statement"),
	}
}

// Create opens a statement on a bank or cash journal. A statement without
// a name is numbered CODE/YEAR/NNNN.
func (s *Service) Create(ctx context.Context, scope ledger.Scope, st *Statement) (*Statement, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if st.JournalID == uuid.Nil {
		return nil, ErrMissingJournal
	}
	for _, l := range st.Lines {
		if err := l.Validate(); err != nil {
			return nil, err
		}
	}

	journal, err := s.liquidityJournal(ctx, scope.CompanyID, st.JournalID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if st.Date.IsZero() {
		st.Date = now
	}
	st.Date = ledger.Day(st.Date)

	if st.Name == "" {
		prefix := journal.SequencePrefix(st.Date.Year())
		seq, err := s.sequences.NextSequence(ctx, scope.CompanyID, "statement/"+prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to number statement: %w", err)
		}
		st.Name = fmt.Sprintf("%s%04d", prefix, seq)
	}

	st.ID = uuid.New()
	st.CompanyID = scope.CompanyID
	st.State = StateOpen
	st.BalanceStart = money.Round(st.BalanceStart)
	st.BalanceEndReal = money.Round(st.BalanceEndReal)
	st.CreatedAt = now
	st.UpdatedAt = now

	if err := s.repo.CreateStatement(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to create statement: %w", err)
	}
	for i, l := range st.Lines {
		s.prepareLine(st, l, (i+1)*10)
		if err := s.repo.CreateLine(ctx, l); err != nil {
			return nil, fmt.Errorf("failed to create statement line: %w", err)
		}
	}

	s.logger.Info("statement created", "company_id", scope.CompanyID, "statement_id", st.ID, "name", st.Name, "lines", len(st.Lines))
	return st, nil
}

func (s *Service) prepareLine(st *Statement, l *Line, sequence int) {
	l.ID = uuid.New()
	l.StatementID = st.ID
	if l.Sequence == 0 {
		l.Sequence = sequence
	}
	if l.Date.IsZero() {
		l.Date = st.Date
	}
	l.Date = ledger.Day(l.Date)
	l.Amount = money.Round(l.Amount)
	l.EntryID = nil
}

func (s *Service) liquidityJournal(ctx context.Context, companyID, journalID uuid.UUID) (*chart.Journal, error) {
	journal, err := s.journals.GetJournal(ctx, companyID, journalID)
	if err != nil {
		return nil, err
	}
	if !journal.Type.IsLiquidity() {
		return nil, ErrNotLiquidityJournal
	}
	return journal, nil
}

// Get returns a statement with its lines
func (s *Service) Get(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Statement, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.GetStatement(ctx, scope.CompanyID, id)
}

// List returns the company's statements, optionally for one journal
func (s *Service) List(ctx context.Context, scope ledger.Scope, journalID *uuid.UUID) ([]*Statement, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListStatements(ctx, scope.CompanyID, journalID)
}

// lockOpen loads and locks an open statement; ctx must carry a transaction
func (s *Service) lockOpen(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Statement, error) {
	st, err := s.repo.GetStatementForUpdate(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, err
	}
	if st.State != StateOpen {
		return nil, ErrNotOpen
	}
	return st, nil
}

// inOpen runs fn on the locked open statement inside one transaction
func (s *Service) inOpen(ctx context.Context, scope ledger.Scope, id uuid.UUID, fn func(ctx context.Context, st *Statement) error) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.ledger.WithinTx(ctx, func(ctx context.Context) error {
		st, err := s.lockOpen(ctx, scope, id)
		if err != nil {
			return err
		}
		return fn(ctx, st)
	})
}

// AddLine appends a line to an open statement
func (s *Service) AddLine(ctx context.Context, scope ledger.Scope, id uuid.UUID, line *Line) (*Line, error) {
	if err := line.Validate(); err != nil {
		return nil, err
	}
	err := s.inOpen(ctx, scope, id, func(ctx context.Context, st *Statement) error {
		next := 10
		for _, l := range st.Lines {
			if l.Sequence >= next {
				next = l.Sequence + 10
			}
		}
		s.prepareLine(st, line, next)

		if err := s.repo.CreateLine(ctx, line); err != nil {
			return fmt.Errorf("failed to create statement line: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// RemoveLine deletes an unreconciled line of an open statement
func (s *Service) RemoveLine(ctx context.Context, scope ledger.Scope, id, lineID uuid.UUID) error {
	return s.inOpen(ctx, scope, id, func(ctx context.Context, st *Statement) error {
		line, ok := st.FindLine(lineID)
		if !ok {
			return ErrLineNotFound
		}
		if line.IsReconciled() {
			return ErrLineMatched
		}
		return s.repo.DeleteLine(ctx, id, lineID)
	})
}

// MatchLine links a statement line to an existing posted entry
func (s *Service) MatchLine(ctx context.Context, scope ledger.Scope, id, lineID, entryID uuid.UUID) (*Line, error) {
	var line *Line
	err := s.inOpen(ctx, scope, id, func(ctx context.Context, st *Statement) error {
		var err error
		if line, err = unmatchedLine(st, lineID); err != nil {
			return err
		}

		entry, err := s.ledger.GetEntry(ctx, scope, entryID)
		if err != nil {
			return err
		}
		if entry.State != ledger.EntryStatePosted {
			return ErrEntryNotPosted
		}

		line.EntryID = &entry.ID
		if err := s.repo.UpdateLine(ctx, line); err != nil {
			return fmt.Errorf("failed to update statement line: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("statement line matched", "statement_id", id, "line_id", lineID, "entry_id", entryID)
	return line, nil
}

// BookLine books a statement line against a counterpart account and links
// the posted entry. Money received debits the journal's default account.
func (s *Service) BookLine(ctx context.Context, scope ledger.Scope, id, lineID, counterpartID uuid.UUID) (*Line, error) {
	var line *Line
	err := s.inOpen(ctx, scope, id, func(ctx context.Context, st *Statement) error {
		var err error
		if line, err = unmatchedLine(st, lineID); err != nil {
			return err
		}

		journal, err := s.liquidityJournal(ctx, scope.CompanyID, st.JournalID)
		if err != nil {
			return err
		}
		if journal.DefaultAccountID == nil {
			return fmt.Errorf("%w: %s", ErrNoLiquidityAccount, journal.Code)
		}

		ref := line.Ref
		if ref == "" {
			ref = st.Name
		}
		amount := line.Amount.Abs()
		liquidity := ledger.NewLine{AccountID: *journal.DefaultAccountID, Name: line.Name, PartnerID: line.PartnerID}
		counterpart := ledger.NewLine{AccountID: counterpartID, Name: line.Name, PartnerID: line.PartnerID}
		if line.Amount.IsPositive() {
			liquidity.Debit = amount
			counterpart.Credit = amount
		} else {
			counterpart.Debit = amount
			liquidity.Credit = amount
		}

		entry, err := s.ledger.CreateEntry(ctx, scope, ledger.NewEntry{
			JournalID: st.JournalID,
			Date:      line.Date,
			Ref:       ref,
			PartnerID: line.PartnerID,
		})
		if err != nil {
			return err
		}
		if _, err := s.ledger.AddLine(ctx, scope, entry.ID, liquidity); err != nil {
			return err
		}
		if _, err := s.ledger.AddLine(ctx, scope, entry.ID, counterpart); err != nil {
			return err
		}
		if _, err := s.ledger.Post(ctx, scope, entry.ID); err != nil {
			return err
		}

		line.EntryID = &entry.ID
		return s.repo.UpdateLine(ctx, line)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("statement line booked", "statement_id", id, "line_id", lineID, "entry_id", *line.EntryID)
	return line, nil
}

func unmatchedLine(st *Statement, lineID uuid.UUID) (*Line, error) {
	line, ok := st.FindLine(lineID)
	if !ok {
		return nil, ErrLineNotFound
	}
	if line.IsReconciled() {
		return nil, ErrLineMatched
	}
	return line, nil
}

// UnmatchLine removes the link between a line and its entry. A booked
// entry stays in the ledger.
func (s *Service) UnmatchLine(ctx context.Context, scope ledger.Scope, id, lineID uuid.UUID) (*Line, error) {
	var line *Line
	err := s.inOpen(ctx, scope, id, func(ctx context.Context, st *Statement) error {
		var ok bool
		if line, ok = st.FindLine(lineID); !ok {
			return ErrLineNotFound
		}
		if !line.IsReconciled() {
			return ErrLineNotMatched
		}

		line.EntryID = nil
		if err := s.repo.UpdateLine(ctx, line); err != nil {
			return fmt.Errorf("failed to update statement line: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// Confirm closes the statement once every line is reconciled and the
// computed ending balance is within a cent of the real one
func (s *Service) Confirm(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Statement, error) {
	var st *Statement
	err := s.inOpen(ctx, scope, id, func(ctx context.Context, locked *Statement) error {
		st = locked
		if open := st.Unreconciled(); len(open) > 0 {
			names := make([]string, 0, len(open))
			for _, l := range open {
				names = append(names, l.Name)
			}
			return fmt.Errorf("%w: %s", ErrUnreconciledLines, strings.Join(names, ", "))
		}
		if !st.IsBalanced() {
			return fmt.Errorf("%w: computed %s, real %s", ErrBalanceMismatch, money.Format(st.BalanceEnd()), money.Format(st.BalanceEndReal))
		}

		st.State = StateConfirm
		st.UpdatedAt = s.now()
		if err := s.repo.UpdateStatement(ctx, st); err != nil {
			return fmt.Errorf("failed to update statement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("statement confirmed", "company_id", scope.CompanyID, "statement_id", id, "balance_end", money.Format(st.BalanceEnd()))
	return st, nil
}

// Reopen brings a confirmed statement back to open
func (s *Service) Reopen(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Statement, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	var st *Statement
	err := s.ledger.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if st, err = s.repo.GetStatementForUpdate(ctx, scope.CompanyID, id); err != nil {
			return err
		}
		if st.State == StateOpen {
			return ErrAlreadyOpen
		}

		st.State = StateOpen
		st.UpdatedAt = s.now()
		if err := s.repo.UpdateStatement(ctx, st); err != nil {
			return fmt.Errorf("failed to update statement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
