package analytic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

// Service manages analytic accounts and computes their balances from
// analytic lines and from posted ledger lines tagged with the account
type Service struct {
	repo   Repository
	ledger LedgerLines
	now    func() time.Time
	logger *logger.Logger
}

// NewService creates a new analytic service
func NewService(repo Repository, ledgerLines LedgerLines, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledgerLines,
		now:    time.Now,
		logger: log.WithField("service", "analytic"),
	}
}

// CreateAccount stores a new active analytic account
func (s *Service) CreateAccount(ctx context.Context, scope ledger.Scope, account *Account) (*Account, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if account.Code != "" {
		if _, err := s.repo.GetAccountByCode(ctx, scope.CompanyID, account.Code); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, account.Code)
		} else if !errors.Is(err, ErrAccountNotFound) {
			return nil, fmt.Errorf("failed to check analytic code: %w", err)
		}
	}

	account.ID = uuid.New()
	account.CompanyID = scope.CompanyID
	account.Active = true
	account.CreatedAt = s.now()
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create analytic account: %w", err)
	}
	return account, nil
}

// GetAccount retrieves an analytic account
func (s *Service) GetAccount(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Account, error) {
	return s.repo.GetAccount(ctx, scope.CompanyID, id)
}

// ListAccounts returns the analytic accounts of a company
func (s *Service) ListAccounts(ctx context.Context, scope ledger.Scope) ([]*Account, error) {
	return s.repo.ListAccounts(ctx, scope.CompanyID)
}

// Archive deactivates an account; existing lines keep counting in its balance
func (s *Service) Archive(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Account, error) {
	account, err := s.repo.GetAccount(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, err
	}
	account.Active = false
	if err := s.repo.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to archive analytic account: %w", err)
	}
	return account, nil
}

// AddLine books an amount on an active analytic account
func (s *Service) AddLine(ctx context.Context, scope ledger.Scope, line *Line) (*Line, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	line.Amount = money.Round(line.Amount)
	if err := line.Validate(); err != nil {
		return nil, err
	}
	account, err := s.repo.GetAccount(ctx, scope.CompanyID, line.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, ErrAccountArchived
	}

	line.ID = uuid.New()
	line.CompanyID = scope.CompanyID
	line.CreatedAt = s.now()
	if line.Date.IsZero() {
		line.Date = line.CreatedAt
	}
	line.Date = ledger.Day(line.Date)
	if err := s.repo.CreateLine(ctx, line); err != nil {
		return nil, fmt.Errorf("failed to create analytic line: %w", err)
	}

	s.logger.Debug("analytic line added", "company_id", scope.CompanyID, "account_id", account.ID, "amount", money.Format(line.Amount))
	return line, nil
}

// Balance sums an account between from and to; nil bounds are open
func (s *Service) Balance(ctx context.Context, scope ledger.Scope, accountID uuid.UUID, from, to *time.Time) (*Balance, error) {
	if _, err := s.repo.GetAccount(ctx, scope.CompanyID, accountID); err != nil {
		return nil, err
	}

	balance := &Balance{AccountID: accountID, Debit: money.Zero, Credit: money.Zero, Balance: money.Zero}

	lines, err := s.repo.ListLines(ctx, LineFilter{CompanyID: scope.CompanyID, AccountID: accountID, DateFrom: from, DateTo: to})
	if err != nil {
		return nil, fmt.Errorf("failed to list analytic lines: %w", err)
	}
	for _, l := range lines {
		balance.add(l.Amount)
	}

	posted := ledger.EntryStatePosted
	debit, credit, err := s.ledger.SumLines(ctx, ledger.LineFilter{
		CompanyID:         scope.CompanyID,
		AnalyticAccountID: &accountID,
		EntryState:        &posted,
		DateFrom:          from,
		DateTo:            to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger lines: %w", err)
	}
	balance.Debit = balance.Debit.Add(debit)
	balance.Credit = balance.Credit.Add(credit)
	balance.Balance = balance.Debit.Sub(balance.Credit)

	return balance, nil
}

// SumAmount returns the signed total (debit − credit) of an account in [from, to]
func (s *Service) SumAmount(ctx context.Context, scope ledger.Scope, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	balance, err := s.Balance(ctx, scope, accountID, &from, &to)
	if err != nil {
		return money.Zero, err
	}
	return balance.Balance, nil
}
