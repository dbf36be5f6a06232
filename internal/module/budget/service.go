package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

// Service manages budgets and computes their realised amounts
type Service struct {
	repo     Repository
	ledger   LedgerLines
	analytic AnalyticAmounts
	now      func() time.Time
	logger   *logger.Logger
}

// NewService creates a new budget service
func NewService(repo Repository, ledgerLines LedgerLines, analytic AnalyticAmounts, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledgerLines,
		analytic: analytic,
		now:      time.Now,
		logger:   log.WithField("service", "budget"),
	}
}

// Create stores a draft budget with its lines
func (s *Service) Create(ctx context.Context, scope ledger.Scope, budget *Budget) (*Budget, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	budget.DateFrom = ledger.Day(budget.DateFrom)
	budget.DateTo = ledger.Day(budget.DateTo)
	if err := budget.Validate(); err != nil {
		return nil, err
	}
	for _, l := range budget.Lines {
		if err := l.Validate(); err != nil {
			return nil, err
		}
	}

	budget.ID = uuid.New()
	budget.CompanyID = scope.CompanyID
	budget.State = StateDraft
	if budget.UserID == nil && scope.UserID != uuid.Nil {
		userID := scope.UserID
		budget.UserID = &userID
	}
	budget.CreatedAt = s.now()
	budget.UpdatedAt = budget.CreatedAt

	if err := s.repo.CreateBudget(ctx, budget); err != nil {
		return nil, fmt.Errorf("failed to create budget: %w", err)
	}
	for i, l := range budget.Lines {
		l.ID = uuid.New()
		l.BudgetID = budget.ID
		if l.Sequence == 0 {
			l.Sequence = (i + 1) * 10
		}
		l.PlannedAmount = money.Round(l.PlannedAmount)
		if err := s.repo.CreateLine(ctx, l); err != nil {
			return nil, fmt.Errorf("failed to create budget line: %w", err)
		}
	}

	s.logger.Info("budget created", "company_id", scope.CompanyID, "budget_id", budget.ID, "lines", len(budget.Lines))
	return budget, nil
}

// Get retrieves a budget with its lines
func (s *Service) Get(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Budget, error) {
	return s.repo.GetBudget(ctx, scope.CompanyID, id)
}

// List returns the budgets of a company, latest first
func (s *Service) List(ctx context.Context, scope ledger.Scope) ([]*Budget, error) {
	return s.repo.ListBudgets(ctx, scope.CompanyID)
}

// AddLine appends a line to a draft budget
func (s *Service) AddLine(ctx context.Context, scope ledger.Scope, budgetID uuid.UUID, line *Line) (*Line, error) {
	if err := line.Validate(); err != nil {
		return nil, err
	}
	budget, err := s.repo.GetBudget(ctx, scope.CompanyID, budgetID)
	if err != nil {
		return nil, err
	}
	if budget.State != StateDraft {
		return nil, ErrNotDraft
	}

	line.ID = uuid.New()
	line.BudgetID = budget.ID
	line.PlannedAmount = money.Round(line.PlannedAmount)
	if line.Sequence == 0 {
		line.Sequence = (len(budget.Lines) + 1) * 10
	}
	if err := s.repo.CreateLine(ctx, line); err != nil {
		return nil, fmt.Errorf("failed to create budget line: %w", err)
	}
	return line, nil
}

// RemoveLine deletes a line of a draft budget
func (s *Service) RemoveLine(ctx context.Context, scope ledger.Scope, budgetID, lineID uuid.UUID) error {
	budget, err := s.repo.GetBudget(ctx, scope.CompanyID, budgetID)
	if err != nil {
		return err
	}
	if budget.State != StateDraft {
		return ErrNotDraft
	}
	return s.repo.DeleteLine(ctx, budget.ID, lineID)
}

// Confirm moves a draft budget to confirm
func (s *Service) Confirm(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Budget, error) {
	return s.transition(ctx, scope, id, StateConfirm)
}

// Validate moves a confirmed budget to validate
func (s *Service) Validate(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Budget, error) {
	return s.transition(ctx, scope, id, StateValidate)
}

// Done closes a validated budget
func (s *Service) Done(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Budget, error) {
	return s.transition(ctx, scope, id, StateDone)
}

// Cancel cancels a budget that is not done
func (s *Service) Cancel(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Budget, error) {
	return s.transition(ctx, scope, id, StateCancel)
}

// ResetToDraft moves a confirmed or cancelled budget back to draft
func (s *Service) ResetToDraft(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Budget, error) {
	return s.transition(ctx, scope, id, StateDraft)
}

func (s *Service) transition(ctx context.Context, scope ledger.Scope, id uuid.UUID, next State) (*Budget, error) {
	budget, err := s.repo.GetBudget(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, err
	}
	if !budget.State.CanMoveTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, budget.State, next)
	}

	previous := budget.State
	budget.State = next
	budget.UpdatedAt = s.now()
	if err := s.repo.UpdateBudget(ctx, budget); err != nil {
		return nil, fmt.Errorf("failed to update budget: %w", err)
	}

	s.logger.Info("budget state changed", "budget_id", budget.ID, "from", previous, "to", next)
	return budget, nil
}

// CreatePost stores a budgetary position
func (s *Service) CreatePost(ctx context.Context, scope ledger.Scope, post *Post) (*Post, error) {
	if err := post.Validate(); err != nil {
		return nil, err
	}
	post.ID = uuid.New()
	post.CompanyID = scope.CompanyID
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create budgetary position: %w", err)
	}
	return post, nil
}

// Report computes the practical amount and variance of every line
func (s *Service) Report(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Report, error) {
	budget, err := s.repo.GetBudget(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Budget:         budget,
		Lines:          make([]LineReport, 0, len(budget.Lines)),
		TotalPlanned:   money.Zero,
		TotalPractical: money.Zero,
	}
	for _, l := range budget.Lines {
		practical, err := s.PracticalAmount(ctx, scope, budget, l)
		if err != nil {
			return nil, err
		}
		variance, percent := Variance(l.PlannedAmount, practical)
		report.Lines = append(report.Lines, LineReport{
			Line:            l,
			PracticalAmount: practical,
			Variance:        variance,
			VariancePercent: percent,
		})
		report.TotalPlanned = report.TotalPlanned.Add(l.PlannedAmount)
		report.TotalPractical = report.TotalPractical.Add(practical)
	}
	report.TotalVariance = report.TotalPlanned.Sub(report.TotalPractical)

	return report, nil
}

// PracticalAmount returns the realised amount of a line over the budget range:
// |Σ analytic amounts| for analytic lines, otherwise |Σ balance| of the
// posted ledger lines on the account or on the position's accounts
func (s *Service) PracticalAmount(ctx context.Context, scope ledger.Scope, budget *Budget, line *Line) (decimal.Decimal, error) {
	if line.AnalyticAccountID != nil {
		amount, err := s.analytic.SumAmount(ctx, scope, *line.AnalyticAccountID, budget.DateFrom, budget.DateTo)
		if err != nil {
			return money.Zero, fmt.Errorf("failed to sum analytic amounts: %w", err)
		}
		return amount.Abs(), nil
	}

	var accounts []uuid.UUID
	switch {
	case line.AccountID != nil:
		accounts = []uuid.UUID{*line.AccountID}
	case line.PostID != nil:
		post, err := s.repo.GetPost(ctx, scope.CompanyID, *line.PostID)
		if err != nil {
			return money.Zero, err
		}
		accounts = post.AccountIDs
	}

	posted := ledger.EntryStatePosted
	total := money.Zero
	for _, accountID := range accounts {
		accountID := accountID
		debit, credit, err := s.ledger.SumLines(ctx, ledger.LineFilter{
			CompanyID:  scope.CompanyID,
			AccountID:  &accountID,
			EntryState: &posted,
			DateFrom:   &budget.DateFrom,
			DateTo:     &budget.DateTo,
		})
		if err != nil {
			return money.Zero, fmt.Errorf("failed to sum ledger lines: %w", err)
		}
		total = total.Add(debit.Sub(credit))
	}
	return total.Abs(), nil
}
