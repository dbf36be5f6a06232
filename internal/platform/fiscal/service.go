package fiscal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// Service manages fiscal years, periods and fiscal positions. It is the
// ledger's PeriodGuard.
type Service struct {
	repo    Repository
	entries EntryCounter
	now     func() time.Time
	logger  *logger.Logger
}

// NewService creates a new fiscal service
func NewService(repo Repository, entries EntryCounter, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		entries: entries,
		now:     time.Now,
		logger:  log.WithField("service", "fiscal"),
	}
}

// CreateYear stores a new fiscal year; it must not overlap another year of the company
func (s *Service) CreateYear(ctx context.Context, scope ledger.Scope, year *FiscalYear) (*FiscalYear, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	year.CompanyID = scope.CompanyID
	year.DateFrom = day(year.DateFrom)
	year.DateTo = day(year.DateTo)
	if err := year.Validate(); err != nil {
		return nil, err
	}

	years, err := s.repo.ListYears(ctx, scope.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fiscal years: %w", err)
	}
	for _, other := range years {
		if year.Overlaps(other) {
			return nil, fmt.Errorf("%w: %s", ErrYearOverlap, other.Code)
		}
	}

	year.ID = uuid.New()
	year.State = StateDraft
	year.CreatedAt = s.now()
	if err := s.repo.CreateYear(ctx, year); err != nil {
		return nil, fmt.Errorf("failed to create fiscal year: %w", err)
	}

	s.logger.Info("fiscal year created", "company_id", scope.CompanyID, "code", year.Code)
	return year, nil
}

// GetYear retrieves a fiscal year
func (s *Service) GetYear(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*FiscalYear, error) {
	return s.repo.GetYear(ctx, scope.CompanyID, id)
}

// ListPeriods returns the periods of a fiscal year ordered by date
func (s *Service) ListPeriods(ctx context.Context, scope ledger.Scope, yearID uuid.UUID) ([]*Period, error) {
	return s.repo.ListPeriods(ctx, scope.CompanyID, yearID)
}

// CreatePeriods splits a fiscal year into monthly periods
func (s *Service) CreatePeriods(ctx context.Context, scope ledger.Scope, yearID uuid.UUID) ([]*Period, error) {
	year, err := s.repo.GetYear(ctx, scope.CompanyID, yearID)
	if err != nil {
		return nil, err
	}
	if year.State == StateDone {
		return nil, ErrYearClosed
	}

	existing, err := s.repo.ListPeriods(ctx, scope.CompanyID, yearID)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrPeriodsExist
	}

	periods := MonthlyPeriods(year)
	for _, p := range periods {
		p.ID = uuid.New()
		if err := s.repo.CreatePeriod(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to create period %s: %w", p.Code, err)
		}
	}

	s.logger.Info("periods created", "company_id", scope.CompanyID, "year", year.Code, "count", len(periods))
	return periods, nil
}

// FindPeriod returns the period containing date
func (s *Service) FindPeriod(ctx context.Context, scope ledger.Scope, date time.Time) (*Period, error) {
	return s.repo.FindPeriod(ctx, scope.CompanyID, day(date))
}

// ClosePeriod closes a period once no draft entry is dated inside it
func (s *Service) ClosePeriod(ctx context.Context, scope ledger.Scope, periodID uuid.UUID) (*Period, error) {
	period, err := s.repo.GetPeriod(ctx, scope.CompanyID, periodID)
	if err != nil {
		return nil, err
	}
	if period.State == StateDone {
		return period, nil
	}

	draft := ledger.EntryStateDraft
	drafts, err := s.entries.CountEntries(ctx, ledger.EntryFilter{
		CompanyID: scope.CompanyID,
		State:     &draft,
		DateFrom:  &period.DateFrom,
		DateTo:    &period.DateTo,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count draft entries: %w", err)
	}
	if drafts > 0 {
		return nil, fmt.Errorf("%w: %d in %s", ErrPeriodHasDrafts, drafts, period.Code)
	}

	period.State = StateDone
	if err := s.repo.UpdatePeriod(ctx, period); err != nil {
		return nil, fmt.Errorf("failed to close period: %w", err)
	}

	s.logger.Info("period closed", "company_id", scope.CompanyID, "period", period.Code)
	return period, nil
}

// ReopenPeriod reopens a closed period of an open fiscal year
func (s *Service) ReopenPeriod(ctx context.Context, scope ledger.Scope, periodID uuid.UUID) (*Period, error) {
	period, err := s.repo.GetPeriod(ctx, scope.CompanyID, periodID)
	if err != nil {
		return nil, err
	}
	if period.State != StateDone {
		return nil, ErrPeriodAlreadyOpen
	}

	year, err := s.repo.GetYear(ctx, scope.CompanyID, period.FiscalYearID)
	if err != nil {
		return nil, err
	}
	if year.State == StateDone {
		return nil, ErrYearClosed
	}

	period.State = StateDraft
	if err := s.repo.UpdatePeriod(ctx, period); err != nil {
		return nil, fmt.Errorf("failed to reopen period: %w", err)
	}
	s.logger.Info("period reopened", "company_id", scope.CompanyID, "period", period.Code)
	return period, nil
}

// CloseYear closes a fiscal year whose periods are all closed
func (s *Service) CloseYear(ctx context.Context, scope ledger.Scope, yearID uuid.UUID) (*FiscalYear, error) {
	year, err := s.repo.GetYear(ctx, scope.CompanyID, yearID)
	if err != nil {
		return nil, err
	}
	if year.State == StateDone {
		return year, nil
	}

	periods, err := s.repo.ListPeriods(ctx, scope.CompanyID, yearID)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	for _, p := range periods {
		if p.IsOpen() {
			return nil, fmt.Errorf("%w: %s", ErrYearHasOpen, p.Code)
		}
	}

	year.State = StateDone
	if err := s.repo.UpdateYear(ctx, year); err != nil {
		return nil, fmt.Errorf("failed to close fiscal year: %w", err)
	}
	s.logger.Info("fiscal year closed", "company_id", scope.CompanyID, "code", year.Code)
	return year, nil
}

// ReopenYear reopens a closed fiscal year; its periods stay closed
func (s *Service) ReopenYear(ctx context.Context, scope ledger.Scope, yearID uuid.UUID) (*FiscalYear, error) {
	year, err := s.repo.GetYear(ctx, scope.CompanyID, yearID)
	if err != nil {
		return nil, err
	}
	if year.State != StateDone {
		return nil, ErrYearAlreadyOpen
	}

	year.State = StateDraft
	if err := s.repo.UpdateYear(ctx, year); err != nil {
		return nil, fmt.Errorf("failed to reopen fiscal year: %w", err)
	}
	return year, nil
}

// EnsureOpen implements ledger.PeriodGuard. Dates outside any configured
// period are accepted; dates in a closed period or closed year are refused.
func (s *Service) EnsureOpen(ctx context.Context, scope ledger.Scope, date time.Time) error {
	period, err := s.repo.FindPeriod(ctx, scope.CompanyID, day(date))
	if errors.Is(err, ErrPeriodNotFound) {
		return s.ensureYearOpen(ctx, scope, date)
	}
	if err != nil {
		return fmt.Errorf("failed to find period: %w", err)
	}
	if !period.IsOpen() {
		return fmt.Errorf("%w: %s", ErrPeriodClosed, period.Code)
	}
	return nil
}

func (s *Service) ensureYearOpen(ctx context.Context, scope ledger.Scope, date time.Time) error {
	years, err := s.repo.ListYears(ctx, scope.CompanyID)
	if err != nil {
		return fmt.Errorf("failed to list fiscal years: %w", err)
	}
	for _, y := range years {
		if y.Contains(date) && y.State == StateDone {
			return fmt.Errorf("%w: %s", ErrYearClosed, y.Code)
		}
	}
	return nil
}

// CreatePosition stores a fiscal position
func (s *Service) CreatePosition(ctx context.Context, scope ledger.Scope, position *Position) (*Position, error) {
	if position.Name == "" {
		return nil, ErrMissingPositionName
	}
	position.ID = uuid.New()
	position.CompanyID = scope.CompanyID
	position.CreatedAt = s.now()
	if err := s.repo.CreatePosition(ctx, position); err != nil {
		return nil, fmt.Errorf("failed to create fiscal position: %w", err)
	}
	return position, nil
}

// MapTaxes applies a fiscal position to a set of taxes
func (s *Service) MapTaxes(ctx context.Context, scope ledger.Scope, positionID uuid.UUID, taxIDs []uuid.UUID) ([]uuid.UUID, error) {
	position, err := s.repo.GetPosition(ctx, scope.CompanyID, positionID)
	if err != nil {
		return nil, err
	}
	return position.MapTaxes(taxIDs), nil
}

// MapAccount applies a fiscal position to an account
func (s *Service) MapAccount(ctx context.Context, scope ledger.Scope, positionID, accountID uuid.UUID) (uuid.UUID, error) {
	position, err := s.repo.GetPosition(ctx, scope.CompanyID, positionID)
	if err != nil {
		return uuid.Nil, err
	}
	return position.MapAccount(accountID), nil
}

var _ ledger.PeriodGuard = (*Service)(nil)
