package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/platform/fiscal"
)

// FiscalStore is an in-memory implementation of fiscal.Repository
type FiscalStore struct {
	mu        sync.RWMutex
	years     map[uuid.UUID]fiscal.FiscalYear
	periods   map[uuid.UUID]fiscal.Period
	positions map[uuid.UUID]fiscal.Position
}

// NewFiscalStore creates an empty store
func NewFiscalStore() *FiscalStore {
	return &FiscalStore{
		years:     make(map[uuid.UUID]fiscal.FiscalYear),
		periods:   make(map[uuid.UUID]fiscal.Period),
		positions: make(map[uuid.UUID]fiscal.Position),
	}
}

func (s *FiscalStore) CreateYear(ctx context.Context, year *fiscal.FiscalYear) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.years[year.ID] = *year
	return nil
}

func (s *FiscalStore) GetYear(ctx context.Context, companyID, id uuid.UUID) (*fiscal.FiscalYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, ok := s.years[id]
	if !ok || y.CompanyID != companyID {
		return nil, fiscal.ErrYearNotFound
	}
	return &y, nil
}

func (s *FiscalStore) ListYears(ctx context.Context, companyID uuid.UUID) ([]*fiscal.FiscalYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*fiscal.FiscalYear
	for _, y := range s.years {
		if y.CompanyID == companyID {
			y := y
			result = append(result, &y)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DateFrom.Before(result[j].DateFrom) })
	return result, nil
}

func (s *FiscalStore) UpdateYear(ctx context.Context, year *fiscal.FiscalYear) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if y, ok := s.years[year.ID]; !ok || y.CompanyID != year.CompanyID {
		return fiscal.ErrYearNotFound
	}
	s.years[year.ID] = *year
	return nil
}

func (s *FiscalStore) CreatePeriod(ctx context.Context, period *fiscal.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[period.ID] = *period
	return nil
}

func (s *FiscalStore) GetPeriod(ctx context.Context, companyID, id uuid.UUID) (*fiscal.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.periods[id]
	if !ok || p.CompanyID != companyID {
		return nil, fiscal.ErrPeriodNotFound
	}
	return &p, nil
}

func (s *FiscalStore) ListPeriods(ctx context.Context, companyID, yearID uuid.UUID) ([]*fiscal.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*fiscal.Period
	for _, p := range s.periods {
		if p.CompanyID == companyID && p.FiscalYearID == yearID {
			p := p
			result = append(result, &p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DateFrom.Before(result[j].DateFrom) })
	return result, nil
}

func (s *FiscalStore) UpdatePeriod(ctx context.Context, period *fiscal.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.periods[period.ID]; !ok || p.CompanyID != period.CompanyID {
		return fiscal.ErrPeriodNotFound
	}
	s.periods[period.ID] = *period
	return nil
}

func (s *FiscalStore) FindPeriod(ctx context.Context, companyID uuid.UUID, date time.Time) (*fiscal.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.periods {
		if p.CompanyID == companyID && p.Contains(date) {
			return &p, nil
		}
	}
	return nil, fiscal.ErrPeriodNotFound
}

func (s *FiscalStore) CreatePosition(ctx context.Context, position *fiscal.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[position.ID] = *position
	return nil
}

func (s *FiscalStore) GetPosition(ctx context.Context, companyID, id uuid.UUID) (*fiscal.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok || p.CompanyID != companyID {
		return nil, fiscal.ErrPositionNotFound
	}
	return &p, nil
}

var _ fiscal.Repository = (*FiscalStore)(nil)
