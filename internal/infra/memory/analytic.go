package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/platform/analytic"
)

// AnalyticStore is an in-memory implementation of analytic.Repository
type AnalyticStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]analytic.Account
	lines    []analytic.Line
}

// NewAnalyticStore creates an empty store
func NewAnalyticStore() *AnalyticStore {
	return &AnalyticStore{accounts: make(map[uuid.UUID]analytic.Account)}
}

func (s *AnalyticStore) CreateAccount(ctx context.Context, account *analytic.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = *account
	return nil
}

func (s *AnalyticStore) GetAccount(ctx context.Context, companyID, id uuid.UUID) (*analytic.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok || a.CompanyID != companyID {
		return nil, analytic.ErrAccountNotFound
	}
	return &a, nil
}

func (s *AnalyticStore) GetAccountByCode(ctx context.Context, companyID uuid.UUID, code string) (*analytic.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return &a, nil
		}
	}
	return nil, analytic.ErrAccountNotFound
}

func (s *AnalyticStore) ListAccounts(ctx context.Context, companyID uuid.UUID) ([]*analytic.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*analytic.Account
	for _, a := range s.accounts {
		if a.CompanyID == companyID {
			a := a
			result = append(result, &a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *AnalyticStore) UpdateAccount(ctx context.Context, account *analytic.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.accounts[account.ID]; !ok || a.CompanyID != account.CompanyID {
		return analytic.ErrAccountNotFound
	}
	s.accounts[account.ID] = *account
	return nil
}

func (s *AnalyticStore) CreateLine(ctx context.Context, line *analytic.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, *line)
	return nil
}

func (s *AnalyticStore) ListLines(ctx context.Context, filter analytic.LineFilter) ([]*analytic.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*analytic.Line
	for _, l := range s.lines {
		if l.CompanyID != filter.CompanyID || l.AccountID != filter.AccountID {
			continue
		}
		if filter.DateFrom != nil && l.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && l.Date.After(*filter.DateTo) {
			continue
		}
		l := l
		result = append(result, &l)
	}
	return result, nil
}

var _ analytic.Repository = (*AnalyticStore)(nil)
