package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/platform/chart"
)

// ChartStore is an in-memory implementation of chart.Repository
type ChartStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]chart.Account
	journals map[uuid.UUID]chart.Journal
	taxes    map[uuid.UUID]chart.Tax
}

// NewChartStore creates an empty store
func NewChartStore() *ChartStore {
	return &ChartStore{
		accounts: make(map[uuid.UUID]chart.Account),
		journals: make(map[uuid.UUID]chart.Journal),
		taxes:    make(map[uuid.UUID]chart.Tax),
	}
}

func (s *ChartStore) CreateAccount(ctx context.Context, account *chart.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.CompanyID == account.CompanyID && a.Code == account.Code {
			return chart.ErrDuplicateAccountCode
		}
	}
	s.accounts[account.ID] = *account
	return nil
}

func (s *ChartStore) GetAccount(ctx context.Context, companyID, id uuid.UUID) (*chart.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok || a.CompanyID != companyID {
		return nil, chart.ErrAccountNotFound
	}
	return &a, nil
}

func (s *ChartStore) GetAccountByCode(ctx context.Context, companyID uuid.UUID, code string) (*chart.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return &a, nil
		}
	}
	return nil, chart.ErrAccountNotFound
}

func (s *ChartStore) ListAccounts(ctx context.Context, companyID uuid.UUID) ([]*chart.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*chart.Account
	for _, a := range s.accounts {
		if a.CompanyID == companyID {
			a := a
			result = append(result, &a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (s *ChartStore) UpdateAccount(ctx context.Context, account *chart.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[account.ID]
	if !ok || existing.CompanyID != account.CompanyID {
		return chart.ErrAccountNotFound
	}
	s.accounts[account.ID] = *account
	return nil
}

func (s *ChartStore) CreateJournal(ctx context.Context, journal *chart.Journal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.journals {
		if j.CompanyID == journal.CompanyID && j.Code == journal.Code {
			return chart.ErrDuplicateJournalCode
		}
	}
	s.journals[journal.ID] = *journal
	return nil
}

func (s *ChartStore) GetJournal(ctx context.Context, companyID, id uuid.UUID) (*chart.Journal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.journals[id]
	if !ok || j.CompanyID != companyID {
		return nil, chart.ErrJournalNotFound
	}
	return &j, nil
}

func (s *ChartStore) GetJournalByCode(ctx context.Context, companyID uuid.UUID, code string) (*chart.Journal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, j := range s.journals {
		if j.CompanyID == companyID && j.Code == code {
			return &j, nil
		}
	}
	return nil, chart.ErrJournalNotFound
}

func (s *ChartStore) ListJournals(ctx context.Context, companyID uuid.UUID) ([]*chart.Journal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*chart.Journal
	for _, j := range s.journals {
		if j.CompanyID == companyID {
			j := j
			result = append(result, &j)
		}
	}
	sort.Slice(result, func(i, k int) bool { return result[i].Code < result[k].Code })
	return result, nil
}

func (s *ChartStore) CreateTax(ctx context.Context, tax *chart.Tax) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *tax
	stored.Children = nil
	s.taxes[tax.ID] = stored
	return nil
}

func (s *ChartStore) GetTax(ctx context.Context, companyID, id uuid.UUID) (*chart.Tax, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.taxes[id]
	if !ok || t.CompanyID != companyID {
		return nil, chart.ErrTaxNotFound
	}
	return &t, nil
}

func (s *ChartStore) ListTaxes(ctx context.Context, companyID uuid.UUID) ([]*chart.Tax, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*chart.Tax
	for _, t := range s.taxes {
		if t.CompanyID == companyID {
			t := t
			result = append(result, &t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

var _ chart.Repository = (*ChartStore)(nil)
