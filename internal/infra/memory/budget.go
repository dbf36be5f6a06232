package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/module/budget"
)

// BudgetStore is an in-memory implementation of budget.Repository
type BudgetStore struct {
	mu      sync.RWMutex
	budgets map[uuid.UUID]budget.Budget
	lines   map[uuid.UUID]budget.Line
	posts   map[uuid.UUID]budget.Post
}

// NewBudgetStore creates an empty store
func NewBudgetStore() *BudgetStore {
	return &BudgetStore{
		budgets: make(map[uuid.UUID]budget.Budget),
		lines:   make(map[uuid.UUID]budget.Line),
		posts:   make(map[uuid.UUID]budget.Post),
	}
}

func (s *BudgetStore) CreateBudget(ctx context.Context, b *budget.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *b
	stored.Lines = nil
	s.budgets[b.ID] = stored
	return nil
}

func (s *BudgetStore) GetBudget(ctx context.Context, companyID, id uuid.UUID) (*budget.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.budgets[id]
	if !ok || b.CompanyID != companyID {
		return nil, budget.ErrBudgetNotFound
	}
	b.Lines = s.linesLocked(id)
	return &b, nil
}

func (s *BudgetStore) linesLocked(budgetID uuid.UUID) []*budget.Line {
	var result []*budget.Line
	for _, l := range s.lines {
		if l.BudgetID == budgetID {
			l := l
			result = append(result, &l)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Sequence != result[j].Sequence {
			return result[i].Sequence < result[j].Sequence
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result
}

func (s *BudgetStore) UpdateBudget(ctx context.Context, b *budget.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.budgets[b.ID]; !ok || existing.CompanyID != b.CompanyID {
		return budget.ErrBudgetNotFound
	}
	stored := *b
	stored.Lines = nil
	s.budgets[b.ID] = stored
	return nil
}

func (s *BudgetStore) ListBudgets(ctx context.Context, companyID uuid.UUID) ([]*budget.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*budget.Budget
	for _, b := range s.budgets {
		if b.CompanyID == companyID {
			b := b
			b.Lines = s.linesLocked(b.ID)
			result = append(result, &b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DateFrom.After(result[j].DateFrom) })
	return result, nil
}

func (s *BudgetStore) CreateLine(ctx context.Context, line *budget.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.budgets[line.BudgetID]; !ok {
		return budget.ErrBudgetNotFound
	}
	s.lines[line.ID] = *line
	return nil
}

func (s *BudgetStore) DeleteLine(ctx context.Context, budgetID, lineID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lines[lineID]
	if !ok || l.BudgetID != budgetID {
		return budget.ErrLineNotFound
	}
	delete(s.lines, lineID)
	return nil
}

func (s *BudgetStore) CreatePost(ctx context.Context, post *budget.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[post.ID] = *post
	return nil
}

func (s *BudgetStore) GetPost(ctx context.Context, companyID, id uuid.UUID) (*budget.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok || p.CompanyID != companyID {
		return nil, budget.ErrPostNotFound
	}
	return &p, nil
}

var _ budget.Repository = (*BudgetStore)(nil)
