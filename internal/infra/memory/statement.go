package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/module/statement"
)

// StatementStore is an in-memory implementation of statement.Repository
type StatementStore struct {
	mu         sync.RWMutex
	statements map[uuid.UUID]statement.Statement
	lines      map[uuid.UUID]statement.Line
}

// NewStatementStore creates an empty store
func NewStatementStore() *StatementStore {
	return &StatementStore{
		statements: make(map[uuid.UUID]statement.Statement),
		lines:      make(map[uuid.UUID]statement.Line),
	}
}

func (s *StatementStore) CreateStatement(ctx context.Context, st *statement.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *st
	stored.Lines = nil
	s.statements[st.ID] = stored
	return nil
}

func (s *StatementStore) GetStatement(ctx context.Context, companyID, id uuid.UUID) (*statement.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statements[id]
	if !ok || st.CompanyID != companyID {
		return nil, statement.ErrStatementNotFound
	}
	st.Lines = s.linesLocked(id)
	return &st, nil
}

// GetStatementForUpdate relies on the ledger store's transaction mutex for exclusion
func (s *StatementStore) GetStatementForUpdate(ctx context.Context, companyID, id uuid.UUID) (*statement.Statement, error) {
	return s.GetStatement(ctx, companyID, id)
}

func (s *StatementStore) linesLocked(statementID uuid.UUID) []*statement.Line {
	var result []*statement.Line
	for _, l := range s.lines {
		if l.StatementID == statementID {
			l := l
			l.EntryID = copyID(l.EntryID)
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

func (s *StatementStore) UpdateStatement(ctx context.Context, st *statement.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.statements[st.ID]
	if !ok || existing.CompanyID != st.CompanyID {
		return statement.ErrStatementNotFound
	}
	stored := *st
	stored.Lines = nil
	s.statements[st.ID] = stored
	return nil
}

func (s *StatementStore) ListStatements(ctx context.Context, companyID uuid.UUID, journalID *uuid.UUID) ([]*statement.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*statement.Statement
	for _, st := range s.statements {
		if st.CompanyID != companyID {
			continue
		}
		if journalID != nil && st.JournalID != *journalID {
			continue
		}
		st.Lines = s.linesLocked(st.ID)
		result = append(result, &st)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *StatementStore) CreateLine(ctx context.Context, line *statement.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *line
	stored.EntryID = copyID(line.EntryID)
	s.lines[line.ID] = stored
	return nil
}

func (s *StatementStore) UpdateLine(ctx context.Context, line *statement.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.lines[line.ID]
	if !ok || existing.StatementID != line.StatementID {
		return statement.ErrLineNotFound
	}
	stored := *line
	stored.EntryID = copyID(line.EntryID)
	s.lines[line.ID] = stored
	return nil
}

func (s *StatementStore) DeleteLine(ctx context.Context, statementID, lineID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.lines[lineID]
	if !ok || existing.StatementID != statementID {
		return statement.ErrLineNotFound
	}
	delete(s.lines, lineID)
	return nil
}

var _ statement.Repository = (*StatementStore)(nil)
