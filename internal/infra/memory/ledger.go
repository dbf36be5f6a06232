package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/ledger"
)

type txKey struct{}

// memTx holds the state to restore on rollback
type memTx struct {
	store    *LedgerStore
	snapshot state
	done     bool
}

type storedLine struct {
	line ledger.Line
	seq  int64
}

type state struct {
	entries   map[uuid.UUID]ledger.Entry
	lines     map[uuid.UUID]storedLine
	partials  map[uuid.UUID]ledger.PartialSettlement
	fulls     map[uuid.UUID]ledger.FullSettlement
	sequences map[string]int64
}

func (s state) clone() state {
	c := state{
		entries:   make(map[uuid.UUID]ledger.Entry, len(s.entries)),
		lines:     make(map[uuid.UUID]storedLine, len(s.lines)),
		partials:  make(map[uuid.UUID]ledger.PartialSettlement, len(s.partials)),
		fulls:     make(map[uuid.UUID]ledger.FullSettlement, len(s.fulls)),
		sequences: make(map[string]int64, len(s.sequences)),
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = v
	}
	for k, v := range s.partials {
		c.partials[k] = v
	}
	for k, v := range s.fulls {
		c.fulls[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

// LedgerStore is an in-memory implementation of ledger.Repository.
// A transaction holds the store mutex from BeginTx until CommitTx or
// RollbackTx, so writers are serialised the way row locks would.
type LedgerStore struct {
	mu      sync.Mutex
	data    state
	lineSeq int64
}

// NewLedgerStore creates an empty store
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		data: state{
			entries:   make(map[uuid.UUID]ledger.Entry),
			lines:     make(map[uuid.UUID]storedLine),
			partials:  make(map[uuid.UUID]ledger.PartialSettlement),
			fulls:     make(map[uuid.UUID]ledger.FullSettlement),
			sequences: make(map[string]int64),
		},
	}
}

// lock takes the mutex unless ctx already holds it through a transaction
func (s *LedgerStore) lock(ctx context.Context) func() {
	if s.InTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// BeginTx starts a transaction
func (s *LedgerStore) BeginTx(ctx context.Context) (context.Context, error) {
	if s.InTx(ctx) {
		return nil, errors.New("transaction already in progress")
	}
	s.mu.Lock()
	tx := &memTx{store: s, snapshot: s.data.clone()}
	return context.WithValue(ctx, txKey{}, tx), nil
}

// CommitTx keeps the changes made in the transaction
func (s *LedgerStore) CommitTx(ctx context.Context) error {
	tx, ok := ctx.Value(txKey{}).(*memTx)
	if !ok || tx.store != s {
		return errors.New("no transaction in context")
	}
	if tx.done {
		return errors.New("transaction already finished")
	}
	tx.done = true
	s.mu.Unlock()
	return nil
}

// RollbackTx restores the state captured at BeginTx
func (s *LedgerStore) RollbackTx(ctx context.Context) error {
	tx, ok := ctx.Value(txKey{}).(*memTx)
	if !ok || tx.store != s {
		return errors.New("no transaction in context")
	}
	if tx.done {
		return nil
	}
	tx.done = true
	s.data = tx.snapshot
	s.mu.Unlock()
	return nil
}

// InTx reports whether ctx carries an open transaction of this store
func (s *LedgerStore) InTx(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey{}).(*memTx)
	return ok && tx.store == s && !tx.done
}

// CreateEntry stores the entry header; lines are stored with CreateLine
func (s *LedgerStore) CreateEntry(ctx context.Context, entry *ledger.Entry) error {
	defer s.lock(ctx)()

	if _, exists := s.data.entries[entry.ID]; exists {
		return errors.New("entry already exists")
	}
	header := *entry
	header.Lines = nil
	s.data.entries[entry.ID] = header
	return nil
}

// GetEntry returns the entry with its lines in insertion order
func (s *LedgerStore) GetEntry(ctx context.Context, companyID, id uuid.UUID) (*ledger.Entry, error) {
	defer s.lock(ctx)()
	return s.entryLocked(companyID, id)
}

// GetEntryForUpdate is GetEntry; the transaction already excludes other writers
func (s *LedgerStore) GetEntryForUpdate(ctx context.Context, companyID, id uuid.UUID) (*ledger.Entry, error) {
	return s.GetEntry(ctx, companyID, id)
}

func (s *LedgerStore) entryLocked(companyID, id uuid.UUID) (*ledger.Entry, error) {
	header, ok := s.data.entries[id]
	if !ok || header.CompanyID != companyID {
		return nil, ledger.ErrEntryNotFound
	}

	entry := header
	var stored []storedLine
	for _, sl := range s.data.lines {
		if sl.line.EntryID == id {
			stored = append(stored, sl)
		}
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].seq < stored[j].seq })
	for _, sl := range stored {
		l := sl.line
		l.EntryState = entry.State
		l.Date = entry.Date
		entry.Lines = append(entry.Lines, &l)
	}
	return &entry, nil
}

// UpdateEntry replaces the entry header
func (s *LedgerStore) UpdateEntry(ctx context.Context, entry *ledger.Entry) error {
	defer s.lock(ctx)()

	current, ok := s.data.entries[entry.ID]
	if !ok || current.CompanyID != entry.CompanyID {
		return ledger.ErrEntryNotFound
	}
	header := *entry
	header.Lines = nil
	s.data.entries[entry.ID] = header
	return nil
}

// DeleteEntry removes the entry and, by cascade, its lines
func (s *LedgerStore) DeleteEntry(ctx context.Context, companyID, id uuid.UUID) error {
	defer s.lock(ctx)()

	header, ok := s.data.entries[id]
	if !ok || header.CompanyID != companyID {
		return ledger.ErrEntryNotFound
	}
	for lineID, sl := range s.data.lines {
		if sl.line.EntryID == id {
			delete(s.data.lines, lineID)
		}
	}
	delete(s.data.entries, id)
	return nil
}

// ListEntries returns matching entries, newest date first
func (s *LedgerStore) ListEntries(ctx context.Context, filter ledger.EntryFilter) ([]*ledger.Entry, error) {
	defer s.lock(ctx)()

	var result []*ledger.Entry
	for id, header := range s.data.entries {
		if !matchEntry(header, filter) {
			continue
		}
		entry, err := s.entryLocked(filter.CompanyID, id)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// CountEntries counts matching entries
func (s *LedgerStore) CountEntries(ctx context.Context, filter ledger.EntryFilter) (int, error) {
	defer s.lock(ctx)()

	count := 0
	for _, header := range s.data.entries {
		if matchEntry(header, filter) {
			count++
		}
	}
	return count, nil
}

func matchEntry(e ledger.Entry, f ledger.EntryFilter) bool {
	if e.CompanyID != f.CompanyID {
		return false
	}
	if f.State != nil && e.State != *f.State {
		return false
	}
	if f.JournalID != nil && e.JournalID != *f.JournalID {
		return false
	}
	if f.PartnerID != nil && (e.PartnerID == nil || *e.PartnerID != *f.PartnerID) {
		return false
	}
	if f.DateFrom != nil && e.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && e.Date.After(*f.DateTo) {
		return false
	}
	return true
}

// CreateLine stores a line of an existing entry
func (s *LedgerStore) CreateLine(ctx context.Context, line *ledger.Line) error {
	defer s.lock(ctx)()

	entry, ok := s.data.entries[line.EntryID]
	if !ok || entry.CompanyID != line.CompanyID {
		return ledger.ErrEntryNotFound
	}
	s.lineSeq++
	stored := *line
	s.data.lines[line.ID] = storedLine{line: stored, seq: s.lineSeq}
	return nil
}

// UpdateLine replaces the editable fields of a stored line
func (s *LedgerStore) UpdateLine(ctx context.Context, line *ledger.Line) error {
	defer s.lock(ctx)()

	sl, ok := s.data.lines[line.ID]
	if !ok || sl.line.CompanyID != line.CompanyID {
		return ledger.ErrLineNotFound
	}
	sl.line.Name = line.Name
	sl.line.Debit = line.Debit
	sl.line.Credit = line.Credit
	sl.line.DateMaturity = line.DateMaturity
	sl.line.AnalyticAccountID = line.AnalyticAccountID
	s.data.lines[line.ID] = sl
	return nil
}

// DeleteLine removes one line
func (s *LedgerStore) DeleteLine(ctx context.Context, companyID, id uuid.UUID) error {
	defer s.lock(ctx)()

	sl, ok := s.data.lines[id]
	if !ok || sl.line.CompanyID != companyID {
		return ledger.ErrLineNotFound
	}
	delete(s.data.lines, id)
	return nil
}

// GetLines returns the lines found among ids, in the order of ids
func (s *LedgerStore) GetLines(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*ledger.Line, error) {
	defer s.lock(ctx)()

	result := make([]*ledger.Line, 0, len(ids))
	for _, id := range ids {
		sl, ok := s.data.lines[id]
		if !ok || sl.line.CompanyID != companyID {
			continue
		}
		result = append(result, s.withEntry(sl.line))
	}
	return result, nil
}

// GetLinesForUpdate is GetLines; the transaction already excludes other writers
func (s *LedgerStore) GetLinesForUpdate(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*ledger.Line, error) {
	return s.GetLines(ctx, companyID, ids)
}

func (s *LedgerStore) withEntry(l ledger.Line) *ledger.Line {
	if entry, ok := s.data.entries[l.EntryID]; ok {
		l.EntryState = entry.State
		l.Date = entry.Date
	}
	return &l
}

// SetLinesFullSettlement points lines at a full settlement, or clears it with nil
func (s *LedgerStore) SetLinesFullSettlement(ctx context.Context, companyID uuid.UUID, lineIDs []uuid.UUID, fullID *uuid.UUID) error {
	defer s.lock(ctx)()

	for _, id := range lineIDs {
		sl, ok := s.data.lines[id]
		if !ok || sl.line.CompanyID != companyID {
			return ledger.ErrLineNotFound
		}
		sl.line.FullSettlementID = copyID(fullID)
		s.data.lines[id] = sl
	}
	return nil
}

// ListLines returns matching lines ordered by date, then id
func (s *LedgerStore) ListLines(ctx context.Context, filter ledger.LineFilter) ([]*ledger.Line, error) {
	defer s.lock(ctx)()

	var result []*ledger.Line
	for _, sl := range s.data.lines {
		l := s.withEntry(sl.line)
		if matchLine(l, filter) {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

// SumLines totals debit and credit of matching lines
func (s *LedgerStore) SumLines(ctx context.Context, filter ledger.LineFilter) (decimal.Decimal, decimal.Decimal, error) {
	lines, err := s.ListLines(ctx, filter)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit, nil
}

func matchLine(l *ledger.Line, f ledger.LineFilter) bool {
	if l.CompanyID != f.CompanyID {
		return false
	}
	if f.AccountID != nil && l.AccountID != *f.AccountID {
		return false
	}
	if f.AnalyticAccountID != nil && (l.AnalyticAccountID == nil || *l.AnalyticAccountID != *f.AnalyticAccountID) {
		return false
	}
	if f.EntryState != nil && l.EntryState != *f.EntryState {
		return false
	}
	if f.DateFrom != nil && l.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && l.Date.After(*f.DateTo) {
		return false
	}
	return true
}

// CreatePartial stores a partial settlement
func (s *LedgerStore) CreatePartial(ctx context.Context, partial *ledger.PartialSettlement) error {
	defer s.lock(ctx)()

	for _, id := range []uuid.UUID{partial.DebitLineID, partial.CreditLineID} {
		sl, ok := s.data.lines[id]
		if !ok || sl.line.CompanyID != partial.CompanyID {
			return ledger.ErrLineNotFound
		}
	}
	s.data.partials[partial.ID] = *partial
	return nil
}

// GetPartials returns the partial settlements found among ids
func (s *LedgerStore) GetPartials(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*ledger.PartialSettlement, error) {
	defer s.lock(ctx)()

	result := make([]*ledger.PartialSettlement, 0, len(ids))
	for _, id := range ids {
		p, ok := s.data.partials[id]
		if !ok || p.CompanyID != companyID {
			continue
		}
		result = append(result, &p)
	}
	return result, nil
}

// DeletePartial removes a partial settlement; lines are untouched
func (s *LedgerStore) DeletePartial(ctx context.Context, companyID, id uuid.UUID) error {
	defer s.lock(ctx)()

	p, ok := s.data.partials[id]
	if !ok || p.CompanyID != companyID {
		return ledger.ErrPartialNotFound
	}
	delete(s.data.partials, id)
	return nil
}

// PartialsByLines returns partial settlements touching any of the lines
func (s *LedgerStore) PartialsByLines(ctx context.Context, companyID uuid.UUID, lineIDs []uuid.UUID) ([]*ledger.PartialSettlement, error) {
	defer s.lock(ctx)()

	wanted := make(map[uuid.UUID]bool, len(lineIDs))
	for _, id := range lineIDs {
		wanted[id] = true
	}

	var result []*ledger.PartialSettlement
	for _, p := range s.data.partials {
		if p.CompanyID != companyID {
			continue
		}
		if wanted[p.DebitLineID] || wanted[p.CreditLineID] {
			p := p
			result = append(result, &p)
		}
	}
	sortPartials(result)
	return result, nil
}

// PartialsByFull returns the partial settlements of a full settlement
func (s *LedgerStore) PartialsByFull(ctx context.Context, companyID, fullID uuid.UUID) ([]*ledger.PartialSettlement, error) {
	defer s.lock(ctx)()
	return s.partialsByFullLocked(companyID, fullID), nil
}

func (s *LedgerStore) partialsByFullLocked(companyID, fullID uuid.UUID) []*ledger.PartialSettlement {
	var result []*ledger.PartialSettlement
	for _, p := range s.data.partials {
		if p.CompanyID == companyID && p.FullSettlementID != nil && *p.FullSettlementID == fullID {
			p := p
			result = append(result, &p)
		}
	}
	sortPartials(result)
	return result
}

// SetPartialsFullSettlement points partials at a full settlement, or clears it with nil
func (s *LedgerStore) SetPartialsFullSettlement(ctx context.Context, companyID uuid.UUID, partialIDs []uuid.UUID, fullID *uuid.UUID) error {
	defer s.lock(ctx)()

	for _, id := range partialIDs {
		p, ok := s.data.partials[id]
		if !ok || p.CompanyID != companyID {
			return ledger.ErrPartialNotFound
		}
		p.FullSettlementID = copyID(fullID)
		s.data.partials[id] = p
	}
	return nil
}

// CreateFull stores a full settlement header
func (s *LedgerStore) CreateFull(ctx context.Context, full *ledger.FullSettlement) error {
	defer s.lock(ctx)()

	header := *full
	header.PartialIDs = nil
	header.LineIDs = nil
	s.data.fulls[full.ID] = header
	return nil
}

// GetFull returns a full settlement with its current partials and lines
func (s *LedgerStore) GetFull(ctx context.Context, companyID, id uuid.UUID) (*ledger.FullSettlement, error) {
	defer s.lock(ctx)()

	header, ok := s.data.fulls[id]
	if !ok || header.CompanyID != companyID {
		return nil, ledger.ErrFullNotFound
	}

	full := header
	for _, p := range s.partialsByFullLocked(companyID, id) {
		full.PartialIDs = append(full.PartialIDs, p.ID)
	}
	for lineID, sl := range s.data.lines {
		if sl.line.FullSettlementID != nil && *sl.line.FullSettlementID == id {
			full.LineIDs = append(full.LineIDs, lineID)
		}
	}
	sort.Slice(full.LineIDs, func(i, j int) bool { return full.LineIDs[i].String() < full.LineIDs[j].String() })
	return &full, nil
}

// DeleteFull removes a full settlement header
func (s *LedgerStore) DeleteFull(ctx context.Context, companyID, id uuid.UUID) error {
	defer s.lock(ctx)()

	header, ok := s.data.fulls[id]
	if !ok || header.CompanyID != companyID {
		return ledger.ErrFullNotFound
	}
	delete(s.data.fulls, id)
	return nil
}

// NextSequence increments and returns a per-company counter
func (s *LedgerStore) NextSequence(ctx context.Context, companyID uuid.UUID, code string) (int64, error) {
	defer s.lock(ctx)()

	key := companyID.String() + "/" + code
	s.data.sequences[key]++
	return s.data.sequences[key], nil
}

func sortPartials(ps []*ledger.PartialSettlement) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].ID.String() < ps[j].ID.String()
	})
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

// Compile-time check that LedgerStore implements ledger.Repository
var _ ledger.Repository = (*LedgerStore)(nil)
