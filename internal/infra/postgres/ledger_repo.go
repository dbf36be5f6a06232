package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/ledger"
)

// LedgerRepository implements ledger.Repository using PostgreSQL
type LedgerRepository struct {
	store
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{store: store{pool: pool}}
}

// Entry operations

const entryColumns = `id, company_id, name, ref, date, state, move_type, journal_id, journal_code,
	partner_id, reversed_entry_id, posted_at, created_at, updated_at`

// CreateEntry inserts the entry header; lines are created separately
func (r *LedgerRepository) CreateEntry(ctx context.Context, entry *ledger.Entry) error {
	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.q(ctx).Exec(ctx, query,
		entry.ID,
		entry.CompanyID,
		entry.Name,
		entry.Ref,
		entry.Date,
		string(entry.State),
		string(entry.MoveType),
		entry.JournalID,
		entry.JournalCode,
		entry.PartnerID,
		entry.ReversedEntryID,
		entry.PostedAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

// GetEntry retrieves an entry with its lines
func (r *LedgerRepository) GetEntry(ctx context.Context, companyID, id uuid.UUID) (*ledger.Entry, error) {
	return r.getEntry(ctx, companyID, id, false)
}

// GetEntryForUpdate retrieves an entry and locks its header row until the transaction ends
func (r *LedgerRepository) GetEntryForUpdate(ctx context.Context, companyID, id uuid.UUID) (*ledger.Entry, error) {
	return r.getEntry(ctx, companyID, id, true)
}

func (r *LedgerRepository) getEntry(ctx context.Context, companyID, id uuid.UUID, forUpdate bool) (*ledger.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE company_id = $1 AND id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}

	entry, err := scanEntry(r.q(ctx).QueryRow(ctx, query, companyID, id))
	if err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	lines, err := r.queryLines(ctx, `WHERE l.entry_id = $1 ORDER BY l.position`, id)
	if err != nil {
		return nil, err
	}
	entry.Lines = lines
	return entry, nil
}

func scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var e ledger.Entry
	var state, moveType string
	err := row.Scan(
		&e.ID,
		&e.CompanyID,
		&e.Name,
		&e.Ref,
		&e.Date,
		&state,
		&moveType,
		&e.JournalID,
		&e.JournalCode,
		&e.PartnerID,
		&e.ReversedEntryID,
		&e.PostedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.State = ledger.EntryState(state)
	e.MoveType = ledger.MoveType(moveType)
	return &e, nil
}

// UpdateEntry replaces the entry header
func (r *LedgerRepository) UpdateEntry(ctx context.Context, entry *ledger.Entry) error {
	query := `
		UPDATE entries
		SET name = $3, ref = $4, date = $5, state = $6, partner_id = $7,
			reversed_entry_id = $8, posted_at = $9, updated_at = $10
		WHERE company_id = $1 AND id = $2
	`
	tag, err := r.q(ctx).Exec(ctx, query,
		entry.CompanyID,
		entry.ID,
		entry.Name,
		entry.Ref,
		entry.Date,
		string(entry.State),
		entry.PartnerID,
		entry.ReversedEntryID,
		entry.PostedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

// DeleteEntry removes the entry; lines go with it through ON DELETE CASCADE
func (r *LedgerRepository) DeleteEntry(ctx context.Context, companyID, id uuid.UUID) error {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM entries WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

// ListEntries returns matching entries with their lines, newest date first
func (r *LedgerRepository) ListEntries(ctx context.Context, filter ledger.EntryFilter) ([]*ledger.Entry, error) {
	where, args := entryWhere(filter)
	query := `SELECT ` + entryColumns + ` FROM entries ` + where + ` ORDER BY date DESC, created_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	rows.Close()

	if len(entries) == 0 {
		return entries, nil
	}

	ids := make([]uuid.UUID, len(entries))
	byID := make(map[uuid.UUID]*ledger.Entry, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		byID[e.ID] = e
	}
	lines, err := r.queryLines(ctx, `WHERE l.entry_id = ANY($1) ORDER BY l.position`, ids)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if e, ok := byID[l.EntryID]; ok {
			e.Lines = append(e.Lines, l)
		}
	}
	return entries, nil
}

// CountEntries counts matching entries
func (r *LedgerRepository) CountEntries(ctx context.Context, filter ledger.EntryFilter) (int, error) {
	where, args := entryWhere(filter)
	var count int
	if err := r.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM entries `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func entryWhere(f ledger.EntryFilter) (string, []any) {
	conds := []string{"company_id = $1"}
	args := []any{f.CompanyID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.State != nil {
		add("state = $%d", string(*f.State))
	}
	if f.JournalID != nil {
		add("journal_id = $%d", *f.JournalID)
	}
	if f.PartnerID != nil {
		add("partner_id = $%d", *f.PartnerID)
	}
	if f.DateFrom != nil {
		add("date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("date <= $%d", *f.DateTo)
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// Line operations

const lineSelect = `
	SELECT l.id, l.entry_id, l.company_id, l.account_id, l.account_type, l.name, l.partner_id,
		l.debit::text, l.credit::text, e.date, l.date_maturity, l.tax_line_id,
		l.analytic_account_id, l.full_settlement_id, l.created_at, e.state
	FROM entry_lines l
	JOIN entries e ON e.id = l.entry_id
`

func (r *LedgerRepository) queryLines(ctx context.Context, tail string, args ...any) ([]*ledger.Line, error) {
	rows, err := r.q(ctx).Query(ctx, lineSelect+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	var lines []*ledger.Line
	for rows.Next() {
		var l ledger.Line
		var debit, credit, state string
		err := rows.Scan(
			&l.ID,
			&l.EntryID,
			&l.CompanyID,
			&l.AccountID,
			&l.AccountType,
			&l.Name,
			&l.PartnerID,
			&debit,
			&credit,
			&l.Date,
			&l.DateMaturity,
			&l.TaxLineID,
			&l.AnalyticAccountID,
			&l.FullSettlementID,
			&l.CreatedAt,
			&state,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		if l.Debit, err = parseAmount(debit); err != nil {
			return nil, err
		}
		if l.Credit, err = parseAmount(credit); err != nil {
			return nil, err
		}
		l.EntryState = ledger.EntryState(state)
		lines = append(lines, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lines: %w", err)
	}
	return lines, nil
}

// CreateLine stores a line of an existing entry
func (r *LedgerRepository) CreateLine(ctx context.Context, line *ledger.Line) error {
	query := `
		INSERT INTO entry_lines (id, entry_id, company_id, account_id, account_type, name, partner_id,
			debit, credit, date_maturity, tax_line_id, analytic_account_id, full_settlement_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.q(ctx).Exec(ctx, query,
		line.ID,
		line.EntryID,
		line.CompanyID,
		line.AccountID,
		line.AccountType,
		line.Name,
		line.PartnerID,
		line.Debit.String(),
		line.Credit.String(),
		line.DateMaturity,
		line.TaxLineID,
		line.AnalyticAccountID,
		line.FullSettlementID,
		line.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation && pgErr.ConstraintName == "entry_lines_entry_id_fkey" {
			return ledger.ErrEntryNotFound
		}
		return fmt.Errorf("failed to create line: %w", err)
	}
	return nil
}

// UpdateLine persists the editable fields of a line
func (r *LedgerRepository) UpdateLine(ctx context.Context, line *ledger.Line) error {
	query := `
		UPDATE entry_lines
		SET name = $3, debit = $4, credit = $5, date_maturity = $6, analytic_account_id = $7
		WHERE company_id = $1 AND id = $2
	`
	tag, err := r.q(ctx).Exec(ctx, query,
		line.CompanyID,
		line.ID,
		line.Name,
		line.Debit.String(),
		line.Credit.String(),
		line.DateMaturity,
		line.AnalyticAccountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrLineNotFound
	}
	return nil
}

// DeleteLine removes one line
func (r *LedgerRepository) DeleteLine(ctx context.Context, companyID, id uuid.UUID) error {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM entry_lines WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return fmt.Errorf("failed to delete line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrLineNotFound
	}
	return nil
}

// GetLines returns the lines found among ids
func (r *LedgerRepository) GetLines(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*ledger.Line, error) {
	return r.queryLines(ctx, `WHERE l.company_id = $1 AND l.id = ANY($2) ORDER BY e.date, l.id`, companyID, ids)
}

// GetLinesForUpdate locks the lines in id order so concurrent reconciliations
// of overlapping lines queue instead of deadlocking
func (r *LedgerRepository) GetLinesForUpdate(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*ledger.Line, error) {
	return r.queryLines(ctx, `WHERE l.company_id = $1 AND l.id = ANY($2) ORDER BY l.id FOR UPDATE OF l`, companyID, ids)
}

// SetLinesFullSettlement points lines at a full settlement, or clears it with nil
func (r *LedgerRepository) SetLinesFullSettlement(ctx context.Context, companyID uuid.UUID, lineIDs []uuid.UUID, fullID *uuid.UUID) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE entry_lines SET full_settlement_id = $3 WHERE company_id = $1 AND id = ANY($2)`,
		companyID, lineIDs, fullID,
	)
	if err != nil {
		return fmt.Errorf("failed to update line settlement: %w", err)
	}
	if int(tag.RowsAffected()) != len(uniqueIDs(lineIDs)) {
		return ledger.ErrLineNotFound
	}
	return nil
}

// ListLines returns matching lines ordered by date, then id
func (r *LedgerRepository) ListLines(ctx context.Context, filter ledger.LineFilter) ([]*ledger.Line, error) {
	where, args := lineWhere(filter)
	return r.queryLines(ctx, where+` ORDER BY e.date, l.id`, args...)
}

// SumLines totals debit and credit of matching lines in the database
func (r *LedgerRepository) SumLines(ctx context.Context, filter ledger.LineFilter) (decimal.Decimal, decimal.Decimal, error) {
	where, args := lineWhere(filter)
	query := `
		SELECT COALESCE(SUM(l.debit), 0)::text, COALESCE(SUM(l.credit), 0)::text
		FROM entry_lines l
		JOIN entries e ON e.id = l.entry_id
	` + where

	var debitStr, creditStr string
	if err := r.q(ctx).QueryRow(ctx, query, args...).Scan(&debitStr, &creditStr); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum lines: %w", err)
	}
	debit, err := parseAmount(debitStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	credit, err := parseAmount(creditStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}

func lineWhere(f ledger.LineFilter) (string, []any) {
	conds := []string{"l.company_id = $1"}
	args := []any{f.CompanyID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.AccountID != nil {
		add("l.account_id = $%d", *f.AccountID)
	}
	if f.AnalyticAccountID != nil {
		add("l.analytic_account_id = $%d", *f.AnalyticAccountID)
	}
	if f.EntryState != nil {
		add("e.state = $%d", string(*f.EntryState))
	}
	if f.DateFrom != nil {
		add("e.date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("e.date <= $%d", *f.DateTo)
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// Settlement operations

const partialColumns = `id, company_id, debit_line_id, credit_line_id, amount::text, full_settlement_id, max_date, created_at`

// CreatePartial stores a partial settlement
func (r *LedgerRepository) CreatePartial(ctx context.Context, partial *ledger.PartialSettlement) error {
	query := `
		INSERT INTO partial_settlements (id, company_id, debit_line_id, credit_line_id, amount, full_settlement_id, max_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q(ctx).Exec(ctx, query,
		partial.ID,
		partial.CompanyID,
		partial.DebitLineID,
		partial.CreditLineID,
		partial.Amount.String(),
		partial.FullSettlementID,
		partial.MaxDate,
		partial.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ledger.ErrLineNotFound
		}
		return fmt.Errorf("failed to create partial settlement: %w", err)
	}
	return nil
}

func (r *LedgerRepository) queryPartials(ctx context.Context, where string, args ...any) ([]*ledger.PartialSettlement, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT `+partialColumns+` FROM partial_settlements `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query partial settlements: %w", err)
	}
	defer rows.Close()

	var partials []*ledger.PartialSettlement
	for rows.Next() {
		var p ledger.PartialSettlement
		var amount string
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.DebitLineID, &p.CreditLineID, &amount, &p.FullSettlementID, &p.MaxDate, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan partial settlement: %w", err)
		}
		if p.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		partials = append(partials, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating partial settlements: %w", err)
	}
	return partials, nil
}

// GetPartials returns the partial settlements found among ids
func (r *LedgerRepository) GetPartials(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*ledger.PartialSettlement, error) {
	return r.queryPartials(ctx, `WHERE company_id = $1 AND id = ANY($2)`, companyID, ids)
}

// DeletePartial removes a partial settlement; lines are untouched
func (r *LedgerRepository) DeletePartial(ctx context.Context, companyID, id uuid.UUID) error {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM partial_settlements WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return fmt.Errorf("failed to delete partial settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrPartialNotFound
	}
	return nil
}

// PartialsByLines returns partial settlements touching any of the lines
func (r *LedgerRepository) PartialsByLines(ctx context.Context, companyID uuid.UUID, lineIDs []uuid.UUID) ([]*ledger.PartialSettlement, error) {
	return r.queryPartials(ctx,
		`WHERE company_id = $1 AND (debit_line_id = ANY($2) OR credit_line_id = ANY($2))`,
		companyID, lineIDs,
	)
}

// PartialsByFull returns the partial settlements of a full settlement
func (r *LedgerRepository) PartialsByFull(ctx context.Context, companyID, fullID uuid.UUID) ([]*ledger.PartialSettlement, error) {
	return r.queryPartials(ctx, `WHERE company_id = $1 AND full_settlement_id = $2`, companyID, fullID)
}

// SetPartialsFullSettlement points partials at a full settlement, or clears it with nil
func (r *LedgerRepository) SetPartialsFullSettlement(ctx context.Context, companyID uuid.UUID, partialIDs []uuid.UUID, fullID *uuid.UUID) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE partial_settlements SET full_settlement_id = $3 WHERE company_id = $1 AND id = ANY($2)`,
		companyID, partialIDs, fullID,
	)
	if err != nil {
		return fmt.Errorf("failed to update partial settlement: %w", err)
	}
	if int(tag.RowsAffected()) != len(uniqueIDs(partialIDs)) {
		return ledger.ErrPartialNotFound
	}
	return nil
}

// CreateFull stores a full settlement header
func (r *LedgerRepository) CreateFull(ctx context.Context, full *ledger.FullSettlement) error {
	_, err := r.q(ctx).Exec(ctx,
		`INSERT INTO full_settlements (id, company_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		full.ID, full.CompanyID, full.Name, full.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create full settlement: %w", err)
	}
	return nil
}

// GetFull returns a full settlement with its current partials and lines
func (r *LedgerRepository) GetFull(ctx context.Context, companyID, id uuid.UUID) (*ledger.FullSettlement, error) {
	var full ledger.FullSettlement
	err := r.q(ctx).QueryRow(ctx,
		`SELECT id, company_id, name, created_at FROM full_settlements WHERE company_id = $1 AND id = $2`,
		companyID, id,
	).Scan(&full.ID, &full.CompanyID, &full.Name, &full.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrFullNotFound
		}
		return nil, fmt.Errorf("failed to get full settlement: %w", err)
	}

	partials, err := r.PartialsByFull(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	for _, p := range partials {
		full.PartialIDs = append(full.PartialIDs, p.ID)
	}

	rows, err := r.q(ctx).Query(ctx,
		`SELECT id FROM entry_lines WHERE company_id = $1 AND full_settlement_id = $2 ORDER BY id`,
		companyID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query settled lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lineID uuid.UUID
		if err := rows.Scan(&lineID); err != nil {
			return nil, fmt.Errorf("failed to scan settled line: %w", err)
		}
		full.LineIDs = append(full.LineIDs, lineID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settled lines: %w", err)
	}
	return &full, nil
}

// DeleteFull removes a full settlement header
func (r *LedgerRepository) DeleteFull(ctx context.Context, companyID, id uuid.UUID) error {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM full_settlements WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return fmt.Errorf("failed to delete full settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrFullNotFound
	}
	return nil
}

// NextSequence increments a per-company counter; the row lock taken by
// the upsert serialises concurrent callers until commit
func (r *LedgerRepository) NextSequence(ctx context.Context, companyID uuid.UUID, code string) (int64, error) {
	query := `
		INSERT INTO sequences (company_id, code, value) VALUES ($1, $2, 1)
		ON CONFLICT (company_id, code) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`
	var value int64
	if err := r.q(ctx).QueryRow(ctx, query, companyID, code).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", code, err)
	}
	return value, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	result := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	return result
}

var _ ledger.Repository = (*LedgerRepository)(nil)
