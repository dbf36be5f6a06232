package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kislikjeka/grandlivre/internal/module/statement"
)

// StatementRepository implements statement.Repository using PostgreSQL
type StatementRepository struct {
	store
}

// NewStatementRepository creates a new PostgreSQL bank statement repository
func NewStatementRepository(pool *pgxpool.Pool) *StatementRepository {
	return &StatementRepository{store: store{pool: pool}}
}

const statementColumns = `id, company_id, name, date, journal_id, balance_start::text, balance_end_real::text,
	state, created_at, updated_at`

// CreateStatement inserts the statement header; lines are created separately
func (r *StatementRepository) CreateStatement(ctx context.Context, st *statement.Statement) error {
	query := `
		INSERT INTO bank_statements (id, company_id, name, date, journal_id, balance_start, balance_end_real,
			state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q(ctx).Exec(ctx, query,
		st.ID,
		st.CompanyID,
		st.Name,
		st.Date,
		st.JournalID,
		st.BalanceStart.String(),
		st.BalanceEndReal.String(),
		string(st.State),
		st.CreatedAt,
		st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create statement: %w", err)
	}
	return nil
}

func scanStatement(row pgx.Row) (*statement.Statement, error) {
	var st statement.Statement
	var start, endReal, state string
	err := row.Scan(
		&st.ID,
		&st.CompanyID,
		&st.Name,
		&st.Date,
		&st.JournalID,
		&start,
		&endReal,
		&state,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.State = statement.State(state)
	if st.BalanceStart, err = parseAmount(start); err != nil {
		return nil, err
	}
	if st.BalanceEndReal, err = parseAmount(endReal); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetStatement loads a statement with its lines
func (r *StatementRepository) GetStatement(ctx context.Context, companyID, id uuid.UUID) (*statement.Statement, error) {
	return r.getStatement(ctx, companyID, id, "")
}

// GetStatementForUpdate loads a statement with its lines and locks the header row
func (r *StatementRepository) GetStatementForUpdate(ctx context.Context, companyID, id uuid.UUID) (*statement.Statement, error) {
	return r.getStatement(ctx, companyID, id, " FOR UPDATE")
}

func (r *StatementRepository) getStatement(ctx context.Context, companyID, id uuid.UUID, lock string) (*statement.Statement, error) {
	query := `SELECT ` + statementColumns + ` FROM bank_statements WHERE company_id = $1 AND id = $2` + lock
	st, err := scanStatement(r.q(ctx).QueryRow(ctx, query, companyID, id))
	if err != nil {
		if isNoRows(err) {
			return nil, statement.ErrStatementNotFound
		}
		return nil, fmt.Errorf("failed to get statement: %w", err)
	}

	lines, err := r.loadLines(ctx, []uuid.UUID{st.ID})
	if err != nil {
		return nil, err
	}
	st.Lines = lines[st.ID]
	return st, nil
}

func (r *StatementRepository) loadLines(ctx context.Context, statementIDs []uuid.UUID) (map[uuid.UUID][]*statement.Line, error) {
	query := `
		SELECT id, statement_id, sequence, date, name, ref, partner_id, amount::text, entry_id
		FROM bank_statement_lines
		WHERE statement_id = ANY($1)
		ORDER BY sequence, id
	`
	rows, err := r.q(ctx).Query(ctx, query, statementIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load statement lines: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]*statement.Line, len(statementIDs))
	for rows.Next() {
		var l statement.Line
		var amount string
		if err := rows.Scan(&l.ID, &l.StatementID, &l.Sequence, &l.Date, &l.Name, &l.Ref, &l.PartnerID, &amount, &l.EntryID); err != nil {
			return nil, fmt.Errorf("failed to scan statement line: %w", err)
		}
		if l.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		result[l.StatementID] = append(result[l.StatementID], &l)
	}
	return result, rows.Err()
}

// UpdateStatement persists the header fields
func (r *StatementRepository) UpdateStatement(ctx context.Context, st *statement.Statement) error {
	query := `
		UPDATE bank_statements
		SET name = $3, date = $4, balance_start = $5, balance_end_real = $6, state = $7, updated_at = $8
		WHERE company_id = $1 AND id = $2
	`
	tag, err := r.q(ctx).Exec(ctx, query,
		st.CompanyID,
		st.ID,
		st.Name,
		st.Date,
		st.BalanceStart.String(),
		st.BalanceEndReal.String(),
		string(st.State),
		st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update statement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return statement.ErrStatementNotFound
	}
	return nil
}

// ListStatements returns statements by date then name, optionally for one journal
func (r *StatementRepository) ListStatements(ctx context.Context, companyID uuid.UUID, journalID *uuid.UUID) ([]*statement.Statement, error) {
	query := `
		SELECT ` + statementColumns + `
		FROM bank_statements
		WHERE company_id = $1 AND ($2::uuid IS NULL OR journal_id = $2)
		ORDER BY date, name
	`
	rows, err := r.q(ctx).Query(ctx, query, companyID, journalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}

	var statements []*statement.Statement
	var ids []uuid.UUID
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		statements = append(statements, st)
		ids = append(ids, st.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statements: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, st := range statements {
		st.Lines = lines[st.ID]
	}
	return statements, nil
}

// CreateLine inserts a statement line
func (r *StatementRepository) CreateLine(ctx context.Context, line *statement.Line) error {
	query := `
		INSERT INTO bank_statement_lines (id, statement_id, sequence, date, name, ref, partner_id, amount, entry_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q(ctx).Exec(ctx, query,
		line.ID,
		line.StatementID,
		line.Sequence,
		line.Date,
		line.Name,
		line.Ref,
		line.PartnerID,
		line.Amount.String(),
		line.EntryID,
	)
	if err != nil {
		if isForeignKeyViolation(err, "bank_statement_lines_statement_id_fkey") {
			return statement.ErrStatementNotFound
		}
		return fmt.Errorf("failed to create statement line: %w", err)
	}
	return nil
}

// UpdateLine persists the line fields and its entry link
func (r *StatementRepository) UpdateLine(ctx context.Context, line *statement.Line) error {
	query := `
		UPDATE bank_statement_lines
		SET sequence = $3, date = $4, name = $5, ref = $6, partner_id = $7, amount = $8, entry_id = $9
		WHERE statement_id = $1 AND id = $2
	`
	tag, err := r.q(ctx).Exec(ctx, query,
		line.StatementID,
		line.ID,
		line.Sequence,
		line.Date,
		line.Name,
		line.Ref,
		line.PartnerID,
		line.Amount.String(),
		line.EntryID,
	)
	if err != nil {
		return fmt.Errorf("failed to update statement line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return statement.ErrLineNotFound
	}
	return nil
}

// DeleteLine removes a line from a statement
func (r *StatementRepository) DeleteLine(ctx context.Context, statementID, lineID uuid.UUID) error {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM bank_statement_lines WHERE statement_id = $1 AND id = $2`, statementID, lineID)
	if err != nil {
		return fmt.Errorf("failed to delete statement line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return statement.ErrLineNotFound
	}
	return nil
}

var _ statement.Repository = (*StatementRepository)(nil)
