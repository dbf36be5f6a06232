package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kislikjeka/grandlivre/internal/platform/analytic"
)

// AnalyticRepository implements analytic.Repository using PostgreSQL
type AnalyticRepository struct {
	store
}

// NewAnalyticRepository creates a new PostgreSQL analytic repository
func NewAnalyticRepository(pool *pgxpool.Pool) *AnalyticRepository {
	return &AnalyticRepository{store: store{pool: pool}}
}

const analyticAccountColumns = `id, company_id, name, code, active, created_at`

// CreateAccount inserts an analytic account; non-empty codes are unique per company
func (r *AnalyticRepository) CreateAccount(ctx context.Context, account *analytic.Account) error {
	query := `INSERT INTO analytic_accounts (` + analyticAccountColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q(ctx).Exec(ctx, query,
		account.ID,
		account.CompanyID,
		account.Name,
		account.Code,
		account.Active,
		account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", analytic.ErrDuplicateCode, account.Code)
		}
		return fmt.Errorf("failed to create analytic account: %w", err)
	}
	return nil
}

func scanAnalyticAccount(row pgx.Row) (*analytic.Account, error) {
	var a analytic.Account
	if err := row.Scan(&a.ID, &a.CompanyID, &a.Name, &a.Code, &a.Active, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AnalyticRepository) getAccount(ctx context.Context, where string, args ...any) (*analytic.Account, error) {
	query := `SELECT ` + analyticAccountColumns + ` FROM analytic_accounts ` + where
	a, err := scanAnalyticAccount(r.q(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, analytic.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get analytic account: %w", err)
	}
	return a, nil
}

// GetAccount retrieves an analytic account by ID
func (r *AnalyticRepository) GetAccount(ctx context.Context, companyID, id uuid.UUID) (*analytic.Account, error) {
	return r.getAccount(ctx, `WHERE company_id = $1 AND id = $2`, companyID, id)
}

// GetAccountByCode retrieves an analytic account by code
func (r *AnalyticRepository) GetAccountByCode(ctx context.Context, companyID uuid.UUID, code string) (*analytic.Account, error) {
	return r.getAccount(ctx, `WHERE company_id = $1 AND code = $2`, companyID, code)
}

// ListAccounts returns the company's analytic accounts ordered by name
func (r *AnalyticRepository) ListAccounts(ctx context.Context, companyID uuid.UUID) ([]*analytic.Account, error) {
	query := `SELECT ` + analyticAccountColumns + ` FROM analytic_accounts WHERE company_id = $1 ORDER BY name`
	rows, err := r.q(ctx).Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analytic accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*analytic.Account
	for rows.Next() {
		a, err := scanAnalyticAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analytic account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateAccount persists the name, code and active flag
func (r *AnalyticRepository) UpdateAccount(ctx context.Context, account *analytic.Account) error {
	query := `UPDATE analytic_accounts SET name = $3, code = $4, active = $5 WHERE company_id = $1 AND id = $2`
	tag, err := r.q(ctx).Exec(ctx, query, account.CompanyID, account.ID, account.Name, account.Code, account.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", analytic.ErrDuplicateCode, account.Code)
		}
		return fmt.Errorf("failed to update analytic account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return analytic.ErrAccountNotFound
	}
	return nil
}

// CreateLine inserts an analytic line
func (r *AnalyticRepository) CreateLine(ctx context.Context, line *analytic.Line) error {
	query := `
		INSERT INTO analytic_lines (id, company_id, account_id, name, date, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q(ctx).Exec(ctx, query,
		line.ID,
		line.CompanyID,
		line.AccountID,
		line.Name,
		line.Date,
		line.Amount.String(),
		line.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create analytic line: %w", err)
	}
	return nil
}

// ListLines returns the lines of one analytic account, oldest first
func (r *AnalyticRepository) ListLines(ctx context.Context, filter analytic.LineFilter) ([]*analytic.Line, error) {
	query := `
		SELECT id, company_id, account_id, name, date, amount::text, created_at
		FROM analytic_lines
		WHERE company_id = $1 AND account_id = $2
		  AND ($3::date IS NULL OR date >= $3)
		  AND ($4::date IS NULL OR date <= $4)
		ORDER BY date, created_at
	`
	rows, err := r.q(ctx).Query(ctx, query, filter.CompanyID, filter.AccountID, filter.DateFrom, filter.DateTo)
	if err != nil {
		return nil, fmt.Errorf("failed to list analytic lines: %w", err)
	}
	defer rows.Close()

	var lines []*analytic.Line
	for rows.Next() {
		var l analytic.Line
		var amount string
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.AccountID, &l.Name, &l.Date, &amount, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analytic line: %w", err)
		}
		if l.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

var _ analytic.Repository = (*AnalyticRepository)(nil)
