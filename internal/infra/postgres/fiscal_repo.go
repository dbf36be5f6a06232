package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kislikjeka/grandlivre/internal/platform/fiscal"
)

// FiscalRepository implements fiscal.Repository using PostgreSQL
type FiscalRepository struct {
	store
}

// NewFiscalRepository creates a new PostgreSQL fiscal repository
func NewFiscalRepository(pool *pgxpool.Pool) *FiscalRepository {
	return &FiscalRepository{store: store{pool: pool}}
}

const yearColumns = `id, company_id, name, code, date_from, date_to, state, created_at`

// CreateYear inserts a fiscal year
func (r *FiscalRepository) CreateYear(ctx context.Context, year *fiscal.FiscalYear) error {
	query := `INSERT INTO fiscal_years (` + yearColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q(ctx).Exec(ctx, query,
		year.ID,
		year.CompanyID,
		year.Name,
		year.Code,
		year.DateFrom,
		year.DateTo,
		string(year.State),
		year.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create fiscal year: %w", err)
	}
	return nil
}

func scanYear(row pgx.Row) (*fiscal.FiscalYear, error) {
	var y fiscal.FiscalYear
	var state string
	if err := row.Scan(&y.ID, &y.CompanyID, &y.Name, &y.Code, &y.DateFrom, &y.DateTo, &state, &y.CreatedAt); err != nil {
		return nil, err
	}
	y.State = fiscal.State(state)
	return &y, nil
}

// GetYear retrieves a fiscal year by ID
func (r *FiscalRepository) GetYear(ctx context.Context, companyID, id uuid.UUID) (*fiscal.FiscalYear, error) {
	query := `SELECT ` + yearColumns + ` FROM fiscal_years WHERE company_id = $1 AND id = $2`
	y, err := scanYear(r.q(ctx).QueryRow(ctx, query, companyID, id))
	if err != nil {
		if isNoRows(err) {
			return nil, fiscal.ErrYearNotFound
		}
		return nil, fmt.Errorf("failed to get fiscal year: %w", err)
	}
	return y, nil
}

// ListYears returns the company's fiscal years in chronological order
func (r *FiscalRepository) ListYears(ctx context.Context, companyID uuid.UUID) ([]*fiscal.FiscalYear, error) {
	query := `SELECT ` + yearColumns + ` FROM fiscal_years WHERE company_id = $1 ORDER BY date_from`
	rows, err := r.q(ctx).Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fiscal years: %w", err)
	}
	defer rows.Close()

	var years []*fiscal.FiscalYear
	for rows.Next() {
		y, err := scanYear(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fiscal year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// UpdateYear persists the year name and state
func (r *FiscalRepository) UpdateYear(ctx context.Context, year *fiscal.FiscalYear) error {
	query := `UPDATE fiscal_years SET name = $3, state = $4 WHERE company_id = $1 AND id = $2`
	tag, err := r.q(ctx).Exec(ctx, query, year.CompanyID, year.ID, year.Name, string(year.State))
	if err != nil {
		return fmt.Errorf("failed to update fiscal year: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fiscal.ErrYearNotFound
	}
	return nil
}

const periodColumns = `id, company_id, fiscal_year_id, name, code, date_from, date_to, state`

// CreatePeriod inserts a period
func (r *FiscalRepository) CreatePeriod(ctx context.Context, period *fiscal.Period) error {
	query := `INSERT INTO fiscal_periods (` + periodColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q(ctx).Exec(ctx, query,
		period.ID,
		period.CompanyID,
		period.FiscalYearID,
		period.Name,
		period.Code,
		period.DateFrom,
		period.DateTo,
		string(period.State),
	)
	if err != nil {
		return fmt.Errorf("failed to create period: %w", err)
	}
	return nil
}

func scanPeriod(row pgx.Row) (*fiscal.Period, error) {
	var p fiscal.Period
	var state string
	if err := row.Scan(&p.ID, &p.CompanyID, &p.FiscalYearID, &p.Name, &p.Code, &p.DateFrom, &p.DateTo, &state); err != nil {
		return nil, err
	}
	p.State = fiscal.State(state)
	return &p, nil
}

func (r *FiscalRepository) getPeriod(ctx context.Context, where string, args ...any) (*fiscal.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM fiscal_periods ` + where
	p, err := scanPeriod(r.q(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, fiscal.ErrPeriodNotFound
		}
		return nil, fmt.Errorf("failed to get period: %w", err)
	}
	return p, nil
}

// GetPeriod retrieves a period by ID
func (r *FiscalRepository) GetPeriod(ctx context.Context, companyID, id uuid.UUID) (*fiscal.Period, error) {
	return r.getPeriod(ctx, `WHERE company_id = $1 AND id = $2`, companyID, id)
}

// FindPeriod returns the period whose range contains date
func (r *FiscalRepository) FindPeriod(ctx context.Context, companyID uuid.UUID, date time.Time) (*fiscal.Period, error) {
	return r.getPeriod(ctx, `WHERE company_id = $1 AND date_from <= $2 AND date_to >= $2 ORDER BY date_from LIMIT 1`, companyID, date)
}

// ListPeriods returns the periods of a year in chronological order
func (r *FiscalRepository) ListPeriods(ctx context.Context, companyID, yearID uuid.UUID) ([]*fiscal.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM fiscal_periods WHERE company_id = $1 AND fiscal_year_id = $2 ORDER BY date_from`
	rows, err := r.q(ctx).Query(ctx, query, companyID, yearID)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	defer rows.Close()

	var periods []*fiscal.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// UpdatePeriod persists the period state
func (r *FiscalRepository) UpdatePeriod(ctx context.Context, period *fiscal.Period) error {
	query := `UPDATE fiscal_periods SET name = $3, state = $4 WHERE company_id = $1 AND id = $2`
	tag, err := r.q(ctx).Exec(ctx, query, period.CompanyID, period.ID, period.Name, string(period.State))
	if err != nil {
		return fmt.Errorf("failed to update period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fiscal.ErrPeriodNotFound
	}
	return nil
}

// CreatePosition inserts a fiscal position with its mappings
func (r *FiscalRepository) CreatePosition(ctx context.Context, position *fiscal.Position) error {
	taxes, err := json.Marshal(nonNil(position.Taxes))
	if err != nil {
		return fmt.Errorf("failed to marshal tax mappings: %w", err)
	}
	accounts, err := json.Marshal(nonNil(position.Accounts))
	if err != nil {
		return fmt.Errorf("failed to marshal account mappings: %w", err)
	}

	query := `
		INSERT INTO fiscal_positions (id, company_id, name, taxes, accounts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.q(ctx).Exec(ctx, query,
		position.ID,
		position.CompanyID,
		position.Name,
		taxes,
		accounts,
		position.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create fiscal position: %w", err)
	}
	return nil
}

// GetPosition retrieves a fiscal position by ID
func (r *FiscalRepository) GetPosition(ctx context.Context, companyID, id uuid.UUID) (*fiscal.Position, error) {
	query := `SELECT id, company_id, name, taxes, accounts, created_at FROM fiscal_positions WHERE company_id = $1 AND id = $2`

	var p fiscal.Position
	var taxes, accounts []byte
	err := r.q(ctx).QueryRow(ctx, query, companyID, id).Scan(&p.ID, &p.CompanyID, &p.Name, &taxes, &accounts, &p.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, fiscal.ErrPositionNotFound
		}
		return nil, fmt.Errorf("failed to get fiscal position: %w", err)
	}
	if err := json.Unmarshal(taxes, &p.Taxes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tax mappings: %w", err)
	}
	if err := json.Unmarshal(accounts, &p.Accounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account mappings: %w", err)
	}
	return &p, nil
}

var _ fiscal.Repository = (*FiscalRepository)(nil)
