package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kislikjeka/grandlivre/internal/module/budget"
)

// BudgetRepository implements budget.Repository using PostgreSQL
type BudgetRepository struct {
	store
}

// NewBudgetRepository creates a new PostgreSQL budget repository
func NewBudgetRepository(pool *pgxpool.Pool) *BudgetRepository {
	return &BudgetRepository{store: store{pool: pool}}
}

const budgetColumns = `id, company_id, name, state, date_from, date_to, user_id, created_at, updated_at`

// CreateBudget inserts the budget header; lines are created separately
func (r *BudgetRepository) CreateBudget(ctx context.Context, b *budget.Budget) error {
	query := `INSERT INTO budgets (` + budgetColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q(ctx).Exec(ctx, query,
		b.ID,
		b.CompanyID,
		b.Name,
		string(b.State),
		b.DateFrom,
		b.DateTo,
		b.UserID,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create budget: %w", err)
	}
	return nil
}

func scanBudget(row pgx.Row) (*budget.Budget, error) {
	var b budget.Budget
	var state string
	err := row.Scan(&b.ID, &b.CompanyID, &b.Name, &state, &b.DateFrom, &b.DateTo, &b.UserID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.State = budget.State(state)
	return &b, nil
}

// GetBudget loads a budget and its lines
func (r *BudgetRepository) GetBudget(ctx context.Context, companyID, id uuid.UUID) (*budget.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE company_id = $1 AND id = $2`
	b, err := scanBudget(r.q(ctx).QueryRow(ctx, query, companyID, id))
	if err != nil {
		if isNoRows(err) {
			return nil, budget.ErrBudgetNotFound
		}
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	lines, err := r.loadLines(ctx, []uuid.UUID{b.ID})
	if err != nil {
		return nil, err
	}
	b.Lines = lines[b.ID]
	return b, nil
}

// loadLines fetches lines of several budgets in one query, grouped by budget
func (r *BudgetRepository) loadLines(ctx context.Context, budgetIDs []uuid.UUID) (map[uuid.UUID][]*budget.Line, error) {
	query := `
		SELECT id, budget_id, sequence, name, account_id, analytic_account_id, post_id, planned_amount::text
		FROM budget_lines
		WHERE budget_id = ANY($1)
		ORDER BY sequence, id
	`
	rows, err := r.q(ctx).Query(ctx, query, budgetIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load budget lines: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]*budget.Line, len(budgetIDs))
	for rows.Next() {
		var l budget.Line
		var planned string
		if err := rows.Scan(&l.ID, &l.BudgetID, &l.Sequence, &l.Name, &l.AccountID, &l.AnalyticAccountID, &l.PostID, &planned); err != nil {
			return nil, fmt.Errorf("failed to scan budget line: %w", err)
		}
		if l.PlannedAmount, err = parseAmount(planned); err != nil {
			return nil, err
		}
		result[l.BudgetID] = append(result[l.BudgetID], &l)
	}
	return result, rows.Err()
}

// UpdateBudget persists the header fields
func (r *BudgetRepository) UpdateBudget(ctx context.Context, b *budget.Budget) error {
	query := `
		UPDATE budgets
		SET name = $3, state = $4, date_from = $5, date_to = $6, user_id = $7, updated_at = $8
		WHERE company_id = $1 AND id = $2
	`
	tag, err := r.q(ctx).Exec(ctx, query,
		b.CompanyID,
		b.ID,
		b.Name,
		string(b.State),
		b.DateFrom,
		b.DateTo,
		b.UserID,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update budget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return budget.ErrBudgetNotFound
	}
	return nil
}

// ListBudgets returns the company's budgets, most recent first
func (r *BudgetRepository) ListBudgets(ctx context.Context, companyID uuid.UUID) ([]*budget.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE company_id = $1 ORDER BY date_from DESC, name`
	rows, err := r.q(ctx).Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}

	var budgets []*budget.Budget
	var ids []uuid.UUID
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
		ids = append(ids, b.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}
	if len(budgets) == 0 {
		return nil, nil
	}

	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, b := range budgets {
		b.Lines = lines[b.ID]
	}
	return budgets, nil
}

// CreateLine inserts a budget line
func (r *BudgetRepository) CreateLine(ctx context.Context, line *budget.Line) error {
	query := `
		INSERT INTO budget_lines (id, budget_id, sequence, name, account_id, analytic_account_id, post_id, planned_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q(ctx).Exec(ctx, query,
		line.ID,
		line.BudgetID,
		line.Sequence,
		line.Name,
		line.AccountID,
		line.AnalyticAccountID,
		line.PostID,
		line.PlannedAmount.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to create budget line: %w", err)
	}
	return nil
}

// DeleteLine removes a line from a budget
func (r *BudgetRepository) DeleteLine(ctx context.Context, budgetID, lineID uuid.UUID) error {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM budget_lines WHERE budget_id = $1 AND id = $2`, budgetID, lineID)
	if err != nil {
		return fmt.Errorf("failed to delete budget line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return budget.ErrLineNotFound
	}
	return nil
}

// CreatePost inserts a budgetary position
func (r *BudgetRepository) CreatePost(ctx context.Context, post *budget.Post) error {
	accountIDs, err := marshalIDs(post.AccountIDs)
	if err != nil {
		return err
	}

	query := `INSERT INTO budget_posts (id, company_id, name, code, account_ids) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.q(ctx).Exec(ctx, query, post.ID, post.CompanyID, post.Name, post.Code, accountIDs); err != nil {
		return fmt.Errorf("failed to create budgetary position: %w", err)
	}
	return nil
}

// GetPost retrieves a budgetary position by ID
func (r *BudgetRepository) GetPost(ctx context.Context, companyID, id uuid.UUID) (*budget.Post, error) {
	query := `SELECT id, company_id, name, code, account_ids FROM budget_posts WHERE company_id = $1 AND id = $2`

	var p budget.Post
	var accountIDs []byte
	err := r.q(ctx).QueryRow(ctx, query, companyID, id).Scan(&p.ID, &p.CompanyID, &p.Name, &p.Code, &accountIDs)
	if err != nil {
		if isNoRows(err) {
			return nil, budget.ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get budgetary position: %w", err)
	}
	if p.AccountIDs, err = unmarshalIDs(accountIDs); err != nil {
		return nil, err
	}
	return &p, nil
}

var _ budget.Repository = (*BudgetRepository)(nil)
