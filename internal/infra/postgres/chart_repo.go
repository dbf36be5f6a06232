package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kislikjeka/grandlivre/internal/platform/chart"
)

// ChartRepository implements chart.Repository using PostgreSQL
type ChartRepository struct {
	store
}

// NewChartRepository creates a new PostgreSQL chart repository
func NewChartRepository(pool *pgxpool.Pool) *ChartRepository {
	return &ChartRepository{store: store{pool: pool}}
}

// Account operations

const accountColumns = `id, company_id, code, name, type, parent_id, reconcile, deprecated, tax_ids, created_at, updated_at`

// CreateAccount inserts an account; the (company, code) pair is unique
func (r *ChartRepository) CreateAccount(ctx context.Context, account *chart.Account) error {
	taxIDs, err := marshalIDs(account.TaxIDs)
	if err != nil {
		return err
	}

	query := `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.q(ctx).Exec(ctx, query,
		account.ID,
		account.CompanyID,
		account.Code,
		account.Name,
		string(account.Type),
		account.ParentID,
		account.Reconcile,
		account.Deprecated,
		taxIDs,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", chart.ErrDuplicateAccountCode, account.Code)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*chart.Account, error) {
	var a chart.Account
	var typ string
	var taxIDs []byte
	err := row.Scan(
		&a.ID,
		&a.CompanyID,
		&a.Code,
		&a.Name,
		&typ,
		&a.ParentID,
		&a.Reconcile,
		&a.Deprecated,
		&taxIDs,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Type = chart.AccountType(typ)
	if a.TaxIDs, err = unmarshalIDs(taxIDs); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ChartRepository) getAccount(ctx context.Context, where string, args ...any) (*chart.Account, error) {
	a, err := scanAccount(r.q(ctx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts `+where, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, chart.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// GetAccount retrieves an account by ID
func (r *ChartRepository) GetAccount(ctx context.Context, companyID, id uuid.UUID) (*chart.Account, error) {
	return r.getAccount(ctx, `WHERE company_id = $1 AND id = $2`, companyID, id)
}

// GetAccountByCode retrieves an account by its code
func (r *ChartRepository) GetAccountByCode(ctx context.Context, companyID uuid.UUID, code string) (*chart.Account, error) {
	return r.getAccount(ctx, `WHERE company_id = $1 AND code = $2`, companyID, code)
}

// ListAccounts returns the company's accounts ordered by code
func (r *ChartRepository) ListAccounts(ctx context.Context, companyID uuid.UUID) ([]*chart.Account, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id = $1 ORDER BY code`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*chart.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccount replaces the mutable account fields
func (r *ChartRepository) UpdateAccount(ctx context.Context, account *chart.Account) error {
	taxIDs, err := marshalIDs(account.TaxIDs)
	if err != nil {
		return err
	}

	query := `
		UPDATE accounts
		SET name = $3, type = $4, parent_id = $5, reconcile = $6, deprecated = $7, tax_ids = $8, updated_at = $9
		WHERE company_id = $1 AND id = $2
	`
	tag, err := r.q(ctx).Exec(ctx, query,
		account.CompanyID,
		account.ID,
		account.Name,
		string(account.Type),
		account.ParentID,
		account.Reconcile,
		account.Deprecated,
		taxIDs,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chart.ErrAccountNotFound
	}
	return nil
}

// Journal operations

const journalColumns = `id, company_id, code, name, type, default_account_id, suspense_account_id,
	profit_account_id, loss_account_id, created_at`

// CreateJournal inserts a journal; the (company, code) pair is unique
func (r *ChartRepository) CreateJournal(ctx context.Context, journal *chart.Journal) error {
	query := `INSERT INTO journals (` + journalColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q(ctx).Exec(ctx, query,
		journal.ID,
		journal.CompanyID,
		journal.Code,
		journal.Name,
		string(journal.Type),
		journal.DefaultAccountID,
		journal.SuspenseAccountID,
		journal.ProfitAccountID,
		journal.LossAccountID,
		journal.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", chart.ErrDuplicateJournalCode, journal.Code)
		}
		return fmt.Errorf("failed to create journal: %w", err)
	}
	return nil
}

func scanJournal(row pgx.Row) (*chart.Journal, error) {
	var j chart.Journal
	var typ string
	err := row.Scan(
		&j.ID,
		&j.CompanyID,
		&j.Code,
		&j.Name,
		&typ,
		&j.DefaultAccountID,
		&j.SuspenseAccountID,
		&j.ProfitAccountID,
		&j.LossAccountID,
		&j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Type = chart.JournalType(typ)
	return &j, nil
}

func (r *ChartRepository) getJournal(ctx context.Context, where string, args ...any) (*chart.Journal, error) {
	j, err := scanJournal(r.q(ctx).QueryRow(ctx, `SELECT `+journalColumns+` FROM journals `+where, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, chart.ErrJournalNotFound
		}
		return nil, fmt.Errorf("failed to get journal: %w", err)
	}
	return j, nil
}

// GetJournal retrieves a journal by ID
func (r *ChartRepository) GetJournal(ctx context.Context, companyID, id uuid.UUID) (*chart.Journal, error) {
	return r.getJournal(ctx, `WHERE company_id = $1 AND id = $2`, companyID, id)
}

// GetJournalByCode retrieves a journal by its code
func (r *ChartRepository) GetJournalByCode(ctx context.Context, companyID uuid.UUID, code string) (*chart.Journal, error) {
	return r.getJournal(ctx, `WHERE company_id = $1 AND code = $2`, companyID, code)
}

// ListJournals returns the company's journals ordered by code
func (r *ChartRepository) ListJournals(ctx context.Context, companyID uuid.UUID) ([]*chart.Journal, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT `+journalColumns+` FROM journals WHERE company_id = $1 ORDER BY code`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list journals: %w", err)
	}
	defer rows.Close()

	var journals []*chart.Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal: %w", err)
		}
		journals = append(journals, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journals: %w", err)
	}
	return journals, nil
}

// Tax operations

const taxColumns = `id, company_id, name, use, amount_type, amount::text, price_include, account_id, child_ids, created_at`

// CreateTax inserts a tax
func (r *ChartRepository) CreateTax(ctx context.Context, tax *chart.Tax) error {
	childIDs, err := marshalIDs(tax.ChildIDs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO taxes (id, company_id, name, use, amount_type, amount, price_include, account_id, child_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.q(ctx).Exec(ctx, query,
		tax.ID,
		tax.CompanyID,
		tax.Name,
		string(tax.Use),
		string(tax.AmountType),
		tax.Amount.String(),
		tax.PriceInclude,
		tax.AccountID,
		childIDs,
		tax.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tax: %w", err)
	}
	return nil
}

func scanTax(row pgx.Row) (*chart.Tax, error) {
	var t chart.Tax
	var use, amountType, amount string
	var childIDs []byte
	err := row.Scan(
		&t.ID,
		&t.CompanyID,
		&t.Name,
		&use,
		&amountType,
		&amount,
		&t.PriceInclude,
		&t.AccountID,
		&childIDs,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Use = chart.TaxUse(use)
	t.AmountType = chart.TaxAmountType(amountType)
	if t.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	if t.ChildIDs, err = unmarshalIDs(childIDs); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTax retrieves a tax by ID; children are resolved by the service
func (r *ChartRepository) GetTax(ctx context.Context, companyID, id uuid.UUID) (*chart.Tax, error) {
	t, err := scanTax(r.q(ctx).QueryRow(ctx, `SELECT `+taxColumns+` FROM taxes WHERE company_id = $1 AND id = $2`, companyID, id))
	if err != nil {
		if isNoRows(err) {
			return nil, chart.ErrTaxNotFound
		}
		return nil, fmt.Errorf("failed to get tax: %w", err)
	}
	return t, nil
}

// ListTaxes returns the company's taxes ordered by name
func (r *ChartRepository) ListTaxes(ctx context.Context, companyID uuid.UUID) ([]*chart.Tax, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT `+taxColumns+` FROM taxes WHERE company_id = $1 ORDER BY name`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list taxes: %w", err)
	}
	defer rows.Close()

	var taxes []*chart.Tax
	for rows.Next() {
		t, err := scanTax(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax: %w", err)
		}
		taxes = append(taxes, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating taxes: %w", err)
	}
	return taxes, nil
}

var _ chart.Repository = (*ChartRepository)(nil)
