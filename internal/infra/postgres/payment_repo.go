package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kislikjeka/grandlivre/internal/module/payment"
)

// PaymentRepository implements payment.Repository using PostgreSQL
type PaymentRepository struct {
	store
}

// NewPaymentRepository creates a new PostgreSQL payment repository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{store: store{pool: pool}}
}

const paymentColumns = `id, company_id, name, state, payment_type, partner_type, partner_id, amount::text, date,
	journal_id, method, ref, communication, invoice_ids, entry_id, created_at, updated_at`

// CreatePayment inserts a payment
func (r *PaymentRepository) CreatePayment(ctx context.Context, p *payment.Payment) error {
	invoiceIDs, err := marshalIDs(p.InvoiceIDs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (id, company_id, name, state, payment_type, partner_type, partner_id, amount, date,
			journal_id, method, ref, communication, invoice_ids, entry_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.q(ctx).Exec(ctx, query,
		p.ID,
		p.CompanyID,
		p.Name,
		string(p.State),
		string(p.PaymentType),
		string(p.PartnerType),
		p.PartnerID,
		p.Amount.String(),
		p.Date,
		p.JournalID,
		string(p.Method),
		p.Ref,
		p.Communication,
		invoiceIDs,
		p.EntryID,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var p payment.Payment
	var state, paymentType, partnerType, method, amount string
	var invoiceIDs []byte
	err := row.Scan(
		&p.ID,
		&p.CompanyID,
		&p.Name,
		&state,
		&paymentType,
		&partnerType,
		&p.PartnerID,
		&amount,
		&p.Date,
		&p.JournalID,
		&method,
		&p.Ref,
		&p.Communication,
		&invoiceIDs,
		&p.EntryID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.State = payment.State(state)
	p.PaymentType = payment.Type(paymentType)
	p.PartnerType = payment.PartnerType(partnerType)
	p.Method = payment.Method(method)
	if p.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	if p.InvoiceIDs, err = unmarshalIDs(invoiceIDs); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPayment retrieves a payment by ID
func (r *PaymentRepository) GetPayment(ctx context.Context, companyID, id uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE company_id = $1 AND id = $2`
	p, err := scanPayment(r.q(ctx).QueryRow(ctx, query, companyID, id))
	if err != nil {
		if isNoRows(err) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetPaymentForUpdate loads a payment and locks its row for the transaction
func (r *PaymentRepository) GetPaymentForUpdate(ctx context.Context, companyID, id uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE company_id = $1 AND id = $2 FOR UPDATE`
	p, err := scanPayment(r.q(ctx).QueryRow(ctx, query, companyID, id))
	if err != nil {
		if isNoRows(err) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}
	return p, nil
}

// UpdatePayment persists state, entry link and editable fields
func (r *PaymentRepository) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	invoiceIDs, err := marshalIDs(p.InvoiceIDs)
	if err != nil {
		return err
	}

	query := `
		UPDATE payments
		SET state = $3, amount = $4, date = $5, ref = $6, communication = $7, invoice_ids = $8,
			entry_id = $9, updated_at = $10
		WHERE company_id = $1 AND id = $2
	`
	tag, err := r.q(ctx).Exec(ctx, query,
		p.CompanyID,
		p.ID,
		string(p.State),
		p.Amount.String(),
		p.Date,
		p.Ref,
		p.Communication,
		invoiceIDs,
		p.EntryID,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrPaymentNotFound
	}
	return nil
}

// ListPayments returns payments matching the filter ordered by name
func (r *PaymentRepository) ListPayments(ctx context.Context, filter payment.Filter) ([]*payment.Payment, error) {
	conditions := []string{"company_id = $1"}
	args := []any{filter.CompanyID}
	if filter.State != nil {
		args = append(args, string(*filter.State))
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)))
	}
	if filter.PartnerID != nil {
		args = append(args, *filter.PartnerID)
		conditions = append(conditions, fmt.Sprintf("partner_id = $%d", len(args)))
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY name`
	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// CreateTerm inserts a payment term and its lines atomically
func (r *PaymentRepository) CreateTerm(ctx context.Context, term *payment.PaymentTerm) error {
	return r.withTx(ctx, func(ctx context.Context) error {
		query := `INSERT INTO payment_terms (id, company_id, name, note, active, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := r.q(ctx).Exec(ctx, query, term.ID, term.CompanyID, term.Name, term.Note, term.Active, term.CreatedAt); err != nil {
			return fmt.Errorf("failed to create payment term: %w", err)
		}

		lineQuery := `
			INSERT INTO payment_term_lines (id, term_id, sequence, value, value_amount, delay_type, nb_days)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for _, l := range term.Lines {
			_, err := r.q(ctx).Exec(ctx, lineQuery,
				l.ID,
				term.ID,
				l.Sequence,
				string(l.Value),
				l.ValueAmount.String(),
				string(l.DelayType),
				l.NbDays,
			)
			if err != nil {
				return fmt.Errorf("failed to create payment term line: %w", err)
			}
		}
		return nil
	})
}

// GetTerm retrieves a payment term with its lines
func (r *PaymentRepository) GetTerm(ctx context.Context, companyID, id uuid.UUID) (*payment.PaymentTerm, error) {
	terms, err := r.listTerms(ctx, `WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, payment.ErrTermNotFound
	}
	return terms[0], nil
}

// ListTerms returns the company's payment terms ordered by name
func (r *PaymentRepository) ListTerms(ctx context.Context, companyID uuid.UUID) ([]*payment.PaymentTerm, error) {
	return r.listTerms(ctx, `WHERE company_id = $1`, companyID)
}

func (r *PaymentRepository) listTerms(ctx context.Context, where string, args ...any) ([]*payment.PaymentTerm, error) {
	query := `SELECT id, company_id, name, note, active, created_at FROM payment_terms ` + where + ` ORDER BY name`
	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment terms: %w", err)
	}

	var terms []*payment.PaymentTerm
	byID := make(map[uuid.UUID]*payment.PaymentTerm)
	var ids []uuid.UUID
	for rows.Next() {
		var t payment.PaymentTerm
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Name, &t.Note, &t.Active, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan payment term: %w", err)
		}
		terms = append(terms, &t)
		byID[t.ID] = &t
		ids = append(ids, t.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment terms: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	lineQuery := `
		SELECT id, term_id, sequence, value, value_amount::text, delay_type, nb_days
		FROM payment_term_lines
		WHERE term_id = ANY($1)
		ORDER BY sequence, id
	`
	lineRows, err := r.q(ctx).Query(ctx, lineQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment term lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var l payment.TermLine
		var value, amount, delay string
		if err := lineRows.Scan(&l.ID, &l.TermID, &l.Sequence, &value, &amount, &delay, &l.NbDays); err != nil {
			return nil, fmt.Errorf("failed to scan payment term line: %w", err)
		}
		l.Value = payment.ValueType(value)
		l.DelayType = payment.DelayType(delay)
		if l.ValueAmount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if t := byID[l.TermID]; t != nil {
			t.Lines = append(t.Lines, &l)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment term lines: %w", err)
	}
	return terms, nil
}

var _ payment.Repository = (*PaymentRepository)(nil)
