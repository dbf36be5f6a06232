package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/platform/chart"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

const sequenceCode = "payment"

// Service registers payments and books them in the ledger
type Service struct {
	repo       Repository
	ledger     Ledger
	reconciler Reconciler
	chart      Chart
	sequences  Sequencer
	now        func() time.Time
	logger     *logger.Logger
}

// NewService creates a new payment service
func NewService(repo Repository, ldg Ledger, reconciler Reconciler, charts Chart, sequences Sequencer, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		ledger:     ldg,
		reconciler: reconciler,
		chart:      charts,
		sequences:  sequences,
		now:        time.Now,
		logger:     log.WithField("service", "payment"),
	}
}

// Create registers a draft payment and gives it its PAY/NNNNN number
func (s *Service) Create(ctx context.Context, scope ledger.Scope, payment *Payment) (*Payment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if payment.Method == "" {
		payment.Method = MethodManual
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	seq, err := s.sequences.NextSequence(ctx, scope.CompanyID, sequenceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to number payment: %w", err)
	}

	now := s.now()
	payment.ID = uuid.New()
	payment.CompanyID = scope.CompanyID
	payment.Name = fmt.Sprintf("PAY/%05d", seq)
	payment.State = StateDraft
	payment.Amount = money.Round(payment.Amount)
	if payment.Date.IsZero() {
		payment.Date = now
	}
	payment.Date = ledger.Day(payment.Date)
	payment.EntryID = nil
	payment.CreatedAt = now
	payment.UpdatedAt = now

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.logger.Info("payment created", "company_id", scope.CompanyID, "payment_id", payment.ID, "name", payment.Name)
	return payment, nil
}

// Get returns a payment
func (s *Service) Get(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Payment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.GetPayment(ctx, scope.CompanyID, id)
}

// List returns the payments matching filter within the scope's company
func (s *Service) List(ctx context.Context, scope ledger.Scope, filter Filter) ([]*Payment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	filter.CompanyID = scope.CompanyID
	return s.repo.ListPayments(ctx, filter)
}

// Post books the payment: inbound payments debit the journal's liquidity
// account and credit the partner account, outbound payments the reverse.
// The partner line is then reconciled with the partner lines of each linked
// invoice. Everything happens in one transaction.
func (s *Service) Post(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Payment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var payment *Payment
	err := s.ledger.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.repo.GetPaymentForUpdate(ctx, scope.CompanyID, id)
		if err != nil {
			return err
		}
		if payment.State != StateDraft {
			return ErrNotDraft
		}
		if !payment.Amount.IsPositive() {
			return ErrNonPositiveAmount
		}

		liquidity, destination, err := s.accounts(ctx, scope.CompanyID, payment)
		if err != nil {
			return err
		}

		entry, err := s.ledger.CreateEntry(ctx, scope, ledger.NewEntry{
			JournalID: payment.JournalID,
			Date:      payment.Date,
			Ref:       payment.EntryRef(),
			MoveType:  ledger.MoveTypeEntry,
			PartnerID: &payment.PartnerID,
		})
		if err != nil {
			return err
		}

		liquidityLine := ledger.NewLine{AccountID: liquidity, Name: payment.Label(), PartnerID: &payment.PartnerID}
		partnerLine := ledger.NewLine{AccountID: destination, Name: payment.Label(), PartnerID: &payment.PartnerID}
		if payment.PaymentType == TypeInbound {
			liquidityLine.Debit = payment.Amount
			partnerLine.Credit = payment.Amount
		} else {
			partnerLine.Debit = payment.Amount
			liquidityLine.Credit = payment.Amount
		}

		if _, err := s.ledger.AddLine(ctx, scope, entry.ID, liquidityLine); err != nil {
			return err
		}
		counterpart, err := s.ledger.AddLine(ctx, scope, entry.ID, partnerLine)
		if err != nil {
			return err
		}
		if _, err := s.ledger.Post(ctx, scope, entry.ID); err != nil {
			return err
		}

		for _, invoiceID := range payment.InvoiceIDs {
			if err := s.settle(ctx, scope, invoiceID, destination, counterpart.ID); err != nil {
				return err
			}
		}

		payment.State = StatePosted
		payment.EntryID = &entry.ID
		payment.UpdatedAt = s.now()
		return s.repo.UpdatePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment posted",
		"company_id", scope.CompanyID,
		"payment_id", payment.ID,
		"entry_id", *payment.EntryID,
		"amount", money.Format(payment.Amount),
	)
	return payment, nil
}

// accounts resolves the liquidity and partner accounts of a payment
func (s *Service) accounts(ctx context.Context, companyID uuid.UUID, payment *Payment) (uuid.UUID, uuid.UUID, error) {
	journal, err := s.chart.GetJournal(ctx, companyID, payment.JournalID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if !journal.Type.IsLiquidity() {
		return uuid.Nil, uuid.Nil, ErrNotLiquidityJournal
	}
	if journal.DefaultAccountID == nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %s", ErrNoLiquidityAccount, journal.Code)
	}

	typ := chart.AccountTypeReceivable
	if payment.PartnerType == PartnerSupplier {
		typ = chart.AccountTypePayable
	}
	destination, err := s.chart.FindAccountByType(ctx, companyID, typ)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return *journal.DefaultAccountID, destination.ID, nil
}

// settle reconciles the payment line with the invoice's lines on the same account
func (s *Service) settle(ctx context.Context, scope ledger.Scope, invoiceID, accountID, paymentLineID uuid.UUID) error {
	invoice, err := s.ledger.GetEntry(ctx, scope, invoiceID)
	if err != nil {
		return err
	}

	lineIDs := []uuid.UUID{paymentLineID}
	for _, l := range invoice.Lines {
		if l.AccountID == accountID {
			lineIDs = append(lineIDs, l.ID)
		}
	}

	_, err = s.reconciler.Reconcile(ctx, scope, lineIDs)
	if errors.Is(err, ledger.ErrNothingToMatch) {
		s.logger.Warn("payment left unmatched with invoice",
			"company_id", scope.CompanyID,
			"invoice_id", invoiceID,
			"line_id", paymentLineID,
		)
		return nil
	}
	return err
}

// Cancel cancels the payment and the entry it generated
func (s *Service) Cancel(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Payment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var payment *Payment
	err := s.ledger.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.repo.GetPaymentForUpdate(ctx, scope.CompanyID, id)
		if err != nil {
			return err
		}
		if payment.State == StateCancel {
			return ErrAlreadyCancelled
		}
		if payment.EntryID != nil {
			if _, err := s.ledger.Cancel(ctx, scope, *payment.EntryID); err != nil {
				return err
			}
		}
		payment.State = StateCancel
		payment.UpdatedAt = s.now()
		return s.repo.UpdatePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment cancelled", "company_id", scope.CompanyID, "payment_id", id)
	return payment, nil
}

// ResetToDraft brings a cancelled payment back to draft. The cancelled
// entry stays in the ledger and posting again books a new one.
func (s *Service) ResetToDraft(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*Payment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var payment *Payment
	err := s.ledger.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.repo.GetPaymentForUpdate(ctx, scope.CompanyID, id)
		if err != nil {
			return err
		}
		if payment.State != StateCancel {
			return ErrNotCancelled
		}

		payment.State = StateDraft
		payment.EntryID = nil
		payment.UpdatedAt = s.now()
		if err := s.repo.UpdatePayment(ctx, payment); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// CreateTerm stores a payment term
func (s *Service) CreateTerm(ctx context.Context, scope ledger.Scope, term *PaymentTerm) (*PaymentTerm, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := term.Validate(); err != nil {
		return nil, err
	}

	term.ID = uuid.New()
	term.CompanyID = scope.CompanyID
	term.Active = true
	term.CreatedAt = s.now()
	for i, l := range term.Lines {
		l.ID = uuid.New()
		l.TermID = term.ID
		if l.Sequence == 0 {
			l.Sequence = (i + 1) * 10
		}
	}

	if err := s.repo.CreateTerm(ctx, term); err != nil {
		return nil, fmt.Errorf("failed to create payment term: %w", err)
	}
	return term, nil
}

// GetTerm returns a payment term with its lines
func (s *Service) GetTerm(ctx context.Context, scope ledger.Scope, id uuid.UUID) (*PaymentTerm, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.GetTerm(ctx, scope.CompanyID, id)
}

// ListTerms returns the company's payment terms
func (s *Service) ListTerms(ctx context.Context, scope ledger.Scope) ([]*PaymentTerm, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListTerms(ctx, scope.CompanyID)
}

// Schedule splits amount into installments using a stored term
func (s *Service) Schedule(ctx context.Context, scope ledger.Scope, termID uuid.UUID, amount decimal.Decimal, dateRef time.Time) ([]Installment, error) {
	term, err := s.GetTerm(ctx, scope, termID)
	if err != nil {
		return nil, err
	}
	return term.Compute(amount, dateRef), nil
}
