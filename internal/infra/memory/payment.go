package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kislikjeka/grandlivre/internal/module/payment"
)

// PaymentStore is an in-memory implementation of payment.Repository
type PaymentStore struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]payment.Payment
	terms    map[uuid.UUID]payment.PaymentTerm
}

// NewPaymentStore creates an empty store
func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		payments: make(map[uuid.UUID]payment.Payment),
		terms:    make(map[uuid.UUID]payment.PaymentTerm),
	}
}

func (s *PaymentStore) CreatePayment(ctx context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payments[p.ID] = clonePayment(*p)
	return nil
}

func (s *PaymentStore) GetPayment(ctx context.Context, companyID, id uuid.UUID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok || p.CompanyID != companyID {
		return nil, payment.ErrPaymentNotFound
	}
	p = clonePayment(p)
	return &p, nil
}

// GetPaymentForUpdate relies on the ledger store's transaction mutex for exclusion
func (s *PaymentStore) GetPaymentForUpdate(ctx context.Context, companyID, id uuid.UUID) (*payment.Payment, error) {
	return s.GetPayment(ctx, companyID, id)
}

func (s *PaymentStore) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.payments[p.ID]
	if !ok || existing.CompanyID != p.CompanyID {
		return payment.ErrPaymentNotFound
	}
	s.payments[p.ID] = clonePayment(*p)
	return nil
}

func (s *PaymentStore) ListPayments(ctx context.Context, filter payment.Filter) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*payment.Payment
	for _, p := range s.payments {
		if p.CompanyID != filter.CompanyID {
			continue
		}
		if filter.State != nil && p.State != *filter.State {
			continue
		}
		if filter.PartnerID != nil && p.PartnerID != *filter.PartnerID {
			continue
		}
		p = clonePayment(p)
		result = append(result, &p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *PaymentStore) CreateTerm(ctx context.Context, term *payment.PaymentTerm) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.terms[term.ID] = cloneTerm(*term)
	return nil
}

func (s *PaymentStore) GetTerm(ctx context.Context, companyID, id uuid.UUID) (*payment.PaymentTerm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.terms[id]
	if !ok || t.CompanyID != companyID {
		return nil, payment.ErrTermNotFound
	}
	t = cloneTerm(t)
	return &t, nil
}

func (s *PaymentStore) ListTerms(ctx context.Context, companyID uuid.UUID) ([]*payment.PaymentTerm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*payment.PaymentTerm
	for _, t := range s.terms {
		if t.CompanyID == companyID {
			t = cloneTerm(t)
			result = append(result, &t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func clonePayment(p payment.Payment) payment.Payment {
	p.InvoiceIDs = append([]uuid.UUID(nil), p.InvoiceIDs...)
	p.EntryID = copyID(p.EntryID)
	return p
}

func cloneTerm(t payment.PaymentTerm) payment.PaymentTerm {
	lines := make([]*payment.TermLine, len(t.Lines))
	for i, l := range t.Lines {
		l := *l
		lines[i] = &l
	}
	t.Lines = lines
	return t
}

var _ payment.Repository = (*PaymentStore)(nil)
