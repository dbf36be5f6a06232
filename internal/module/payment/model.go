package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State is the lifecycle state of a payment
type State string

const (
	StateDraft  State = "draft"
	StatePosted State = "posted"
	StateCancel State = "cancel"
)

// Type is the direction of the money
type Type string

const (
	TypeInbound  Type = "inbound"  // money received
	TypeOutbound Type = "outbound" // money sent
)

// PartnerType selects the receivable or payable account
type PartnerType string

const (
	PartnerCustomer PartnerType = "customer"
	PartnerSupplier PartnerType = "supplier"
)

// Method is how the payment was made
type Method string

const (
	MethodManual   Method = "manual"
	MethodCheck    Method = "check"
	MethodTransfer Method = "transfer"
	MethodCard     Method = "card"
	MethodCash     Method = "cash"
)

func (m Method) isValid() bool {
	switch m {
	case MethodManual, MethodCheck, MethodTransfer, MethodCard, MethodCash:
		return true
	}
	return false
}

// Payment is money received from or sent to a partner through a bank or
// cash journal. Posting it books a two-line entry and settles the linked
// invoices.
type Payment struct {
	ID            uuid.UUID       `json:"id"`
	CompanyID     uuid.UUID       `json:"company_id"`
	Name          string          `json:"name"`
	State         State           `json:"state"`
	PaymentType   Type            `json:"payment_type"`
	PartnerType   PartnerType     `json:"partner_type"`
	PartnerID     uuid.UUID       `json:"partner_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	JournalID     uuid.UUID       `json:"journal_id"`
	Method        Method          `json:"method"`
	Ref           string          `json:"ref,omitempty"`
	Communication string          `json:"communication,omitempty"`
	InvoiceIDs    []uuid.UUID     `json:"invoice_ids,omitempty"`
	EntryID       *uuid.UUID      `json:"entry_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validate checks the payment fields for creation; the amount is checked at posting
func (p *Payment) Validate() error {
	if p.PaymentType != TypeInbound && p.PaymentType != TypeOutbound {
		return ErrInvalidPaymentType
	}
	if p.PartnerType != PartnerCustomer && p.PartnerType != PartnerSupplier {
		return ErrInvalidPartnerType
	}
	if !p.Method.isValid() {
		return ErrInvalidMethod
	}
	if p.PartnerID == uuid.Nil {
		return ErrMissingPartner
	}
	if p.JournalID == uuid.Nil {
		return ErrMissingJournal
	}
	return nil
}

// Label is the text put on the entry lines
func (p *Payment) Label() string {
	if p.Communication != "" {
		return p.Communication
	}
	return p.Name
}

// EntryRef is the reference put on the entry
func (p *Payment) EntryRef() string {
	if p.Ref != "" {
		return p.Ref
	}
	return p.Name
}
