package chart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/config"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// Service provides business logic for accounts, journals and taxes
type Service struct {
	repo   Repository
	now    func() time.Time
	logger *logger.Logger
}

// NewService creates a new chart service
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		now:    time.Now,
		logger: log.WithField("service", "chart"),
	}
}

// CreateAccount validates and stores a new account. Receivable and payable
// accounts are always reconcilable.
func (s *Service) CreateAccount(ctx context.Context, account *Account) (*Account, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetAccountByCode(ctx, account.CompanyID, account.Code); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAccountCode, account.Code)
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to check account code: %w", err)
	}

	if account.ParentID != nil {
		if _, err := s.repo.GetAccount(ctx, account.CompanyID, *account.ParentID); err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}
	}

	if account.Type.IsReceivablePayable() {
		account.Reconcile = true
	}
	account.ID = uuid.New()
	account.CreatedAt = s.now()
	account.UpdatedAt = account.CreatedAt

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account created", "company_id", account.CompanyID, "code", account.Code)
	return account, nil
}

// GetAccount retrieves an account by id
func (s *Service) GetAccount(ctx context.Context, companyID, id uuid.UUID) (*Account, error) {
	return s.repo.GetAccount(ctx, companyID, id)
}

// ListAccounts returns the accounts of a company ordered by code
func (s *Service) ListAccounts(ctx context.Context, companyID uuid.UUID) ([]*Account, error) {
	accounts, err := s.repo.ListAccounts(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Tree returns the account hierarchy of a company
func (s *Service) Tree(ctx context.Context, companyID uuid.UUID) (*Tree, error) {
	accounts, err := s.ListAccounts(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return NewTree(accounts), nil
}

// SetParent moves an account under another one
func (s *Service) SetParent(ctx context.Context, companyID, id uuid.UUID, parentID *uuid.UUID) (*Account, error) {
	tree, err := s.Tree(ctx, companyID)
	if err != nil {
		return nil, err
	}
	account, ok := tree.Get(id)
	if !ok {
		return nil, ErrAccountNotFound
	}
	if parentID != nil {
		if _, ok := tree.Get(*parentID); !ok {
			return nil, ErrParentNotFound
		}
		if *parentID == id || tree.IsAncestor(id, *parentID) {
			return nil, ErrParentCycle
		}
	}

	account.ParentID = parentID
	account.UpdatedAt = s.now()
	if err := s.repo.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

// Deprecate marks an account as no longer usable on new lines
func (s *Service) Deprecate(ctx context.Context, companyID, id uuid.UUID) (*Account, error) {
	account, err := s.repo.GetAccount(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	account.Deprecated = true
	account.UpdatedAt = s.now()
	if err := s.repo.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

// FindAccountByType returns the usable account of the given type with the lowest code
func (s *Service) FindAccountByType(ctx context.Context, companyID uuid.UUID, typ AccountType) (*Account, error) {
	accounts, err := s.ListAccounts(ctx, companyID)
	if err != nil {
		return nil, err
	}
	var found *Account
	for _, a := range accounts {
		if a.Type != typ || a.Deprecated {
			continue
		}
		if found == nil || a.Code < found.Code {
			found = a
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoAccountOfType, typ)
	}
	return found, nil
}

// CreateJournal validates and stores a new journal
func (s *Service) CreateJournal(ctx context.Context, journal *Journal) (*Journal, error) {
	if err := journal.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetJournalByCode(ctx, journal.CompanyID, journal.Code); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJournalCode, journal.Code)
	} else if !errors.Is(err, ErrJournalNotFound) {
		return nil, fmt.Errorf("failed to check journal code: %w", err)
	}

	for _, ref := range []*uuid.UUID{journal.DefaultAccountID, journal.SuspenseAccountID, journal.ProfitAccountID, journal.LossAccountID} {
		if ref == nil {
			continue
		}
		if _, err := s.repo.GetAccount(ctx, journal.CompanyID, *ref); err != nil {
			return nil, err
		}
	}

	journal.ID = uuid.New()
	journal.CreatedAt = s.now()
	if err := s.repo.CreateJournal(ctx, journal); err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}

	s.logger.Info("journal created", "company_id", journal.CompanyID, "code", journal.Code)
	return journal, nil
}

// GetJournal retrieves a journal by id
func (s *Service) GetJournal(ctx context.Context, companyID, id uuid.UUID) (*Journal, error) {
	return s.repo.GetJournal(ctx, companyID, id)
}

// ListJournals returns the journals of a company
func (s *Service) ListJournals(ctx context.Context, companyID uuid.UUID) ([]*Journal, error) {
	return s.repo.ListJournals(ctx, companyID)
}

// CreateTax validates and stores a new tax; group children must exist and
// must not be groups themselves
func (s *Service) CreateTax(ctx context.Context, tax *Tax) (*Tax, error) {
	if err := tax.Validate(); err != nil {
		return nil, err
	}
	if tax.Use == "" {
		tax.Use = TaxUseNone
	}

	for _, childID := range tax.ChildIDs {
		child, err := s.repo.GetTax(ctx, tax.CompanyID, childID)
		if err != nil {
			return nil, err
		}
		if child.AmountType == TaxAmountGroup {
			return nil, ErrTaxGroupTooDeep
		}
	}
	if tax.AccountID != nil {
		if _, err := s.repo.GetAccount(ctx, tax.CompanyID, *tax.AccountID); err != nil {
			return nil, err
		}
	}

	tax.ID = uuid.New()
	tax.CreatedAt = s.now()
	if err := s.repo.CreateTax(ctx, tax); err != nil {
		return nil, fmt.Errorf("failed to create tax: %w", err)
	}
	return tax, nil
}

// GetTax retrieves a tax and, for groups, its children
func (s *Service) GetTax(ctx context.Context, companyID, id uuid.UUID) (*Tax, error) {
	tax, err := s.repo.GetTax(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	tax.Children = tax.Children[:0]
	for _, childID := range tax.ChildIDs {
		child, err := s.repo.GetTax(ctx, companyID, childID)
		if err != nil {
			return nil, fmt.Errorf("failed to load child tax: %w", err)
		}
		tax.Children = append(tax.Children, child)
	}
	return tax, nil
}

// ListTaxes returns the taxes of a company
func (s *Service) ListTaxes(ctx context.Context, companyID uuid.UUID) ([]*Tax, error) {
	return s.repo.ListTaxes(ctx, companyID)
}

// ListTaxesByUse returns the taxes selectable for sales or purchases
func (s *Service) ListTaxesByUse(ctx context.Context, companyID uuid.UUID, use TaxUse) ([]*Tax, error) {
	taxes, err := s.repo.ListTaxes(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list taxes: %w", err)
	}
	result := make([]*Tax, 0, len(taxes))
	for _, t := range taxes {
		if t.Use == use {
			result = append(result, t)
		}
	}
	return result, nil
}

// ComputeTax applies the given taxes to priceUnit × quantity
func (s *Service) ComputeTax(ctx context.Context, companyID uuid.UUID, taxIDs []uuid.UUID, priceUnit, quantity decimal.Decimal) (*TaxResult, error) {
	taxes := make([]*Tax, 0, len(taxIDs))
	for _, id := range taxIDs {
		tax, err := s.GetTax(ctx, companyID, id)
		if err != nil {
			return nil, err
		}
		taxes = append(taxes, tax)
	}
	result := ComputeAll(taxes, priceUnit, quantity)
	return &result, nil
}

// SeedResult counts the records created by Seed
type SeedResult struct {
	Accounts int `json:"accounts"`
	Journals int `json:"journals"`
	Taxes    int `json:"taxes"`
}

// Seed installs the chart of accounts of cfg for a company. Accounts and
// journals whose code already exists are kept as they are, so seeding twice
// is harmless. Taxes are only created on the first seed.
func (s *Service) Seed(ctx context.Context, companyID uuid.UUID, cfg *config.ChartConfig) (*SeedResult, error) {
	result := &SeedResult{}
	byCode := make(map[string]uuid.UUID, len(cfg.Accounts))

	for _, ca := range cfg.Accounts {
		existing, err := s.repo.GetAccountByCode(ctx, companyID, ca.Code)
		if err == nil {
			byCode[ca.Code] = existing.ID
			continue
		}
		if !errors.Is(err, ErrAccountNotFound) {
			return nil, fmt.Errorf("failed to check account %s: %w", ca.Code, err)
		}

		account := &Account{
			CompanyID:  companyID,
			Code:       ca.Code,
			Name:       ca.Name,
			Type:       AccountType(ca.Type),
			Reconcile:  ca.Reconcile,
			Deprecated: ca.Deprecated,
		}
		if ca.Parent != "" {
			parentID := byCode[ca.Parent]
			account.ParentID = &parentID
		}
		created, err := s.CreateAccount(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("failed to seed account %s: %w", ca.Code, err)
		}
		byCode[ca.Code] = created.ID
		result.Accounts++
	}

	ref := func(code string) *uuid.UUID {
		if code == "" {
			return nil
		}
		id := byCode[code]
		return &id
	}

	for _, cj := range cfg.Journals {
		if _, err := s.repo.GetJournalByCode(ctx, companyID, cj.Code); err == nil {
			continue
		} else if !errors.Is(err, ErrJournalNotFound) {
			return nil, fmt.Errorf("failed to check journal %s: %w", cj.Code, err)
		}

		_, err := s.CreateJournal(ctx, &Journal{
			CompanyID:         companyID,
			Code:              cj.Code,
			Name:              cj.Name,
			Type:              JournalType(cj.Type),
			DefaultAccountID:  ref(cj.DefaultAccount),
			SuspenseAccountID: ref(cj.SuspenseAccount),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to seed journal %s: %w", cj.Code, err)
		}
		result.Journals++
	}

	taxes, err := s.repo.ListTaxes(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list taxes: %w", err)
	}
	if len(taxes) == 0 {
		for _, ct := range cfg.Taxes {
			_, err := s.CreateTax(ctx, &Tax{
				CompanyID:    companyID,
				Name:         ct.Name,
				Use:          TaxUse(ct.Use),
				AmountType:   TaxAmountType(ct.AmountType),
				Amount:       decimal.NewFromFloat(ct.Amount),
				PriceInclude: ct.PriceInclude,
				AccountID:    ref(ct.Account),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to seed tax %s: %w", ct.Name, err)
			}
			result.Taxes++
		}
	}

	s.logger.Info("chart seeded",
		"company_id", companyID,
		"accounts", result.Accounts,
		"journals", result.Journals,
		"taxes", result.Taxes,
	)
	return result, nil
}

// AccountInfo implements ledger.ChartReader
func (s *Service) AccountInfo(ctx context.Context, companyID, accountID uuid.UUID) (*ledger.AccountInfo, error) {
	account, err := s.repo.GetAccount(ctx, companyID, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, err
	}
	return &ledger.AccountInfo{
		ID:           account.ID,
		Code:         account.Code,
		Type:         string(account.Type),
		Reconcilable: account.Reconcile,
		Deprecated:   account.Deprecated,
	}, nil
}

// JournalInfo implements ledger.ChartReader
func (s *Service) JournalInfo(ctx context.Context, companyID, journalID uuid.UUID) (*ledger.JournalInfo, error) {
	journal, err := s.repo.GetJournal(ctx, companyID, journalID)
	if err != nil {
		if errors.Is(err, ErrJournalNotFound) {
			return nil, ledger.ErrJournalNotFound
		}
		return nil, err
	}
	return &ledger.JournalInfo{ID: journal.ID, Code: journal.Code, Type: string(journal.Type)}, nil
}

var _ ledger.ChartReader = (*Service)(nil)
