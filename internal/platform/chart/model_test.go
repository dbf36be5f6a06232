package chart_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/grandlivre/internal/platform/chart"
)

func TestAccount_Validate(t *testing.T) {
	tests := []struct {
		name    string
		account chart.Account
		wantErr error
	}{
		{"valid", chart.Account{Code: "411000", Name: "Clients", Type: chart.AccountTypeReceivable}, nil},
		{"three chars", chart.Account{Code: "411", Name: "Clients", Type: chart.AccountTypeReceivable}, nil},
		{"code too short", chart.Account{Code: "41", Name: "Clients", Type: chart.AccountTypeReceivable}, chart.ErrAccountCodeTooShort},
		{"blank code", chart.Account{Code: "   ", Name: "Clients", Type: chart.AccountTypeReceivable}, chart.ErrAccountCodeTooShort},
		{"missing name", chart.Account{Code: "411000", Type: chart.AccountTypeReceivable}, chart.ErrMissingAccountName},
		{"unknown type", chart.Account{Code: "411000", Name: "Clients", Type: "receivable"}, chart.ErrInvalidAccountType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAccount_ClassAndGroup(t *testing.T) {
	tests := []struct {
		code  string
		typ   chart.AccountType
		class int
		group string
	}{
		{"101000", chart.AccountTypeEquity, 1, "equity"},
		{"411000", chart.AccountTypeReceivable, 4, "asset"},
		{"401000", chart.AccountTypePayable, 4, "liability"},
		{"512000", chart.AccountTypeCash, 5, "asset"},
		{"606000", chart.AccountTypeExpense, 6, "expense"},
		{"681100", chart.AccountTypeDepreciation, 6, "expense"},
		{"706000", chart.AccountTypeIncome, 7, "income"},
		{"801000", chart.AccountTypeOffBalance, 8, "off_balance"},
		{"901000", chart.AccountTypeOffBalance, 0, "off_balance"},
		{"X01", chart.AccountTypeExpense, 0, "expense"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			a := chart.Account{Code: tt.code, Type: tt.typ}
			assert.Equal(t, tt.class, a.Class())
			assert.Equal(t, tt.group, a.InternalGroup())
		})
	}
}

func TestJournal_Validate(t *testing.T) {
	tests := []struct {
		name    string
		journal chart.Journal
		wantErr error
	}{
		{"valid", chart.Journal{Code: "VTE", Name: "Ventes", Type: chart.JournalTypeSale}, nil},
		{"five chars", chart.Journal{Code: "BANK1", Name: "Banque", Type: chart.JournalTypeBank}, nil},
		{"six chars", chart.Journal{Code: "BANK12", Name: "Banque", Type: chart.JournalTypeBank}, chart.ErrJournalCodeLength},
		{"empty code", chart.Journal{Name: "Banque", Type: chart.JournalTypeBank}, chart.ErrJournalCodeLength},
		{"missing name", chart.Journal{Code: "OD", Type: chart.JournalTypeGeneral}, chart.ErrMissingJournalName},
		{"unknown type", chart.Journal{Code: "OD", Name: "Divers", Type: "misc"}, chart.ErrInvalidJournalType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.journal.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJournal_SequencePrefix(t *testing.T) {
	j := chart.Journal{Code: "VTE"}
	assert.Equal(t, "VTE/2024/", j.SequencePrefix(2024))
}

func TestJournalType_IsLiquidity(t *testing.T) {
	assert.True(t, chart.JournalTypeBank.IsLiquidity())
	assert.True(t, chart.JournalTypeCash.IsLiquidity())
	assert.False(t, chart.JournalTypeSale.IsLiquidity())
}

// =============================================================================
// Tree Tests
// =============================================================================

func TestTree(t *testing.T) {
	root := &chart.Account{ID: uuid.New(), Code: "4"}
	clients := &chart.Account{ID: uuid.New(), Code: "41", ParentID: &root.ID}
	suppliers := &chart.Account{ID: uuid.New(), Code: "40", ParentID: &root.ID}
	leaf := &chart.Account{ID: uuid.New(), Code: "411000", ParentID: &clients.ID}
	orphanParent := uuid.New()
	orphan := &chart.Account{ID: uuid.New(), Code: "512000", ParentID: &orphanParent}

	tree := chart.NewTree([]*chart.Account{leaf, clients, root, suppliers, orphan})
	assert.Equal(t, 5, tree.Len())

	roots := tree.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, "4", roots[0].Code)
	assert.Equal(t, "512000", roots[1].Code)

	children := tree.Children(root.ID)
	require.Len(t, children, 2)
	assert.Equal(t, "40", children[0].Code, "children ordered by code")
	assert.Equal(t, "41", children[1].Code)

	ancestors := tree.Ancestors(leaf.ID)
	require.Len(t, ancestors, 2)
	assert.Equal(t, clients.ID, ancestors[0].ID)
	assert.Equal(t, root.ID, ancestors[1].ID)

	descendants := tree.Descendants(root.ID)
	require.Len(t, descendants, 3)
	assert.Equal(t, []string{"40", "41", "411000"}, []string{descendants[0].Code, descendants[1].Code, descendants[2].Code})

	assert.True(t, tree.IsAncestor(root.ID, leaf.ID))
	assert.False(t, tree.IsAncestor(leaf.ID, root.ID))
	assert.Empty(t, tree.Ancestors(orphan.ID))

	got, ok := tree.Get(leaf.ID)
	require.True(t, ok)
	assert.Equal(t, "411000", got.Code)
}
