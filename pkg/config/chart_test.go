package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadChart_SeedFile(t *testing.T) {
	chart, err := LoadChart("../../config/pcg.yaml")
	require.NoError(t, err)

	assert.NotEmpty(t, chart.Accounts)
	assert.NotEmpty(t, chart.Journals)
	assert.NotEmpty(t, chart.Taxes)

	acc, ok := chart.GetAccount("411000")
	require.True(t, ok)
	assert.Equal(t, "asset_receivable", acc.Type)
	assert.True(t, acc.Reconcile)
}

func TestParseChart_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", "accounts: []", "at least one account"},
		{"short code", "accounts: [{code: '41', name: x, type: income}]", "at least 3 characters"},
		{"duplicate", "accounts: [{code: '411', name: a, type: income}, {code: '411', name: b, type: income}]", "duplicate account code"},
		{"parent after child", "accounts: [{code: '4111', name: a, type: income, parent: '411'}, {code: '411', name: b, type: income}]", "must be declared before"},
		{"long journal code", "accounts: [{code: '411', name: a, type: income}]\njournals: [{code: TOOLONG, name: j, type: sale}]", "1 to 5 characters"},
		{"unknown journal account", "accounts: [{code: '411', name: a, type: income}]\njournals: [{code: VTE, name: j, type: sale, default_account: '999'}]", "unknown account"},
		{"unknown tax account", "accounts: [{code: '411', name: a, type: income}]\ntaxes: [{name: t, amount_type: percent, amount: 20, account: '445'}]", "unknown account"},
		{"malformed", "accounts: [", "failed to parse chart"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChart([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
