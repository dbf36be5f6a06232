package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ChartAccount is one account of the seed chart
type ChartAccount struct {
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Parent     string `yaml:"parent"`
	Reconcile  bool   `yaml:"reconcile"`
	Deprecated bool   `yaml:"deprecated"`
}

// ChartJournal is one journal of the seed chart; account fields hold account codes
type ChartJournal struct {
	Code            string `yaml:"code"`
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	DefaultAccount  string `yaml:"default_account"`
	SuspenseAccount string `yaml:"suspense_account"`
}

// ChartTax is one tax of the seed chart
type ChartTax struct {
	Name         string  `yaml:"name"`
	Use          string  `yaml:"use"`
	AmountType   string  `yaml:"amount_type"`
	Amount       float64 `yaml:"amount"`
	PriceInclude bool    `yaml:"price_include"`
	Account      string  `yaml:"account"`
}

// ChartConfig holds the chart of accounts used to seed a new company
type ChartConfig struct {
	Accounts []ChartAccount `yaml:"accounts"`
	Journals []ChartJournal `yaml:"journals"`
	Taxes    []ChartTax     `yaml:"taxes"`

	byCode map[string]*ChartAccount
}

// LoadChart loads the chart of accounts from a YAML file
func LoadChart(path string) (*ChartConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart file: %w", err)
	}
	return ParseChart(data)
}

// ParseChart parses and validates a YAML chart document
func ParseChart(data []byte) (*ChartConfig, error) {
	var chart ChartConfig
	if err := yaml.Unmarshal(data, &chart); err != nil {
		return nil, fmt.Errorf("failed to parse chart: %w", err)
	}

	chart.byCode = make(map[string]*ChartAccount, len(chart.Accounts))
	for i := range chart.Accounts {
		acc := &chart.Accounts[i]
		chart.byCode[acc.Code] = acc
	}

	if err := chart.Validate(); err != nil {
		return nil, err
	}

	return &chart, nil
}

// Validate checks codes, duplicates and references between sections
func (c *ChartConfig) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}

	seen := make(map[string]bool)
	for i, acc := range c.Accounts {
		if len(acc.Code) < 3 {
			return fmt.Errorf("account code %q must be at least 3 characters", acc.Code)
		}
		if acc.Name == "" {
			return fmt.Errorf("account name is required for code %s", acc.Code)
		}
		if acc.Type == "" {
			return fmt.Errorf("account type is required for code %s", acc.Code)
		}
		if seen[acc.Code] {
			return fmt.Errorf("duplicate account code %s", acc.Code)
		}
		seen[acc.Code] = true
		if acc.Parent != "" {
			// parents must be declared first so seeding can resolve ids in order
			found := false
			for _, prev := range c.Accounts[:i] {
				if prev.Code == acc.Parent {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("parent %s of account %s must be declared before it", acc.Parent, acc.Code)
			}
		}
	}

	journals := make(map[string]bool)
	for _, j := range c.Journals {
		if j.Code == "" || len(j.Code) > 5 {
			return fmt.Errorf("journal code %q must be 1 to 5 characters", j.Code)
		}
		if journals[j.Code] {
			return fmt.Errorf("duplicate journal code %s", j.Code)
		}
		journals[j.Code] = true
		for _, ref := range []string{j.DefaultAccount, j.SuspenseAccount} {
			if ref != "" && !c.HasAccount(ref) {
				return fmt.Errorf("journal %s references unknown account %s", j.Code, ref)
			}
		}
	}

	for _, t := range c.Taxes {
		if t.Name == "" {
			return fmt.Errorf("tax name is required")
		}
		if t.Account != "" && !c.HasAccount(t.Account) {
			return fmt.Errorf("tax %s references unknown account %s", t.Name, t.Account)
		}
	}

	return nil
}

// GetAccount returns the seed account with the given code
func (c *ChartConfig) GetAccount(code string) (*ChartAccount, bool) {
	acc, ok := c.byCode[code]
	return acc, ok
}

// HasAccount checks if an account code is declared
func (c *ChartConfig) HasAccount(code string) bool {
	_, ok := c.byCode[code]
	return ok
}
