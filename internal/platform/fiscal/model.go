package fiscal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of fiscal years and periods
type State string

const (
	StateDraft State = "draft" // open for posting
	StateDone  State = "done"  // closed
)

// FiscalYear is an accounting year of a company, bounds inclusive
type FiscalYear struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	DateFrom  time.Time `json:"date_from"`
	DateTo    time.Time `json:"date_to"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fiscal year fields for creation
func (y *FiscalYear) Validate() error {
	if strings.TrimSpace(y.Name) == "" || strings.TrimSpace(y.Code) == "" {
		return ErrMissingYearName
	}
	if !y.DateFrom.Before(y.DateTo) {
		return ErrInvalidDateRange
	}
	return nil
}

// Overlaps reports whether both years share at least one day
func (y *FiscalYear) Overlaps(other *FiscalYear) bool {
	return !y.DateFrom.After(other.DateTo) && !other.DateFrom.After(y.DateTo)
}

// Contains reports whether date falls inside the year
func (y *FiscalYear) Contains(date time.Time) bool {
	return within(date, y.DateFrom, y.DateTo)
}

// Period is a subdivision of a fiscal year, usually a month
type Period struct {
	ID           uuid.UUID `json:"id"`
	CompanyID    uuid.UUID `json:"company_id"`
	FiscalYearID uuid.UUID `json:"fiscal_year_id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	DateFrom     time.Time `json:"date_from"`
	DateTo       time.Time `json:"date_to"`
	State        State     `json:"state"`
}

// Contains reports whether date falls inside the period
func (p *Period) Contains(date time.Time) bool {
	return within(date, p.DateFrom, p.DateTo)
}

// IsOpen reports whether entries can still be posted in the period
func (p *Period) IsOpen() bool {
	return p.State != StateDone
}

// MonthlyPeriods splits a fiscal year into calendar-month periods; the
// last one ends on the year's last day
func MonthlyPeriods(year *FiscalYear) []*Period {
	var periods []*Period
	start := day(year.DateFrom)
	end := day(year.DateTo)
	for n := 1; !start.After(end); n++ {
		stop := time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		if stop.After(end) {
			stop = end
		}
		periods = append(periods, &Period{
			CompanyID:    year.CompanyID,
			FiscalYearID: year.ID,
			Name:         start.Format("01/2006"),
			Code:         fmt.Sprintf("%s/%02d", year.Code, n),
			DateFrom:     start,
			DateTo:       stop,
			State:        StateDraft,
		})
		start = stop.AddDate(0, 0, 1)
	}
	return periods
}

// TaxMapping replaces a source tax; a nil destination removes it
type TaxMapping struct {
	SourceTaxID uuid.UUID  `json:"source_tax_id"`
	DestTaxID   *uuid.UUID `json:"dest_tax_id,omitempty"`
}

// AccountMapping replaces a source account
type AccountMapping struct {
	SourceAccountID uuid.UUID `json:"source_account_id"`
	DestAccountID   uuid.UUID `json:"dest_account_id"`
}

// Position adapts taxes and accounts to a partner's tax situation, e.g.
// intra-EU customers or exports
type Position struct {
	ID        uuid.UUID        `json:"id"`
	CompanyID uuid.UUID        `json:"company_id"`
	Name      string           `json:"name"`
	Taxes     []TaxMapping     `json:"taxes"`
	Accounts  []AccountMapping `json:"accounts"`
	CreatedAt time.Time        `json:"created_at"`
}

// MapTaxes replaces every mapped tax by its destinations, keeping order and
// dropping duplicates; unmapped taxes are kept
func (p *Position) MapTaxes(taxIDs []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	result := make([]uuid.UUID, 0, len(taxIDs))
	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}

	for _, id := range taxIDs {
		mapped := false
		for _, m := range p.Taxes {
			if m.SourceTaxID != id {
				continue
			}
			mapped = true
			if m.DestTaxID != nil {
				add(*m.DestTaxID)
			}
		}
		if !mapped {
			add(id)
		}
	}
	return result
}

// MapAccount returns the replacement of an account, or the account itself
func (p *Position) MapAccount(accountID uuid.UUID) uuid.UUID {
	for _, m := range p.Accounts {
		if m.SourceAccountID == accountID {
			return m.DestAccountID
		}
	}
	return accountID
}

func within(date, from, to time.Time) bool {
	d := day(date)
	return !d.Before(day(from)) && !d.After(day(to))
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
