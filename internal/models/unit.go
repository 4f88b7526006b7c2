package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Layout describes where a workshop's data lives in the movement file and
// which stock rows belong to it.
type Layout struct {
	// SheetNames are candidate movement sheets; the first one present is used.
	SheetNames []string `json:"sheet_names" yaml:"sheet_names" toml:"sheet_names"`
	// RefColumn and QtyColumn pin the movement columns, bypassing detection.
	RefColumn string `json:"ref_column,omitempty" yaml:"ref_column,omitempty" toml:"ref_column,omitempty"`
	QtyColumn string `json:"qty_column,omitempty" yaml:"qty_column,omitempty" toml:"qty_column,omitempty"`
	// Localisations select stock rows by their localisation column.
	Localisations []string `json:"localisations,omitempty" yaml:"localisations,omitempty" toml:"localisations,omitempty"`
	// ExcludeLocalisations drops stock rows regardless of Localisations.
	ExcludeLocalisations []string `json:"exclude_localisations,omitempty" yaml:"exclude_localisations,omitempty" toml:"exclude_localisations,omitempty"`
	// MovementByLocalisation applies the localisation filters to movement
	// rows too, using the movement sheet's localisation column.
	MovementByLocalisation bool `json:"movement_by_localisation,omitempty" yaml:"movement_by_localisation,omitempty" toml:"movement_by_localisation,omitempty"`
	// StockSheets, when set, read the workshop's stock from a dedicated sheet
	// instead of filtering the shared one by localisation.
	StockSheets []string `json:"stock_sheets,omitempty" yaml:"stock_sheets,omitempty" toml:"stock_sheets,omitempty"`
}

// Workshop is a matching target of a unit
type Workshop struct {
	Name     string   `json:"name" yaml:"name" toml:"name"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty" toml:"keywords,omitempty"`
	Layout   Layout   `json:"layout" yaml:"layout" toml:"layout"`
}

// MatchKeywords returns the keywords in priority order, falling back to the name
func (w Workshop) MatchKeywords() []string {
	if len(w.Keywords) > 0 {
		return w.Keywords
	}
	return []string{w.Name}
}

// ColumnCandidates lists accepted header names per column kind, in priority order.
type ColumnCandidates struct {
	Date         []string `json:"date,omitempty" yaml:"date,omitempty" toml:"date,omitempty"`
	Ref          []string `json:"ref" yaml:"ref" toml:"ref"`
	Quantity     []string `json:"quantity" yaml:"quantity" toml:"quantity"`
	Localisation []string `json:"localisation,omitempty" yaml:"localisation,omitempty" toml:"localisation,omitempty"`
}

// StockLayout describes the stock snapshot workbook of a unit
type StockLayout struct {
	// SheetHint selects the first sheet whose upper-cased name contains it.
	SheetHint string           `json:"sheet_hint" yaml:"sheet_hint" toml:"sheet_hint"`
	Columns   ColumnCandidates `json:"columns" yaml:"columns" toml:"columns"`
}

// Unit is a manufacturing site and its workshop configuration.
type Unit struct {
	ID             string           `json:"id" yaml:"id" toml:"id"`
	Workshops      []Workshop       `json:"workshops" yaml:"workshops" toml:"workshops"`
	Movement       ColumnCandidates `json:"movement" yaml:"movement" toml:"movement"`
	Stock          StockLayout      `json:"stock" yaml:"stock" toml:"stock"`
	FilterByPeriod bool             `json:"filter_by_period" yaml:"filter_by_period" toml:"filter_by_period"`
	// MatchTolerance is the largest absolute difference still counted as a match.
	MatchTolerance decimal.Decimal `json:"match_tolerance" yaml:"match_tolerance" toml:"match_tolerance"`
}

// Validate performs basic validation on the Unit
func (u Unit) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("unit ID cannot be empty")
	}
	if len(u.Workshops) == 0 {
		return fmt.Errorf("unit %s has no workshops", u.ID)
	}
	seen := make(map[string]bool, len(u.Workshops))
	for _, w := range u.Workshops {
		if strings.TrimSpace(w.Name) == "" {
			return fmt.Errorf("unit %s has a workshop without a name", u.ID)
		}
		if seen[w.Name] {
			return fmt.Errorf("unit %s declares workshop %q twice", u.ID, w.Name)
		}
		seen[w.Name] = true
		if len(w.Layout.SheetNames) == 0 {
			return fmt.Errorf("workshop %q of unit %s has no movement sheet", w.Name, u.ID)
		}
	}
	if len(u.Movement.Ref) == 0 || len(u.Movement.Quantity) == 0 {
		return fmt.Errorf("unit %s needs ref and quantity column candidates", u.ID)
	}
	if len(u.Stock.Columns.Ref) == 0 || len(u.Stock.Columns.Quantity) == 0 {
		return fmt.Errorf("unit %s needs stock ref and quantity column candidates", u.ID)
	}
	if u.MatchTolerance.IsNegative() {
		return fmt.Errorf("unit %s has a negative match tolerance", u.ID)
	}
	return nil
}

// Workshop returns the workshop with the given name
func (u Unit) Workshop(name string) (Workshop, bool) {
	for _, w := range u.Workshops {
		if w.Name == name {
			return w, true
		}
	}
	return Workshop{}, false
}

// WorkshopNames returns workshop names in configured order
func (u Unit) WorkshopNames() []string {
	names := make([]string, len(u.Workshops))
	for i, w := range u.Workshops {
		names[i] = w.Name
	}
	return names
}
