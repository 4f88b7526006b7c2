package models

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FileRef identifies an input workbook. Identity is the absolute path.
type FileRef struct {
	Path     string `json:"path" yaml:"path"`
	Filename string `json:"filename" yaml:"filename"`
}

// NewFileRef resolves path to an absolute path and records its base name.
func NewFileRef(path string) (FileRef, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileRef{}, fmt.Errorf("cannot resolve path %q: %w", path, err)
	}
	return FileRef{Path: abs, Filename: filepath.Base(abs)}, nil
}

// Equals reports whether both references point at the same file
func (f FileRef) Equals(other FileRef) bool {
	return f.Path == other.Path
}

// IsZero reports whether the reference is unset
func (f FileRef) IsZero() bool {
	return f.Path == ""
}

// String returns the filename
func (f FileRef) String() string {
	return f.Filename
}

// DefaultMonth is used when the stock filename carries no period.
const DefaultMonth = "12"

// Period is the reporting month and year of a reconciliation run.
type Period struct {
	Month string `json:"month" yaml:"month"` // zero-padded, "01".."12"
	Year  int    `json:"year" yaml:"year"`
}

// NewPeriod builds a Period from a month number and a year.
func NewPeriod(month, year int) (Period, error) {
	p := Period{Month: fmt.Sprintf("%02d", month), Year: year}
	return p, p.Validate()
}

// DefaultPeriod returns December of the given year.
func DefaultPeriod(year int) Period {
	return Period{Month: DefaultMonth, Year: year}
}

// Validate performs basic validation on the Period
func (p Period) Validate() error {
	m, err := strconv.Atoi(p.Month)
	if err != nil || len(p.Month) != 2 || m < 1 || m > 12 {
		return fmt.Errorf("month must be between 01 and 12, got %q", p.Month)
	}
	if p.Year < 1900 || p.Year > 9999 {
		return fmt.Errorf("year must have four digits, got %d", p.Year)
	}
	return nil
}

// MonthNumber returns the month as an integer
func (p Period) MonthNumber() int {
	m, _ := strconv.Atoi(p.Month)
	return m
}

// Includes reports whether t falls in the cumulative window ending with the
// period: any earlier year, or the period's year up to and including its month.
func (p Period) Includes(t time.Time) bool {
	if t.Year() < p.Year {
		return true
	}
	return t.Year() == p.Year && int(t.Month()) <= p.MonthNumber()
}

// String returns "MM/YYYY"
func (p Period) String() string {
	return fmt.Sprintf("%s/%d", p.Month, p.Year)
}

// Row is one reference line of a reconciliation: declared stock against
// the quantity computed from the movement ledger.
type Row struct {
	ID         string          `json:"id,omitempty" yaml:"id,omitempty"`
	Ref        string          `json:"Ref" yaml:"ref"`
	StockQty   decimal.Decimal `json:"Stock_Qty" yaml:"stock_qty"`
	CalcMovQty decimal.Decimal `json:"Calc_Mov_Qty" yaml:"calc_mov_qty"`
	Difference decimal.Decimal `json:"Difference" yaml:"difference"`
}

// NewRow builds a row and derives Difference as StockQty - CalcMovQty, rounded to two places.
func NewRow(ref string, stockQty, calcMovQty decimal.Decimal) Row {
	return Row{
		Ref:        ref,
		StockQty:   stockQty,
		CalcMovQty: calcMovQty,
		Difference: stockQty.Sub(calcMovQty).Round(2),
	}
}

// NormalizedRef returns the reference with surrounding whitespace removed
func (r Row) NormalizedRef() string {
	return strings.TrimSpace(r.Ref)
}

// String returns a string representation of the Row
func (r Row) String() string {
	return fmt.Sprintf("Row{Ref: %s, Stock: %s, Mov: %s, Diff: %s}",
		r.Ref, r.StockQty.StringFixed(2), r.CalcMovQty.StringFixed(2), r.Difference.StringFixed(2))
}

// MarshalJSON writes quantities as plain numbers with two decimals
func (r Row) MarshalJSON() ([]byte, error) {
	type Alias Row
	return json.Marshal(&struct {
		StockQty   json.Number `json:"Stock_Qty"`
		CalcMovQty json.Number `json:"Calc_Mov_Qty"`
		Difference json.Number `json:"Difference"`
		*Alias
	}{
		StockQty:   json.Number(r.StockQty.StringFixed(2)),
		CalcMovQty: json.Number(r.CalcMovQty.StringFixed(2)),
		Difference: json.Number(r.Difference.StringFixed(2)),
		Alias:      (*Alias)(&r),
	})
}

// CloneRows returns an independent copy of rows
func CloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}

// View selects one of the two row lists of a workshop result.
type View int

const (
	ViewMatches View = iota
	ViewDiscrepancies
)

// String returns the string representation of View
func (v View) String() string {
	switch v {
	case ViewMatches:
		return "matches"
	case ViewDiscrepancies:
		return "discrepancies"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

// IsValid checks if the view is one of the two known lists
func (v View) IsValid() bool {
	return v == ViewMatches || v == ViewDiscrepancies
}

// ParseView parses and validates a view name
func ParseView(s string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "matches", "match", "m":
		return ViewMatches, nil
	case "discrepancies", "discrepancy", "d":
		return ViewDiscrepancies, nil
	default:
		return 0, fmt.Errorf("invalid view '%s': must be matches or discrepancies", s)
	}
}

// WorkshopResult is the outcome for one workshop: either the two row lists or an error.
type WorkshopResult struct {
	Matches       []Row  `json:"matches" yaml:"matches"`
	Discrepancies []Row  `json:"discrepancies" yaml:"discrepancies"`
	Err           string `json:"error,omitempty" yaml:"error,omitempty"`
}

// FailedResult builds a result slot carrying only an error message
func FailedResult(msg string) *WorkshopResult {
	return &WorkshopResult{Err: msg}
}

// Failed reports whether the workshop could not be aggregated
func (w *WorkshopResult) Failed() bool {
	return w.Err != ""
}

// Rows returns the list selected by view. The returned pointer aliases the
// result so callers can mutate the list in place.
func (w *WorkshopResult) Rows(view View) *[]Row {
	if view == ViewMatches {
		return &w.Matches
	}
	return &w.Discrepancies
}

// Label renders "name (matches / discrepancies)" or the error marker
func (w *WorkshopResult) Label(name string) string {
	if w.Failed() {
		return fmt.Sprintf("%s (error)", name)
	}
	return fmt.Sprintf("%s (%d / %d)", name, len(w.Matches), len(w.Discrepancies))
}

// ReconciliationResult maps workshop names to their results and remembers
// the order in which workshops were processed.
type ReconciliationResult struct {
	Workshops map[string]*WorkshopResult `json:"workshops" yaml:"workshops"`
	Order     []string                   `json:"order" yaml:"order"`
}

// NewReconciliationResult creates an empty result
func NewReconciliationResult() *ReconciliationResult {
	return &ReconciliationResult{Workshops: make(map[string]*WorkshopResult)}
}

// Set stores the result for a workshop, appending it to the order on first insert
func (r *ReconciliationResult) Set(name string, result *WorkshopResult) {
	if _, ok := r.Workshops[name]; !ok {
		r.Order = append(r.Order, name)
	}
	r.Workshops[name] = result
}

// Get returns the result for a workshop
func (r *ReconciliationResult) Get(name string) (*WorkshopResult, bool) {
	if r == nil {
		return nil, false
	}
	w, ok := r.Workshops[name]
	return w, ok
}

// Names returns workshop names in processing order
func (r *ReconciliationResult) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.Order...)
}

// ParseQuantity parses a spreadsheet cell as a quantity. Thousand separators
// and surrounding spaces are tolerated; a lone comma is read as the decimal mark.
func ParseQuantity(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", ""))
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.ReplaceAll(s, " ", "")

	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseTimeWithFormats attempts to parse time from string using multiple common formats
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"02/01/2006 15:04:05",
		"02/01/2006",
		"02-01-2006",
		"2006/01/02",
		"01-02-06",
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}
