package parsers

import (
	"strings"

	"stock-reconciler/internal/textnorm"
	apperrors "stock-reconciler/pkg/errors"
)

// HeaderRule picks the header row index among the raw rows of a sheet.
type HeaderRule func(rows [][]string) int

// MostFilledRow picks the row with the most non-empty cells; the first one wins ties.
func MostFilledRow(rows [][]string) int {
	best, bestCount := 0, -1
	for i, row := range rows {
		if n := filled(row); n > bestCount {
			best, bestCount = i, n
		}
	}
	return best
}

// FirstRowWithAny picks the first row holding one of names as a trimmed
// cell, or the first row when no row does.
func FirstRowWithAny(names []string) HeaderRule {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}
	return func(rows [][]string) int {
		for i, row := range rows {
			for _, cell := range row {
				if want[strings.TrimSpace(cell)] {
					return i
				}
			}
		}
		return 0
	}
}

// Frame is a sheet split into a header and the data rows below it.
type Frame struct {
	Sheet  string
	Header []string
	Rows   [][]string
}

// ReadFrame reads sheet and splits it at the header chosen by rule. Empty
// rows are dropped.
func ReadFrame(wb *Workbook, sheet string, rule HeaderRule) (*Frame, error) {
	raw, err := wb.Rows(sheet)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for _, r := range raw {
		if filled(r) > 0 {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, wb.Filename(), sheet, "", nil).
			WithSuggestion("the sheet is empty")
	}

	h := rule(rows)
	return &Frame{Sheet: sheet, Header: rows[h], Rows: rows[h+1:]}, nil
}

// Columns returns the non-empty header names
func (f *Frame) Columns() []string {
	var cols []string
	for _, c := range f.Header {
		if strings.TrimSpace(c) != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// Index returns the position of column in the header, or -1
func (f *Frame) Index(column string) int {
	if column == "" {
		return -1
	}
	for i, c := range f.Header {
		if c == column {
			return i
		}
	}
	return -1
}

// Find returns the header name matching the first present candidate
func (f *Frame) Find(candidates []string) string {
	return FindName(f.Columns(), candidates)
}

// Cell returns the trimmed value at idx, or "" when the row is shorter
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// FindName returns the entry of names matching the first candidate. Every
// candidate is tried exactly before any is tried on its folded form.
func FindName(names, candidates []string) string {
	for _, c := range candidates {
		for _, n := range names {
			if n == c {
				return n
			}
		}
	}
	for _, c := range candidates {
		key := textnorm.Key(c)
		if key == "" {
			continue
		}
		for _, n := range names {
			if textnorm.Key(n) == key {
				return n
			}
		}
	}
	return ""
}

func filled(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
