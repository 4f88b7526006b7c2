package reconciler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/parsers"
	"stock-reconciler/internal/textnorm"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// stockTable is a stock sheet reduced to the columns the join needs
type stockTable struct {
	sheet  string
	refIdx int
	qtyIdx int
	locIdx []int
	rows   [][]string
}

func loadStockTable(wb *parsers.Workbook, sheet string, cols models.ColumnCandidates) (*stockTable, error) {
	frame, err := parsers.ReadFrame(wb, sheet, parsers.MostFilledRow)
	if err != nil {
		return nil, err
	}

	t := &stockTable{
		sheet:  sheet,
		refIdx: frame.Index(frame.Find(cols.Ref)),
		qtyIdx: frame.Index(frame.Find(cols.Quantity)),
		rows:   frame.Rows,
	}
	if t.refIdx < 0 {
		return nil, apperrors.ParseError(apperrors.CodeMissingColumn, wb.Filename(), sheet, "reference", nil)
	}
	if t.qtyIdx < 0 {
		return nil, apperrors.ParseError(apperrors.CodeMissingColumn, wb.Filename(), sheet, "quantity", nil)
	}
	for _, c := range frame.Columns() {
		if parsers.FindName([]string{c}, cols.Localisation) != "" {
			t.locIdx = append(t.locIdx, frame.Index(c))
		}
	}
	return t, nil
}

// totals sums quantities per normalised reference over the rows kept by sel.
func (t *stockTable) totals(sel localisationFilter) (map[string]decimal.Decimal, error) {
	if !sel.empty() && len(t.locIdx) == 0 {
		return nil, fmt.Errorf("sheet '%s' has no localisation column", t.sheet)
	}
	out := make(map[string]decimal.Decimal)
	for _, row := range t.rows {
		if !sel.keeps(row, t.locIdx) {
			continue
		}
		addQuantity(out, parsers.Cell(row, t.refIdx), parsers.Cell(row, t.qtyIdx))
	}
	return out, nil
}

// stockSource serves stock totals for every workshop of one snapshot. The
// shared sheet is read once; dedicated sheets are read on first use.
type stockSource struct {
	wb     *parsers.Workbook
	layout models.StockLayout
	shared *stockTable
	logger logger.Logger

	mu        sync.Mutex
	dedicated map[string]*stockTable
}

func openStock(file models.FileRef, unit models.Unit, workshops []models.Workshop, log logger.Logger) (*stockSource, error) {
	wb, err := parsers.Open(file.Path, log)
	if err != nil {
		return nil, err
	}
	src := &stockSource{
		wb:        wb,
		layout:    unit.Stock,
		logger:    log,
		dedicated: make(map[string]*stockTable),
	}

	needShared := false
	for _, ws := range workshops {
		if len(ws.Layout.StockSheets) == 0 {
			needShared = true
			break
		}
	}
	if needShared {
		sheet := wb.SheetContaining(unit.Stock.SheetHint)
		src.shared, err = loadStockTable(wb, sheet, unit.Stock.Columns)
		if err != nil {
			wb.Close()
			return nil, err
		}
		log.WithFields(logger.Fields{"sheet": sheet, "rows": len(src.shared.rows)}).Debug("Stock sheet loaded")
	}
	return src, nil
}

// totals returns the stock quantities of one workshop
func (s *stockSource) totals(ws models.Workshop) (map[string]decimal.Decimal, error) {
	sel := newLocalisationFilter(ws.Layout.Localisations, ws.Layout.ExcludeLocalisations)
	if len(ws.Layout.StockSheets) == 0 {
		return s.shared.totals(sel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, ok := s.wb.ResolveSheet(ws.Layout.StockSheets...)
	if !ok {
		return nil, apperrors.ParseError(apperrors.CodeMissingSheet, s.wb.Filename(), ws.Layout.StockSheets[0], "", nil)
	}
	t, ok := s.dedicated[sheet]
	if !ok {
		var err error
		if t, err = loadStockTable(s.wb, sheet, s.layout.Columns); err != nil {
			return nil, err
		}
		s.dedicated[sheet] = t
	}
	// A dedicated sheet holds a single workshop: only exclusions apply.
	return t.totals(newLocalisationFilter(nil, ws.Layout.ExcludeLocalisations))
}

func (s *stockSource) Close() error {
	return s.wb.Close()
}

// localisationFilter keeps rows whose localisation is included and not excluded
type localisationFilter struct {
	include map[string]bool
	exclude map[string]bool
}

func newLocalisationFilter(include, exclude []string) localisationFilter {
	keys := func(list []string) map[string]bool {
		if len(list) == 0 {
			return nil
		}
		m := make(map[string]bool, len(list))
		for _, l := range list {
			m[textnorm.Key(l)] = true
		}
		return m
	}
	return localisationFilter{include: keys(include), exclude: keys(exclude)}
}

func (f localisationFilter) empty() bool {
	return f.include == nil && f.exclude == nil
}

func (f localisationFilter) keeps(row []string, cols []int) bool {
	if f.empty() {
		return true
	}
	included := f.include == nil
	for _, c := range cols {
		key := textnorm.Key(parsers.Cell(row, c))
		if f.exclude[key] {
			return false
		}
		if f.include[key] {
			included = true
		}
	}
	return included
}

// addQuantity adds qty to the total of ref. Rows without a reference are
// skipped; an unreadable quantity still registers the reference.
func addQuantity(totals map[string]decimal.Decimal, ref, qty string) {
	ref = parsers.NormalizeRef(ref)
	if ref == "" || strings.EqualFold(ref, "nan") {
		return
	}
	q, _ := models.ParseQuantity(qty)
	totals[ref] = totals[ref].Add(q)
}
