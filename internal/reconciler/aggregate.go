package reconciler

import (
	"sort"

	"github.com/shopspring/decimal"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/parsers"
	"stock-reconciler/pkg/logger"
)

// movementTotals sums the movement ledger of one workshop per reference.
// With a period, rows outside the cumulative window or without a readable
// date are dropped.
func movementTotals(wb *parsers.Workbook, ws models.Workshop, cands models.ColumnCandidates, ov models.Override, period *models.Period, log logger.Logger) (map[string]decimal.Decimal, error) {
	frame, layout, err := parsers.ResolveMovement(wb, ws, cands, ov)
	if err != nil {
		return nil, err
	}
	log = log.WithFields(logger.Fields{"workshop": ws.Name, "sheet": layout.Sheet})

	refIdx := frame.Index(layout.RefCol)
	qtyIdx := frame.Index(layout.QtyCol)
	dateIdx := frame.Index(layout.DateCol)
	if period != nil && dateIdx < 0 {
		log.Warn("No date column, period filter not applied")
		period = nil
	}

	var locCols []int
	sel := localisationFilter{}
	if ws.Layout.MovementByLocalisation {
		if idx := frame.Index(layout.LocCol); idx >= 0 {
			locCols = []int{idx}
			sel = newLocalisationFilter(ws.Layout.Localisations, ws.Layout.ExcludeLocalisations)
		} else {
			log.Warn("No localisation column, movement rows not filtered")
		}
	}

	totals := make(map[string]decimal.Decimal)
	dropped := 0
	for _, row := range frame.Rows {
		if period != nil {
			t, ok := parsers.ParseDate(parsers.Cell(row, dateIdx))
			if !ok || !period.Includes(t) {
				dropped++
				continue
			}
		}
		if !sel.keeps(row, locCols) {
			dropped++
			continue
		}
		addQuantity(totals, parsers.Cell(row, refIdx), parsers.Cell(row, qtyIdx))
	}

	log.WithFields(logger.Fields{
		"rows":       len(frame.Rows),
		"dropped":    dropped,
		"references": len(totals),
	}).Debug("Movement ledger summed")
	return totals, nil
}

// join outer-joins stock and movement totals on the reference. A side
// missing a reference counts as zero. Rows whose absolute difference is
// within tolerance are matches; discrepancies are ordered by difference,
// largest first.
func join(stock, movement map[string]decimal.Decimal, tolerance decimal.Decimal) *models.WorkshopResult {
	refs := make([]string, 0, len(stock)+len(movement))
	for ref := range stock {
		refs = append(refs, ref)
	}
	for ref := range movement {
		if _, ok := stock[ref]; !ok {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)

	res := &models.WorkshopResult{Matches: []models.Row{}, Discrepancies: []models.Row{}}
	for _, ref := range refs {
		row := models.NewRow(ref, stock[ref].Round(2), movement[ref].Round(2))
		if row.Difference.Abs().LessThanOrEqual(tolerance) {
			res.Matches = append(res.Matches, row)
		} else {
			res.Discrepancies = append(res.Discrepancies, row)
		}
	}

	sort.SliceStable(res.Discrepancies, func(i, j int) bool {
		return res.Discrepancies[i].Difference.GreaterThan(res.Discrepancies[j].Difference)
	})
	return res
}
