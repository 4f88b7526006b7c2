package parsers

import (
	"fmt"
	"strings"

	"stock-reconciler/internal/models"
	apperrors "stock-reconciler/pkg/errors"
)

// MovementLayout is the resolved location of a workshop's movement data.
type MovementLayout struct {
	Sheet   string
	RefCol  string
	QtyCol  string
	DateCol string
	LocCol  string
}

// ResolveMovement finds the workshop's movement sheet and columns in wb.
// Operator overrides win over the layout's fixed columns, which win over
// the unit's candidate lists.
func ResolveMovement(wb *Workbook, ws models.Workshop, cands models.ColumnCandidates, ov models.Override) (*Frame, MovementLayout, error) {
	sheet, ok := movementSheet(wb, ws, ov)
	if !ok {
		return nil, MovementLayout{}, apperrors.ParseError(apperrors.CodeMissingSheet, wb.Filename(), sheet, "", nil).
			WithSuggestion(fmt.Sprintf("available sheets: %s", strings.Join(wb.SheetNames(), ", ")))
	}

	frame, err := ReadFrame(wb, sheet, FirstRowWithAny(cands.Date))
	if err != nil {
		return nil, MovementLayout{}, err
	}

	cols := frame.Columns()
	layout := MovementLayout{
		Sheet:   sheet,
		RefCol:  pickColumn(cols, ov.RefCol, ws.Layout.RefColumn, cands.Ref),
		QtyCol:  pickColumn(cols, ov.QtyCol, ws.Layout.QtyColumn, cands.Quantity),
		DateCol: FindName(cols, cands.Date),
		LocCol:  FindName(cols, cands.Localisation),
	}
	for _, c := range [][2]string{{"reference", layout.RefCol}, {"quantity", layout.QtyCol}} {
		if c[1] == "" {
			return nil, layout, apperrors.ParseError(apperrors.CodeMissingColumn, wb.Filename(), sheet, c[0], nil).
				WithSuggestion(fmt.Sprintf("available columns: %s", strings.Join(cols, ", ")))
		}
	}
	return frame, layout, nil
}

// Inspect builds the verification record of a workshop's movement file.
// It never fails: problems are listed in the record's Errors.
func Inspect(wb *Workbook, ws models.Workshop, cands models.ColumnCandidates, ov models.Override) models.VerificationRecord {
	rec := models.VerificationRecord{
		Workshop:        ws.Name,
		Filename:        wb.Filename(),
		AvailableSheets: wb.SheetNames(),
		ColumnsBySheet:  make(map[string][]string),
	}

	rule := FirstRowWithAny(cands.Date)
	for _, s := range rec.AvailableSheets {
		if frame, err := ReadFrame(wb, s, rule); err == nil {
			rec.ColumnsBySheet[s] = frame.Columns()
		} else {
			rec.ColumnsBySheet[s] = nil
		}
	}

	sheet, ok := movementSheet(wb, ws, ov)
	rec.ExpectedSheet = sheet
	if !ok {
		rec.Errors = append(rec.Errors,
			apperrors.ParseError(apperrors.CodeMissingSheet, rec.Filename, sheet, "", nil).Message)
	}

	rec.AvailableColumns = rec.ColumnsBySheet[sheet]
	rec.DetectedRefCol = pickColumn(rec.AvailableColumns, ov.RefCol, ws.Layout.RefColumn, cands.Ref)
	rec.DetectedQtyCol = pickColumn(rec.AvailableColumns, ov.QtyCol, ws.Layout.QtyColumn, cands.Quantity)
	if ok && rec.DetectedRefCol == "" {
		rec.Errors = append(rec.Errors,
			apperrors.ParseError(apperrors.CodeMissingColumn, rec.Filename, sheet, "reference", nil).Message)
	}
	if ok && rec.DetectedQtyCol == "" {
		rec.Errors = append(rec.Errors,
			apperrors.ParseError(apperrors.CodeMissingColumn, rec.Filename, sheet, "quantity", nil).Message)
	}

	rec.ComputeValid()
	return rec
}

// movementSheet returns the sheet to read and whether it exists. When it
// does not, the returned name is the one that was expected.
func movementSheet(wb *Workbook, ws models.Workshop, ov models.Override) (string, bool) {
	if ov.SheetName != "" {
		name, ok := wb.ResolveSheet(ov.SheetName)
		if !ok {
			return ov.SheetName, false
		}
		return name, true
	}
	if name, ok := wb.ResolveSheet(ws.Layout.SheetNames...); ok {
		return name, true
	}
	if len(ws.Layout.SheetNames) > 0 {
		return ws.Layout.SheetNames[0], false
	}
	return "", false
}

// pickColumn applies the override, then the fixed column, then the
// candidates. An override that is not in cols yields "".
func pickColumn(cols []string, override, fixed string, candidates []string) string {
	if override != "" {
		return FindName(cols, []string{override})
	}
	if fixed != "" {
		if name := FindName(cols, []string{fixed}); name != "" {
			return name
		}
	}
	return FindName(cols, candidates)
}
