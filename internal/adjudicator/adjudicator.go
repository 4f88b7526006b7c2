// Package adjudicator turns verification records into operator choices and
// collects the resulting overrides.
package adjudicator

import (
	"stock-reconciler/internal/models"
	apperrors "stock-reconciler/pkg/errors"
)

// Choices are the values an operator may pick for one workshop
type Choices struct {
	Sheets  []string
	Columns []string
}

// Adjudicator holds verification records and the overrides chosen so far.
// Applying never blocks on invalid records: a blank choice falls back to
// detection when the workshop is processed.
type Adjudicator struct {
	records   map[string]models.VerificationRecord
	order     []string
	overrides map[string]models.Override
}

// New creates an adjudicator over records, kept in the given order
func New(records []models.VerificationRecord) *Adjudicator {
	a := &Adjudicator{
		records:   make(map[string]models.VerificationRecord, len(records)),
		overrides: make(map[string]models.Override),
	}
	for _, r := range records {
		if _, dup := a.records[r.Workshop]; !dup {
			a.order = append(a.order, r.Workshop)
		}
		a.records[r.Workshop] = r
	}
	return a
}

// Records returns the records in order
func (a *Adjudicator) Records() []models.VerificationRecord {
	out := make([]models.VerificationRecord, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.records[name])
	}
	return out
}

// AllValid reports whether every record is valid. The adjudicator is then a
// plain acknowledgement and produces no overrides.
func (a *Adjudicator) AllValid() bool {
	for _, r := range a.records {
		if !r.Valid {
			return false
		}
	}
	return true
}

// Pending returns the workshops with invalid records, in order
func (a *Adjudicator) Pending() []string {
	var out []string
	for _, name := range a.order {
		if !a.records[name].Valid {
			out = append(out, name)
		}
	}
	return out
}

// Choices returns the sheets of the workshop's file and the columns of the
// sheet currently selected for it.
func (a *Adjudicator) Choices(workshop string) (Choices, error) {
	rec, err := a.record(workshop)
	if err != nil {
		return Choices{}, err
	}
	return Choices{
		Sheets:  rec.AvailableSheets,
		Columns: rec.ColumnsFor(a.current(workshop).SheetName),
	}, nil
}

// Current returns the effective selection: the override if one was made,
// otherwise the detected values.
func (a *Adjudicator) Current(workshop string) (models.Override, error) {
	if _, err := a.record(workshop); err != nil {
		return models.Override{}, err
	}
	return a.current(workshop), nil
}

func (a *Adjudicator) current(workshop string) models.Override {
	if ov, ok := a.overrides[workshop]; ok {
		return ov
	}
	rec := a.records[workshop]
	return models.Override{SheetName: rec.ExpectedSheet, RefCol: rec.DetectedRefCol, QtyCol: rec.DetectedQtyCol}
}

// SelectSheet records the sheet for a workshop. Column choices that do not
// exist in the new sheet are cleared.
func (a *Adjudicator) SelectSheet(workshop, sheet string) error {
	rec, err := a.record(workshop)
	if err != nil {
		return err
	}
	if sheet != "" && !contains(rec.AvailableSheets, sheet) {
		return apperrors.ValidationError(apperrors.CodeInvalidInput, "sheet", sheet, nil).
			WithSuggestion("pick one of the sheets listed for this file")
	}
	ov := a.current(workshop)
	ov.SheetName = sheet
	cols := rec.ColumnsFor(sheet)
	if !contains(cols, ov.RefCol) {
		ov.RefCol = ""
	}
	if !contains(cols, ov.QtyCol) {
		ov.QtyCol = ""
	}
	a.overrides[workshop] = ov
	return nil
}

// SelectRefColumn records the reference column for a workshop
func (a *Adjudicator) SelectRefColumn(workshop, column string) error {
	return a.selectColumn(workshop, "ref", column, func(ov *models.Override) { ov.RefCol = column })
}

// SelectQtyColumn records the quantity column for a workshop
func (a *Adjudicator) SelectQtyColumn(workshop, column string) error {
	return a.selectColumn(workshop, "qty", column, func(ov *models.Override) { ov.QtyCol = column })
}

func (a *Adjudicator) selectColumn(workshop, field, column string, set func(*models.Override)) error {
	rec, err := a.record(workshop)
	if err != nil {
		return err
	}
	ov := a.current(workshop)
	if column != "" && !contains(rec.ColumnsFor(ov.SheetName), column) {
		return apperrors.ValidationError(apperrors.CodeInvalidInput, field, column, nil).
			WithSuggestion("pick one of the columns of the selected sheet")
	}
	set(&ov)
	a.overrides[workshop] = ov
	return nil
}

// Apply returns the overrides to use for processing. Nothing is returned
// when every record was valid.
func (a *Adjudicator) Apply() map[string]models.Override {
	if a.AllValid() {
		return nil
	}
	out := make(map[string]models.Override, len(a.overrides))
	for name, ov := range a.overrides {
		out[name] = ov
	}
	return out
}

// Seed pre-loads overrides, e.g. from configuration. Unknown workshops are ignored.
func (a *Adjudicator) Seed(overrides map[string]models.Override) {
	for name, ov := range overrides {
		if _, ok := a.records[name]; ok && !ov.IsZero() {
			a.overrides[name] = ov
		}
	}
}

func (a *Adjudicator) record(workshop string) (models.VerificationRecord, error) {
	rec, ok := a.records[workshop]
	if !ok {
		return rec, apperrors.ValidationError(apperrors.CodeUnknownWorkshop, "workshop", workshop, nil)
	}
	return rec, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
