package reporter

import (
	"stock-reconciler/internal/models"
	apperrors "stock-reconciler/pkg/errors"
)

// Staging collects frozen discrepancy snapshots per workshop for the final
// report. Snapshots never change when the live result does.
type Staging struct {
	order     []string
	snapshots map[string][]models.Row
}

// NewStaging creates empty staging
func NewStaging() *Staging {
	return &Staging{snapshots: make(map[string][]models.Row)}
}

// AddWorkshop stages a copy of rows for workshop, replacing an earlier
// snapshot. Only a non-empty discrepancies view can be staged.
func (s *Staging) AddWorkshop(workshop string, view models.View, rows []models.Row) error {
	if view != models.ViewDiscrepancies {
		return apperrors.ValidationError(apperrors.CodeInvalidInput, "view", view.String(), nil).
			WithSuggestion("only discrepancies can be added to the report")
	}
	if len(rows) == 0 {
		return apperrors.ValidationError(apperrors.CodeInvalidInput, "rows", workshop, nil).
			WithSuggestion("the workshop has no discrepancies to report")
	}
	if _, ok := s.snapshots[workshop]; !ok {
		s.order = append(s.order, workshop)
	}
	s.snapshots[workshop] = models.CloneRows(rows)
	return nil
}

// Clear drops every snapshot
func (s *Staging) Clear() {
	s.order = nil
	s.snapshots = make(map[string][]models.Row)
}

// Len returns the number of staged workshops
func (s *Staging) Len() int { return len(s.order) }

// Names returns staged workshops in the order they were first added
func (s *Staging) Names() []string {
	return append([]string(nil), s.order...)
}

// Snapshot returns a copy of the rows staged for workshop
func (s *Staging) Snapshot(workshop string) ([]models.Row, bool) {
	rows, ok := s.snapshots[workshop]
	if !ok {
		return nil, false
	}
	return models.CloneRows(rows), true
}
