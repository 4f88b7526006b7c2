package session

import (
	"fmt"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/pairs"
	"stock-reconciler/internal/reporter"
	"stock-reconciler/internal/review"
	apperrors "stock-reconciler/pkg/errors"
)

// ActiveWorkshop returns the workshop shown in the results step
func (s *Session) ActiveWorkshop() string { return s.active }

// View returns the active result view
func (s *Session) View() models.View { return s.view }

// SelectWorkshop makes another workshop of the result the active one.
// Leaving a workshop abandons its review.
func (s *Session) SelectWorkshop(name string) ([]string, error) {
	if _, ok := s.store.Workshop(name); !ok {
		return nil, apperrors.ValidationError(apperrors.CodeUnknownWorkshop, "workshop", name, nil)
	}
	if name == s.active {
		return nil, nil
	}
	notices := s.Navigate()
	s.active = name
	return notices, nil
}

// SetView switches between matches and discrepancies. Leaving the
// discrepancies view abandons an open review.
func (s *Session) SetView(view models.View) ([]string, error) {
	if !view.IsValid() {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidInput, "view", view.String(), nil)
	}
	if view == s.view {
		return nil, nil
	}
	var notices []string
	if view != models.ViewDiscrepancies {
		notices = s.review.Navigate().Notices
	}
	s.view = view
	return notices, nil
}

// Rows returns a copy of the active view of the active workshop
func (s *Session) Rows() ([]models.Row, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	return s.store.Rows(s.active, s.view)
}

// DeleteRow deletes the first row of the active view whose reference is ref
func (s *Session) DeleteRow(ref string) ([]string, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	out, err := s.review.Delete(s.active, s.view, ref)
	return out.Notices, err
}

// DeleteRowByID deletes the row with the given identifier from the active view
func (s *Session) DeleteRowByID(id string) ([]string, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	out, err := s.review.DeleteByID(s.active, s.view, id)
	return out.Notices, err
}

// EditRef renames the first row of the active view whose reference is oldRef
func (s *Session) EditRef(oldRef, newRef string) ([]string, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	row, err := s.review.Edit(s.active, s.view, oldRef, newRef)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("Reference %s renamed to %s", oldRef, row.Ref)}, nil
}

// EditRefByID renames the row with the given identifier
func (s *Session) EditRefByID(id, newRef string) ([]string, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	row, err := s.review.EditByID(s.active, s.view, id, newRef)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("Reference renamed to %s", row.Ref)}, nil
}

// EnterReview opens a review of the active workshop's discrepancies
func (s *Session) EnterReview() ([]string, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	out, err := s.review.Enter(s.active, s.view)
	return out.Notices, err
}

// ReviewState returns the state of the review workflow
func (s *Session) ReviewState() review.State { return s.review.State() }

// Pairs returns the opposite pairs of the open review
func (s *Session) Pairs() []pairs.OppositePair { return s.review.Pairs() }

// Selected reports whether ref is marked for elimination
func (s *Session) Selected(ref string) bool { return s.review.Selected(ref) }

// Selection returns the references marked for elimination, sorted
func (s *Session) Selection() []string { return s.review.Selection() }

// Toggle marks or unmarks one reference
func (s *Session) Toggle(ref string) error { return s.review.Toggle(ref) }

// ToggleAll selects every paired reference, or none when all are selected
func (s *Session) ToggleAll() error { return s.review.ToggleAll() }

// SelectAllState returns the tri-state of the select-all control
func (s *Session) SelectAllState() review.SelectAll { return s.review.SelectAllState() }

// Commit eliminates the selected references and closes the review
func (s *Session) Commit() ([]string, error) {
	out, err := s.review.Commit()
	return out.Notices, err
}

// Abandon closes the review without eliminating anything
func (s *Session) Abandon() []string { return s.review.Abandon().Notices }

// StageWorkshop snapshots the active workshop's discrepancies into the report
func (s *Session) StageWorkshop() ([]string, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	rows, err := s.store.Rows(s.active, s.view)
	if err != nil {
		return nil, err
	}
	if err := s.staging.AddWorkshop(s.active, s.view, rows); err != nil {
		return nil, err
	}
	s.logger.WithField("workshop", s.active).WithField("rows", len(rows)).Info("Workshop staged for report")
	return []string{fmt.Sprintf("%s added to report (%d rows)", s.active, len(rows))}, nil
}

// ClearReport empties the staged report
func (s *Session) ClearReport() []string {
	if s.staging.Len() == 0 {
		return nil
	}
	s.staging.Clear()
	return []string{"Report cleared"}
}

// Staged returns the staged workshops in staging order
func (s *Session) Staged() []string { return s.staging.Names() }

// Report builds the report document from the staged snapshots
func (s *Session) Report() *reporter.Document {
	return reporter.BuildDocument(s.unit.ID, s.period.String(), s.staging)
}

// Export writes the active view of the active workshop to destination
func (s *Session) Export(destination string) error {
	rows, err := s.Rows()
	if err != nil {
		return err
	}
	return s.exporter.ExportTable(rows, destination)
}

// ExportAll writes every non-failed workshop's tables into dir
func (s *Session) ExportAll(dir string, format reporter.OutputFormat) ([]string, error) {
	if s.step != StepResults {
		return nil, apperrors.ReconciliationError(apperrors.CodeNotReady, "export", nil).
			WithSuggestion("process the files first")
	}
	return s.exporter.ExportAll(s.store.Result(), dir, format)
}

func (s *Session) requireActive() error {
	if s.step != StepResults || s.active == "" {
		return apperrors.ReconciliationError(apperrors.CodeNotReady, "result commands", nil).
			WithSuggestion("process the files first")
	}
	return nil
}
