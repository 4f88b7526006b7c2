// Package store holds the reconciliation result being worked on and derives
// its summary.
package store

import (
	"strings"

	"github.com/google/uuid"

	"stock-reconciler/internal/models"
	apperrors "stock-reconciler/pkg/errors"
)

// Summary counts rows over the current result. TotalWorkshops includes
// failed workshops; their rows, which do not exist, count for nothing.
type Summary struct {
	TotalMatches       int `json:"totalMatches" yaml:"total_matches"`
	TotalDiscrepancies int `json:"totalDiscrepancies" yaml:"total_discrepancies"`
	TotalWorkshops     int `json:"totalWorkshops" yaml:"total_workshops"`
	FailedWorkshops    int `json:"failedWorkshops" yaml:"failed_workshops"`
}

// Store owns the authoritative result. It is replaced wholesale after a
// processing run and otherwise only changed row by row.
type Store struct {
	result *models.ReconciliationResult
}

// New creates an empty store
func New() *Store {
	return &Store{result: models.NewReconciliationResult()}
}

// Replace installs a new result and gives every row a fresh identifier.
// The store takes ownership of result.
func (s *Store) Replace(result *models.ReconciliationResult) {
	if result == nil {
		result = models.NewReconciliationResult()
	}
	for _, name := range result.Order {
		w := result.Workshops[name]
		if w == nil {
			continue
		}
		for _, rows := range [][]models.Row{w.Matches, w.Discrepancies} {
			for i := range rows {
				rows[i].ID = newID()
			}
		}
	}
	s.result = result
}

// Result returns the live result. Callers must not mutate it directly.
func (s *Store) Result() *models.ReconciliationResult {
	return s.result
}

// Workshop returns the result of one workshop
func (s *Store) Workshop(name string) (*models.WorkshopResult, bool) {
	return s.result.Get(name)
}

// Rows returns a copy of one list of a workshop
func (s *Store) Rows(workshop string, view models.View) ([]models.Row, error) {
	rows, err := s.rows(workshop, view)
	if err != nil {
		return nil, err
	}
	return models.CloneRows(*rows), nil
}

// Summary is computed from the rows on every call.
func (s *Store) Summary() Summary {
	var sum Summary
	for _, name := range s.result.Order {
		w := s.result.Workshops[name]
		sum.TotalWorkshops++
		if w == nil || w.Failed() {
			sum.FailedWorkshops++
			continue
		}
		sum.TotalMatches += len(w.Matches)
		sum.TotalDiscrepancies += len(w.Discrepancies)
	}
	return sum
}

// DeleteRow removes the first row whose trimmed reference is ref.
func (s *Store) DeleteRow(workshop string, view models.View, ref string) (models.Row, error) {
	return s.remove(workshop, view, "ref", ref, sameRef(ref))
}

// DeleteRowByID removes the row with the given identifier
func (s *Store) DeleteRowByID(workshop string, view models.View, id string) (models.Row, error) {
	return s.remove(workshop, view, "id", id, func(r models.Row) bool { return r.ID == id })
}

// EditRef renames the first row whose trimmed reference is oldRef. The new
// reference must not be blank.
func (s *Store) EditRef(workshop string, view models.View, oldRef, newRef string) (models.Row, error) {
	return s.rename(workshop, view, "ref", oldRef, newRef, sameRef(oldRef))
}

// EditRefByID renames the row with the given identifier
func (s *Store) EditRefByID(workshop string, view models.View, id, newRef string) (models.Row, error) {
	return s.rename(workshop, view, "id", id, newRef, func(r models.Row) bool { return r.ID == id })
}

// DeleteRefs removes every discrepancy whose trimmed reference is in refs
// and returns how many rows went.
func (s *Store) DeleteRefs(workshop string, view models.View, refs map[string]bool) (int, error) {
	rows, err := s.rows(workshop, view)
	if err != nil {
		return 0, err
	}
	kept := (*rows)[:0]
	for _, r := range *rows {
		if !refs[r.NormalizedRef()] {
			kept = append(kept, r)
		}
	}
	deleted := len(*rows) - len(kept)
	*rows = kept
	return deleted, nil
}

func (s *Store) remove(workshop string, view models.View, field, key string, match func(models.Row) bool) (models.Row, error) {
	rows, err := s.rows(workshop, view)
	if err != nil {
		return models.Row{}, err
	}
	for i, r := range *rows {
		if match(r) {
			*rows = append((*rows)[:i], (*rows)[i+1:]...)
			return r, nil
		}
	}
	return models.Row{}, apperrors.ValidationError(apperrors.CodeRowNotFound, field, key, nil)
}

func (s *Store) rename(workshop string, view models.View, field, key, newRef string, match func(models.Row) bool) (models.Row, error) {
	if strings.TrimSpace(newRef) == "" {
		return models.Row{}, apperrors.ValidationError(apperrors.CodeInvalidInput, "reference", newRef, nil)
	}
	rows, err := s.rows(workshop, view)
	if err != nil {
		return models.Row{}, err
	}
	for i := range *rows {
		if match((*rows)[i]) {
			(*rows)[i].Ref = newRef
			return (*rows)[i], nil
		}
	}
	return models.Row{}, apperrors.ValidationError(apperrors.CodeRowNotFound, field, key, nil)
}

func (s *Store) rows(workshop string, view models.View) (*[]models.Row, error) {
	if !view.IsValid() {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidInput, "view", view.String(), nil)
	}
	w, ok := s.result.Get(workshop)
	if !ok {
		return nil, apperrors.ValidationError(apperrors.CodeUnknownWorkshop, "workshop", workshop, nil)
	}
	if w.Failed() {
		return nil, apperrors.ReconciliationError(apperrors.CodeAggregationFailed, workshop, nil).
			WithSuggestion(w.Err)
	}
	return w.Rows(view), nil
}

func sameRef(ref string) func(models.Row) bool {
	ref = strings.TrimSpace(ref)
	return func(r models.Row) bool { return r.NormalizedRef() == ref }
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
