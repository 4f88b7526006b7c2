// Package review implements the elimination workflow over one workshop's
// discrepancies: detecting opposite pairs, selecting references and
// deleting the selected rows. Manual edits and deletions go through the
// workflow as well so that an open review never points at stale references.
package review

import (
	"fmt"
	"sort"
	"strings"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/pairs"
	"stock-reconciler/internal/store"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// State of the workflow
type State int

const (
	Idle State = iota
	Reviewing
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Reviewing:
		return "reviewing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SelectAll is the checked status of the "select all" control
type SelectAll int

const (
	SelectNone SelectAll = iota
	SelectSome
	SelectEvery
)

// String returns the string representation of SelectAll
func (s SelectAll) String() string {
	switch s {
	case SelectNone:
		return "none"
	case SelectSome:
		return "some"
	case SelectEvery:
		return "all"
	default:
		return fmt.Sprintf("selectall(%d)", int(s))
	}
}

// Outcome is what a transition produced
type Outcome struct {
	State   State
	Notices []string
	Deleted int
}

// Workflow is the review state machine. It is not safe for concurrent use;
// the owning session serialises commands.
type Workflow struct {
	store    *store.Store
	detector *pairs.Detector
	logger   logger.Logger

	state     State
	workshop  string
	pairs     []pairs.OppositePair
	selection map[string]bool
}

// New creates an idle workflow over st
func New(st *store.Store, detector *pairs.Detector, log logger.Logger) *Workflow {
	if log == nil {
		log = logger.NewNop()
	}
	return &Workflow{
		store:     st,
		detector:  detector,
		logger:    log.WithComponent("review"),
		selection: make(map[string]bool),
	}
}

// State returns the current state
func (w *Workflow) State() State { return w.state }

// Workshop returns the workshop under review, empty when idle
func (w *Workflow) Workshop() string { return w.workshop }

// Pairs returns a copy of the detected pairs
func (w *Workflow) Pairs() []pairs.OppositePair {
	return append([]pairs.OppositePair(nil), w.pairs...)
}

// Selected reports whether ref is selected
func (w *Workflow) Selected(ref string) bool {
	return w.selection[strings.TrimSpace(ref)]
}

// Selection returns the selected references, sorted
func (w *Workflow) Selection() []string {
	out := make([]string, 0, len(w.selection))
	for ref := range w.selection {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

// Enter starts reviewing workshop. Only the discrepancies view can be
// reviewed. Without any opposite pair the workflow stays idle and says so.
// Both references of every high-similarity pair start selected.
func (w *Workflow) Enter(workshop string, view models.View) (Outcome, error) {
	if view != models.ViewDiscrepancies {
		return w.outcome(), apperrors.ValidationError(apperrors.CodeInvalidInput, "view", view.String(), nil).
			WithSuggestion("switch to the discrepancies view to review pairs")
	}
	if w.state == Reviewing {
		if w.workshop == workshop {
			return w.outcome("Already reviewing " + workshop), nil
		}
		w.reset()
	}

	rows, err := w.store.Rows(workshop, models.ViewDiscrepancies)
	if err != nil {
		return w.outcome(), err
	}
	found := w.detector.Detect(rows)
	if len(found) == 0 {
		return w.outcome(fmt.Sprintf("No opposite pairs in %s", workshop)), nil
	}

	w.state = Reviewing
	w.workshop = workshop
	w.pairs = found
	for _, ref := range pairs.HighRefs(found) {
		w.selection[ref] = true
	}

	w.logger.WithFields(logger.Fields{
		"workshop": workshop,
		"pairs":    len(found),
		"selected": len(w.selection),
	}).Info("Review started")
	return w.outcome(fmt.Sprintf("%d opposite pairs found, %d references preselected", len(found), len(w.selection))), nil
}

// Toggle flips one reference. Its pair partner is left alone. Only
// references of a detected pair can be selected.
func (w *Workflow) Toggle(ref string) error {
	if err := w.requireReviewing("selection"); err != nil {
		return err
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return apperrors.ValidationError(apperrors.CodeInvalidInput, "reference", ref, nil)
	}
	if !contains(pairs.Refs(w.pairs), ref) {
		return apperrors.ValidationError(apperrors.CodeInvalidInput, "reference", ref, nil).
			WithSuggestion("only references of an opposite pair can be selected")
	}
	if w.selection[ref] {
		delete(w.selection, ref)
	} else {
		w.selection[ref] = true
	}
	return nil
}

// ToggleAll selects every reference of every pair, or clears them when all
// are already selected.
func (w *Workflow) ToggleAll() error {
	if err := w.requireReviewing("selection"); err != nil {
		return err
	}
	all := w.SelectAllState() == SelectEvery
	for _, ref := range pairs.Refs(w.pairs) {
		if all {
			delete(w.selection, ref)
		} else {
			w.selection[ref] = true
		}
	}
	return nil
}

// SelectAllState is computed over the references of all pairs, whatever
// their similarity.
func (w *Workflow) SelectAllState() SelectAll {
	refs := pairs.Refs(w.pairs)
	n := 0
	for _, ref := range refs {
		if w.selection[ref] {
			n++
		}
	}
	switch {
	case n == 0:
		return SelectNone
	case n == len(refs):
		return SelectEvery
	default:
		return SelectSome
	}
}

// Commit deletes every discrepancy whose trimmed reference is selected and
// returns to idle. An empty selection deletes nothing.
func (w *Workflow) Commit() (Outcome, error) {
	if err := w.requireReviewing("commit"); err != nil {
		return w.outcome(), err
	}
	if len(w.selection) == 0 {
		w.reset()
		return w.outcome("Nothing selected, no rows eliminated"), nil
	}

	workshop := w.workshop
	deleted, err := w.store.DeleteRefs(workshop, models.ViewDiscrepancies, w.selection)
	if err != nil {
		return w.outcome(), err
	}
	w.reset()

	w.logger.WithFields(logger.Fields{"workshop": workshop, "deleted": deleted}).Info("Elimination committed")
	out := w.outcome(fmt.Sprintf("%d rows eliminated from %s", deleted, workshop))
	out.Deleted = deleted
	return out, nil
}

// Abandon leaves review mode without deleting anything
func (w *Workflow) Abandon() Outcome {
	if w.state == Idle {
		return w.outcome()
	}
	w.logger.WithField("workshop", w.workshop).Debug("Review abandoned")
	w.reset()
	return w.outcome("Review closed, nothing eliminated")
}

// Navigate is called before the active workshop or view changes. An open
// review is abandoned.
func (w *Workflow) Navigate() Outcome {
	return w.Abandon()
}

// Edit renames the first row of workshop's view whose trimmed reference is
// oldRef. An open review of that workshop follows the rename.
func (w *Workflow) Edit(workshop string, view models.View, oldRef, newRef string) (models.Row, error) {
	row, err := w.store.EditRef(workshop, view, oldRef, newRef)
	if err != nil {
		return row, err
	}
	w.renamed(workshop, view, oldRef, newRef)
	return row, nil
}

// EditByID renames the row with the given identifier
func (w *Workflow) EditByID(workshop string, view models.View, id, newRef string) (models.Row, error) {
	old, err := w.find(workshop, view, id)
	if err != nil {
		return old, err
	}
	row, err := w.store.EditRefByID(workshop, view, id, newRef)
	if err != nil {
		return row, err
	}
	w.renamed(workshop, view, old.Ref, newRef)
	return row, nil
}

// Delete removes the first row of workshop's view whose trimmed reference is
// ref. Deleting from a discrepancies list under review recomputes its pairs.
func (w *Workflow) Delete(workshop string, view models.View, ref string) (Outcome, error) {
	row, err := w.store.DeleteRow(workshop, view, ref)
	if err != nil {
		return w.outcome(), err
	}
	return w.deleted(workshop, view, row)
}

// DeleteByID removes the row with the given identifier
func (w *Workflow) DeleteByID(workshop string, view models.View, id string) (Outcome, error) {
	row, err := w.store.DeleteRowByID(workshop, view, id)
	if err != nil {
		return w.outcome(), err
	}
	return w.deleted(workshop, view, row)
}

func (w *Workflow) renamed(workshop string, view models.View, oldRef, newRef string) {
	if !w.covers(workshop, view) {
		return
	}
	oldRef = strings.TrimSpace(oldRef)
	if w.selection[oldRef] {
		delete(w.selection, oldRef)
		w.selection[strings.TrimSpace(newRef)] = true
	}
	pairs.Rename(w.pairs, oldRef, newRef)
}

func (w *Workflow) deleted(workshop string, view models.View, row models.Row) (Outcome, error) {
	out := w.outcome(fmt.Sprintf("Row %s deleted", row.Ref))
	out.Deleted = 1
	if !w.covers(workshop, view) {
		return out, nil
	}

	rows, err := w.store.Rows(workshop, models.ViewDiscrepancies)
	if err != nil {
		return out, err
	}
	w.pairs = w.detector.Detect(rows)
	present := make(map[string]bool, len(rows))
	for _, r := range rows {
		present[r.NormalizedRef()] = true
	}
	for ref := range w.selection {
		if !present[ref] {
			delete(w.selection, ref)
		}
	}

	if len(w.pairs) == 0 {
		w.reset()
		out.State = w.state
		out.Notices = append(out.Notices, "No opposite pairs left, review closed")
	}
	return out, nil
}

func (w *Workflow) covers(workshop string, view models.View) bool {
	return w.state == Reviewing && w.workshop == workshop && view == models.ViewDiscrepancies
}

func (w *Workflow) find(workshop string, view models.View, id string) (models.Row, error) {
	rows, err := w.store.Rows(workshop, view)
	if err != nil {
		return models.Row{}, err
	}
	for _, r := range rows {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Row{}, apperrors.ValidationError(apperrors.CodeRowNotFound, "id", id, nil)
}

func (w *Workflow) requireReviewing(operation string) error {
	if w.state == Reviewing {
		return nil
	}
	return apperrors.ReconciliationError(apperrors.CodeNotReady, operation, nil).
		WithSuggestion("enter review mode on the discrepancies view first")
}

func (w *Workflow) reset() {
	w.state = Idle
	w.workshop = ""
	w.pairs = nil
	w.selection = make(map[string]bool)
}

func (w *Workflow) outcome(notices ...string) Outcome {
	return Outcome{State: w.state, Notices: notices}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
