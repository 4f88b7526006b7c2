package review

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/pairs"
	"stock-reconciler/internal/store"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

func row(ref string, diff int64) models.Row {
	return models.NewRow(ref, decimal.NewFromInt(diff), decimal.Zero)
}

// setup loads one workshop whose discrepancies hold a high-similarity pair
// (REF-1000 / REF-1001), a low-similarity pair (A1 / A1B) and a loner.
func setup(t *testing.T, discrepancies ...models.Row) (*Workflow, *store.Store) {
	t.Helper()
	if discrepancies == nil {
		discrepancies = []models.Row{
			row("REF-1000", 8),
			row("A1", 5),
			row("Z9", 3),
			row("A1B", -5),
			row("REF-1001", -8),
		}
	}
	res := models.NewReconciliationResult()
	res.Set("coupage", &models.WorkshopResult{
		Matches:       []models.Row{row("M1", 0)},
		Discrepancies: discrepancies,
	})
	st := store.New()
	st.Replace(res)

	det, err := pairs.NewDetector(nil)
	require.NoError(t, err)
	return New(st, det, logger.NewNop()), st
}

func discrepancyRefs(t *testing.T, st *store.Store) []string {
	t.Helper()
	rows, err := st.Rows("coupage", models.ViewDiscrepancies)
	require.NoError(t, err)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Ref
	}
	return out
}

func TestEnter_PreselectsHighSimilarityPairs(t *testing.T) {
	w, _ := setup(t)

	out, err := w.Enter("coupage", models.ViewDiscrepancies)
	require.NoError(t, err)
	assert.Equal(t, Reviewing, out.State)
	assert.Len(t, w.Pairs(), 2)
	assert.Equal(t, []string{"REF-1000", "REF-1001"}, w.Selection())
	assert.Equal(t, SelectSome, w.SelectAllState())
}

func TestEnter_Refusals(t *testing.T) {
	w, _ := setup(t, row("A", 1), row("B", 2))

	_, err := w.Enter("coupage", models.ViewMatches)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	out, err := w.Enter("coupage", models.ViewDiscrepancies)
	require.NoError(t, err)
	assert.Equal(t, Idle, out.State)
	assert.Contains(t, out.Notices[0], "No opposite pairs")

	_, err = w.Enter("nowhere", models.ViewDiscrepancies)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnknownWorkshop))
}

func TestToggleAndSelectAll(t *testing.T) {
	w, _ := setup(t)
	require.Error(t, w.Toggle("A1"), "toggling needs an open review")

	_, err := w.Enter("coupage", models.ViewDiscrepancies)
	require.NoError(t, err)

	require.NoError(t, w.Toggle(" A1 "))
	assert.True(t, w.Selected("A1"))
	assert.False(t, w.Selected("A1B"), "partner is not toggled")

	require.NoError(t, w.ToggleAll())
	assert.Equal(t, SelectEvery, w.SelectAllState())
	assert.Len(t, w.Selection(), 4)

	require.NoError(t, w.ToggleAll())
	assert.Equal(t, SelectNone, w.SelectAllState())
	assert.Empty(t, w.Selection())
}

func TestToggle_OnlyPairReferences(t *testing.T) {
	w, st := setup(t)
	_, err := w.Enter("coupage", models.ViewDiscrepancies)
	require.NoError(t, err)

	err = w.Toggle("Z9")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
	assert.False(t, w.Selected("Z9"))
	assert.True(t, apperrors.HasCode(w.Toggle("M1"), apperrors.CodeInvalidInput), "matches are never in a pair")

	out, err := w.Commit()
	require.NoError(t, err)
	assert.Equal(t, 2, out.Deleted)
	assert.Contains(t, discrepancyRefs(t, st), "Z9")
}

func TestCommit_DeletesSelectedRows(t *testing.T) {
	w, st := setup(t, row("REF-1000", 8), row("REF-1000 ", 2), row("REF-1001", -8), row("Z9", 3))
	_, err := w.Enter("coupage", models.ViewDiscrepancies)
	require.NoError(t, err)

	out, err := w.Commit()
	require.NoError(t, err)
	assert.Equal(t, Idle, out.State)
	assert.Equal(t, 3, out.Deleted, "trailing whitespace does not protect a row")
	assert.Equal(t, []string{"Z9"}, discrepancyRefs(t, st))
	assert.Equal(t, 1, st.Summary().TotalDiscrepancies)
	assert.Empty(t, w.Pairs())
	assert.Empty(t, w.Selection())
}

func TestCommit_EmptySelectionExitsWithoutChanges(t *testing.T) {
	w, st := setup(t)
	before := discrepancyRefs(t, st)
	_, err := w.Enter("coupage", models.ViewDiscrepancies)
	require.NoError(t, err)
	require.NoError(t, w.ToggleAll())
	require.NoError(t, w.ToggleAll())

	out, err := w.Commit()
	require.NoError(t, err)
	assert.Equal(t, Idle, out.State)
	assert.Zero(t, out.Deleted)
	assert.Equal(t, before, discrepancyRefs(t, st))

	_, err = w.Commit()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotReady))
}

func TestEdit_PropagatesIntoReview(t *testing.T) {
	w, st := setup(t)
	_, err := w.Enter("coupage", models.ViewDiscrepancies)
	require.NoError(t, err)

	_, err = w.Edit("coupage", models.ViewDiscrepancies, "REF-1000", "REF-2000")
	require.NoError(t, err)

	assert.Contains(t, discrepancyRefs(t, st), "REF-2000")
	assert.Equal(t, []string{"REF-1001", "REF-2000"}, w.Selection())
	for _, p := range w.Pairs() {
		assert.False(t, p.Involves("REF-1000"), "stale reference in %+v", p)
	}
	assert.True(t, w.Pairs()[0].Involves("REF-2000"))

	_, err = w.Edit("coupage", models.ViewDiscrepancies, "A1", "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
	assert.Contains(t, discrepancyRefs(t, st), "A1")
}

func TestEditByID(t *testing.T) {
	w, st := setup(t)
	_, err := w.Enter("coupage", models.ViewDiscrepancies)
	require.NoError(t, err)

	rows, _ := st.Rows("coupage", models.ViewDiscrepancies)
	_, err = w.EditByID("coupage", models.ViewDiscrepancies, rows[4].ID, "REF-1002")
	require.NoError(t, err)
	assert.Equal(t, []string{"REF-1000", "REF-1002"}, w.Selection())

	_, err = w.EditByID("coupage", models.ViewDiscrepancies, "missing", "X")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRowNotFound))
}

func TestDelete_RecomputesPairs(t *testing.T) {
	w, st := setup(t)
	_, err := w.Enter("coupage", models.ViewDiscrepancies)
	require.NoError(t, err)

	out, err := w.Delete("coupage", models.ViewDiscrepancies, "REF-1001")
	require.NoError(t, err)
	assert.Equal(t, Reviewing, out.State)
	assert.Len(t, w.Pairs(), 1)
	assert.Equal(t, []string{"REF-1000"}, w.Selection())

	out, err = w.Delete("coupage", models.ViewDiscrepancies, "A1B")
	require.NoError(t, err)
	assert.Equal(t, Idle, out.State)
	assert.Contains(t, out.Notices, "No opposite pairs left, review closed")
	assert.Equal(t, []string{"REF-1000", "A1", "Z9"}, discrepancyRefs(t, st))
}

func TestDelete_MatchesViewLeavesReviewAlone(t *testing.T) {
	w, st := setup(t)
	_, err := w.Enter("coupage", models.ViewDiscrepancies)
	require.NoError(t, err)

	out, err := w.Delete("coupage", models.ViewMatches, "M1")
	require.NoError(t, err)
	assert.Equal(t, Reviewing, out.State)
	assert.Len(t, w.Pairs(), 2)
	assert.Zero(t, st.Summary().TotalMatches)
}

func TestNavigateAbandons(t *testing.T) {
	w, st := setup(t)
	_, err := w.Enter("coupage", models.ViewDiscrepancies)
	require.NoError(t, err)

	out := w.Navigate()
	assert.Equal(t, Idle, out.State)
	assert.Empty(t, w.Selection())
	assert.Empty(t, w.Workshop())
	assert.Len(t, discrepancyRefs(t, st), 5)

	assert.Empty(t, w.Navigate().Notices, "navigating while idle is silent")
}
