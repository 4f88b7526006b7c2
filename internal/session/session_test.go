package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/reconciler"
	"stock-reconciler/internal/reporter"
	"stock-reconciler/internal/review"
	"stock-reconciler/internal/units"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

type fakeAggregator struct {
	records  []models.VerificationRecord
	result   *models.ReconciliationResult
	err      error
	requests []*reconciler.Request
}

func (f *fakeAggregator) Verify(_ context.Context, req *reconciler.Request) ([]models.VerificationRecord, error) {
	f.requests = append(f.requests, req)
	return f.records, f.err
}

func (f *fakeAggregator) Process(_ context.Context, req *reconciler.Request) (*models.ReconciliationResult, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func row(ref string, stock, mov int64) models.Row {
	return models.NewRow(ref, decimal.NewFromInt(stock), decimal.NewFromInt(mov))
}

func file(name string) models.FileRef {
	return models.FileRef{Path: filepath.Join("/data", name), Filename: name}
}

func testTable(t *testing.T) *units.Table {
	t.Helper()
	workshop := func(name string, keywords ...string) models.Workshop {
		return models.Workshop{Name: name, Keywords: keywords, Layout: models.Layout{SheetNames: []string{"MOUVEMENT"}}}
	}
	cols := models.ColumnCandidates{Ref: []string{"REFERENCE"}, Quantity: []string{"QTE"}}
	table, err := units.NewTable([]models.Unit{
		{
			ID:        "Alpha",
			Workshops: []models.Workshop{workshop("coupage"), workshop("bloc"), workshop("magasin ouate", "ouate")},
			Movement:  cols,
			Stock:     models.StockLayout{SheetHint: "STOCK", Columns: cols},
		},
		{
			ID:        "Beta",
			Workshops: []models.Workshop{workshop("couture")},
			Movement:  cols,
			Stock:     models.StockLayout{SheetHint: "STOCK", Columns: cols},
		},
	})
	require.NoError(t, err)
	return table
}

func testResult() *models.ReconciliationResult {
	res := models.NewReconciliationResult()
	res.Set("coupage", &models.WorkshopResult{
		Matches: []models.Row{row("M1", 4, 4)},
		Discrepancies: []models.Row{
			row("REF-1000", 8, 0),
			row("A1", 5, 0),
			row("Z9", 3, 0),
			row("A1B", 0, 5),
			row("REF-1001", 0, 8),
		},
	})
	res.Set("bloc", models.FailedResult("sheet 'MOUVEMENT' not found"))
	return res
}

func newTestSession(t *testing.T, agg Aggregator, cfg *Config) *Session {
	t.Helper()
	s, err := New(cfg, testTable(t), agg, logger.NewNop())
	require.NoError(t, err)
	return s
}

// processed returns a session sitting on the results step
func processed(t *testing.T) *Session {
	t.Helper()
	agg := &fakeAggregator{result: testResult()}
	s := newTestSession(t, agg, nil)
	s.AddFiles(file("Stock 03-2024.xlsx"), file("coupage.xlsx"), file("bloc.xlsx"))
	_, err := s.Process(context.Background())
	require.NoError(t, err)
	return s
}

func TestAddFiles_ClassifiesAndMatches(t *testing.T) {
	s := newTestSession(t, nil, nil)
	assert.Equal(t, "Alpha", s.Unit().ID)

	notices := s.AddFiles(
		file("coupage mars.xlsx"),
		file("Stock 03-2024.xlsx"),
		file("export ouate.xlsx"),
		file("divers.xlsx"),
	)

	stock, ok := s.Stock()
	require.True(t, ok)
	assert.Equal(t, "Stock 03-2024.xlsx", stock.Filename)
	assert.Equal(t, models.Period{Month: "03", Year: 2024}, s.Period())

	a := s.Assignment()
	assert.Equal(t, "coupage mars.xlsx", a.Files["coupage"].Filename)
	assert.Equal(t, "export ouate.xlsx", a.Files["magasin ouate"].Filename)
	require.Len(t, a.Unmatched, 1)
	assert.Contains(t, notices, "divers.xlsx matches no workshop")
	assert.NoError(t, a.CheckPartition(s.Files()))
}

func TestManualAssignment(t *testing.T) {
	s := newTestSession(t, nil, nil)
	s.AddFiles(file("coupage.xlsx"), file("divers.xlsx"))

	require.NoError(t, s.AssignFile("bloc", file("divers.xlsx")))
	assert.Equal(t, "divers.xlsx", s.Assignment().Files["bloc"].Filename)
	assert.Empty(t, s.Assignment().Unmatched)

	require.NoError(t, s.UnassignFile("coupage"))
	_, ok := s.Assignment().File("coupage")
	assert.False(t, ok)
	assert.Equal(t, []models.FileRef{file("coupage.xlsx")}, s.Assignment().Unmatched)

	err := s.AssignFile("bloc", file("Stock 01-2024.xlsx"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
	assert.True(t, apperrors.HasCode(s.AssignFile("nowhere", file("x.xlsx")), apperrors.CodeUnknownWorkshop))
	assert.True(t, apperrors.HasCode(s.RemoveFile("/data/missing.xlsx"), apperrors.CodeFileNotFound))
}

func TestProcessingGate(t *testing.T) {
	s := newTestSession(t, &fakeAggregator{result: testResult()}, nil)

	_, err := s.BeginProcess()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotReady), "no stock file")

	s.AddFiles(file("Stock 03-2024.xlsx"), file("divers.xlsx"))
	_, err = s.BeginProcess()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotReady), "no assigned workshop")

	s.AddFiles(file("coupage.xlsx"))
	skipped, err := s.ToggleSkip("coupage")
	require.NoError(t, err)
	assert.True(t, skipped)
	_, err = s.BeginProcess()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotReady), "only skipped workshops")

	_, err = s.ToggleSkip("coupage")
	require.NoError(t, err)
	assert.NoError(t, s.Ready())
}

func TestVerifyThenProcess(t *testing.T) {
	agg := &fakeAggregator{
		records: []models.VerificationRecord{
			{Workshop: "coupage", Filename: "coupage.xlsx", Valid: true, ExpectedSheet: "MOUVEMENT", AvailableSheets: []string{"MOUVEMENT"}},
			{Workshop: "bloc", Filename: "bloc.xlsx", ExpectedSheet: "MOUVEMENT", AvailableSheets: []string{"BLOC"},
				ColumnsBySheet: map[string][]string{"BLOC": {"REF", "QTY"}}},
		},
		result: testResult(),
	}
	cfg := DefaultConfig()
	cfg.Period = models.Period{Month: "06", Year: 2023}
	s := newTestSession(t, agg, cfg)
	s.AddFiles(file("Stock inventaire.xlsx"), file("coupage.xlsx"), file("bloc.xlsx"))
	assert.Equal(t, "06/2023", s.Period().String(), "a stock name without a period keeps the configured one")

	_, err := s.Adjudicator()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotReady))

	notices, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1 of 2 files need attention"}, notices)
	assert.Equal(t, StepVerify, s.Step())

	adj, err := s.Adjudicator()
	require.NoError(t, err)
	require.NoError(t, adj.SelectSheet("bloc", "BLOC"))
	require.NoError(t, adj.SelectRefColumn("bloc", "REF"))
	require.NoError(t, adj.SelectQtyColumn("bloc", "QTY"))

	notices, err = s.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2 workshops processed: 1 matches, 5 discrepancies", "1 workshops failed"}, notices)

	req := agg.requests[1]
	assert.Equal(t, "Stock inventaire.xlsx", req.Stock.Filename)
	assert.Equal(t, models.Override{SheetName: "BLOC", RefCol: "REF", QtyCol: "QTY"}, req.Overrides["bloc"])
	assert.Len(t, req.Files, 2)

	assert.Equal(t, StepResults, s.Step())
	assert.Equal(t, "coupage", s.ActiveWorkshop())
	assert.Equal(t, models.ViewDiscrepancies, s.View())
	assert.Equal(t, []string{"coupage (1 / 5)", "bloc (error)"}, s.Labels())
	assert.Equal(t, 2, s.Summary().TotalWorkshops)
	assert.Equal(t, 1, s.Summary().FailedWorkshops)
}

func TestConfiguredOverridesSeedAdjudicator(t *testing.T) {
	agg := &fakeAggregator{records: []models.VerificationRecord{
		{Workshop: "coupage", ExpectedSheet: "MOUVEMENT", AvailableSheets: []string{"MVT"}},
	}}
	cfg := DefaultConfig()
	cfg.Overrides = map[string]models.Override{"coupage": {SheetName: "MVT"}}
	s := newTestSession(t, agg, cfg)
	s.AddFiles(file("coupage.xlsx"))

	_, err := s.Verify(context.Background())
	require.NoError(t, err)
	adj, err := s.Adjudicator()
	require.NoError(t, err)
	assert.Equal(t, "MVT", adj.Apply()["coupage"].SheetName)
}

func TestStaleRequestsAreDiscarded(t *testing.T) {
	s := newTestSession(t, nil, nil)
	s.AddFiles(file("Stock 03-2024.xlsx"), file("coupage.xlsx"))

	first, err := s.BeginProcess()
	require.NoError(t, err)
	assert.True(t, s.Pending())

	s.Navigate()
	assert.Error(t, first.Ctx.Err(), "navigation cancels the request")
	_, err = s.CompleteProcess(first.Token, testResult())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStaleRequest))
	assert.Zero(t, s.Summary().TotalWorkshops, "stale results are not applied")
	assert.Equal(t, StepFiles, s.Step())

	second, err := s.BeginProcess()
	require.NoError(t, err)
	third, err := s.BeginProcess()
	require.NoError(t, err)
	_, err = s.CompleteProcess(second.Token, testResult())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStaleRequest), "superseded by a newer request")

	_, err = s.CompleteVerify(third.Token, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStaleRequest), "token of another kind")

	_, err = s.CompleteProcess(third.Token, testResult())
	require.NoError(t, err)
	assert.False(t, s.Pending())

	verify, err := s.BeginVerify()
	require.NoError(t, err)
	_, err = s.SelectUnit("Beta")
	require.NoError(t, err)
	_, err = s.CompleteVerify(verify.Token, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStaleRequest))
	_, err = s.Adjudicator()
	assert.Error(t, err)
}

func TestFailRequestLeavesStateUntouched(t *testing.T) {
	s := processed(t)
	before := s.Summary()

	req, err := s.BeginProcess()
	require.NoError(t, err)
	notices, err := s.FailRequest(req.Token, errors.New("worker crashed"))
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "worker crashed")
	assert.Equal(t, before, s.Summary())
	assert.Equal(t, StepResults, s.Step())

	_, err = s.FailRequest(req.Token, errors.New("again"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStaleRequest))
}

func TestFailRequestNoticeNamesTheCause(t *testing.T) {
	s := processed(t)

	req, err := s.BeginProcess()
	require.NoError(t, err)
	cause := apperrors.FileError(apperrors.CodeFilePermission, "/in/Stock 03-2024.xlsx",
		errors.New("disk I/O error on stock.xlsx"))
	notices, err := s.FailRequest(req.Token, cause)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], cause.Message)
	assert.Contains(t, notices[0], "disk I/O error on stock.xlsx")
}

func TestProcessSurfacesAggregatorFailure(t *testing.T) {
	agg := &fakeAggregator{err: errors.New("disk unplugged")}
	s := newTestSession(t, agg, nil)
	s.AddFiles(file("Stock 03-2024.xlsx"), file("coupage.xlsx"))

	notices, err := s.Process(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRequestFailed))
	assert.Len(t, notices, 1)
	assert.Equal(t, StepFiles, s.Step())
	assert.False(t, s.Pending())
}

func TestResultCommandsNeedResults(t *testing.T) {
	s := newTestSession(t, nil, nil)
	_, err := s.DeleteRow("A1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotReady))
	_, err = s.EnterReview()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotReady))
	_, err = s.StageWorkshop()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotReady))
	_, err = s.ExportAll(t.TempDir(), reporter.FormatCSV)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotReady))
}

func TestReviewFollowsNavigation(t *testing.T) {
	s := processed(t)

	_, err := s.EnterReview()
	require.NoError(t, err)
	assert.Equal(t, review.Reviewing, s.ReviewState())
	assert.Equal(t, []string{"REF-1000", "REF-1001"}, s.Selection())

	notices, err := s.SetView(models.ViewMatches)
	require.NoError(t, err)
	assert.Equal(t, review.Idle, s.ReviewState())
	assert.Equal(t, []string{"Review closed, nothing eliminated"}, notices)

	_, err = s.EnterReview()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput), "review needs the discrepancies view")

	_, err = s.SetView(models.ViewDiscrepancies)
	require.NoError(t, err)
	_, err = s.EnterReview()
	require.NoError(t, err)
	_, err = s.SelectWorkshop("bloc")
	require.NoError(t, err)
	assert.Equal(t, review.Idle, s.ReviewState())

	_, err = s.SelectWorkshop("nowhere")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnknownWorkshop))

	_, err = s.Rows()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAggregationFailed))
}

func TestCommitThroughSession(t *testing.T) {
	s := processed(t)
	_, err := s.EnterReview()
	require.NoError(t, err)
	require.NoError(t, s.Toggle("A1"))
	assert.Equal(t, review.SelectSome, s.SelectAllState())

	notices, err := s.Commit()
	require.NoError(t, err)
	assert.Equal(t, []string{"3 rows eliminated from coupage"}, notices)
	assert.Equal(t, 2, s.Summary().TotalDiscrepancies)
	assert.Empty(t, s.Pairs())
}

func TestEditAndDeleteRows(t *testing.T) {
	s := processed(t)

	_, err := s.EditRef("Z9", "  ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	_, err = s.EditRef("Z9", "Z10")
	require.NoError(t, err)
	rows, err := s.Rows()
	require.NoError(t, err)
	assert.Equal(t, "Z10", rows[2].Ref)

	_, err = s.EditRefByID(rows[0].ID, "REF-2000")
	require.NoError(t, err)
	_, err = s.DeleteRowByID(rows[1].ID)
	require.NoError(t, err)

	_, err = s.SetView(models.ViewMatches)
	require.NoError(t, err)
	_, err = s.DeleteRow("M1")
	require.NoError(t, err)

	sum := s.Summary()
	assert.Zero(t, sum.TotalMatches)
	assert.Equal(t, 4, sum.TotalDiscrepancies)
}

func TestReportStagingIsolation(t *testing.T) {
	s := processed(t)

	notices, err := s.StageWorkshop()
	require.NoError(t, err)
	assert.Equal(t, []string{"coupage added to report (5 rows)"}, notices)

	_, err = s.DeleteRow("A1")
	require.NoError(t, err)

	doc := s.Report()
	assert.Equal(t, "Alpha", doc.Unit)
	assert.Equal(t, "03/2024", doc.Period)
	require.Len(t, doc.Workshops, 1)
	assert.Len(t, doc.Workshops[0].Rows, 5, "staged snapshot ignores later deletions")

	_, err = s.SetView(models.ViewMatches)
	require.NoError(t, err)
	_, err = s.StageWorkshop()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	assert.Equal(t, []string{"Report cleared"}, s.ClearReport())
	assert.Empty(t, s.Staged())
	assert.Nil(t, s.ClearReport())
}

func TestExport(t *testing.T) {
	s := processed(t)
	dir := t.TempDir()

	require.NoError(t, s.Export(filepath.Join(dir, "coupage.csv")))
	written, err := s.ExportAll(filepath.Join(dir, "all"), reporter.FormatXLSX)
	require.NoError(t, err)
	assert.Len(t, written, 2)
}

func TestSelectUnitResets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Skip = []string{"bloc", "couture"}
	s := newTestSession(t, nil, cfg)
	assert.True(t, s.IsSkipped("bloc"))

	s.AddFiles(file("Stock 03-2024.xlsx"), file("coupage.xlsx"))
	notices, err := s.SelectUnit("Beta")
	require.NoError(t, err)
	assert.Equal(t, []string{"Unit Beta selected", "couture skipped"}, notices)
	assert.Empty(t, s.Files())
	_, ok := s.Stock()
	assert.False(t, ok)

	_, err = s.SelectUnit("Gamma")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidConfig))
	assert.Equal(t, "Beta", s.Unit().ID)
}

func TestSetPeriod(t *testing.T) {
	s := newTestSession(t, nil, nil)
	require.NoError(t, s.SetPeriod(7, 2024))
	assert.Equal(t, "07/2024", s.Period().String())
	assert.True(t, apperrors.HasCode(s.SetPeriod(13, 2024), apperrors.CodeInvalidPeriod))
}

func TestBack(t *testing.T) {
	s := processed(t)
	s.Back()
	assert.Equal(t, StepVerify, s.Step())
	s.Back()
	s.Back()
	assert.Equal(t, StepFiles, s.Step())
}
