package reporter

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"stock-reconciler/internal/models"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

func row(ref, stock, mov string) models.Row {
	return models.NewRow(ref, decimal.RequireFromString(stock), decimal.RequireFromString(mov))
}

func createTestStaging(t *testing.T) *Staging {
	t.Helper()
	s := NewStaging()
	if err := s.AddWorkshop("coupage", models.ViewDiscrepancies, []models.Row{
		row("C3", "7", "0"),
		row("D4", "0", "2"),
		row("B2", "5", "8"),
	}); err != nil {
		t.Fatalf("AddWorkshop() error = %v", err)
	}
	if err := s.AddWorkshop("magasin blocs", models.ViewDiscrepancies, []models.Row{
		row("X-100", "10.5", "4.25"),
	}); err != nil {
		t.Fatalf("AddWorkshop() error = %v", err)
	}
	return s
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestOutputFormatValidation(t *testing.T) {
	tests := []struct {
		format         OutputFormat
		valid, isTable bool
	}{
		{FormatConsole, true, false},
		{FormatJSON, true, false},
		{FormatYAML, true, false},
		{FormatCSV, true, true},
		{FormatXLSX, true, true},
		{"invalid", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if tt.format.IsValid() != tt.valid {
				t.Errorf("expected IsValid() = %v for format %s", tt.valid, tt.format)
			}
			if tt.format.IsTable() != tt.isTable {
				t.Errorf("expected IsTable() = %v for format %s", tt.isTable, tt.format)
			}
		})
	}
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{name: "default config", config: nil},
		{name: "json", config: &ReportConfig{Format: FormatJSON}},
		{name: "table format", config: &ReportConfig{Format: FormatCSV}, expectError: true},
		{name: "negative max rows", config: &ReportConfig{Format: FormatConsole, MaxRows: -1}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReportGenerator(tt.config, logger.NewNop())
			if (err != nil) != tt.expectError {
				t.Errorf("NewReportGenerator() error = %v, expectError %v", err, tt.expectError)
			}
			if err != nil && !apperrors.HasCode(err, apperrors.CodeInvalidConfig) {
				t.Errorf("expected invalid config error, got %v", err)
			}
		})
	}
}

func TestStaging_SnapshotIsolation(t *testing.T) {
	live := []models.Row{row("A1", "5", "0"), row("A2", "1", "0")}
	s := NewStaging()
	if err := s.AddWorkshop("coupage", models.ViewDiscrepancies, live); err != nil {
		t.Fatalf("AddWorkshop() error = %v", err)
	}

	live[0].Ref = "renamed"
	live = live[:1]

	snap, ok := s.Snapshot("coupage")
	if !ok || len(snap) != 2 || snap[0].Ref != "A1" {
		t.Errorf("snapshot changed with the live rows: %+v", snap)
	}

	if err := s.AddWorkshop("coupage", models.ViewDiscrepancies, live); err != nil {
		t.Fatalf("AddWorkshop() error = %v", err)
	}
	snap, _ = s.Snapshot("coupage")
	if len(snap) != 1 || s.Len() != 1 {
		t.Errorf("restaging should replace the snapshot, got %+v", snap)
	}

	s.Clear()
	if s.Len() != 0 || len(s.Names()) != 0 {
		t.Error("Clear() left staged workshops")
	}
}

func TestStaging_Rejects(t *testing.T) {
	s := NewStaging()
	if err := s.AddWorkshop("coupage", models.ViewMatches, []models.Row{row("A", "1", "1")}); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("matches view must be rejected, got %v", err)
	}
	if err := s.AddWorkshop("coupage", models.ViewDiscrepancies, nil); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("empty list must be rejected, got %v", err)
	}
	if s.Len() != 0 {
		t.Error("rejected additions must not stage anything")
	}
}

func TestGenerateReport_Golden(t *testing.T) {
	doc := BuildDocument("Test", "03/2024", createTestStaging(t))

	tests := []struct {
		name   string
		config *ReportConfig
	}{
		{"report_console", &ReportConfig{Format: FormatConsole}},
		{"report_console_truncated", &ReportConfig{Format: FormatConsole, MaxRows: 2}},
		{"report_json", &ReportConfig{Format: FormatJSON}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := NewReportGenerator(tt.config, logger.NewNop())
			if err != nil {
				t.Fatalf("NewReportGenerator() error = %v", err)
			}
			var buf bytes.Buffer
			if err := gen.GenerateReport(doc, &buf); err != nil {
				t.Fatalf("GenerateReport() error = %v", err)
			}
			newGoldie(t).Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestGenerateReport_YAML(t *testing.T) {
	doc := BuildDocument("Test", "03/2024", createTestStaging(t))
	gen, _ := NewReportGenerator(&ReportConfig{Format: FormatYAML}, logger.NewNop())

	var buf bytes.Buffer
	if err := gen.GenerateReport(doc, &buf); err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	var decoded Document
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not valid yaml: %v", err)
	}
	if !reflect.DeepEqual(&decoded, doc) {
		t.Errorf("yaml report lost data:\n%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("workshop: magasin blocs")) {
		t.Errorf("unexpected yaml layout:\n%s", buf.String())
	}
}

func TestGenerateReport_Empty(t *testing.T) {
	gen, _ := NewReportGenerator(nil, logger.NewNop())
	err := gen.GenerateReport(BuildDocument("Test", "03/2024", NewStaging()), &bytes.Buffer{})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected invalid input for an empty report, got %v", err)
	}
}

func TestDefaultFilename(t *testing.T) {
	tests := []struct {
		view     models.View
		workshop string
		format   OutputFormat
		want     string
	}{
		{models.ViewDiscrepancies, "magasin blocs", FormatCSV, "discrepancies_magasin_blocs.csv"},
		{models.ViewMatches, "sortie  mousse\tcouture", FormatXLSX, "matches_sortie_mousse_couture.xlsx"},
	}
	for _, tt := range tests {
		if got := DefaultFilename(tt.view, tt.workshop, tt.format); got != tt.want {
			t.Errorf("DefaultFilename() = %q, want %q", got, tt.want)
		}
	}
}

func TestExportTable_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	rows := []models.Row{row("C3", "7", "0"), row("12,5", "1.5", "2.25")}

	if err := NewExporter(logger.NewNop()).ExportTable(rows, path); err != nil {
		t.Fatalf("ExportTable() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "\ufeffRef,Stock_Qty,Calc_Mov_Qty,Difference\n" +
		"C3,7.00,0.00,7.00\n" +
		"\"12,5\",1.50,2.25,-0.75\n"
	if string(got) != want {
		t.Errorf("csv export =\n%q\nwant\n%q", got, want)
	}
}

func TestExportTable_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	rows := []models.Row{row("C3", "7", "0"), row("X-100", "10.5", "4.25")}

	if err := NewExporter(logger.NewNop()).ExportTable(rows, path); err != nil {
		t.Fatalf("ExportTable() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()
	got, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"Ref", "Stock_Qty", "Calc_Mov_Qty", "Difference"},
		{"C3", "7", "0", "7"},
		{"X-100", "10.5", "4.25", "6.25"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("xlsx rows = %v, want %v", got, want)
	}
}

func TestExportTable_Errors(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(logger.NewNop())
	rows := []models.Row{row("A", "1", "0")}

	tests := []struct {
		name string
		rows []models.Row
		dest string
		code apperrors.ErrorCode
	}{
		{"no rows", nil, filepath.Join(dir, "a.csv"), apperrors.CodeInvalidInput},
		{"unknown extension", rows, filepath.Join(dir, "a.pdf"), apperrors.CodeInvalidInput},
		{"missing directory", rows, filepath.Join(dir, "nope", "a.csv"), apperrors.CodeDirectoryError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := exp.ExportTable(tt.rows, tt.dest); !apperrors.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestExportAll(t *testing.T) {
	res := models.NewReconciliationResult()
	res.Set("coupage", &models.WorkshopResult{
		Matches:       []models.Row{row("A1", "1", "1")},
		Discrepancies: []models.Row{row("B2", "2", "0")},
	})
	res.Set("bloc", models.FailedResult("sheet 'BLOC' not found"))
	res.Set("magasin ouate", &models.WorkshopResult{
		Matches:       []models.Row{row("O1", "3", "3")},
		Discrepancies: []models.Row{},
	})

	dir := filepath.Join(t.TempDir(), "exports")
	written, err := NewExporter(logger.NewNop()).ExportAll(res, dir, FormatCSV)
	if err != nil {
		t.Fatalf("ExportAll() error = %v", err)
	}

	want := []string{
		filepath.Join(dir, "matches_coupage.csv"),
		filepath.Join(dir, "discrepancies_coupage.csv"),
		filepath.Join(dir, "matches_magasin_ouate.csv"),
	}
	if !reflect.DeepEqual(written, want) {
		t.Errorf("written = %v, want %v", written, want)
	}
	for _, p := range want {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing export %s", p)
		}
	}

	if _, err := NewExporter(logger.NewNop()).ExportAll(res, dir, FormatJSON); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("document formats cannot be batch exported, got %v", err)
	}
}
