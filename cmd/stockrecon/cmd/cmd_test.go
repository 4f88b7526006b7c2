package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stock-reconciler/internal/reporter"
	"stock-reconciler/internal/workbooktest"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

const testUnits = `units:
  - id: Test
    workshops:
      - name: coupage
        layout:
          sheet_names: [MOUVEMENT]
          localisations: [ATELIER COUPAGE]
      - name: bloc
        layout:
          sheet_names: [BLOC]
          localisations: [MAGASIN BLOCS]
    movement:
      date: [DATE]
      ref: [REF]
      quantity: [QTE]
    stock:
      sheet_hint: STOCK
      columns:
        ref: [REFERENCE]
        quantity: [QUANTITE]
        localisation: [LOCALISATION]
`

// createInputs writes a unit table and a March input directory. Coupage has
// one match and an opposite pair; bloc matches entirely.
func createInputs(t *testing.T) (unitsFile, dir string) {
	t.Helper()
	root := t.TempDir()
	unitsFile = filepath.Join(root, "units.yaml")
	if err := os.WriteFile(unitsFile, []byte(testUnits), 0o644); err != nil {
		t.Fatalf("failed to write unit table: %v", err)
	}

	dir = filepath.Join(root, "march")
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	files := map[string]workbooktest.Sheet{
		"Stock 03-2024.xlsx": {Name: "STOCK", Rows: [][]interface{}{
			{"REFERENCE", "QUANTITE", "LOCALISATION"},
			{"A1", 10, "ATELIER COUPAGE"},
			{"REF-1000", 8, "ATELIER COUPAGE"},
			{"B1", 5, "MAGASIN BLOCS"},
		}},
		"mouvement coupage.xlsx": {Name: "MOUVEMENT", Rows: [][]interface{}{
			{"DATE", "REF", "QTE"},
			{day, "A1", 10},
			{day, "REF-1001", 8},
		}},
		"bloc.xlsx": {Name: "BLOC", Rows: [][]interface{}{
			{"DATE", "REF", "QTE"},
			{day, "B1", 5},
		}},
	}
	for name, sheet := range files {
		if err := workbooktest.WriteXLSX(filepath.Join(dir, name), sheet); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "~$bloc.xlsx"), []byte("lock"), 0o644); err != nil {
		t.Fatalf("failed to write lock file: %v", err)
	}
	return unitsFile, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCollectFiles(t *testing.T) {
	_, dir := createInputs(t)

	tests := []struct {
		name      string
		args      []string
		expected  []string
		errorCode apperrors.ErrorCode
	}{
		{
			name:     "directory in name order without lock files",
			args:     []string{dir},
			expected: []string{"Stock 03-2024.xlsx", "bloc.xlsx", "mouvement coupage.xlsx"},
		},
		{
			name:     "explicit file",
			args:     []string{filepath.Join(dir, "bloc.xlsx")},
			expected: []string{"bloc.xlsx"},
		},
		{
			name:      "missing path",
			args:      []string{filepath.Join(dir, "nope.xlsx")},
			errorCode: apperrors.CodeFileNotFound,
		},
		{
			name:      "empty directory",
			args:      []string{t.TempDir()},
			errorCode: apperrors.CodeEmptySelection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := collectFiles(tt.args)
			if tt.errorCode != "" {
				if !apperrors.HasCode(err, tt.errorCode) {
					t.Fatalf("expected %s, got %v", tt.errorCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("collectFiles() error = %v", err)
			}
			var names []string
			for _, f := range files {
				names = append(names, f.Filename)
			}
			if strings.Join(names, "|") != strings.Join(tt.expected, "|") {
				t.Errorf("expected %v, got %v", tt.expected, names)
			}
		})
	}
}

func TestUnitsCommand(t *testing.T) {
	unitsFile, _ := createInputs(t)

	out, err := execute(t, "units", "--units-file", unitsFile)
	if err != nil {
		t.Fatalf("units failed: %v", err)
	}
	if !strings.Contains(out, "Test") || !strings.Contains(out, "2 workshops") {
		t.Errorf("unexpected listing:\n%s", out)
	}

	out, err = execute(t, "units", "--units-file", unitsFile, "Test")
	if err != nil {
		t.Fatalf("units Test failed: %v", err)
	}
	if !strings.Contains(out, "MAGASIN BLOCS") {
		t.Errorf("expected localisations in:\n%s", out)
	}

	_, err = execute(t, "units", "--units-file", unitsFile, "Nowhere")
	if !apperrors.HasCode(err, apperrors.CodeInvalidConfig) {
		t.Errorf("expected an unknown unit error, got %v", err)
	}
}

func TestMatchCommand(t *testing.T) {
	unitsFile, dir := createInputs(t)

	out, err := execute(t, "match", "--units-file", unitsFile, dir)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	for _, want := range []string{"Period: 03/2024", "Stock:  Stock 03-2024.xlsx", "mouvement coupage.xlsx"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestReconcileCommand_JSONReport(t *testing.T) {
	unitsFile, dir := createInputs(t)
	report := filepath.Join(t.TempDir(), "out", "report.json")

	_, err := execute(t, "reconcile", "--units-file", unitsFile,
		"--eliminate-pairs=false", "--output-format", "json", "--output-file", report, dir)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var doc reporter.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if doc.Unit != "Test" || doc.Period != "03/2024" {
		t.Errorf("unexpected header %s %s", doc.Unit, doc.Period)
	}
	if len(doc.Workshops) != 1 || doc.Workshops[0].Workshop != "coupage" {
		t.Fatalf("expected only coupage staged, got %+v", doc.Workshops)
	}
	if len(doc.Workshops[0].Rows) != 2 {
		t.Errorf("expected the opposite pair in the report, got %+v", doc.Workshops[0].Rows)
	}
}

func TestReconcileCommand_EliminateAndExport(t *testing.T) {
	unitsFile, dir := createInputs(t)
	outDir := t.TempDir()

	out, err := execute(t, "reconcile", "--units-file", unitsFile, "--output-file=",
		"--eliminate-pairs", "--output-format", "xlsx", "--output-dir", outDir, dir)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !strings.Contains(out, "2 rows eliminated from coupage") {
		t.Errorf("expected the pair to be eliminated:\n%s", out)
	}

	for _, name := range []string{"matches_coupage.xlsx", "matches_bloc.xlsx"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "discrepancies_coupage.xlsx")); !os.IsNotExist(err) {
		t.Errorf("eliminated discrepancies should not be exported")
	}
}

func TestReconcileCommand_RequiresStock(t *testing.T) {
	unitsFile, dir := createInputs(t)

	_, err := execute(t, "reconcile", "--units-file", unitsFile, "--eliminate-pairs=false",
		"--output-format", "console", "--output-file=", filepath.Join(dir, "bloc.xlsx"))
	if !apperrors.HasCode(err, apperrors.CodeNotReady) {
		t.Errorf("expected a not ready error, got %v", err)
	}
}

func TestErrorHandler(t *testing.T) {
	logger.SetGlobalLogger(logger.NewNop())
	path := filepath.Join(t.TempDir(), "stock.xlsx")
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "stock-03.xlsx"), nil, 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		name     string
		err      error
		exitCode int
		contains []string
	}{
		{
			name:     "nil",
			exitCode: 0,
		},
		{
			name:     "missing file with similar names",
			err:      apperrors.FileError(apperrors.CodeFileNotFound, path, os.ErrNotExist),
			exitCode: 2,
			contains: []string{"file not found", "Similar files", "stock-03.xlsx", "File error help"},
		},
		{
			name:     "configuration",
			err:      apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "workers", 0, nil),
			exitCode: 4,
			contains: []string{"STOCKRECON_"},
		},
		{
			name: "summary",
			err: apperrors.NewErrorSummary([]*apperrors.ReconcilerError{
				apperrors.ParseError(apperrors.CodeLayoutAmbiguous, "a.xlsx", "MOUV", "", nil),
				apperrors.ParseError(apperrors.CodeLayoutAmbiguous, "b.xlsx", "MOUV", "", nil),
			}),
			exitCode: 3,
			contains: []string{"2 errors occurred", "b.xlsx"},
		},
		{
			name:     "generic",
			err:      errors.New("boom"),
			exitCode: 1,
			contains: []string{"Error: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			code := NewCLIErrorHandler(&out).HandleError(tt.err)
			if code != tt.exitCode {
				t.Errorf("expected exit code %d, got %d", tt.exitCode, code)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("expected %q in:\n%s", want, out.String())
				}
			}
		})
	}
}
