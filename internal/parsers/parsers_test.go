package parsers

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/workbooktest"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

var testCandidates = models.ColumnCandidates{
	Date:         []string{"Date", "DATE"},
	Ref:          []string{"REFERENCE", "Référence"},
	Quantity:     []string{"STOCK", "Quantité"},
	Localisation: []string{"LOCALISATION"},
}

func createMovementWorkbook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coupage.xlsx")
	err := workbooktest.WriteXLSX(path,
		workbooktest.Sheet{Name: "Notes", Rows: [][]interface{}{{"free text"}}},
		workbooktest.Sheet{Name: "MOUVEMENT", Rows: [][]interface{}{
			{"Etat des mouvements"},
			{},
			{"DATE", "REFERENCE ", "DESIGNATION", "STOCK"},
			{time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), "12.5", "vis", 10},
			{time.Date(2024, 4, 9, 0, 0, 0, 0, time.UTC), "A1", "écrou", 2.5},
		}},
	)
	if err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	return path
}

func openTestWorkbook(t *testing.T, path string) *Workbook {
	t.Helper()
	wb, err := Open(path, logger.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { wb.Close() })
	return wb
}

func TestNormalizeRef(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  12.5 ", "12,5"},
		{"A.1", "A.1"},
		{"1.2.3", "1,2,3"},
		{"REF-10", "REF-10"},
		{".5", ".5"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeRef(tt.in); got != tt.want {
			t.Errorf("NormalizeRef(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		cell  string
		want  time.Time
		valid bool
	}{
		{"45353", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-02", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), true},
		{"02/03/2024", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), true},
		{"12", time.Time{}, false},
		{"total", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.cell)
		if ok != tt.valid {
			t.Errorf("ParseDate(%q) ok = %v, want %v", tt.cell, ok, tt.valid)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.cell, got, tt.want)
		}
	}
}

func TestFindName(t *testing.T) {
	names := []string{"DATE", "Référence\n", "quantité ", "LOCALISATION"}
	tests := []struct {
		candidates []string
		want       string
	}{
		{[]string{"Référence\n"}, "Référence\n"},
		{[]string{"REFERENCE", "référence"}, "Référence\n"},
		{[]string{"Quantité"}, "quantité "},
		{[]string{"STOCK", "LOCALISATION"}, "LOCALISATION"},
		{[]string{"MISSING"}, ""},
		{[]string{"  "}, ""},
	}
	for _, tt := range tests {
		if got := FindName(names, tt.candidates); got != tt.want {
			t.Errorf("FindName(%v) = %q, want %q", tt.candidates, got, tt.want)
		}
	}
}

func TestHeaderRules(t *testing.T) {
	rows := [][]string{
		{"Title"},
		{"a", "b"},
		{"DATE", "REF", "QTE"},
		{"1", "2", "3", "4"},
	}
	if got := MostFilledRow(rows); got != 3 {
		t.Errorf("MostFilledRow() = %d, want 3", got)
	}
	if got := FirstRowWithAny([]string{"Date", "DATE"})(rows); got != 2 {
		t.Errorf("FirstRowWithAny() = %d, want 2", got)
	}
	if got := FirstRowWithAny([]string{"missing"})(rows); got != 0 {
		t.Errorf("FirstRowWithAny() without a hit = %d, want 0", got)
	}
}

func TestResolveMovement(t *testing.T) {
	wb := openTestWorkbook(t, createMovementWorkbook(t))
	ws := models.Workshop{Name: "coupage", Layout: models.Layout{SheetNames: []string{"MOUVEMENTS", "MOUVEMENT"}}}

	frame, layout, err := ResolveMovement(wb, ws, testCandidates, models.Override{})
	if err != nil {
		t.Fatalf("ResolveMovement() error = %v", err)
	}

	want := MovementLayout{Sheet: "MOUVEMENT", RefCol: "REFERENCE ", QtyCol: "STOCK", DateCol: "DATE"}
	if layout != want {
		t.Errorf("layout = %+v, want %+v", layout, want)
	}
	if len(frame.Rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d", len(frame.Rows))
	}
	if got := Cell(frame.Rows[0], frame.Index(layout.RefCol)); got != "12.5" {
		t.Errorf("ref cell = %q", got)
	}

	_, layout, err = ResolveMovement(wb, ws, testCandidates, models.Override{QtyCol: "DESIGNATION"})
	if err != nil || layout.QtyCol != "DESIGNATION" {
		t.Errorf("override ignored: %+v, %v", layout, err)
	}

	_, _, err = ResolveMovement(wb, ws, testCandidates, models.Override{RefCol: "NOPE"})
	if !apperrors.HasCode(err, apperrors.CodeMissingColumn) {
		t.Errorf("expected missing column, got %v", err)
	}

	missing := models.Workshop{Name: "x", Layout: models.Layout{SheetNames: []string{"OTHER"}}}
	_, _, err = ResolveMovement(wb, missing, testCandidates, models.Override{})
	if !apperrors.HasCode(err, apperrors.CodeMissingSheet) {
		t.Errorf("expected missing sheet, got %v", err)
	}
}

func TestInspect(t *testing.T) {
	wb := openTestWorkbook(t, createMovementWorkbook(t))

	t.Run("valid", func(t *testing.T) {
		ws := models.Workshop{Name: "coupage", Layout: models.Layout{SheetNames: []string{"MOUVEMENT"}}}
		rec := Inspect(wb, ws, testCandidates, models.Override{})

		if !rec.Valid || len(rec.Errors) != 0 {
			t.Fatalf("expected a valid record, got %+v", rec)
		}
		if !reflect.DeepEqual(rec.AvailableSheets, []string{"Notes", "MOUVEMENT"}) {
			t.Errorf("AvailableSheets = %v", rec.AvailableSheets)
		}
		if !reflect.DeepEqual(rec.AvailableColumns, []string{"DATE", "REFERENCE ", "DESIGNATION", "STOCK"}) {
			t.Errorf("AvailableColumns = %v", rec.AvailableColumns)
		}
		if !reflect.DeepEqual(rec.ColumnsFor("Notes"), []string{"free text"}) {
			t.Errorf("ColumnsFor(Notes) = %v", rec.ColumnsFor("Notes"))
		}
	})

	t.Run("wrong sheet", func(t *testing.T) {
		ws := models.Workshop{Name: "bloc", Layout: models.Layout{SheetNames: []string{"MOUVEM 09"}}}
		rec := Inspect(wb, ws, testCandidates, models.Override{})

		if rec.Valid {
			t.Fatal("record should be invalid")
		}
		if rec.ExpectedSheet != "MOUVEM 09" || len(rec.Errors) != 1 {
			t.Errorf("unexpected record %+v", rec)
		}
	})

	t.Run("override repairs sheet", func(t *testing.T) {
		ws := models.Workshop{Name: "bloc", Layout: models.Layout{SheetNames: []string{"MOUVEM 09"}}}
		rec := Inspect(wb, ws, testCandidates, models.Override{SheetName: "MOUVEMENT"})
		if !rec.Valid {
			t.Errorf("override should make the record valid: %+v", rec)
		}
	})
}

func TestOpen_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mouvement femme.csv")
	err := workbooktest.WriteCSV(path, [][]string{
		{"Date", "Référence", "Quantité"},
		{"2024-01-05", "A1", "3"},
	})
	if err != nil {
		t.Fatal(err)
	}

	wb := openTestWorkbook(t, path)
	if !wb.IsCSV() {
		t.Fatal("expected a CSV workbook")
	}

	ws := models.Workshop{Name: "femme", Layout: models.Layout{SheetNames: []string{"الحركة اليومية"}}}
	frame, layout, err := ResolveMovement(wb, ws, testCandidates, models.Override{})
	if err != nil {
		t.Fatalf("ResolveMovement() error = %v", err)
	}
	if layout.Sheet != "mouvement femme" || layout.RefCol != "Référence" || len(frame.Rows) != 1 {
		t.Errorf("unexpected result %+v, %d rows", layout, len(frame.Rows))
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.xlsx"), logger.NewNop())
	if !apperrors.HasCode(err, apperrors.CodeFileNotFound) {
		t.Errorf("expected file not found, got %v", err)
	}

	bogus := filepath.Join(t.TempDir(), "bogus.xlsx")
	if err := workbooktest.WriteCSV(bogus, [][]string{{"not", "zip"}}); err != nil {
		t.Fatal(err)
	}
	_, err = Open(bogus, logger.NewNop())
	if !apperrors.HasCode(err, apperrors.CodeFileCorrupted) {
		t.Errorf("expected corrupted file, got %v", err)
	}
}

func TestWorkbook_SheetContaining(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Stock 03-2024.xlsx")
	err := workbooktest.WriteXLSX(path,
		workbooktest.Sheet{Name: "Résumé", Rows: [][]interface{}{{"x"}}},
		workbooktest.Sheet{Name: "Etat stock", Rows: [][]interface{}{{"y"}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	wb := openTestWorkbook(t, path)

	if got := wb.SheetContaining("STOCK"); got != "Etat stock" {
		t.Errorf("SheetContaining(STOCK) = %q", got)
	}
	if got := wb.SheetContaining("MAG"); got != "Résumé" {
		t.Errorf("SheetContaining(MAG) = %q, want the first sheet", got)
	}
}
