// Package parsers reads stock and movement workbooks.
//
// It turns a spreadsheet into header-addressed frames and detects which
// sheet and columns hold a workshop's data. Workbooks are read with
// excelize; CSV exports are accepted as single-sheet workbooks.
//
// Header rows are not assumed to be the first row: stock snapshots start
// with title blocks, so their header is the row with the most filled cells,
// while movement ledgers use the first row holding a date column name.
// Column names are matched exactly first, then on their trimmed, case-folded
// form.
package parsers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Workbook is an opened spreadsheet file
type Workbook struct {
	path   string
	file   *excelize.File
	sheets []string
	// csvRows holds the single sheet of a CSV workbook
	csvRows [][]string
	logger  logger.Logger
}

// Supported reports whether filename has an extension Open can read
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm", ".csv":
		return true
	default:
		return false
	}
}

// Open opens an .xlsx family workbook or a .csv file.
func Open(path string, log logger.Logger) (*Workbook, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("parsers").WithField("file", filepath.Base(path))

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
		}
		return nil, apperrors.FileError(apperrors.CodeDirectoryError, path, err)
	}
	if info.IsDir() {
		return nil, apperrors.FileError(apperrors.CodeDirectoryError, path, nil)
	}

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return openCSV(path, log)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		log.WithError(err).Warn("Failed to open workbook")
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err)
	}
	wb := &Workbook{path: path, file: f, sheets: f.GetSheetList(), logger: log}
	log.WithField("sheets", len(wb.sheets)).Debug("Opened workbook")
	return wb, nil
}

func openCSV(path string, log logger.Logger) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, "", "",
			fmt.Errorf("invalid UTF-8 encoding")).
			WithSuggestion("save the file as UTF-8 CSV and try again")
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, "", "", err)
		}
		rows = append(rows, record)
	}

	sheet := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	log.WithField("rows", len(rows)).Debug("Opened CSV workbook")
	return &Workbook{path: path, sheets: []string{sheet}, csvRows: rows, logger: log}, nil
}

// sniffDelimiter picks ';' when the first line has more semicolons than commas.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// Path returns the file path
func (w *Workbook) Path() string {
	return w.path
}

// Filename returns the base name of the file
func (w *Workbook) Filename() string {
	return filepath.Base(w.path)
}

// IsCSV reports whether the workbook was read from a CSV file
func (w *Workbook) IsCSV() bool {
	return w.file == nil
}

// SheetNames returns the sheets in workbook order
func (w *Workbook) SheetNames() []string {
	return append([]string(nil), w.sheets...)
}

// ResolveSheet returns the first candidate present in the workbook, compared
// exactly and then on folded names. A CSV workbook resolves any candidate
// to its only sheet.
func (w *Workbook) ResolveSheet(candidates ...string) (string, bool) {
	if w.IsCSV() && len(w.sheets) == 1 {
		return w.sheets[0], true
	}
	name := FindName(w.sheets, candidates)
	return name, name != ""
}

// SheetContaining returns the first sheet whose upper-cased name contains
// hint, or the first sheet when none does.
func (w *Workbook) SheetContaining(hint string) string {
	if len(w.sheets) == 0 {
		return ""
	}
	hint = strings.ToUpper(hint)
	if hint != "" {
		for _, s := range w.sheets {
			if strings.Contains(strings.ToUpper(s), hint) {
				return s
			}
		}
	}
	return w.sheets[0]
}

// Rows returns the raw cell values of sheet. Dates come back as serial numbers.
func (w *Workbook) Rows(sheet string) ([][]string, error) {
	if w.IsCSV() {
		if len(w.sheets) == 0 || sheet != w.sheets[0] {
			return nil, apperrors.ParseError(apperrors.CodeMissingSheet, w.Filename(), sheet, "", nil)
		}
		return w.csvRows, nil
	}
	rows, err := w.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeMissingSheet, w.Filename(), sheet, "", err)
	}
	return rows, nil
}

// Close releases the workbook
func (w *Workbook) Close() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
