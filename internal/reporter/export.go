package reporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"stock-reconciler/internal/models"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// TableHeader is the header row of every exported table
var TableHeader = []string{"Ref", "Stock_Qty", "Calc_Mov_Qty", "Difference"}

var spaces = regexp.MustCompile(`\s+`)

// DefaultFilename returns "<view>_<workshop>.<ext>" with whitespace runs
// in the workshop name replaced by underscores.
func DefaultFilename(view models.View, workshop string, format OutputFormat) string {
	return fmt.Sprintf("%s_%s.%s", view, spaces.ReplaceAllString(workshop, "_"), format)
}

// FormatFromPath picks the table format from the destination's extension
func FormatFromPath(destination string) (OutputFormat, error) {
	switch f := OutputFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(destination)), ".")); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", apperrors.ValidationError(apperrors.CodeInvalidInput, "destination", destination, nil).
			WithSuggestion("export to a .csv or .xlsx file")
	}
}

// Exporter writes row tables to files
type Exporter struct {
	logger logger.Logger
}

// NewExporter creates an exporter
func NewExporter(log logger.Logger) *Exporter {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Exporter{logger: log.WithComponent("reporter")}
}

// ExportTable writes rows to destination as CSV (UTF-8 with BOM) or XLSX,
// chosen by extension. Quantities carry two decimals.
func (e *Exporter) ExportTable(rows []models.Row, destination string) error {
	if len(rows) == 0 {
		return apperrors.ValidationError(apperrors.CodeInvalidInput, "rows", "none", nil).
			WithSuggestion("there is no data to export in this view")
	}
	format, err := FormatFromPath(destination)
	if err != nil {
		return err
	}

	if format == FormatXLSX {
		err = writeXLSX(rows, destination)
	} else {
		err = writeCSV(rows, destination)
	}
	if err != nil {
		e.logger.WithError(err).WithField("destination", destination).Error("Export failed")
		return wrapWriteError(destination, err)
	}

	e.logger.WithFields(logger.Fields{
		"destination": destination,
		"rows":        len(rows),
	}).Info("Table exported")
	return nil
}

// ExportAll writes the matches and discrepancies of every workshop that did
// not fail into dir, skipping empty lists. It returns the written paths.
func (e *Exporter) ExportAll(result *models.ReconciliationResult, dir string, format OutputFormat) ([]string, error) {
	if !format.IsTable() {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidInput, "format", format, nil).
			WithSuggestion("export tables as csv or xlsx")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.FileError(apperrors.CodeDirectoryError, dir, err)
	}

	var written []string
	for _, name := range result.Names() {
		w, _ := result.Get(name)
		if w.Failed() {
			e.logger.WithField("workshop", name).Debug("Skipping failed workshop")
			continue
		}
		for _, view := range []models.View{models.ViewMatches, models.ViewDiscrepancies} {
			rows := *w.Rows(view)
			if len(rows) == 0 {
				continue
			}
			path := filepath.Join(dir, DefaultFilename(view, name, format))
			if err := e.ExportTable(rows, path); err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}
	return written, nil
}

func tableRecord(r models.Row) []string {
	return []string{
		r.Ref,
		r.StockQty.StringFixed(2),
		r.CalcMovQty.StringFixed(2),
		r.Difference.StringFixed(2),
	}
}

func writeCSV(rows []models.Row, destination string) error {
	f, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString("\ufeff"); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(TableHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(tableRecord(r)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeXLSX(rows []models.Row, destination string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	twoPlaces, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}

	header := make([]interface{}, len(TableHeader))
	for i, h := range TableHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", bold); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{r.Ref, money(r.StockQty), money(r.CalcMovQty), money(r.Difference)}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(4, len(rows)+1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "B2", last, twoPlaces); err != nil {
		return err
	}
	return f.SaveAs(destination)
}

func wrapWriteError(destination string, err error) error {
	if _, ok := apperrors.AsReconcilerError(err); ok {
		return err
	}
	switch {
	case os.IsNotExist(err):
		return apperrors.FileError(apperrors.CodeDirectoryError, filepath.Dir(destination), err)
	case os.IsPermission(err):
		return apperrors.FileError(apperrors.CodeFilePermission, destination, err)
	default:
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "export", err).
			WithSuggestion("check the output destination")
	}
}
