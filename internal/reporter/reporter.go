// Package reporter turns staged discrepancies into a report document and
// writes result tables to disk.
//
// Supported output formats:
//   - Console: human-readable tables for terminal display
//   - JSON: structured data for programmatic consumption
//   - YAML: structured data for people who edit it afterwards
//   - CSV and XLSX: single tables, see ExportTable
//
// Example usage:
//
//	staging := reporter.NewStaging()
//	_ = staging.AddWorkshop("coupage", models.ViewDiscrepancies, rows)
//
//	doc := reporter.BuildDocument("Fath1", "03/2024", staging)
//	gen, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON}, log)
//	err = gen.GenerateReport(doc, os.Stdout)
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"stock-reconciler/internal/models"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// OutputFormat represents the supported output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	return f.IsDocument() || f.IsTable()
}

// IsDocument reports whether the format renders a whole report
func (f OutputFormat) IsDocument() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatYAML:
		return true
	default:
		return false
	}
}

// IsTable reports whether the format holds a single table
func (f OutputFormat) IsTable() bool {
	return f == FormatCSV || f == FormatXLSX
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// UseColors only takes effect when writing to a terminal.
	UseColors bool `json:"use_colors"`

	// MaxRows limits the rows printed per workshop on the console; 0 prints all.
	MaxRows int `json:"max_rows"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:    FormatConsole,
		UseColors: true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsDocument() {
		return fmt.Errorf("invalid report format: %s", c.Format)
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max rows cannot be negative, got %d", c.MaxRows)
	}
	return nil
}

// DocumentRow is one staged discrepancy with quantities rounded to two places
type DocumentRow struct {
	Ref        string  `json:"Ref" yaml:"ref"`
	StockQty   float64 `json:"Stock_Qty" yaml:"stock_qty"`
	CalcMovQty float64 `json:"Calc_Mov_Qty" yaml:"calc_mov_qty"`
	Difference float64 `json:"Difference" yaml:"difference"`
}

// Totals sums a set of rows
type Totals struct {
	Workshops  int     `json:"workshops,omitempty" yaml:"workshops,omitempty"`
	Rows       int     `json:"rows" yaml:"rows"`
	StockQty   float64 `json:"Stock_Qty" yaml:"stock_qty"`
	CalcMovQty float64 `json:"Calc_Mov_Qty" yaml:"calc_mov_qty"`
	Difference float64 `json:"Difference" yaml:"difference"`
}

// WorkshopSection is the staged snapshot of one workshop
type WorkshopSection struct {
	Workshop string        `json:"workshop" yaml:"workshop"`
	Rows     []DocumentRow `json:"rows" yaml:"rows"`
	Totals   Totals        `json:"totals" yaml:"totals"`
}

// Document is the staged report
type Document struct {
	Unit      string            `json:"unit" yaml:"unit"`
	Period    string            `json:"period" yaml:"period"`
	Workshops []WorkshopSection `json:"workshops" yaml:"workshops"`
	Totals    Totals            `json:"totals" yaml:"totals"`
}

type sums struct {
	rows                   int
	stock, mov, difference decimal.Decimal
}

func (s *sums) add(r models.Row) {
	s.rows++
	s.stock = s.stock.Add(r.StockQty)
	s.mov = s.mov.Add(r.CalcMovQty)
	s.difference = s.difference.Add(r.Difference)
}

func (s *sums) merge(o sums) {
	s.rows += o.rows
	s.stock = s.stock.Add(o.stock)
	s.mov = s.mov.Add(o.mov)
	s.difference = s.difference.Add(o.difference)
}

func (s sums) totals() Totals {
	return Totals{
		Rows:       s.rows,
		StockQty:   money(s.stock),
		CalcMovQty: money(s.mov),
		Difference: money(s.difference),
	}
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// BuildDocument assembles the staged snapshots in staging order
func BuildDocument(unit, period string, staging *Staging) *Document {
	doc := &Document{Unit: unit, Period: period, Workshops: []WorkshopSection{}}
	var all sums
	for _, name := range staging.Names() {
		rows, _ := staging.Snapshot(name)
		section := WorkshopSection{Workshop: name, Rows: make([]DocumentRow, 0, len(rows))}
		var s sums
		for _, r := range rows {
			s.add(r)
			section.Rows = append(section.Rows, DocumentRow{
				Ref:        r.Ref,
				StockQty:   money(r.StockQty),
				CalcMovQty: money(r.CalcMovQty),
				Difference: money(r.Difference),
			})
		}
		section.Totals = s.totals()
		all.merge(s)
		doc.Workshops = append(doc.Workshops, section)
	}
	doc.Totals = all.totals()
	doc.Totals.Workshops = len(doc.Workshops)
	return doc
}

// ReportGenerator renders report documents
type ReportGenerator struct {
	config *ReportConfig
	logger logger.Logger
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig, log logger.Logger) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "output-format", config.Format, err).
			WithSuggestion("use console, json or yaml for reports")
	}
	return &ReportGenerator{config: config, logger: log.WithComponent("reporter")}, nil
}

// GenerateReport writes doc to writer in the configured format
func (rg *ReportGenerator) GenerateReport(doc *Document, writer io.Writer) error {
	if doc == nil || len(doc.Workshops) == 0 {
		return apperrors.ValidationError(apperrors.CodeInvalidInput, "report", "empty", nil).
			WithSuggestion("add at least one workshop's discrepancies to the report")
	}
	rg.logger.WithFields(logger.Fields{
		"format":    rg.config.Format,
		"workshops": len(doc.Workshops),
	}).Debug("Generating report")

	var err error
	switch rg.config.Format {
	case FormatJSON:
		enc := json.NewEncoder(writer)
		enc.SetIndent("", "  ")
		err = enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(writer)
		enc.SetIndent(2)
		if err = enc.Encode(doc); err == nil {
			err = enc.Close()
		}
	default:
		err = rg.generateConsoleReport(doc, writer)
	}
	if err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "report generation", err).
			WithSuggestion("check the output destination and report format settings")
	}
	return nil
}

type palette struct {
	title, heading, positive, negative lipgloss.Style
	enabled                            bool
}

func (p palette) paint(s lipgloss.Style, text string) string {
	if !p.enabled {
		return text
	}
	return s.Render(text)
}

func (rg *ReportGenerator) palette(writer io.Writer) palette {
	f, ok := writer.(*os.File)
	if !rg.config.UseColors || !ok || !term.IsTerminal(int(f.Fd())) {
		return palette{}
	}
	r := lipgloss.NewRenderer(writer)
	return palette{
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		heading:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")),
		positive: r.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		negative: r.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
		enabled:  true,
	}
}

func (rg *ReportGenerator) generateConsoleReport(doc *Document, writer io.Writer) error {
	p := rg.palette(writer)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", p.paint(p.title, "STOCK DISCREPANCY REPORT"))
	fmt.Fprintf(&b, "Unit:   %s\n", doc.Unit)
	fmt.Fprintf(&b, "Period: %s\n", doc.Period)

	for _, section := range doc.Workshops {
		fmt.Fprintf(&b, "\n%s\n", p.paint(p.heading, fmt.Sprintf("=== %s (%d rows) ===", section.Workshop, section.Totals.Rows)))
		width := refWidth(section.Rows)
		fmt.Fprintf(&b, "%-*s  %10s  %12s  %10s\n", width, "Ref", "Stock_Qty", "Calc_Mov_Qty", "Difference")
		for i, r := range section.Rows {
			if rg.config.MaxRows > 0 && i >= rg.config.MaxRows {
				fmt.Fprintf(&b, "... and %d more\n", len(section.Rows)-i)
				break
			}
			fmt.Fprintf(&b, "%-*s  %10.2f  %12.2f  %s\n", width, r.Ref, r.StockQty, r.CalcMovQty, p.difference(r.Difference))
		}
		t := section.Totals
		fmt.Fprintf(&b, "%-*s  %10.2f  %12.2f  %s\n", width, "Total", t.StockQty, t.CalcMovQty, p.difference(t.Difference))
	}

	fmt.Fprintf(&b, "\n%s\n", p.paint(p.heading, "=== SUMMARY ==="))
	fmt.Fprintf(&b, "Workshops:  %d\n", doc.Totals.Workshops)
	fmt.Fprintf(&b, "Rows:       %d\n", doc.Totals.Rows)
	fmt.Fprintf(&b, "Difference: %.2f\n", doc.Totals.Difference)

	_, err := io.WriteString(writer, b.String())
	return err
}

func (p palette) difference(d float64) string {
	cell := fmt.Sprintf("%10.2f", d)
	switch {
	case d > 0:
		return p.paint(p.positive, cell)
	case d < 0:
		return p.paint(p.negative, cell)
	default:
		return cell
	}
}

func refWidth(rows []DocumentRow) int {
	width := len("Total")
	for _, r := range rows {
		if n := utf8.RuneCountInString(r.Ref); n > width {
			width = n
		}
	}
	return width
}
