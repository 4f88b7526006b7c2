package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/units"
	"stock-reconciler/internal/workbooktest"
)

// SampleGenerator writes a stock snapshot and one movement workbook per
// workshop of a unit. Each workshop gets matching references, quantity
// differences, references missing on one side and one opposite pair.
type SampleGenerator struct {
	Unit      models.Unit
	Period    models.Period
	Refs      int
	Rand      *rand.Rand
	OutputDir string
	CSV       bool
}

func main() {
	var (
		unitID    = flag.String("unit", "", "Unit to generate inputs for (default: first builtin unit)")
		unitsFile = flag.String("units-file", "", "Unit table YAML (default: builtin table)")
		month     = flag.Int("month", int(time.Now().Month()), "Snapshot month")
		year      = flag.Int("year", time.Now().Year(), "Snapshot year")
		refs      = flag.Int("refs", 20, "References per workshop")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
		outputDir = flag.String("output-dir", "generated", "Output directory for the workbooks")
		csv       = flag.Bool("csv", false, "Write movement files as CSV instead of xlsx")
	)
	flag.Parse()

	table, err := units.LoadOrBuiltin(*unitsFile)
	if err != nil {
		log.Fatalf("Failed to load unit table: %v", err)
	}
	unit := table.Default()
	if *unitID != "" {
		if unit, err = table.Get(*unitID); err != nil {
			log.Fatalf("Unknown unit: %v", err)
		}
	}
	period, err := models.NewPeriod(*month, *year)
	if err != nil {
		log.Fatalf("Invalid period: %v", err)
	}
	if *refs < 4 {
		log.Fatalf("Need at least 4 references per workshop, got %d", *refs)
	}

	g := &SampleGenerator{
		Unit:      unit,
		Period:    period,
		Refs:      *refs,
		Rand:      rand.New(rand.NewSource(*seed)),
		OutputDir: *outputDir,
		CSV:       *csv,
	}
	if err := g.Generate(); err != nil {
		log.Fatalf("Generation failed: %v", err)
	}

	fmt.Printf("Generated %s inputs for %s in %s\n", unit.ID, period, *outputDir)
	fmt.Printf("Seed used: %d\n", *seed)
}

// Generate writes every workbook. Workshops whose sheet name excelize
// rejects are reported and skipped.
func (g *SampleGenerator) Generate() error {
	if err := os.MkdirAll(g.OutputDir, 0o755); err != nil {
		return err
	}

	shared := workbooktest.Sheet{
		Name: g.Unit.Stock.SheetHint,
		Rows: [][]interface{}{{"REFERENCE", "QUANTITE", "LOCALISATION"}},
	}
	if shared.Name == "" {
		shared.Name = "STOCK"
	}
	var dedicated []workbooktest.Sheet

	for i, ws := range g.Unit.Workshops {
		stock, movements := g.workshopRows(i)

		switch {
		case len(ws.Layout.StockSheets) > 0:
			sheet := workbooktest.Sheet{Name: ws.Layout.StockSheets[0], Rows: [][]interface{}{{"REFERENCE", "QUANTITE"}}}
			for _, r := range stock {
				sheet.Rows = append(sheet.Rows, []interface{}{r.ref, r.qty})
			}
			dedicated = append(dedicated, sheet)
		case len(ws.Layout.Localisations) > 0:
			for _, r := range stock {
				shared.Rows = append(shared.Rows, []interface{}{r.ref, r.qty, ws.Layout.Localisations[0]})
			}
		}

		if err := g.writeMovements(ws, movements); err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", ws.Name, err)
		}
	}

	name := fmt.Sprintf("Stock %s-%d.xlsx", g.Period.Month, g.Period.Year)
	return workbooktest.WriteXLSX(filepath.Join(g.OutputDir, name), append([]workbooktest.Sheet{shared}, dedicated...)...)
}

type line struct {
	ref string
	qty int
}

// workshopRows builds both sides for workshop i. The last two references
// form an opposite pair: the stock knows the first, the movements only the
// second, mistyped by one character.
func (g *SampleGenerator) workshopRows(i int) (stock, movements []line) {
	for n := 0; n < g.Refs-2; n++ {
		ref := fmt.Sprintf("REF-%02d%03d", i, n)
		qty := 1 + g.Rand.Intn(200)

		switch roll := g.Rand.Intn(10); {
		case roll < 6:
			stock = append(stock, line{ref, qty})
			movements = append(movements, line{ref, qty})
		case roll < 8:
			stock = append(stock, line{ref, qty})
			movements = append(movements, line{ref, qty + 1 + g.Rand.Intn(10)})
		case roll < 9:
			stock = append(stock, line{ref, qty})
		default:
			movements = append(movements, line{ref, qty})
		}
	}

	qty := 1 + g.Rand.Intn(50)
	stock = append(stock, line{fmt.Sprintf("PAIR-%02d00", i), qty})
	movements = append(movements, line{fmt.Sprintf("PAIR-%02d0O", i), qty})
	return stock, movements
}

func (g *SampleGenerator) writeMovements(ws models.Workshop, movements []line) error {
	day := time.Date(g.Period.Year, time.Month(g.Period.MonthNumber()), 1, 0, 0, 0, 0, time.UTC)
	last := day.AddDate(0, 1, -1).Day()
	date := func() time.Time { return day.AddDate(0, 0, g.Rand.Intn(last)) }

	base := "mouvement " + ws.Name
	if g.CSV {
		rows := [][]string{{"DATE", "REF", "STOCK"}}
		for _, m := range movements {
			rows = append(rows, []string{date().Format("2006-01-02"), m.ref, fmt.Sprint(m.qty)})
		}
		return workbooktest.WriteCSV(filepath.Join(g.OutputDir, base+".csv"), rows)
	}

	sheet := workbooktest.Sheet{Rows: [][]interface{}{{"DATE", "REF", "STOCK"}}}
	if len(ws.Layout.SheetNames) > 0 {
		sheet.Name = ws.Layout.SheetNames[0]
	} else {
		sheet.Name = "MOUVEMENT"
	}
	for _, m := range movements {
		sheet.Rows = append(sheet.Rows, []interface{}{date(), m.ref, m.qty})
	}
	return workbooktest.WriteXLSX(filepath.Join(g.OutputDir, base+".xlsx"), sheet)
}
