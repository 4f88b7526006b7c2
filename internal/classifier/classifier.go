// Package classifier tells stock snapshots apart from movement ledgers by
// file name and reads the reporting period out of stock file names.
package classifier

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/textnorm"
)

// Kind is the role of an input file
type Kind int

const (
	Movement Kind = iota
	Stock
)

// String returns the string representation of Kind
func (k Kind) String() string {
	if k == Stock {
		return "stock"
	}
	return "movement"
}

var stockPeriodPattern = regexp.MustCompile(`(?i)stock[\s_\-.]*(\d{1,2})[\s_\-./]+(\d{4})`)

// IsStock reports whether filename names a stock snapshot: it mentions
// "stock" and neither "mov" nor the French "mouv". A name carrying both is a
// movement file.
func IsStock(filename string) bool {
	name := textnorm.Fold(filepath.Base(filename))
	return strings.Contains(name, "stock") &&
		!strings.Contains(name, "mov") && !strings.Contains(name, "mouv")
}

// Classify returns the role of filename
func Classify(filename string) Kind {
	if IsStock(filename) {
		return Stock
	}
	return Movement
}

// ParseStockMonthYear extracts the reporting period from names such as
// "Stock 07-2024.xlsx". It returns nil when the name carries no valid period.
func ParseStockMonthYear(filename string) *models.Period {
	m := stockPeriodPattern.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return nil
	}
	month, err := strconv.Atoi(m[1])
	if err != nil || month < 1 || month > 12 {
		return nil
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}
	p, err := models.NewPeriod(month, year)
	if err != nil {
		return nil
	}
	return &p
}

// Partition splits files into the stock snapshot and the movement ledgers.
// When several stock files are present the last one wins, as if each had
// replaced the previous one. Movement files keep their arrival order.
func Partition(files []models.FileRef) (stock *models.FileRef, movements []models.FileRef) {
	for i := range files {
		if IsStock(files[i].Filename) {
			f := files[i]
			stock = &f
			continue
		}
		movements = append(movements, files[i])
	}
	return stock, movements
}
