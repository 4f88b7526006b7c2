package parsers

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"

	"stock-reconciler/internal/models"
)

// Excel serials outside this range are not treated as dates (1954 to 2064).
const (
	minDateSerial = 20000
	maxDateSerial = 60000
)

// NormalizeRef trims a reference and writes a '.' between two digits as ','
// so that "12.5" and "12,5" name the same reference.
func NormalizeRef(s string) string {
	runes := []rune(strings.TrimSpace(s))
	for i := 1; i+1 < len(runes); i++ {
		if runes[i] == '.' && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			runes[i] = ','
		}
	}
	return string(runes)
}

// ParseDate reads a date cell, either an Excel serial number or a formatted date.
func ParseDate(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(cell, 64); err == nil {
		if serial < minDateSerial || serial > maxDateSerial {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		return t, err == nil
	}
	t, err := models.ParseTimeWithFormats(cell)
	return t, err == nil
}
