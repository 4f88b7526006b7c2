package models

// VerificationRecord describes the detected layout of one assigned movement file.
type VerificationRecord struct {
	Workshop         string   `json:"workshop" yaml:"workshop"`
	Filename         string   `json:"filename" yaml:"filename"`
	Valid            bool     `json:"valid" yaml:"valid"`
	ExpectedSheet    string   `json:"expectedSheet" yaml:"expected_sheet"`
	AvailableSheets  []string `json:"availableSheets" yaml:"available_sheets"`
	DetectedRefCol   string   `json:"detectedRefCol" yaml:"detected_ref_col"`
	DetectedQtyCol   string   `json:"detectedQtyCol" yaml:"detected_qty_col"`
	AvailableColumns []string `json:"availableColumns" yaml:"available_columns"`
	Errors           []string `json:"errors,omitempty" yaml:"errors,omitempty"`

	// ColumnsBySheet holds the header of every readable sheet so that a
	// different sheet can be picked without re-reading the file.
	ColumnsBySheet map[string][]string `json:"columnsBySheet,omitempty" yaml:"columns_by_sheet,omitempty"`
}

// ComputeValid derives Valid: the expected sheet exists and both columns were detected.
func (v *VerificationRecord) ComputeValid() bool {
	v.Valid = contains(v.AvailableSheets, v.ExpectedSheet) &&
		v.DetectedRefCol != "" && v.DetectedQtyCol != ""
	return v.Valid
}

// ColumnsFor returns the header candidates of sheet, falling back to AvailableColumns
func (v *VerificationRecord) ColumnsFor(sheet string) []string {
	if cols, ok := v.ColumnsBySheet[sheet]; ok {
		return cols
	}
	return v.AvailableColumns
}

// Override holds operator-confirmed layout choices for one workshop.
// Empty fields fall back to detection.
type Override struct {
	SheetName string `json:"sheetName,omitempty" yaml:"sheet,omitempty" mapstructure:"sheet"`
	RefCol    string `json:"refCol,omitempty" yaml:"ref,omitempty" mapstructure:"ref"`
	QtyCol    string `json:"qtyCol,omitempty" yaml:"qty,omitempty" mapstructure:"qty"`
}

// IsZero reports whether no field is set
func (o Override) IsZero() bool {
	return o.SheetName == "" && o.RefCol == "" && o.QtyCol == ""
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
