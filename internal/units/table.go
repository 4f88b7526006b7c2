// Package units holds the workshop configuration table: the built-in units
// and a loader for replacement tables written in YAML or TOML.
package units

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"stock-reconciler/internal/models"
	apperrors "stock-reconciler/pkg/errors"
)

// Table is an ordered, validated set of units.
type Table struct {
	units []models.Unit
	index map[string]int
}

// NewTable validates units and indexes them by ID.
func NewTable(units []models.Unit) (*Table, error) {
	if len(units) == 0 {
		return nil, fmt.Errorf("unit table is empty")
	}
	t := &Table{index: make(map[string]int, len(units))}
	for i := range units {
		u := units[i]
		if err := u.Validate(); err != nil {
			return nil, err
		}
		if _, dup := t.index[u.ID]; dup {
			return nil, fmt.Errorf("unit %s declared twice", u.ID)
		}
		t.index[u.ID] = len(t.units)
		t.units = append(t.units, u)
	}
	return t, nil
}

// Get returns the unit with the given ID
func (t *Table) Get(id string) (models.Unit, error) {
	i, ok := t.index[id]
	if !ok {
		return models.Unit{}, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "unit", id, nil).
			WithSuggestion(fmt.Sprintf("Known units: %s", strings.Join(t.IDs(), ", ")))
	}
	return t.units[i], nil
}

// IDs returns unit IDs in declaration order
func (t *Table) IDs() []string {
	ids := make([]string, len(t.units))
	for i, u := range t.units {
		ids[i] = u.ID
	}
	return ids
}

// Default returns the first unit
func (t *Table) Default() models.Unit {
	return t.units[0]
}

type tableFile struct {
	Units []unitFile `yaml:"units" toml:"units"`
}

// unitFile mirrors models.Unit with a float tolerance, which both decoders
// accept from a bare number.
type unitFile struct {
	ID             string                  `yaml:"id" toml:"id"`
	Workshops      []models.Workshop       `yaml:"workshops" toml:"workshops"`
	Movement       models.ColumnCandidates `yaml:"movement" toml:"movement"`
	Stock          models.StockLayout      `yaml:"stock" toml:"stock"`
	FilterByPeriod bool                    `yaml:"filter_by_period" toml:"filter_by_period"`
	MatchTolerance float64                 `yaml:"match_tolerance" toml:"match_tolerance"`
}

// Load reads a unit table from path. The format follows the extension:
// .yaml/.yml or .toml.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
	}

	var file tableFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		err = decoder.Decode(&file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "units-file", path,
			fmt.Errorf("unsupported extension %q", ext))
	}
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, "", "", err)
	}

	units := make([]models.Unit, len(file.Units))
	for i, u := range file.Units {
		units[i] = models.Unit{
			ID:             u.ID,
			Workshops:      u.Workshops,
			Movement:       u.Movement,
			Stock:          u.Stock,
			FilterByPeriod: u.FilterByPeriod,
			MatchTolerance: decimal.NewFromFloat(u.MatchTolerance),
		}
	}

	table, err := NewTable(units)
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "units-file", path, err)
	}
	return table, nil
}

// LoadOrBuiltin loads path, or returns the built-in table when path is empty.
func LoadOrBuiltin(path string) (*Table, error) {
	if path == "" {
		return Builtin(), nil
	}
	return Load(path)
}
