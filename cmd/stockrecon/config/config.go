package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/pairs"
	"stock-reconciler/internal/reconciler"
	"stock-reconciler/internal/reporter"
	"stock-reconciler/internal/session"
	"stock-reconciler/internal/units"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// Setting keys shared by flags, environment variables and config files
const (
	KeyUnit           = "unit"
	KeyMonth          = "month"
	KeyYear           = "year"
	KeyUnitsFile      = "units-file"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyLogFile        = "log-file"
	KeyPairThreshold  = "pair-threshold"
	KeyPairTolerance  = "pair-tolerance"
	KeyPairPreset     = "pair-preset"
	KeyOutputDir      = "output-dir"
	KeyOutputFormat   = "output-format"
	KeyOverrides      = "overrides"
	KeySkip           = "skip"
	KeyEliminatePairs = "eliminate-pairs"
	KeyWorkers        = "workers"
	KeyVerbose        = "verbose"
)

// EnvPrefix is the prefix of environment variables, e.g. STOCKRECON_UNIT
const EnvPrefix = "STOCKRECON"

// Settings is everything a command needs, resolved from viper
type Settings struct {
	Unit      string
	Month     int
	Year      int
	UnitsFile string

	LogLevel  string
	LogFormat string
	LogFile   string
	Verbose   bool

	PairPreset    string
	PairThreshold float64
	PairTolerance string

	OutputDir    string
	OutputFormat string

	Overrides      map[string]models.Override
	Skip           []string
	EliminatePairs bool
	Workers        int
}

// SetDefaults registers the default of every setting on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, string(logger.InfoLevel))
	v.SetDefault(KeyLogFormat, string(logger.TextFormat))
	v.SetDefault(KeyPairPreset, "default")
	v.SetDefault(KeyOutputDir, ".")
	v.SetDefault(KeyOutputFormat, string(reporter.FormatConsole))
	v.SetDefault(KeyWorkers, reconciler.DefaultConfig().Workers)
}

// Load reads the settings from v and validates them
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Unit:           strings.TrimSpace(v.GetString(KeyUnit)),
		Month:          v.GetInt(KeyMonth),
		Year:           v.GetInt(KeyYear),
		UnitsFile:      v.GetString(KeyUnitsFile),
		LogLevel:       strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:      strings.ToLower(v.GetString(KeyLogFormat)),
		LogFile:        v.GetString(KeyLogFile),
		Verbose:        v.GetBool(KeyVerbose),
		PairPreset:     strings.ToLower(v.GetString(KeyPairPreset)),
		PairThreshold:  v.GetFloat64(KeyPairThreshold),
		PairTolerance:  v.GetString(KeyPairTolerance),
		OutputDir:      v.GetString(KeyOutputDir),
		OutputFormat:   strings.ToLower(v.GetString(KeyOutputFormat)),
		Skip:           v.GetStringSlice(KeySkip),
		EliminatePairs: v.GetBool(KeyEliminatePairs),
		Workers:        v.GetInt(KeyWorkers),
	}
	if err := v.UnmarshalKey(KeyOverrides, &s.Overrides); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, KeyOverrides, v.Get(KeyOverrides), err).
			WithSuggestion("overrides map a workshop to {sheet, ref, qty}")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings that can be checked without loading files
func (s *Settings) Validate() error {
	if _, err := s.Period(); err != nil {
		return err
	}
	if !reporter.OutputFormat(s.OutputFormat).IsValid() {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, KeyOutputFormat, s.OutputFormat, nil).
			WithSuggestion("use console, json, yaml, csv or xlsx")
	}
	if s.Workers <= 0 {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, KeyWorkers, s.Workers, nil).
			WithSuggestion("workers must be at least 1")
	}
	if _, err := s.PairsConfig(); err != nil {
		return err
	}
	if err := s.LoggerConfig().Validate(); err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "logging", s.LogLevel+"/"+s.LogFormat, err)
	}
	return nil
}

// Period returns the configured reporting period. The zero period means
// none was configured; a month without a year uses the current year.
func (s *Settings) Period() (models.Period, error) {
	if s.Month == 0 && s.Year == 0 {
		return models.Period{}, nil
	}
	month, year := s.Month, s.Year
	if month == 0 {
		month = 12
	}
	if year == 0 {
		year = time.Now().Year()
	}
	p, err := models.NewPeriod(month, year)
	if err != nil {
		return models.Period{}, apperrors.ValidationError(apperrors.CodeInvalidPeriod, "period", fmt.Sprintf("%d/%d", s.Month, s.Year), err).
			WithSuggestion("month is 1 to 12 and year has four digits")
	}
	return p, nil
}

// LoggerConfig builds the logger configuration. Verbose forces debug level.
func (s *Settings) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.Level(s.LogLevel)
	cfg.Format = logger.Format(s.LogFormat)
	if s.Verbose {
		cfg.Level = logger.DebugLevel
		cfg.CallerInfo = true
	}
	if s.LogFile != "" {
		cfg.Output = logger.FileOutput
		cfg.File = s.LogFile
	}
	return cfg
}

// InteractiveLoggerConfig keeps the terminal for the review screens. Logs go
// to the configured file, or nowhere.
func (s *Settings) InteractiveLoggerConfig() *logger.Config {
	if s.LogFile == "" {
		cfg := s.LoggerConfig()
		cfg.Output = logger.DiscardOutput
		return cfg
	}
	cfg := logger.InteractiveConfig(s.LogFile)
	cfg.Level = s.LoggerConfig().Level
	return cfg
}

// PairsConfig starts from the named preset and applies explicit
// threshold and tolerance settings.
func (s *Settings) PairsConfig() (*pairs.Config, error) {
	var cfg *pairs.Config
	switch s.PairPreset {
	case "", "default":
		cfg = pairs.DefaultConfig()
	case "strict":
		cfg = pairs.StrictConfig()
	case "relaxed":
		cfg = pairs.RelaxedConfig()
	default:
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, KeyPairPreset, s.PairPreset, nil).
			WithSuggestion("use default, strict or relaxed")
	}

	if s.PairThreshold != 0 {
		cfg.Threshold = s.PairThreshold
	}
	if s.PairTolerance != "" {
		tol, err := decimal.NewFromString(s.PairTolerance)
		if err != nil {
			return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, KeyPairTolerance, s.PairTolerance, err)
		}
		cfg.Tolerance = tol
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "pairs", cfg.String(), err)
	}
	return cfg, nil
}

// ReconcilerConfig builds the aggregation service configuration
func (s *Settings) ReconcilerConfig() *reconciler.Config {
	cfg := reconciler.DefaultConfig()
	cfg.Workers = s.Workers
	return cfg
}

// ReportConfig builds the report configuration for document formats. Table
// formats are exported, not rendered, so they report to the console.
func (s *Settings) ReportConfig() *reporter.ReportConfig {
	cfg := reporter.DefaultReportConfig()
	if f := reporter.OutputFormat(s.OutputFormat); f.IsDocument() {
		cfg.Format = f
	}
	return cfg
}

// SessionConfig builds the session configuration
func (s *Settings) SessionConfig() (*session.Config, error) {
	p, err := s.PairsConfig()
	if err != nil {
		return nil, err
	}
	period, err := s.Period()
	if err != nil {
		return nil, err
	}
	return &session.Config{
		Unit:      s.Unit,
		Period:    period,
		Pairs:     p,
		Overrides: s.Overrides,
		Skip:      s.Skip,
	}, nil
}

// UnitsTable loads the configured unit table, or the built-in one
func (s *Settings) UnitsTable() (*units.Table, error) {
	return units.LoadOrBuiltin(s.UnitsFile)
}
