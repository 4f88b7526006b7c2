// Package pairs finds discrepancies that cancel each other out.
//
// Two discrepancies of one workshop form an opposite pair when their
// differences sum to zero within a tolerance. Such pairs usually come from a
// single quantity booked under two nearly identical references, so each pair
// carries a similarity score of the two references.
//
// Example usage:
//
//	cfg := pairs.DefaultConfig()
//	cfg.Threshold = 0.9
//
//	det, err := pairs.NewDetector(cfg)
//	found := det.Detect(discrepancies)
package pairs

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config holds the parameters of pair detection.
//
// Use the provided factory functions for common scenarios:
//   - DefaultConfig(): the values operators are used to
//   - StrictConfig(): only near-identical references are auto-selected
//   - RelaxedConfig(): more pairs are auto-selected
type Config struct {
	// Threshold is the similarity at or above which a pair is high-similarity (0.0 to 1.0)
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"pair-threshold"`

	// Tolerance bounds |diff1 + diff2|; the sum must be strictly below it
	Tolerance decimal.Decimal `json:"tolerance" yaml:"tolerance" mapstructure:"pair-tolerance"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Threshold: 0.8,
		Tolerance: decimal.RequireFromString("0.01"),
	}
}

// StrictConfig returns a configuration for strict detection
func StrictConfig() *Config {
	return &Config{
		Threshold: 0.95,
		Tolerance: decimal.RequireFromString("0.001"),
	}
}

// RelaxedConfig returns a configuration for relaxed detection
func RelaxedConfig() *Config {
	return &Config{
		Threshold: 0.6,
		Tolerance: decimal.RequireFromString("0.05"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Threshold < 0.0 || c.Threshold > 1.0 {
		return fmt.Errorf("similarity threshold must be between 0.0 and 1.0: %f", c.Threshold)
	}

	if !c.Tolerance.IsPositive() {
		return fmt.Errorf("tolerance must be positive: %s", c.Tolerance)
	}

	return nil
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// String returns a human-readable description of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("pairs.Config{Threshold: %.2f, Tolerance: %s}", c.Threshold, c.Tolerance)
}
