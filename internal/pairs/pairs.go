package pairs

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/textnorm"
)

// OppositePair is two discrepancies whose differences cancel out
type OppositePair struct {
	Ref1           string  `json:"ref1" yaml:"ref1"`
	Ref2           string  `json:"ref2" yaml:"ref2"`
	Diff1          float64 `json:"diff1" yaml:"diff1"`
	Diff2          float64 `json:"diff2" yaml:"diff2"`
	Similarity     float64 `json:"similarity" yaml:"similarity"`
	HighSimilarity bool    `json:"highSimilarity" yaml:"high_similarity"`
}

// Refs returns both references, trimmed
func (p OppositePair) Refs() [2]string {
	return [2]string{strings.TrimSpace(p.Ref1), strings.TrimSpace(p.Ref2)}
}

// Involves reports whether ref is one of the pair's references
func (p OppositePair) Involves(ref string) bool {
	ref = strings.TrimSpace(ref)
	r := p.Refs()
	return r[0] == ref || r[1] == ref
}

var editCosts = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// Similarity scores two references in [0, 1] as one minus their edit
// distance over the longer length. Comparison ignores case and surrounding
// whitespace; identical references score 1 and an empty one scores 0.
func Similarity(a, b string) float64 {
	ra := []rune(textnorm.Key(a))
	rb := []rune(textnorm.Key(b))
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if string(ra) == string(rb) {
		return 1
	}
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	d := levenshtein.DistanceForStrings(ra, rb, editCosts)
	return 1 - float64(d)/float64(longest)
}

// Detector finds opposite pairs
type Detector struct {
	config *Config
}

// NewDetector creates a detector; a nil config means DefaultConfig.
func NewDetector(config *Config) (*Detector, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Detector{config: config.Clone()}, nil
}

// Config returns a copy of the detector's configuration
func (d *Detector) Config() *Config {
	return d.config.Clone()
}

// Detect scans every unordered pair of rows (i < j) in list order. A row
// with a zero difference never starts a pair. The result is a pure function
// of rows and must be recomputed after the list changes.
func (d *Detector) Detect(rows []models.Row) []OppositePair {
	var out []OppositePair
	for i := 0; i < len(rows); i++ {
		if rows[i].Difference.IsZero() {
			continue
		}
		for j := i + 1; j < len(rows); j++ {
			sum := rows[i].Difference.Add(rows[j].Difference)
			if !sum.Abs().LessThan(d.config.Tolerance) {
				continue
			}
			sim := Similarity(rows[i].Ref, rows[j].Ref)
			out = append(out, OppositePair{
				Ref1:           rows[i].Ref,
				Ref2:           rows[j].Ref,
				Diff1:          rows[i].Difference.InexactFloat64(),
				Diff2:          rows[j].Difference.InexactFloat64(),
				Similarity:     sim,
				HighSimilarity: sim >= d.config.Threshold,
			})
		}
	}
	return out
}

// Refs returns the distinct trimmed references of pairs in first-seen order
func Refs(pairs []OppositePair) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range pairs {
		for _, r := range p.Refs() {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

// HighRefs returns the distinct trimmed references of high-similarity pairs
func HighRefs(pairs []OppositePair) []string {
	var high []OppositePair
	for _, p := range pairs {
		if p.HighSimilarity {
			high = append(high, p)
		}
	}
	return Refs(high)
}

// Rename rewrites every occurrence of oldRef in pairs to newRef
func Rename(pairs []OppositePair, oldRef, newRef string) {
	oldRef = strings.TrimSpace(oldRef)
	for i := range pairs {
		if strings.TrimSpace(pairs[i].Ref1) == oldRef {
			pairs[i].Ref1 = newRef
		}
		if strings.TrimSpace(pairs[i].Ref2) == oldRef {
			pairs[i].Ref2 = newRef
		}
	}
}
