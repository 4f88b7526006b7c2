// Package matcher assigns movement ledgers to the workshops of a unit.
//
// Matching is greedy and follows configuration order:
//  1. Files pinned by the operator are placed first.
//  2. Every other workshop, in declared order, claims the first unclaimed
//     file (in arrival order) whose folded name contains one of its keywords,
//     either as a contiguous substring or as a set of whitespace-separated
//     tokens found anywhere in the name.
//  3. Files nobody claimed are reported as unmatched.
//
// The result depends on workshop order when several files fit the same
// workshop. Workshop order is fixed configuration, so for a given file list
// the assignment is deterministic. Assignments are always recomputed from
// scratch; nothing is patched incrementally.
//
// Example usage:
//
//	board := matcher.NewBoard(unit.Workshops, log)
//	board.AddFiles(movements)
//	if err := board.Assign("coupage", file); err != nil { ... }
//	active := board.Active()
package matcher

import (
	"fmt"
	"strings"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/textnorm"
)

// Assignment is the outcome of one matching pass.
type Assignment struct {
	// Order lists every configured workshop.
	Order     []string                  `json:"order"`
	Files     map[string]models.FileRef `json:"files"`
	Unmatched []models.FileRef          `json:"unmatchedFiles"`
}

// File returns the file assigned to workshop
func (a Assignment) File(workshop string) (models.FileRef, bool) {
	f, ok := a.Files[workshop]
	return f, ok
}

// UnmatchedWorkshops returns workshops without a file, in configured order
func (a Assignment) UnmatchedWorkshops() []string {
	var out []string
	for _, name := range a.Order {
		if _, ok := a.Files[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Matched returns the number of workshops holding a file
func (a Assignment) Matched() int {
	return len(a.Files)
}

// CheckPartition verifies that every file of all is either assigned to
// exactly one workshop or unmatched, and that nothing else is.
func (a Assignment) CheckPartition(all []models.FileRef) error {
	seen := make(map[string]int, len(all))
	for _, f := range a.Files {
		seen[f.Path]++
	}
	for _, f := range a.Unmatched {
		seen[f.Path]++
	}
	for _, f := range all {
		switch seen[f.Path] {
		case 0:
			return fmt.Errorf("file %s is neither assigned nor unmatched", f.Filename)
		case 1:
			delete(seen, f.Path)
		default:
			return fmt.Errorf("file %s appears %d times", f.Filename, seen[f.Path])
		}
	}
	for path := range seen {
		return fmt.Errorf("file %s is not part of the input", path)
	}
	return nil
}

// Match runs one matching pass. pinned maps workshops to operator-chosen
// files and is applied before the greedy pass; released workshops take part
// in neither step. Pins that name a file outside files are ignored.
func Match(workshops []models.Workshop, files []models.FileRef, pinned map[string]models.FileRef, released map[string]bool) Assignment {
	result := Assignment{
		Order: make([]string, 0, len(workshops)),
		Files: make(map[string]models.FileRef),
	}

	known := make(map[string]bool, len(files))
	for _, f := range files {
		known[f.Path] = true
	}

	claimed := make(map[string]bool, len(files))
	for _, w := range workshops {
		result.Order = append(result.Order, w.Name)
		if released[w.Name] {
			continue
		}
		if f, ok := pinned[w.Name]; ok && known[f.Path] && !claimed[f.Path] {
			result.Files[w.Name] = f
			claimed[f.Path] = true
		}
	}

	for _, w := range workshops {
		if released[w.Name] {
			continue
		}
		if _, ok := result.Files[w.Name]; ok {
			continue
		}
		if f, ok := firstMatch(w, files, claimed); ok {
			result.Files[w.Name] = f
			claimed[f.Path] = true
		}
	}

	for _, f := range files {
		if !claimed[f.Path] {
			result.Unmatched = append(result.Unmatched, f)
		}
	}

	return result
}

func firstMatch(w models.Workshop, files []models.FileRef, claimed map[string]bool) (models.FileRef, bool) {
	for _, keyword := range w.MatchKeywords() {
		for _, f := range files {
			if claimed[f.Path] {
				continue
			}
			if KeywordMatches(keyword, f.Filename) {
				return f, true
			}
		}
	}
	return models.FileRef{}, false
}

// KeywordMatches reports whether filename contains keyword as a substring,
// or contains each whitespace-separated token of keyword somewhere.
// Both sides are trimmed, NFC-normalised and case-folded. A blank keyword
// never matches.
func KeywordMatches(keyword, filename string) bool {
	key := textnorm.Key(keyword)
	if key == "" {
		return false
	}
	name := textnorm.Fold(filename)
	if strings.Contains(name, key) {
		return true
	}
	for _, token := range strings.Fields(key) {
		if !strings.Contains(name, token) {
			return false
		}
	}
	return true
}
