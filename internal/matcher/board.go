package matcher

import (
	"stock-reconciler/internal/models"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// Board holds the movement files of a session together with the operator's
// manual choices, and keeps the current Assignment in sync with them.
type Board struct {
	workshops []models.Workshop
	files     []models.FileRef
	pinned    map[string]models.FileRef
	released  map[string]bool
	skipped   map[string]bool
	current   Assignment
	logger    logger.Logger
}

// NewBoard creates an empty board for the given workshops
func NewBoard(workshops []models.Workshop, log logger.Logger) *Board {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	b := &Board{
		workshops: workshops,
		pinned:    make(map[string]models.FileRef),
		released:  make(map[string]bool),
		skipped:   make(map[string]bool),
		logger:    log.WithComponent("matcher"),
	}
	b.rematch()
	return b
}

// Files returns the movement files in arrival order
func (b *Board) Files() []models.FileRef {
	return append([]models.FileRef(nil), b.files...)
}

// Assignment returns the current assignment
func (b *Board) Assignment() Assignment {
	return b.current
}

// AddFiles appends files not already present and rematches. It returns the
// number of files actually added.
func (b *Board) AddFiles(files ...models.FileRef) int {
	added := 0
	for _, f := range files {
		if b.indexOf(f.Path) >= 0 {
			continue
		}
		b.files = append(b.files, f)
		added++
	}
	if added > 0 {
		b.rematch()
	}
	return added
}

// RemoveFile drops a file from the board, together with any pin on it.
func (b *Board) RemoveFile(path string) bool {
	i := b.indexOf(path)
	if i < 0 {
		return false
	}
	b.files = append(b.files[:i], b.files[i+1:]...)
	for name, f := range b.pinned {
		if f.Path == path {
			delete(b.pinned, name)
		}
	}
	b.rematch()
	return true
}

// Assign pins file to workshop. The file is added to the board if needed,
// its previous holder loses it, and the workshop's previous file goes back
// to the pool, where it stays unmatched unless another workshop's keywords claim it.
func (b *Board) Assign(workshop string, file models.FileRef) error {
	if !b.known(workshop) {
		return apperrors.ValidationError(apperrors.CodeUnknownWorkshop, "workshop", workshop, nil)
	}
	if b.indexOf(file.Path) < 0 {
		b.files = append(b.files, file)
	}
	for name, f := range b.pinned {
		if f.Path == file.Path {
			delete(b.pinned, name)
		}
	}
	b.pinned[workshop] = file
	delete(b.released, workshop)
	b.rematch()
	b.logger.WithFields(logger.Fields{"workshop": workshop, "file": file.Filename}).Info("File assigned manually")
	return nil
}

// Unassign returns the workshop's file to the unmatched list and keeps the
// workshop out of automatic matching until it is assigned again or reset.
func (b *Board) Unassign(workshop string) error {
	if !b.known(workshop) {
		return apperrors.ValidationError(apperrors.CodeUnknownWorkshop, "workshop", workshop, nil)
	}
	delete(b.pinned, workshop)
	b.released[workshop] = true
	b.rematch()
	b.logger.WithField("workshop", workshop).Info("File unassigned")
	return nil
}

// Reset clears manual choices for a workshop
func (b *Board) Reset(workshop string) {
	delete(b.pinned, workshop)
	delete(b.released, workshop)
	b.rematch()
}

// ToggleSkip includes or excludes a workshop from verification and
// processing. Skipping keeps the file assignment. It returns the new state.
func (b *Board) ToggleSkip(workshop string) (bool, error) {
	if !b.known(workshop) {
		return false, apperrors.ValidationError(apperrors.CodeUnknownWorkshop, "workshop", workshop, nil)
	}
	b.skipped[workshop] = !b.skipped[workshop]
	if !b.skipped[workshop] {
		delete(b.skipped, workshop)
	}
	return b.skipped[workshop], nil
}

// Skip marks workshops as skipped without toggling
func (b *Board) Skip(workshops ...string) error {
	for _, w := range workshops {
		if !b.known(w) {
			return apperrors.ValidationError(apperrors.CodeUnknownWorkshop, "workshop", w, nil)
		}
		b.skipped[w] = true
	}
	return nil
}

// IsSkipped reports whether a workshop is skipped
func (b *Board) IsSkipped(workshop string) bool {
	return b.skipped[workshop]
}

// Active returns assigned, non-skipped workshops in configured order
func (b *Board) Active() []string {
	var out []string
	for _, name := range b.current.Order {
		if _, ok := b.current.Files[name]; ok && !b.skipped[name] {
			out = append(out, name)
		}
	}
	return out
}

// ActiveFiles returns the file of every active workshop
func (b *Board) ActiveFiles() map[string]models.FileRef {
	out := make(map[string]models.FileRef)
	for _, name := range b.Active() {
		out[name] = b.current.Files[name]
	}
	return out
}

func (b *Board) rematch() {
	b.current = Match(b.workshops, b.files, b.pinned, b.released)
	b.logger.WithFields(logger.Fields{
		"files":     len(b.files),
		"matched":   b.current.Matched(),
		"unmatched": len(b.current.Unmatched),
	}).Debug("Files matched to workshops")
}

func (b *Board) indexOf(path string) int {
	for i, f := range b.files {
		if f.Path == path {
			return i
		}
	}
	return -1
}

func (b *Board) known(workshop string) bool {
	for _, w := range b.workshops {
		if w.Name == workshop {
			return true
		}
	}
	return false
}
