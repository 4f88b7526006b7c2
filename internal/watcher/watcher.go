// Package watcher follows an input directory and recomputes the file
// classification and workshop assignment whenever its content changes.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"stock-reconciler/internal/classifier"
	"stock-reconciler/internal/matcher"
	"stock-reconciler/internal/models"
	"stock-reconciler/internal/parsers"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// Snapshot is the classification of the directory at one point in time
type Snapshot struct {
	Stock      *models.FileRef
	Period     *models.Period
	Assignment matcher.Assignment
	// Trigger is the file whose event caused the snapshot; empty for the
	// initial scan.
	Trigger string
}

// Watcher scans one directory for a unit
type Watcher struct {
	dir    string
	unit   models.Unit
	logger logger.Logger
}

// New creates a watcher over dir
func New(dir string, unit models.Unit, log logger.Logger) *Watcher {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Watcher{
		dir:    dir,
		unit:   unit,
		logger: log.WithComponent("watcher").WithField("dir", dir),
	}
}

// Scan classifies the readable files of the directory and matches the
// movement files from scratch. Files are taken in name order.
func (w *Watcher) Scan() (Snapshot, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, apperrors.FileError(apperrors.CodeFileNotFound, w.dir, err)
		}
		return Snapshot{}, apperrors.FileError(apperrors.CodeDirectoryError, w.dir, err)
	}

	var files []models.FileRef
	for _, e := range entries {
		if e.IsDir() || !Candidate(e.Name()) {
			continue
		}
		files = append(files, models.FileRef{Path: filepath.Join(w.dir, e.Name()), Filename: e.Name()})
	}

	stock, movements := classifier.Partition(files)
	snap := Snapshot{
		Stock:      stock,
		Assignment: matcher.Match(w.unit.Workshops, movements, nil, nil),
	}
	if stock != nil {
		snap.Period = classifier.ParseStockMonthYear(stock.Filename)
	}
	w.logger.WithFields(logger.Fields{
		"files":     len(files),
		"matched":   snap.Assignment.Matched(),
		"unmatched": len(snap.Assignment.Unmatched),
	}).Debug("Directory scanned")
	return snap, nil
}

// Watch emits an initial snapshot, then a new one after every file
// creation, removal or rename in the directory. The channel is closed when
// ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan Snapshot, error) {
	first, err := w.Scan()
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "watch", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return nil, apperrors.FileError(apperrors.CodeDirectoryError, w.dir, err)
	}

	out := make(chan Snapshot, 1)
	out <- first
	go func() {
		defer close(out)
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if !relevant(event) {
					continue
				}
				w.logger.WithFields(logger.Fields{"file": filepath.Base(event.Name), "op": event.Op.String()}).Debug("Directory changed")
				snap, err := w.Scan()
				if err != nil {
					w.logger.WithError(err).Warn("Rescan failed")
					continue
				}
				snap.Trigger = filepath.Base(event.Name)
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.WithError(err).Warn("Watch error")
			}
		}
	}()
	w.logger.Info("Watching directory")
	return out, nil
}

// relevant keeps creations, removals and renames of candidate files.
// Writes and permission changes leave the classification alone.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if !Candidate(filepath.Base(event.Name)) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return false
		}
	}
	return true
}

// Candidate reports whether name is an input file. Hidden files and office
// lock files are not, nor are unsupported formats.
func Candidate(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	return parsers.Supported(name)
}
