package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/reconciler"
	"stock-reconciler/internal/session"
	"stock-reconciler/internal/watcher"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// collectFiles expands args into input files. A directory contributes its
// candidate workbooks in name order; an explicit file is taken as is.
func collectFiles(args []string) ([]models.FileRef, error) {
	var files []models.FileRef
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, apperrors.FileError(apperrors.CodeFileNotFound, arg, err)
			}
			return nil, apperrors.FileError(apperrors.CodeFilePermission, arg, err)
		}
		if !info.IsDir() {
			files = append(files, models.FileRef{Path: arg, Filename: filepath.Base(arg)})
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, apperrors.FileError(apperrors.CodeDirectoryError, arg, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && watcher.Candidate(e.Name()) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			files = append(files, models.FileRef{Path: filepath.Join(arg, name), Filename: name})
		}
	}
	if len(files) == 0 {
		return nil, apperrors.ValidationError(apperrors.CodeEmptySelection, "files", args, nil).
			WithSuggestion("pass the stock workbook and the movement workbooks, or a directory holding them")
	}
	return files, nil
}

// openSession builds the aggregation service and a session over it, then
// feeds it the inputs. Notices go to out.
func openSession(args []string, out io.Writer) (*session.Session, *reconciler.Service, error) {
	log := logger.GetGlobalLogger()

	files, err := collectFiles(args)
	if err != nil {
		return nil, nil, err
	}
	table, err := settings.UnitsTable()
	if err != nil {
		return nil, nil, err
	}
	svc, err := reconciler.NewService(settings.ReconcilerConfig(), log)
	if err != nil {
		return nil, nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "reconciler", settings.Workers, err)
	}
	cfg, err := settings.SessionConfig()
	if err != nil {
		return nil, nil, err
	}
	s, err := session.New(cfg, table, svc, log)
	if err != nil {
		return nil, nil, err
	}
	printNotices(out, s.AddFiles(files...))
	return s, svc, nil
}

func printNotices(out io.Writer, notices []string) {
	for _, n := range notices {
		fmt.Fprintln(out, n)
	}
}

// printAssignment writes the workshop to file table of s
func printAssignment(out io.Writer, s *session.Session) {
	stock := "missing"
	if f, ok := s.Stock(); ok {
		stock = f.Filename
	}
	fmt.Fprintf(out, "Unit:   %s\nPeriod: %s\nStock:  %s\n\n", s.Unit().ID, s.Period(), stock)

	a := s.Assignment()
	for _, name := range s.Unit().WorkshopNames() {
		file := "-"
		if f, ok := a.File(name); ok {
			file = f.Filename
		}
		if s.IsSkipped(name) {
			file += " (skipped)"
		}
		fmt.Fprintf(out, "  %-24s %s\n", name, file)
	}
	if len(a.Unmatched) > 0 {
		fmt.Fprintf(out, "\nUnmatched files:\n")
		for _, f := range a.Unmatched {
			fmt.Fprintf(out, "  %s\n", f.Filename)
		}
	}
}
