package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stock-reconciler/cmd/stockrecon/config"
	"stock-reconciler/internal/reporter"
	"stock-reconciler/internal/review"
	"stock-reconciler/internal/session"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

var (
	outputFile  string
	exportTable string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <file|dir>...",
	Short: "Reconcile the stock snapshot against every workshop's movements",
	Long: `Reconcile runs the whole pipeline without interaction: classify and match
the inputs, verify each workshop's layout, aggregate, optionally eliminate
high-similarity opposite pairs, then stage every workshop's discrepancies
into a report.

Document formats (console, json, yaml) render the report to --output-file or
stdout. Table formats (csv, xlsx) export the matches and discrepancies of
every workshop into --output-dir.

Examples:
  # Console report for March
  stockrecon reconcile --unit Fath2 ./march

  # JSON report with likely typing mistakes eliminated
  stockrecon reconcile --unit Fath2 --eliminate-pairs --output-format json -o report.json ./march

  # One xlsx file per workshop and view
  stockrecon reconcile --unit Fath5 --output-format xlsx --output-dir ./out ./march`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	flags := reconcileCmd.Flags()
	flags.StringP(config.KeyOutputFormat, "f", "console", "output format: console, json, yaml, csv, xlsx")
	flags.StringVarP(&outputFile, "output-file", "o", "", "report file for document formats (default: stdout)")
	flags.String(config.KeyOutputDir, ".", "directory receiving exported tables")
	flags.StringVar(&exportTable, "export", "", "also export tables in this format (csv or xlsx)")
	flags.Bool(config.KeyEliminatePairs, false, "eliminate high-similarity opposite pairs before staging")
	flags.StringSlice(config.KeySkip, nil, "workshops to leave out")
	flags.String(config.KeyPairPreset, "default", "pair detection preset: default, strict, relaxed")
	flags.Float64(config.KeyPairThreshold, 0, "similarity at or above which a pair is preselected (default from preset)")
	flags.String(config.KeyPairTolerance, "", "pairs cancel out when |diff1 + diff2| is below this (default from preset)")
	flags.Int(config.KeyWorkers, 4, "workshops aggregated at once")

	for _, key := range []string{
		config.KeyOutputFormat, config.KeyOutputDir, config.KeyEliminatePairs, config.KeySkip,
		config.KeyPairPreset, config.KeyPairThreshold, config.KeyPairTolerance, config.KeyWorkers,
	} {
		viper.BindPFlag(key, flags.Lookup(key))
	}
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.GetGlobalLogger().WithComponent("reconcile")
	format := reporter.OutputFormat(settings.OutputFormat)
	if exportTable != "" && !reporter.OutputFormat(exportTable).IsTable() {
		return apperrors.ValidationError(apperrors.CodeInvalidInput, "export", exportTable, nil).
			WithSuggestion("export tables as csv or xlsx")
	}

	s, _, err := openSession(args, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if err := s.Ready(); err != nil {
		return err
	}

	notices, err := s.Verify(ctx)
	if err != nil {
		return err
	}
	printNotices(cmd.ErrOrStderr(), notices)
	if adj, err := s.Adjudicator(); err == nil {
		for _, name := range adj.Pending() {
			log.WithField("workshop", name).Warn("Layout needs attention, the workshop may fail")
		}
	}

	notices, err = s.Process(ctx)
	if err != nil {
		return err
	}
	printNotices(cmd.ErrOrStderr(), notices)

	if err := stageAll(s, settings.EliminatePairs, cmd.ErrOrStderr()); err != nil {
		return err
	}

	if format.IsTable() {
		if err := exportAll(s, settings.OutputDir, format, cmd.ErrOrStderr()); err != nil {
			return err
		}
	} else {
		if err := writeReport(s, cmd.OutOrStdout()); err != nil {
			return err
		}
		if exportTable != "" {
			if err := exportAll(s, settings.OutputDir, reporter.OutputFormat(exportTable), cmd.ErrOrStderr()); err != nil {
				return err
			}
		}
	}

	sum := s.Summary()
	log.WithFields(logger.Fields{
		"workshops":     sum.TotalWorkshops,
		"failed":        sum.FailedWorkshops,
		"matches":       sum.TotalMatches,
		"discrepancies": sum.TotalDiscrepancies,
	}).Info("Reconciliation completed")
	return nil
}

// stageAll walks every reconciled workshop, eliminating preselected pairs
// when asked, and stages its discrepancies. Failed and clean workshops are
// skipped.
func stageAll(s *session.Session, eliminate bool, out io.Writer) error {
	for _, name := range s.Result().Names() {
		if w, ok := s.Result().Get(name); !ok || w == nil || w.Failed() {
			continue
		}
		if _, err := s.SelectWorkshop(name); err != nil {
			return err
		}

		if eliminate {
			notices, err := s.EnterReview()
			if err != nil {
				return err
			}
			if s.ReviewState() == review.Reviewing {
				if len(s.Selection()) > 0 {
					notices, err = s.Commit()
					if err != nil {
						return err
					}
				} else {
					notices = s.Abandon()
				}
			}
			printNotices(out, notices)
		}

		rows, err := s.Rows()
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}
		if _, err := s.StageWorkshop(); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(s *session.Session, stdout io.Writer) error {
	if len(s.Staged()) == 0 {
		fmt.Fprintln(stdout, "No discrepancies to report")
		return nil
	}
	gen, err := reporter.NewReportGenerator(settings.ReportConfig(), logger.GetGlobalLogger())
	if err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, config.KeyOutputFormat, settings.OutputFormat, err)
	}

	out := stdout
	if outputFile != "" {
		if dir := filepath.Dir(outputFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return apperrors.FileError(apperrors.CodeDirectoryError, dir, err)
			}
		}
		f, err := os.Create(outputFile)
		if err != nil {
			return apperrors.FileError(apperrors.CodeFilePermission, outputFile, err)
		}
		defer f.Close()
		out = f
	}
	return gen.GenerateReport(s.Report(), out)
}

func exportAll(s *session.Session, dir string, format reporter.OutputFormat, out io.Writer) error {
	written, err := s.ExportAll(dir, format)
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	return nil
}
