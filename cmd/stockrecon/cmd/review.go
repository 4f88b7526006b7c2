package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"stock-reconciler/internal/reporter"
	"stock-reconciler/internal/tui"
	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

var reviewCmd = &cobra.Command{
	Use:   "review <file|dir>...",
	Short: "Review the reconciliation interactively",
	Long: `Review opens the interactive front end on the inputs. Skip or release
workshops, verify and fix layouts, then browse each workshop's matches and
discrepancies, review opposite pairs, edit or delete rows, stage workshops
into the report and export tables.

Logs go to --log-file when given and are discarded otherwise.`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{interactive: "true"},
	RunE:        runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	s, svc, err := openSession(args, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	format := reporter.OutputFormat(settings.OutputFormat)
	if !format.IsTable() {
		format = reporter.FormatXLSX
	}
	app, err := tui.NewApp(s, svc, tui.Options{OutputDir: settings.OutputDir, Format: format}, logger.GetGlobalLogger())
	if err != nil {
		return err
	}

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "review", err)
	}
	printNotices(cmd.OutOrStdout(), app.Notices())
	return nil
}
