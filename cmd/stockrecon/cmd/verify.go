package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"stock-reconciler/internal/models"
	apperrors "stock-reconciler/pkg/errors"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file|dir>...",
	Short: "Check that every movement file has the expected sheet and columns",
	Long: `Verify opens each assigned movement workbook and reports the sheet it
would read and the reference and quantity columns it detected. Workshops
needing attention list their available sheets and columns; pin the right
ones with the overrides section of the config file:

  overrides:
    sfifa:
      sheet: MOUVEMENT 2023
      ref: CODE ARTICLE
      qty: QTE

The command exits non-zero when any workshop needs attention.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, _, err := openSession(args, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	notices, err := s.Verify(ctx)
	if err != nil {
		return err
	}
	adj, err := s.Adjudicator()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var problems []*apperrors.ReconcilerError
	for _, rec := range adj.Records() {
		cur, _ := adj.Current(rec.Workshop)
		printRecord(out, rec, cur)
		if !rec.Valid {
			problems = append(problems, apperrors.ParseError(apperrors.CodeLayoutAmbiguous, rec.Filename, cur.SheetName, "", nil).
				WithContext("workshop", rec.Workshop))
		}
	}
	fmt.Fprintln(out)
	printNotices(out, notices)

	if len(problems) > 0 {
		return apperrors.NewErrorSummary(problems)
	}
	return nil
}

func printRecord(out io.Writer, rec models.VerificationRecord, cur models.Override) {
	status := "ok"
	if !rec.Valid {
		status = "CHECK"
	}
	fmt.Fprintf(out, "%-6s %-24s %s\n", status, rec.Workshop, rec.Filename)
	fmt.Fprintf(out, "       sheet=%s ref=%s qty=%s\n", orAuto(cur.SheetName), orAuto(cur.RefCol), orAuto(cur.QtyCol))
	if rec.Valid {
		return
	}
	for _, e := range rec.Errors {
		fmt.Fprintf(out, "       ! %s\n", e)
	}
	if len(rec.AvailableSheets) > 0 {
		fmt.Fprintf(out, "       sheets:  %s\n", strings.Join(rec.AvailableSheets, ", "))
	}
	if cols := rec.ColumnsFor(cur.SheetName); len(cols) > 0 {
		fmt.Fprintf(out, "       columns: %s\n", strings.Join(cols, ", "))
	}
}

func orAuto(v string) string {
	if v == "" {
		return "?"
	}
	return v
}
