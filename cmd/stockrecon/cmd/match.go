package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"stock-reconciler/internal/models"
	apperrors "stock-reconciler/pkg/errors"
)

var (
	assignments map[string]string
	releases    []string
)

var matchCmd = &cobra.Command{
	Use:   "match <file|dir>...",
	Short: "Show which file each workshop would read",
	Long: `Match classifies the inputs into the stock workbook and movement workbooks,
takes the reporting period from the stock filename and assigns movement
files to the workshops of the unit.

Examples:
  stockrecon match ./march
  stockrecon match --unit Fath5 stock.xlsx "mouvement coupage.xlsx" bloc.xlsx
  stockrecon match ./march --assign bloc=./march/magasin.xlsx --release sfifa`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringToStringVar(&assignments, "assign", nil, "pin a file to a workshop (workshop=path)")
	matchCmd.Flags().StringSliceVar(&releases, "release", nil, "leave these workshops without a file")
}

func runMatch(cmd *cobra.Command, args []string) error {
	s, _, err := openSession(args, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	for workshop, path := range assignments {
		f := models.FileRef{Path: path, Filename: filepath.Base(path)}
		if err := s.AssignFile(workshop, f); err != nil {
			return err
		}
	}
	for _, workshop := range releases {
		if err := s.UnassignFile(workshop); err != nil {
			return err
		}
	}

	printAssignment(cmd.OutOrStdout(), s)
	if _, ok := s.Stock(); !ok {
		return apperrors.ValidationError(apperrors.CodeEmptySelection, "stock", "", nil).
			WithSuggestion("the stock workbook needs 'stock' in its filename")
	}
	return nil
}
