package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	apperrors "stock-reconciler/pkg/errors"
	"stock-reconciler/pkg/logger"
)

// CLIErrorHandler turns command errors into messages and exit codes
type CLIErrorHandler struct {
	out     io.Writer
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to out
func NewCLIErrorHandler(out io.Writer) *CLIErrorHandler {
	return &CLIErrorHandler{
		out:     out,
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	var summary *apperrors.ErrorSummary
	if errors.As(err, &summary) {
		return h.handleSummary(summary)
	}
	if rerr, ok := apperrors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(rerr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleReconcilerError(err *apperrors.ReconcilerError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(h.out, "\nContext:\n")
		keys := make([]string, 0, len(err.Context))
		for k := range err.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", k, err.Context[k])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}
	if err.Code == apperrors.CodeFileNotFound {
		if path, ok := err.Context["file_path"].(string); ok {
			if similar := similarFiles(path); len(similar) > 0 {
				fmt.Fprintf(h.out, "\nSimilar files:\n")
				for _, name := range similar {
					fmt.Fprintf(h.out, "  - %s\n", name)
				}
			}
		}
	}

	fmt.Fprintf(h.out, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}
	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleSummary(summary *apperrors.ErrorSummary) int {
	fmt.Fprintf(h.out, "Error: %s\n", summary.Error())
	for i, err := range summary.SampleErrors {
		fmt.Fprintf(h.out, "  %d. %s\n", i+1, err.Error())
	}
	if rest := summary.Total - len(summary.SampleErrors); rest > 0 {
		fmt.Fprintf(h.out, "  ... and %d more\n", rest)
	}
	return summary.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case os.IsNotExist(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case os.IsPermission(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	return 1
}

func categoryHelp(category apperrors.ErrorCategory) string {
	switch category {
	case apperrors.CategoryFile:
		return `File error help:
• Check that the workbook exists and is not open in another program
• Use absolute paths if the working directory is unclear
• Save .xls files again as .xlsx`

	case apperrors.CategoryParse:
		return `Layout error help:
• Run 'stockrecon verify' to see the sheets and columns that were found
• Pin a sheet or column with the overrides section of the config file
• Check that the header row holds a reference and a quantity column`

	case apperrors.CategoryValidation:
		return `Input error help:
• Use 'stockrecon units' to list units and their workshops
• Use 'stockrecon match' to check which file went to which workshop
• Months are 1 to 12`

	case apperrors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and the --config file syntax
• Environment variables use the STOCKRECON_ prefix, e.g. STOCKRECON_UNIT
• Try running with default settings first`

	case apperrors.CategoryReconciliation:
		return `Reconciliation error help:
• Check that a stock file and at least one movement file are given
• Run 'stockrecon verify' to inspect each workshop's layout
• Failed workshops are reported separately; the others are still reconciled`

	default:
		return `For more help:
• Use 'stockrecon --help' for general help
• Run again with --verbose for the underlying error`
	}
}

// similarFiles lists up to three files next to path sharing its first
// three letters.
func similarFiles(path string) []string {
	base := strings.ToLower(filepath.Base(path))
	prefix := base[:min(len(base), 3)]
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return nil
	}
	var similar []string
	for _, e := range entries {
		if !e.IsDir() && strings.Contains(strings.ToLower(e.Name()), prefix) {
			similar = append(similar, e.Name())
			if len(similar) == 3 {
				break
			}
		}
	}
	return similar
}
