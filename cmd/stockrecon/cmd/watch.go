package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stock-reconciler/internal/models"
	"stock-reconciler/internal/watcher"
	"stock-reconciler/pkg/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Follow an input directory and print the assignment on every change",
	Long: `Watch prints the stock file, period and workshop assignment of a
directory, then prints them again whenever a workbook is added, removed or
renamed. Stop with Ctrl+C.

Example:
  stockrecon watch --unit Fath2 ./inbox`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	table, err := settings.UnitsTable()
	if err != nil {
		return err
	}
	unit := table.Default()
	if settings.Unit != "" {
		if unit, err = table.Get(settings.Unit); err != nil {
			return err
		}
	}

	snapshots, err := watcher.New(args[0], unit, logger.GetGlobalLogger()).Watch(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for snap := range snapshots {
		printSnapshot(out, unit, snap)
	}
	return nil
}

func printSnapshot(out io.Writer, unit models.Unit, snap watcher.Snapshot) {
	trigger := "initial scan"
	if snap.Trigger != "" {
		trigger = snap.Trigger
	}
	fmt.Fprintf(out, "[%s] %s\n", time.Now().Format("15:04:05"), trigger)

	stock := "missing"
	if snap.Stock != nil {
		stock = snap.Stock.Filename
	}
	period := "from configuration"
	if snap.Period != nil {
		period = snap.Period.String()
	}
	fmt.Fprintf(out, "  stock: %s, period: %s\n", stock, period)

	for _, name := range unit.WorkshopNames() {
		if f, ok := snap.Assignment.File(name); ok {
			fmt.Fprintf(out, "  %-24s %s\n", name, f.Filename)
		}
	}
	for _, f := range snap.Assignment.Unmatched {
		fmt.Fprintf(out, "  %-24s %s\n", "(unmatched)", f.Filename)
	}
	fmt.Fprintln(out)
}
