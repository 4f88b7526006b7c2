package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var unitsCmd = &cobra.Command{
	Use:   "units [unit]",
	Short: "List production units and their workshops",
	Long: `Units lists the production units of the unit table. Given a unit, it
lists that unit's workshops in matching order with the sheets and stock
localisations each one reads.

Examples:
  stockrecon units
  stockrecon units Fath5
  stockrecon units --units-file units.toml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUnits,
}

func init() {
	rootCmd.AddCommand(unitsCmd)
}

func runUnits(cmd *cobra.Command, args []string) error {
	table, err := settings.UnitsTable()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		for _, id := range table.IDs() {
			u, _ := table.Get(id)
			fmt.Fprintf(out, "%-10s %2d workshops\n", id, len(u.Workshops))
		}
		return nil
	}

	u, err := table.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (match tolerance %s, period filter %t)\n\n", u.ID, u.MatchTolerance.String(), u.FilterByPeriod)
	for _, w := range u.Workshops {
		fmt.Fprintf(out, "  %-24s sheets: %s\n", w.Name, strings.Join(w.Layout.SheetNames, ", "))
		if kw := w.MatchKeywords(); len(kw) > 1 || (len(kw) == 1 && kw[0] != w.Name) {
			fmt.Fprintf(out, "  %-24s keywords: %s\n", "", strings.Join(kw, ", "))
		}
		if len(w.Layout.Localisations) > 0 {
			fmt.Fprintf(out, "  %-24s localisations: %s\n", "", strings.Join(w.Layout.Localisations, ", "))
		}
		if len(w.Layout.StockSheets) > 0 {
			fmt.Fprintf(out, "  %-24s stock sheets: %s\n", "", strings.Join(w.Layout.StockSheets, ", "))
		}
	}
	return nil
}
