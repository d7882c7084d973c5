package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// recalcCmd represents the recalc command.
var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate all converted amounts",
	Long: `Rewrite the cached base-currency amount on every stored transaction and
recurring definition using the current exchange rates.

Signed amounts and balances are never touched; run this after changing rates
with 'finet rates' to bring historical conversions up to date.

Example:
  finet recalc`,
	Run: runRecalc,
}

func runRecalc(cmd *cobra.Command, args []string) {
	app, err := openApp()
	exitOnError(err, "failed to initialize")
	defer app.Close()

	slog.Info("Recalculating converted amounts")

	txCount, recCount, err := app.ledger.RecalculateAllConversions(cmd.Context())
	exitOnError(err, "failed to recalculate conversions")

	slog.Info("Recalculation completed", "transactions", txCount, "recurring", recCount)
	fmt.Printf("Updated %d transaction(s) and %d recurring definition(s)\n", txCount, recCount)
}
