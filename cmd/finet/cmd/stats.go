package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display ledger statistics",
	Long: `Display statistics about the ledger and recurring definitions.

Shows:
- Total number of transactions (and how many were generated)
- Active and total recurring definitions
- Number of accounts
- Last generation timestamp

Example:
  finet stats`,
	Run: runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	app, err := openApp()
	exitOnError(err, "failed to initialize")
	defer app.Close()

	stats, err := app.ledger.Stats()
	exitOnError(err, "failed to get statistics")

	fmt.Println("\n=== Ledger Statistics ===")
	fmt.Printf("Transactions:          %d (%d generated)\n", stats.Transactions, stats.GeneratedPostings)
	fmt.Printf("Recurring definitions: %d active / %d total\n", stats.ActiveRecurring, stats.TotalRecurring)
	fmt.Printf("Accounts:              %d\n", stats.Accounts)

	if stats.LastGeneratedAt.Valid {
		fmt.Printf("Last generation:       %s\n", stats.LastGeneratedAt.String)
	} else {
		fmt.Printf("Last generation:       (never)\n")
	}

	alerts, err := app.ledger.LowBalanceAlerts()
	exitOnError(err, "failed to get low balance alerts")
	if len(alerts) > 0 {
		fmt.Println("\n=== Low Balances ===")
		for _, a := range alerts {
			fmt.Printf("%-20s %s %.2f (threshold %.2f)\n", a.AccountName, a.Currency, a.Balance, a.Threshold)
		}
	}

	fmt.Println()

	slog.Info("Statistics displayed successfully")
}
