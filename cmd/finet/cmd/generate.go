package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dvoloshyn/finet/pkg/dates"
	"github.com/dvoloshyn/finet/pkg/recurring"
	"github.com/spf13/cobra"
)

var generateToday string

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Post all due recurring transactions",
	Long: `Catch up every active recurring definition: post all occurrences whose
date is on or before today, advance each definition's cursor, and deactivate
definitions that have no further occurrences.

Safe to run repeatedly: occurrences that were already posted are skipped.

Example:
  finet generate
  finet generate --today 2024-04-30`,
	Run: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateToday, "today", "", "treat this date (YYYY-MM-DD) as today")
}

func runGenerate(cmd *cobra.Command, args []string) {
	today := dates.Today()
	if generateToday != "" {
		parsed, err := dates.Parse(generateToday)
		exitOnError(err, "invalid --today")
		today = parsed
	}

	app, err := openApp()
	exitOnError(err, "failed to initialize")
	defer app.Close()

	slog.Info("Generating due recurring transactions", "today", dates.String(today))

	generator := recurring.NewGenerator(app.recurring, app.ledger)
	generated, err := generator.GenerateDue(cmd.Context(), today)
	if err != nil {
		// Best-effort: report what was posted even when some definitions failed.
		slog.Error("Generation finished with errors", "generated", generated, "error", err)
		fmt.Printf("Generated %d recurring transaction(s), with errors: %v\n", generated, err)
		return
	}

	slog.Info("Generation completed", "generated", generated)
	fmt.Printf("Generated %d recurring transaction(s)\n", generated)
}
