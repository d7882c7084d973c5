// Package cmd provides CLI commands for finet.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dvoloshyn/finet/pkg/config"
	"github.com/dvoloshyn/finet/pkg/currency"
	"github.com/dvoloshyn/finet/pkg/db"
	"github.com/dvoloshyn/finet/pkg/ledger"
	"github.com/dvoloshyn/finet/pkg/recurring"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "finet",
	Short: "Personal-finance ledger with recurring transactions",
	Long: `finet is a personal-finance ledger: signed multi-currency postings,
cached per-account balances, and a recurring-transaction scheduler that
catches up missed occurrences idempotently.

Example:
  finet generate
  finet stats
  finet recalc
  finet rates --base EUR --set USD=1.08`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logging
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(recalcCmd)
	rootCmd.AddCommand(ratesCmd)
}

// app bundles the wired-up components behind every command.
type app struct {
	conn      *db.Connection
	settings  *ledger.Settings
	converter *currency.Converter
	ledger    *ledger.Store
	recurring *recurring.Store
}

// openApp loads configuration, opens the database and wires the components.
// The caller must Close the returned app.
func openApp() (*app, error) {
	cfg, err := config.Load(getConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("Opening database", "path", cfg.Database.Path)
	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	settings := ledger.NewSettings(conn)
	converter := currency.NewConverter(settings)
	settings.Bind(converter)
	ledgerStore := ledger.NewStore(conn, converter)
	recurringStore := recurring.NewStore(conn, ledgerStore)

	defaults, err := config.LoadCurrencyDefaults(cfg.Currency.DefaultsFile)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := settings.EnsureDefaults(defaults.BaseCurrency, defaults.Rates); err != nil {
		conn.Close()
		return nil, err
	}

	return &app{
		conn:      conn,
		settings:  settings,
		converter: converter,
		ledger:    ledgerStore,
		recurring: recurringStore,
	}, nil
}

func (a *app) Close() error {
	return a.conn.Close()
}

// Helper function to get config file path.
func getConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "" // Will use default .env loading
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
