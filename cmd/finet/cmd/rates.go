package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	ratesBase string
	ratesSet  []string
)

// ratesCmd represents the rates command.
var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Show or change the base currency and exchange rates",
	Long: `Show the stored exchange-rate table, or change the base currency and
individual rates. Rates are expressed as "1 base-currency unit = rate
foreign-currency units".

Changing the base currency or a rate invalidates the conversion cache;
run 'finet recalc' afterwards to rewrite historical converted amounts.

Example:
  finet rates
  finet rates --base EUR
  finet rates --set USD=1.08 --set GBP=0.86`,
	Run: runRates,
}

func init() {
	ratesCmd.Flags().StringVar(&ratesBase, "base", "", "set the base currency code")
	ratesCmd.Flags().StringArrayVar(&ratesSet, "set", nil, "set a rate as CODE=RATE (repeatable)")
}

func runRates(cmd *cobra.Command, args []string) {
	app, err := openApp()
	exitOnError(err, "failed to initialize")
	defer app.Close()

	if ratesBase != "" {
		err := app.settings.SetBaseCurrency(strings.ToUpper(ratesBase))
		exitOnError(err, "failed to set base currency")
		slog.Info("Base currency updated", "base", strings.ToUpper(ratesBase))
	}

	if len(ratesSet) > 0 {
		updates, err := parseRateArgs(ratesSet)
		exitOnError(err, "invalid --set value")

		err = app.settings.SetExchangeRates(updates)
		exitOnError(err, "failed to set exchange rates")
		slog.Info("Exchange rates updated", "count", len(updates))
	}

	base, err := app.settings.BaseCurrency()
	exitOnError(err, "failed to read base currency")
	rates, err := app.settings.ExchangeRates()
	exitOnError(err, "failed to read exchange rates")

	fmt.Printf("\nBase currency: %s\n\n", base)
	for _, code := range sortedCodes(rates) {
		fmt.Printf("  1 %s = %.4f %s\n", base, rates[code], code)
	}
	fmt.Println()
}

func parseRateArgs(pairs []string) (map[string]float64, error) {
	rates := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		code, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("want CODE=RATE, got %q", pair)
		}
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rate in %q: %w", pair, err)
		}
		rates[strings.ToUpper(code)] = rate
	}
	return rates, nil
}

func sortedCodes(rates map[string]float64) []string {
	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	for i := 0; i < len(codes); i++ {
		for j := i + 1; j < len(codes); j++ {
			if codes[i] > codes[j] {
				codes[i], codes[j] = codes[j], codes[i]
			}
		}
	}
	return codes
}
