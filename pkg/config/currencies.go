package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CurrencyDefaults represents the seed configuration for the currency tables.
// Rates are expressed as "1 base-currency unit = rate foreign-currency units".
type CurrencyDefaults struct {
	BaseCurrency string             `yaml:"base_currency"`
	Rates        map[string]float64 `yaml:"rates"`
	Symbols      map[string]string  `yaml:"symbols"`
}

// BuiltinCurrencyDefaults returns the compiled-in fallback used when no
// defaults file is present.
func BuiltinCurrencyDefaults() CurrencyDefaults {
	return CurrencyDefaults{
		BaseCurrency: "EUR",
		Rates: map[string]float64{
			"EUR": 1.0,
			"USD": 1.08,
			"GBP": 0.86,
			"JPY": 162.5,
			"CHF": 0.97,
			"CAD": 1.48,
			"UAH": 43.0,
		},
		Symbols: map[string]string{
			"USD": "$",
			"EUR": "€",
			"GBP": "£",
			"JPY": "¥",
			"CHF": "Fr",
			"CAD": "C$",
			"UAH": "₴",
		},
	}
}

// LoadCurrencyDefaults loads currency defaults from a YAML configuration file.
// A missing file is not an error; the builtin defaults are returned instead.
func LoadCurrencyDefaults(path string) (CurrencyDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return BuiltinCurrencyDefaults(), nil
		}
		return CurrencyDefaults{}, fmt.Errorf("failed to read currency defaults: %w", err)
	}

	var defaults CurrencyDefaults
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return CurrencyDefaults{}, fmt.Errorf("failed to parse currency defaults YAML: %w", err)
	}

	if defaults.BaseCurrency == "" {
		defaults.BaseCurrency = BuiltinCurrencyDefaults().BaseCurrency
	}
	if _, ok := defaults.Rates[defaults.BaseCurrency]; !ok {
		if defaults.Rates == nil {
			defaults.Rates = map[string]float64{}
		}
		// The base currency always converts to itself.
		defaults.Rates[defaults.BaseCurrency] = 1.0
	}

	return defaults, nil
}
