package ledger

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dvoloshyn/finet/pkg/currency"
	"github.com/dvoloshyn/finet/pkg/db"
)

const settingBaseCurrency = "base_currency"

// Settings stores the base currency and exchange-rate table. It implements
// currency.RateSource; mutators invalidate the bound converter so the next
// posting or recomputation re-reads the tables.
type Settings struct {
	conn      *db.Connection
	converter *currency.Converter
}

// NewSettings creates a Settings store.
func NewSettings(conn *db.Connection) *Settings {
	return &Settings{conn: conn}
}

// Bind attaches the converter whose cache is invalidated on every mutation.
func (s *Settings) Bind(converter *currency.Converter) {
	s.converter = converter
}

func (s *Settings) invalidate() {
	if s.converter != nil {
		s.converter.Invalidate()
	}
}

// BaseCurrency returns the stored base currency code.
func (s *Settings) BaseCurrency() (string, error) {
	var value string
	err := s.conn.QueryRow(
		`SELECT value FROM app_settings WHERE key = ?`, settingBaseCurrency,
	).Scan(&value)
	if err == sql.ErrNoRows {
		slog.Warn("base currency setting not found, using default", "default", "EUR")
		return "EUR", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read base currency: %w", err)
	}
	return value, nil
}

// SetBaseCurrency stores the base currency and invalidates the converter cache.
func (s *Settings) SetBaseCurrency(code string) error {
	if code == "" {
		return Validationf("base currency", "must not be empty")
	}
	_, err := s.conn.Exec(
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		settingBaseCurrency, code,
	)
	if err != nil {
		return fmt.Errorf("failed to set base currency: %w", err)
	}
	s.invalidate()
	return nil
}

// ExchangeRates returns all stored rates relative to the base currency.
func (s *Settings) ExchangeRates() (map[string]float64, error) {
	rows, err := s.conn.Query(`SELECT currency, rate FROM exchange_rates`)
	if err != nil {
		return nil, fmt.Errorf("failed to read exchange rates: %w", err)
	}
	defer rows.Close()

	rates := make(map[string]float64)
	for rows.Next() {
		var code string
		var rate float64
		if err := rows.Scan(&code, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan exchange rate: %w", err)
		}
		rates[code] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		slog.Warn("exchange rate table is empty; conversions will degrade to zero")
	}
	return rates, nil
}

// SetExchangeRates upserts the given rates and invalidates the converter cache.
// Rates for currencies not in the map are left unchanged.
func (s *Settings) SetExchangeRates(rates map[string]float64) error {
	err := s.conn.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			`INSERT INTO exchange_rates (currency, rate) VALUES (?, ?)
			 ON CONFLICT(currency) DO UPDATE SET rate = excluded.rate`)
		if err != nil {
			return fmt.Errorf("failed to prepare rate upsert: %w", err)
		}
		defer stmt.Close()

		for code, rate := range rates {
			if _, err := stmt.Exec(code, rate); err != nil {
				return fmt.Errorf("failed to store rate for %s: %w", code, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// EnsureDefaults seeds the base currency and rate table on first run. Existing
// values are never overwritten; the database stays the source of truth.
func (s *Settings) EnsureDefaults(base string, rates map[string]float64) error {
	var haveBase bool
	err := s.conn.QueryRow(
		`SELECT COUNT(*) > 0 FROM app_settings WHERE key = ?`, settingBaseCurrency,
	).Scan(&haveBase)
	if err != nil {
		return fmt.Errorf("failed to check base currency: %w", err)
	}
	if !haveBase && base != "" {
		if err := s.SetBaseCurrency(base); err != nil {
			return err
		}
	}

	var haveRates bool
	if err := s.conn.QueryRow(`SELECT COUNT(*) > 0 FROM exchange_rates`).Scan(&haveRates); err != nil {
		return fmt.Errorf("failed to check exchange rates: %w", err)
	}
	if !haveRates && len(rates) > 0 {
		if err := s.SetExchangeRates(rates); err != nil {
			return err
		}
	}
	return nil
}
