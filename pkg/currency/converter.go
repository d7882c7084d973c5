// Package currency converts posting amounts into the process-wide base currency.
//
// Rates are stored as "1 base-currency unit = rate foreign-currency units"
// (e.g. 1 EUR = 1.08 USD), so converting a foreign amount to base requires
// DIVISION: 108 USD / 1.08 = 100 EUR. This direction is the most error-prone
// convention in the system and must not be flipped.
package currency

import (
	"fmt"
	"log/slog"
	"sync"
)

// RateSource supplies the active base currency and exchange-rate table.
// The ledger settings store implements it.
type RateSource interface {
	BaseCurrency() (string, error)
	ExchangeRates() (map[string]float64, error)
}

// Converter converts amounts to the base currency using a cached rate table.
// The cache is loaded lazily on first use and must be invalidated whenever the
// base currency or any rate changes.
type Converter struct {
	source RateSource

	mu     sync.RWMutex
	base   string
	rates  map[string]float64
	loaded bool
}

// NewConverter creates a Converter backed by the given rate source.
func NewConverter(source RateSource) *Converter {
	return &Converter{source: source}
}

// ToBase converts an amount from its currency to the base currency.
//
// A zero amount returns zero without consulting rates. An amount already in
// the base currency is returned unchanged. A missing or zero rate degrades to
// 0.0 with a logged warning; it never fails, because every posting path
// depends on conversion succeeding synchronously.
func (c *Converter) ToBase(amount float64, currency string) float64 {
	if amount == 0 {
		return 0.0
	}

	base, rates, err := c.Snapshot()
	if err != nil {
		slog.Warn("conversion rates unavailable, storing zero converted amount",
			"currency", currency, "error", err)
		return 0.0
	}

	return ToBaseWith(amount, currency, base, rates)
}

// ToBaseWith is the pure variant of ToBase, for batch jobs that hold a rate
// snapshot across many rows.
func ToBaseWith(amount float64, currency, base string, rates map[string]float64) float64 {
	if amount == 0 {
		return 0.0
	}
	if currency == base {
		return amount
	}

	rate, ok := rates[currency]
	if !ok || rate == 0 {
		slog.Warn("no conversion rate for currency, storing zero converted amount",
			"currency", currency)
		return 0.0
	}

	return amount / rate
}

// Snapshot returns a coherent (base, rates) pair, loading the cache if needed.
// Callers must not mutate the returned map.
func (c *Converter) Snapshot() (string, map[string]float64, error) {
	c.mu.RLock()
	if c.loaded {
		base, rates := c.base, c.rates
		c.mu.RUnlock()
		return base, rates, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.base, c.rates, nil
	}

	base, err := c.source.BaseCurrency()
	if err != nil {
		return "", nil, fmt.Errorf("failed to load base currency: %w", err)
	}
	rates, err := c.source.ExchangeRates()
	if err != nil {
		return "", nil, fmt.Errorf("failed to load exchange rates: %w", err)
	}

	c.base = base
	c.rates = rates
	c.loaded = true
	return base, rates, nil
}

// Invalidate drops the cached rate table. The next conversion re-reads the
// source. Settings mutators call this after changing the base currency or any
// rate.
func (c *Converter) Invalidate() {
	c.mu.Lock()
	c.base = ""
	c.rates = nil
	c.loaded = false
	c.mu.Unlock()
}
