package currency

import (
	"testing"
)

// fakeRateSource is an in-memory RateSource tracking how often it is read.
type fakeRateSource struct {
	base  string
	rates map[string]float64
	reads int
}

func (f *fakeRateSource) BaseCurrency() (string, error) {
	f.reads++
	return f.base, nil
}

func (f *fakeRateSource) ExchangeRates() (map[string]float64, error) {
	rates := make(map[string]float64, len(f.rates))
	for k, v := range f.rates {
		rates[k] = v
	}
	return rates, nil
}

func newFakeSource() *fakeRateSource {
	return &fakeRateSource{
		base: "EUR",
		rates: map[string]float64{
			"EUR": 1.0,
			"USD": 1.08,
			"GBP": 0.86,
		},
	}
}

func TestToBase(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		currency string
		want     float64
	}{
		{"base currency identity", 100, "EUR", 100},
		{"base currency identity negative", -850, "EUR", -850},
		{"foreign divides by rate", 108, "USD", 100},
		{"foreign negative divides by rate", -54, "USD", -50},
		{"missing rate degrades to zero", 100, "XXX", 0},
		{"zero amount", 0, "USD", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := NewConverter(newFakeSource())
			if got := conv.ToBase(tt.amount, tt.currency); got != tt.want {
				t.Errorf("ToBase(%v, %s) = %v, want %v", tt.amount, tt.currency, got, tt.want)
			}
		})
	}
}

func TestToBaseZeroSkipsRateLookup(t *testing.T) {
	source := newFakeSource()
	conv := NewConverter(source)

	if got := conv.ToBase(0, "USD"); got != 0 {
		t.Fatalf("ToBase(0, USD) = %v, want 0", got)
	}
	if source.reads != 0 {
		t.Errorf("zero amount consulted the rate source %d times, want 0", source.reads)
	}
}

func TestToBaseZeroRateDegradesToZero(t *testing.T) {
	source := newFakeSource()
	source.rates["JPY"] = 0
	conv := NewConverter(source)

	if got := conv.ToBase(1000, "JPY"); got != 0 {
		t.Errorf("ToBase with zero rate = %v, want 0", got)
	}
}

func TestSnapshotCaching(t *testing.T) {
	source := newFakeSource()
	conv := NewConverter(source)

	if got := conv.ToBase(108, "USD"); got != 100 {
		t.Fatalf("ToBase(108, USD) = %v, want 100", got)
	}

	// A source change without invalidation keeps serving the cached table.
	source.rates["USD"] = 2.0
	if got := conv.ToBase(108, "USD"); got != 100 {
		t.Errorf("ToBase after source change = %v, want cached 100", got)
	}
	if source.reads != 1 {
		t.Errorf("rate source read %d times, want 1", source.reads)
	}

	conv.Invalidate()
	if got := conv.ToBase(108, "USD"); got != 54 {
		t.Errorf("ToBase after Invalidate = %v, want 54", got)
	}
	if source.reads != 2 {
		t.Errorf("rate source read %d times after invalidation, want 2", source.reads)
	}
}

func TestToBaseWith(t *testing.T) {
	rates := map[string]float64{"USD": 1.08}

	if got := ToBaseWith(108, "USD", "EUR", rates); got != 100 {
		t.Errorf("ToBaseWith(108, USD) = %v, want 100", got)
	}
	if got := ToBaseWith(42, "EUR", "EUR", rates); got != 42 {
		t.Errorf("ToBaseWith base identity = %v, want 42", got)
	}
	if got := ToBaseWith(100, "CHF", "EUR", rates); got != 0 {
		t.Errorf("ToBaseWith missing rate = %v, want 0", got)
	}
}

func TestSymbol(t *testing.T) {
	if got := Symbol("EUR"); got != "€" {
		t.Errorf("Symbol(EUR) = %q, want €", got)
	}
	if got := Symbol("ZZZ"); got != "ZZZ" {
		t.Errorf("Symbol(ZZZ) = %q, want the code itself", got)
	}
}
