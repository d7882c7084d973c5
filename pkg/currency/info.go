package currency

// commonSymbols maps well-known currency codes to display symbols.
var commonSymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CHF": "Fr",
	"CAD": "C$",
	"UAH": "₴",
	"AUD": "A$",
	"CNY": "¥",
	"INR": "₹",
}

// Symbol returns a display symbol for a currency code, or the code itself
// when no symbol is known.
func Symbol(code string) string {
	if s, ok := commonSymbols[code]; ok {
		return s
	}
	return code
}
