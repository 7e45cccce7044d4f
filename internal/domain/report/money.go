package report

import "github.com/shopspring/decimal"

// DefaultCurrencySymbol is the symbol used when none is configured
const DefaultCurrencySymbol = "₹"

// FormatAmount renders an amount with exactly two decimal places and no
// grouping. It is shared by the mail body and the CSV export.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Currency renders amounts with a fixed symbol prefix
type Currency struct {
	Symbol string
}

// NewCurrency creates a Currency, falling back to the default symbol
func NewCurrency(symbol string) Currency {
	if symbol == "" {
		symbol = DefaultCurrencySymbol
	}
	return Currency{Symbol: symbol}
}

// Format renders d as symbol + two-decimal amount, e.g. "₹150.00"
func (c Currency) Format(d decimal.Decimal) string {
	return c.Symbol + FormatAmount(d)
}
