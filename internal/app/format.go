package app

import "github.com/shopspring/decimal"

// formatAmount renders integer minor units as a currency string, e.g.
// 15000 -> "$150.00".
func formatAmount(minor int64) string {
	return "$" + decimal.NewFromInt(minor).Shift(-2).StringFixed(2)
}
