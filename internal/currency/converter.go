// Package currency normalizes foreign feed amounts into the ledger currency.
// Open documents are booked in EUR; the occasional USD or GBP transfer on a
// Belgian account is converted before matching.
package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Base is the ledger currency all amounts are matched in.
const Base = "EUR"

// ratesPerEUR maps currency codes to the number of local currency units per
// 1 EUR. Reference rates; a deployment wanting live rates swaps this map out.
var ratesPerEUR = map[string]decimal.Decimal{
	"EUR": decimal.NewFromInt(1),
	"USD": decimal.RequireFromString("1.09"),
	"GBP": decimal.RequireFromString("0.85"),
	"CHF": decimal.RequireFromString("0.94"),
}

// ToEUR converts a local currency amount to EUR, rounded to the cent.
func ToEUR(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	rate, ok := ratesPerEUR[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("unsupported currency: %s", code)
	}
	return amount.Div(rate).Round(2), nil
}

// Rate returns the exchange rate for a given currency (units per 1 EUR).
func Rate(code string) (decimal.Decimal, error) {
	rate, ok := ratesPerEUR[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("unsupported currency: %s", code)
	}
	return rate, nil
}
