package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and amounts go over the wire as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Currency is an ISO 4217 code accepted by the storefront
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyLKR Currency = "LKR"
)

// Currencies lists every supported settlement currency
var Currencies = []Currency{CurrencyUSD, CurrencyLKR}

// Valid reports whether c is a supported currency
func (c Currency) Valid() bool {
	return c == CurrencyUSD || c == CurrencyLKR
}

// ParseCurrency normalizes a currency code and rejects unsupported ones
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unsupported currency %q", ErrValidation, s)
	}
	return c, nil
}

// RoundMoney rounds an amount to two decimal places
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
