// Package money provides currency-safe amounts for extracted statement rows
// using integer cents and the Fowler Money pattern. Extractors carry amounts
// through this package so cent precision survives until the fusion engine
// flattens them for comparison.
package money

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217).
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	BRL = "BRL"
	JPY = "JPY"
	INR = "INR"
)

// symbolCurrencies maps statement currency markers to ISO codes. R$ must be
// checked before $.
var symbolCurrencies = []struct {
	Symbol string
	Code   string
}{
	{"R$", BRL},
	{"€", EUR},
	{"£", GBP},
	{"¥", JPY},
	{"₹", INR},
	{"$", USD},
}

// Money is a currency-qualified amount. It wraps go-money for safe arithmetic
// and shopspring/decimal for precise conversion.
type Money struct {
	m *money.Money
}

// New creates Money from minor units (cents) and a currency code.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// NewFromDecimal creates Money from an exact decimal value.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(USD)
	}
	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()
	return New(cents, currency.Code)
}

// NewFromFloat creates Money from a float. Prefer NewFromDecimal or New when
// the exact value is available.
func NewFromFloat(amount float64, currencyCode string) *Money {
	return NewFromDecimal(decimal.NewFromFloat(amount), currencyCode)
}

// ParseStatement parses a statement-formatted amount like "1.234,56 €" or
// "($1,234.56)". The european flag decides which separator is decimal; the
// currency is sniffed from the string and falls back to the hint.
func ParseStatement(raw string, europeanFormat bool, currencyHint string) (*Money, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	code := currencyHint
	for _, sc := range symbolCurrencies {
		if strings.Contains(s, sc.Symbol) {
			code = sc.Code
			s = strings.ReplaceAll(s, sc.Symbol, "")
			break
		}
	}
	if code == "" {
		code = EUR
	}

	s = strings.ReplaceAll(s, " ", "")
	if europeanFormat {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return NewFromDecimal(d, code), nil
}

// Zero returns a zero value for the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the value in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero reports whether the amount is zero.
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// IsPositive reports whether the amount is above zero.
func (m *Money) IsPositive() bool {
	return m != nil && m.m != nil && m.m.IsPositive()
}

// Negate returns the negated value.
func (m *Money) Negate() *Money {
	if m == nil || m.m == nil {
		return Zero(USD)
	}
	return &Money{m: m.m.Negative()}
}

// Add adds two Money values; currencies must match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	sum, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: sum}, nil
}

// ToDecimal converts to an exact decimal in major units.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	return decimal.NewFromInt(m.m.Amount()).Div(decimal.New(1, int32(currency.Fraction)))
}

// ToFloat64 flattens the amount for the fusion engine's comparisons.
func (m *Money) ToFloat64() float64 {
	return m.ToDecimal().InexactFloat64()
}

// String returns the amount as a plain decimal string, e.g. "1234.56".
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0"
	}
	return m.ToDecimal().String()
}

// Display returns a localized display string, e.g. "$1,234.56".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "$0.00"
	}
	return m.m.Display()
}
