// Package money provides functionality for handling monetary values.
//
// It is a value object that represents a monetary value in a specific currency.
// Invariants:
//   - Amount is always stored in the smallest currency unit (e.g., cents for USD).
//   - Currency code must be valid ISO 4217 (3 uppercase letters).
//   - All arithmetic operations require matching currencies.
//   - Values are immutable; every operation returns a new Money.
package money

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Amount represents a monetary amount as an integer in the
// smallest currency unit (e.g., cents for USD).
type Amount = int64

// Rounding selects how fractional minor units are resolved.
type Rounding int

const (
	// RoundHalfEven rounds to the nearest minor unit, ties to the even neighbour.
	RoundHalfEven Rounding = iota
	// RoundDown truncates toward zero.
	RoundDown
)

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
	hundred   = decimal.NewFromInt(100)
)

// Money represents a monetary value in a specific currency.
type Money struct {
	amount   Amount
	currency Currency
}

// FromDecimal creates a Money value from a decimal amount in major units,
// rounding to the currency's minor-unit precision with round-half-to-even.
// Negative and non-finite values are rejected with ErrInvalidAmount.
func FromDecimal(value float64, code Code) (Money, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Money{}, fmt.Errorf("%w: %v is not finite", ErrInvalidAmount, value)
	}
	if value < 0 {
		return Money{}, fmt.Errorf("%w: %v is negative", ErrInvalidAmount, value)
	}
	return FromDecimalValue(decimal.NewFromFloat(value), code)
}

// FromDecimalValue is FromDecimal for values already held as decimals
// (e.g. parsed from configuration or JSON strings).
func FromDecimalValue(value decimal.Decimal, code Code) (Money, error) {
	if !code.IsValid() {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	if value.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, value)
	}
	cur := code.ToCurrency()
	minor := value.RoundBank(int32(cur.Decimals)).Shift(int32(cur.Decimals))
	amount, err := toAmount(minor)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount, currency: cur}, nil
}

// MustFromDecimal is FromDecimal that panics on error. Intended for fixtures and tests.
func MustFromDecimal(value float64, code Code) Money {
	m, err := FromDecimal(value, code)
	if err != nil {
		panic(fmt.Sprintf("money.MustFromDecimal(%v, %v): %v", value, code, err))
	}
	return m
}

// FromMinorUnits creates a Money value from an amount already expressed in
// the smallest currency unit. Negative amounts are allowed here because
// differences of two values can be negative.
func FromMinorUnits(amount int64, code Code) (Money, error) {
	if !code.IsValid() {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return Money{amount: amount, currency: code.ToCurrency()}, nil
}

// Zero returns a zero amount in the given currency.
func Zero(code Code) Money {
	return Money{currency: code.ToCurrency()}
}

// MinorUnits returns the amount in the smallest currency unit.
func (m Money) MinorUnits() Amount {
	return m.amount
}

// Currency returns the currency of the Money value.
func (m Money) Currency() Currency {
	return m.currency
}

// Code returns the currency code of the Money value.
func (m Money) Code() Code {
	return m.currency.Code
}

// Decimal returns the amount in major units (e.g. dollars) as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.amount, -int32(m.currency.Decimals))
}

// SameCurrency reports whether both values share a currency code.
func (m Money) SameCurrency(other Money) bool {
	return m.currency.Code == other.currency.Code
}

// Add returns the sum of two values in the same currency.
func (m Money) Add(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, mismatch("add", m, other)
	}
	sum := m.amount + other.amount
	if (other.amount > 0 && sum < m.amount) || (other.amount < 0 && sum > m.amount) {
		return Money{}, fmt.Errorf("%w: %d + %d", ErrOverflow, m.amount, other.amount)
	}
	return Money{amount: sum, currency: m.currency}, nil
}

// Subtract returns the difference of two values in the same currency.
// The result can be negative if the subtrahend is larger than the minuend.
func (m Money) Subtract(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, mismatch("subtract", m, other)
	}
	diff := m.amount - other.amount
	if (other.amount < 0 && diff < m.amount) || (other.amount > 0 && diff > m.amount) {
		return Money{}, fmt.Errorf("%w: %d - %d", ErrOverflow, m.amount, other.amount)
	}
	return Money{amount: diff, currency: m.currency}, nil
}

// MultiplyByScalar multiplies the amount by a non-negative factor and rounds
// the result to minor units using round-half-to-even.
func (m Money) MultiplyByScalar(factor float64) (Money, error) {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor < 0 {
		return Money{}, fmt.Errorf("%w: factor %v", ErrInvalidAmount, factor)
	}
	return m.Scale(decimal.NewFromFloat(factor), RoundHalfEven)
}

// MultiplyInt multiplies the amount by an integer exactly.
func (m Money) MultiplyInt(n int64) (Money, error) {
	product := decimal.NewFromInt(m.amount).Mul(decimal.NewFromInt(n))
	amount, err := toAmount(product)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount, currency: m.currency}, nil
}

// Scale multiplies the amount by an arbitrary decimal factor and resolves
// fractional minor units with the given rounding mode.
func (m Money) Scale(factor decimal.Decimal, mode Rounding) (Money, error) {
	if factor.IsNegative() {
		return Money{}, fmt.Errorf("%w: factor %s", ErrInvalidAmount, factor)
	}
	product := decimal.NewFromInt(m.amount).Mul(factor)
	switch mode {
	case RoundDown:
		product = product.Truncate(0)
	default:
		product = product.RoundBank(0)
	}
	amount, err := toAmount(product)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount, currency: m.currency}, nil
}

// Percent returns pct percent of the amount (pct is expressed as 0-100).
func (m Money) Percent(pct decimal.Decimal, mode Rounding) (Money, error) {
	return m.Scale(pct.Div(hundred), mode)
}

// Compare returns -1, 0 or 1 when m is less than, equal to or greater than other.
func (m Money) Compare(other Money) (int, error) {
	if !m.SameCurrency(other) {
		return 0, mismatch("compare", m, other)
	}
	switch {
	case m.amount < other.amount:
		return -1, nil
	case m.amount > other.amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equals reports whether both values have the same currency and amount.
func (m Money) Equals(other Money) bool {
	return m.SameCurrency(other) && m.amount == other.amount
}

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool {
	return m.amount > 0
}

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool {
	return m.amount < 0
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool {
	return m.amount == 0
}

// String returns a string representation such as "45.00 USD".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(int32(m.currency.Decimals)), m.currency.Code)
}

// Display returns the amount with the currency symbol, e.g. "$45.00".
func (m Money) Display() string {
	symbol := m.currency.Symbol
	if symbol == "" || symbol == string(m.currency.Code) {
		symbol = string(m.currency.Code) + " "
	}
	return symbol + m.Decimal().StringFixed(int32(m.currency.Decimals))
}

// MarshalJSON implements json.Marshaler interface.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}{
		Amount:   m.amount,
		Currency: string(m.currency.Code),
	})
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (m *Money) UnmarshalJSON(data []byte) error {
	var aux struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Currency == "" && aux.Amount == 0 {
		*m = Money{}
		return nil
	}
	parsed, err := FromMinorUnits(aux.Amount, Code(aux.Currency))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func toAmount(minor decimal.Decimal) (Amount, error) {
	if minor.GreaterThan(maxAmount) || minor.LessThan(minAmount) {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, minor)
	}
	return minor.IntPart(), nil
}

func mismatch(op string, a, b Money) error {
	return fmt.Errorf(
		"%w: cannot %s %s and %s",
		ErrCurrencyMismatch,
		op,
		a.currency.Code,
		b.currency.Code,
	)
}
