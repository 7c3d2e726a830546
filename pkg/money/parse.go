package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Parse reads a decimal string in major units (e.g. "12.50"). Negative
// values and values with more fraction digits than the currency allows are
// rejected with ErrInvalidAmount.
func Parse(raw string, code Code) (Money, error) {
	value, err := ParseDecimal(raw, code)
	if err != nil {
		return Money{}, err
	}
	return FromDecimalValue(value, code)
}

// ParseDecimal is Parse without the sign check, returning the exact decimal.
func ParseDecimal(raw string, code Code) (decimal.Decimal, error) {
	if !code.IsValid() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, raw)
	}
	places := int32(code.ToCurrency().Decimals)
	if !value.Equal(value.Truncate(places)) {
		return decimal.Zero, fmt.Errorf(
			"%w: %s has more than %d decimal places for %s",
			ErrInvalidAmount, raw, places, code,
		)
	}
	return value, nil
}
