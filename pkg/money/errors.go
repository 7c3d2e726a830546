package money

import "errors"

// Common money package errors
var (
	// ErrInvalidAmount is returned for negative, NaN or infinite decimal input,
	// and for invalid scaling factors.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidCurrency is returned when a currency code is not a
	// well-formed ISO 4217 code.
	ErrInvalidCurrency = errors.New("invalid currency code")

	// ErrCurrencyMismatch is returned when performing operations on money with
	// different currencies
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrOverflow is returned when a result does not fit in int64 minor units.
	ErrOverflow = errors.New("amount overflows minor units")
)
