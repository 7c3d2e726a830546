// Package pricing derives quotes from purchase intents.
//
// Every function in this package is pure: the same intent always yields a
// bit-identical Quote, so callers may re-quote freely as input fields change.
package pricing

import (
	"errors"
	"fmt"

	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/shopspring/decimal"
)

// ErrInvalidIntent is returned when a purchase intent cannot be priced.
var ErrInvalidIntent = errors.New("invalid purchase intent")

var (
	zeroPercent    = decimal.Zero
	hundredPercent = decimal.NewFromInt(100)
)

// Warning flags a quote adjustment the caller should surface.
type Warning string

const (
	// WarningTotalClamped means fees and discounts would have produced a
	// negative total; the total was clamped to zero.
	WarningTotalClamped Warning = "total_clamped_to_zero"
)

// PurchaseIntent describes what the customer is about to buy.
type PurchaseIntent struct {
	UnitPrice       money.Money     `json:"unit_price"`
	Quantity        int64           `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	FeeFixed        money.Money     `json:"fee_fixed"`
	FeePercent      decimal.Decimal `json:"fee_percent"`
}

// Currency returns the intent's currency code.
func (i PurchaseIntent) Currency() money.Code {
	return i.UnitPrice.Code()
}

// Quote is the priced form of a PurchaseIntent.
// Invariant: Total == Subtotal - DiscountAmount + FeeAmount and Total >= 0.
type Quote struct {
	Subtotal       money.Money `json:"subtotal"`
	DiscountAmount money.Money `json:"discount_amount"`
	FeeAmount      money.Money `json:"fee_amount"`
	Total          money.Money `json:"total"`
	Currency       money.Code  `json:"currency"`
	Warnings       []Warning   `json:"warnings,omitempty"`
}

// HasWarning reports whether the quote carries w.
func (q Quote) HasWarning(w Warning) bool {
	for _, got := range q.Warnings {
		if got == w {
			return true
		}
	}
	return false
}

// Validate checks the intent without pricing it.
func (i PurchaseIntent) Validate() error {
	if !i.UnitPrice.Code().IsValid() {
		return fmt.Errorf("%w: unit price currency %q", ErrInvalidIntent, i.UnitPrice.Code())
	}
	if i.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidIntent, i.Quantity)
	}
	if i.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price %s is negative", ErrInvalidIntent, i.UnitPrice)
	}
	if !inPercentRange(i.DiscountPercent) {
		return fmt.Errorf("%w: discount percent %s outside 0-100", ErrInvalidIntent, i.DiscountPercent)
	}
	if !inPercentRange(i.FeePercent) {
		return fmt.Errorf("%w: fee percent %s outside 0-100", ErrInvalidIntent, i.FeePercent)
	}
	if !i.FeeFixed.SameCurrency(i.UnitPrice) {
		return fmt.Errorf(
			"%w: fixed fee in %s, unit price in %s: %w",
			ErrInvalidIntent,
			i.FeeFixed.Code(),
			i.UnitPrice.Code(),
			money.ErrCurrencyMismatch,
		)
	}
	return nil
}

// ComputeQuote prices a purchase intent.
//
//	subtotal = unitPrice * quantity
//	discount = subtotal * discount% / 100, truncated to the minor unit
//	fee      = feeFixed + (subtotal - discount) * fee% / 100, rounded half-to-even
//	total    = subtotal - discount + fee
//
// A negative total can only come from a negative fixed fee (a credit). It is
// clamped to zero by capping the credit, so the equation above still holds
// exactly, and WarningTotalClamped is attached.
func ComputeQuote(intent PurchaseIntent) (Quote, error) {
	if err := intent.Validate(); err != nil {
		return Quote{}, err
	}

	subtotal, err := intent.UnitPrice.MultiplyInt(intent.Quantity)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: subtotal: %w", ErrInvalidIntent, err)
	}

	discount, err := subtotal.Percent(intent.DiscountPercent, money.RoundDown)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: discount: %w", ErrInvalidIntent, err)
	}

	afterDiscount, err := subtotal.Subtract(discount)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: discount: %w", ErrInvalidIntent, err)
	}

	variableFee, err := afterDiscount.Percent(intent.FeePercent, money.RoundHalfEven)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: fee: %w", ErrInvalidIntent, err)
	}

	fee, err := intent.FeeFixed.Add(variableFee)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: fee: %w", ErrInvalidIntent, err)
	}

	total, err := afterDiscount.Add(fee)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: total: %w", ErrInvalidIntent, err)
	}

	q := Quote{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		FeeAmount:      fee,
		Total:          total,
		Currency:       subtotal.Code(),
	}

	if total.IsNegative() {
		// fee becomes -(subtotal - discount) so the sum lands exactly on zero
		capped, err := money.Zero(q.Currency).Subtract(afterDiscount)
		if err != nil {
			return Quote{}, fmt.Errorf("%w: clamp: %w", ErrInvalidIntent, err)
		}
		q.FeeAmount = capped
		q.Total = money.Zero(q.Currency)
		q.Warnings = append(q.Warnings, WarningTotalClamped)
	}

	return q, nil
}

func inPercentRange(p decimal.Decimal) bool {
	return p.GreaterThanOrEqual(zeroPercent) && p.LessThanOrEqual(hundredPercent)
}
