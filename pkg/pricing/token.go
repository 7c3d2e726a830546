package pricing

import (
	"fmt"

	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/shopspring/decimal"
)

// TokenPurchase is the breakdown of spending an entered amount on whole tokens.
// Only TotalCost is charged; Remainder is what the entered amount could not buy.
type TokenPurchase struct {
	Amount     money.Money `json:"amount"`
	TokenPrice money.Money `json:"token_price"`
	TokenCount int64       `json:"token_count"`
	TotalCost  money.Money `json:"total_cost"`
	Remainder  money.Money `json:"remainder"`
}

// ComputeTokenPurchase buys floor(amount / tokenPrice) tokens.
func ComputeTokenPurchase(amount, tokenPrice money.Money) (TokenPurchase, error) {
	if !amount.SameCurrency(tokenPrice) {
		return TokenPurchase{}, fmt.Errorf(
			"%w: amount in %s, token price in %s: %w",
			ErrInvalidIntent,
			amount.Code(),
			tokenPrice.Code(),
			money.ErrCurrencyMismatch,
		)
	}
	if !tokenPrice.IsPositive() {
		return TokenPurchase{}, fmt.Errorf("%w: token price must be positive, got %s", ErrInvalidIntent, tokenPrice)
	}
	if amount.IsNegative() {
		return TokenPurchase{}, fmt.Errorf("%w: amount %s is negative", ErrInvalidIntent, amount)
	}

	count := amount.MinorUnits() / tokenPrice.MinorUnits()
	if count < 1 {
		return TokenPurchase{}, fmt.Errorf(
			"%w: %s does not cover one token at %s",
			ErrInvalidIntent,
			amount,
			tokenPrice,
		)
	}

	total, err := tokenPrice.MultiplyInt(count)
	if err != nil {
		return TokenPurchase{}, fmt.Errorf("%w: %w", ErrInvalidIntent, err)
	}
	remainder, err := amount.Subtract(total)
	if err != nil {
		return TokenPurchase{}, fmt.Errorf("%w: %w", ErrInvalidIntent, err)
	}

	return TokenPurchase{
		Amount:     amount,
		TokenPrice: tokenPrice,
		TokenCount: count,
		TotalCost:  total,
		Remainder:  remainder,
	}, nil
}

// Intent converts the purchase into a PurchaseIntent with no discount or fees.
func (t TokenPurchase) Intent() PurchaseIntent {
	return PurchaseIntent{
		UnitPrice:       t.TokenPrice,
		Quantity:        t.TokenCount,
		DiscountPercent: decimal.Zero,
		FeeFixed:        money.Zero(t.TokenPrice.Code()),
		FeePercent:      decimal.Zero,
	}
}
