package pricing

import (
	"fmt"
	"strings"

	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/amirasaad/checkoutflow/pkg/pricing"
	"github.com/shopspring/decimal"
)

// IntentRequest is the wire form of a purchase intent. Amounts and
// percentages are decimal strings in major units.
type IntentRequest struct {
	UnitPrice       string `json:"unit_price" validate:"required,numeric"`
	Currency        string `json:"currency" validate:"required,len=3,alpha"`
	Quantity        int64  `json:"quantity" validate:"required,min=1"`
	DiscountPercent string `json:"discount_percent" validate:"omitempty,numeric"`
	FeeFixed        string `json:"fee_fixed" validate:"omitempty,numeric"`
	FeePercent      string `json:"fee_percent" validate:"omitempty,numeric"`
}

// TokenRequest asks how many whole tokens an amount buys.
type TokenRequest struct {
	Amount     string `json:"amount" validate:"required,numeric"`
	Currency   string `json:"currency" validate:"omitempty,len=3,alpha"`
	TokenPrice string `json:"token_price" validate:"omitempty,numeric"`
}

// MoneyDTO renders a money value for API responses.
type MoneyDTO struct {
	Amount     string `json:"amount"`
	MinorUnits int64  `json:"minor_units"`
	Currency   string `json:"currency"`
	Display    string `json:"display"`
}

// QuoteDTO renders a pricing.Quote.
type QuoteDTO struct {
	Subtotal MoneyDTO `json:"subtotal"`
	Discount MoneyDTO `json:"discount"`
	Fee      MoneyDTO `json:"fee"`
	Total    MoneyDTO `json:"total"`
	Warnings []string `json:"warnings,omitempty"`
}

// TokenDTO renders a pricing.TokenPurchase.
type TokenDTO struct {
	Amount     MoneyDTO `json:"amount"`
	TokenPrice MoneyDTO `json:"token_price"`
	TokenCount int64    `json:"token_count"`
	TotalCost  MoneyDTO `json:"total_cost"`
	Remainder  MoneyDTO `json:"remainder"`
}

// ToIntent parses the request into a PurchaseIntent.
func (r IntentRequest) ToIntent() (pricing.PurchaseIntent, error) {
	code := money.Code(strings.ToUpper(r.Currency))

	unit, err := ParseAmount(r.UnitPrice, code)
	if err != nil {
		return pricing.PurchaseIntent{}, fmt.Errorf("unit_price: %w", err)
	}
	discount, err := parsePercent(r.DiscountPercent)
	if err != nil {
		return pricing.PurchaseIntent{}, fmt.Errorf("discount_percent: %w", err)
	}
	feePct, err := parsePercent(r.FeePercent)
	if err != nil {
		return pricing.PurchaseIntent{}, fmt.Errorf("fee_percent: %w", err)
	}
	feeFixed, err := parseSigned(r.FeeFixed, code)
	if err != nil {
		return pricing.PurchaseIntent{}, fmt.Errorf("fee_fixed: %w", err)
	}

	return pricing.PurchaseIntent{
		UnitPrice:       unit,
		Quantity:        r.Quantity,
		DiscountPercent: discount,
		FeeFixed:        feeFixed,
		FeePercent:      feePct,
	}, nil
}

// ParseAmount parses a non-negative decimal string into money.
func ParseAmount(raw string, code money.Code) (money.Money, error) {
	return money.Parse(raw, code)
}

// parseSigned is ParseAmount that also accepts negative values (credits).
func parseSigned(raw string, code money.Code) (money.Money, error) {
	if strings.TrimSpace(raw) == "" {
		if !code.IsValid() {
			return money.Money{}, fmt.Errorf("%w: %q", money.ErrInvalidCurrency, code)
		}
		return money.Zero(code), nil
	}
	value, err := money.ParseDecimal(raw, code)
	if err != nil {
		return money.Money{}, err
	}
	m, err := money.FromDecimalValue(value.Abs(), code)
	if err != nil {
		return money.Money{}, err
	}
	if value.IsNegative() {
		return money.FromMinorUnits(-m.MinorUnits(), code)
	}
	return m, nil
}

func parsePercent(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: percent %q", pricing.ErrInvalidIntent, raw)
	}
	return value, nil
}

// ToMoneyDTO renders m.
func ToMoneyDTO(m money.Money) MoneyDTO {
	places := int32(m.Currency().Decimals)
	return MoneyDTO{
		Amount:     m.Decimal().StringFixed(places),
		MinorUnits: m.MinorUnits(),
		Currency:   string(m.Code()),
		Display:    m.Display(),
	}
}

// ToQuoteDTO renders q.
func ToQuoteDTO(q pricing.Quote) QuoteDTO {
	warnings := make([]string, 0, len(q.Warnings))
	for _, w := range q.Warnings {
		warnings = append(warnings, string(w))
	}
	return QuoteDTO{
		Subtotal: ToMoneyDTO(q.Subtotal),
		Discount: ToMoneyDTO(q.DiscountAmount),
		Fee:      ToMoneyDTO(q.FeeAmount),
		Total:    ToMoneyDTO(q.Total),
		Warnings: warnings,
	}
}

func toTokenDTO(t pricing.TokenPurchase) TokenDTO {
	return TokenDTO{
		Amount:     ToMoneyDTO(t.Amount),
		TokenPrice: ToMoneyDTO(t.TokenPrice),
		TokenCount: t.TokenCount,
		TotalCost:  ToMoneyDTO(t.TotalCost),
		Remainder:  ToMoneyDTO(t.Remainder),
	}
}
