package pricing_test

import (
	"testing"

	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/amirasaad/checkoutflow/pkg/pricing"
	"github.com/shopspring/decimal"
)

// FuzzComputeQuote checks the quote invariants over arbitrary intents.
func FuzzComputeQuote(f *testing.F) {
	f.Add(int64(1000), int64(5), int64(1000), int64(0), int64(0))
	f.Add(int64(999), int64(1), int64(1000), int64(30), int64(290))
	f.Add(int64(1), int64(1), int64(0), int64(-500), int64(10000))
	f.Add(int64(123456), int64(99), int64(3333), int64(17), int64(1))

	f.Fuzz(func(t *testing.T, unit, qty, discountBP, feeFixed, feeBP int64) {
		intent := pricing.PurchaseIntent{
			UnitPrice:       mustMinorUSD(t, unit),
			Quantity:        qty,
			DiscountPercent: decimal.New(discountBP, -2),
			FeeFixed:        mustMinorUSD(t, feeFixed),
			FeePercent:      decimal.New(feeBP, -2),
		}

		q, err := pricing.ComputeQuote(intent)
		if err != nil {
			return
		}

		again, err := pricing.ComputeQuote(intent)
		if err != nil {
			t.Fatalf("second quote failed: %v", err)
		}
		if q.Total != again.Total || q.FeeAmount != again.FeeAmount || q.DiscountAmount != again.DiscountAmount {
			t.Fatalf("quote not deterministic: %+v vs %+v", q, again)
		}

		if q.Total.IsNegative() {
			t.Fatalf("negative total %s", q.Total)
		}
		if q.DiscountAmount.MinorUnits() > q.Subtotal.MinorUnits() {
			t.Fatalf("discount %s exceeds subtotal %s", q.DiscountAmount, q.Subtotal)
		}
		sum := q.Subtotal.MinorUnits() - q.DiscountAmount.MinorUnits() + q.FeeAmount.MinorUnits()
		if sum != q.Total.MinorUnits() {
			t.Fatalf("conservation broken: %d != %d", sum, q.Total.MinorUnits())
		}
	})
}

func mustMinorUSD(t *testing.T, minor int64) money.Money {
	t.Helper()
	m, err := money.FromMinorUnits(minor, money.USD)
	if err != nil {
		t.Fatalf("money: %v", err)
	}
	return m
}
