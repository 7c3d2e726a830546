package pricing_test

import (
	"testing"

	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/amirasaad/checkoutflow/pkg/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usd(t *testing.T, minor int64) money.Money {
	t.Helper()
	m, err := money.FromMinorUnits(minor, money.USD)
	require.NoError(t, err)
	return m
}

func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertConserved(t *testing.T, q pricing.Quote) {
	t.Helper()
	got := q.Subtotal.MinorUnits() - q.DiscountAmount.MinorUnits() + q.FeeAmount.MinorUnits()
	assert.Equal(t, q.Total.MinorUnits(), got, "subtotal - discount + fee must equal total")
	assert.GreaterOrEqual(t, q.Total.MinorUnits(), int64(0))
	assert.LessOrEqual(t, q.DiscountAmount.MinorUnits(), q.Subtotal.MinorUnits())
}

func TestComputeQuote(t *testing.T) {
	tests := []struct {
		name     string
		intent   pricing.PurchaseIntent
		subtotal int64
		discount int64
		fee      int64
		total    int64
	}{
		{
			name: "ten percent off five units",
			intent: pricing.PurchaseIntent{
				UnitPrice:       usd(t, 1000),
				Quantity:        5,
				DiscountPercent: pct("10"),
				FeeFixed:        usd(t, 0),
				FeePercent:      pct("0"),
			},
			subtotal: 5000, discount: 500, fee: 0, total: 4500,
		},
		{
			name: "discount truncates fractional cents",
			intent: pricing.PurchaseIntent{
				UnitPrice:       usd(t, 999),
				Quantity:        1,
				DiscountPercent: pct("10"),
				FeeFixed:        usd(t, 0),
				FeePercent:      pct("0"),
			},
			subtotal: 999, discount: 99, fee: 0, total: 900,
		},
		{
			name: "fee rounds half to even",
			intent: pricing.PurchaseIntent{
				UnitPrice:       usd(t, 250),
				Quantity:        1,
				DiscountPercent: pct("0"),
				FeeFixed:        usd(t, 0),
				FeePercent:      pct("1"),
			},
			// 2.5 cents -> 2
			subtotal: 250, discount: 0, fee: 2, total: 252,
		},
		{
			name: "fee applies after discount plus fixed part",
			intent: pricing.PurchaseIntent{
				UnitPrice:       usd(t, 2000),
				Quantity:        3,
				DiscountPercent: pct("50"),
				FeeFixed:        usd(t, 30),
				FeePercent:      pct("2.9"),
			},
			// 3000 * 0.029 = 87
			subtotal: 6000, discount: 3000, fee: 117, total: 3117,
		},
		{
			name: "full discount",
			intent: pricing.PurchaseIntent{
				UnitPrice:       usd(t, 1234),
				Quantity:        2,
				DiscountPercent: pct("100"),
				FeeFixed:        usd(t, 0),
				FeePercent:      pct("5"),
			},
			subtotal: 2468, discount: 2468, fee: 0, total: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := pricing.ComputeQuote(tt.intent)
			require.NoError(t, err)
			assert.Equal(t, tt.subtotal, q.Subtotal.MinorUnits())
			assert.Equal(t, tt.discount, q.DiscountAmount.MinorUnits())
			assert.Equal(t, tt.fee, q.FeeAmount.MinorUnits())
			assert.Equal(t, tt.total, q.Total.MinorUnits())
			assert.Equal(t, money.USD, q.Currency)
			assert.Empty(t, q.Warnings)
			assertConserved(t, q)
		})
	}
}

func TestComputeQuote_Deterministic(t *testing.T) {
	intent := pricing.PurchaseIntent{
		UnitPrice:       usd(t, 1333),
		Quantity:        7,
		DiscountPercent: pct("12.5"),
		FeeFixed:        usd(t, 25),
		FeePercent:      pct("3.3"),
	}

	first, err := pricing.ComputeQuote(intent)
	require.NoError(t, err)
	second, err := pricing.ComputeQuote(intent)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeQuote_ClampsNegativeTotal(t *testing.T) {
	credit := usd(t, -2000)
	q, err := pricing.ComputeQuote(pricing.PurchaseIntent{
		UnitPrice:       usd(t, 1000),
		Quantity:        1,
		DiscountPercent: pct("0"),
		FeeFixed:        credit,
		FeePercent:      pct("0"),
	})
	require.NoError(t, err)

	assert.True(t, q.Total.IsZero())
	assert.Equal(t, int64(-1000), q.FeeAmount.MinorUnits())
	assert.True(t, q.HasWarning(pricing.WarningTotalClamped))
	assertConserved(t, q)
}

func TestComputeQuote_InvalidIntent(t *testing.T) {
	valid := func() pricing.PurchaseIntent {
		return pricing.PurchaseIntent{
			UnitPrice:       usd(t, 1000),
			Quantity:        1,
			DiscountPercent: pct("0"),
			FeeFixed:        usd(t, 0),
			FeePercent:      pct("0"),
		}
	}

	tests := []struct {
		name   string
		mutate func(*pricing.PurchaseIntent)
		also   error
	}{
		{"zero quantity", func(i *pricing.PurchaseIntent) { i.Quantity = 0 }, nil},
		{"negative quantity", func(i *pricing.PurchaseIntent) { i.Quantity = -1 }, nil},
		{"discount above 100", func(i *pricing.PurchaseIntent) { i.DiscountPercent = pct("100.01") }, nil},
		{"negative discount", func(i *pricing.PurchaseIntent) { i.DiscountPercent = pct("-1") }, nil},
		{"fee percent above 100", func(i *pricing.PurchaseIntent) { i.FeePercent = pct("101") }, nil},
		{"negative unit price", func(i *pricing.PurchaseIntent) { i.UnitPrice = usd(t, -1) }, nil},
		{"missing currency", func(i *pricing.PurchaseIntent) { i.UnitPrice = money.Money{} }, nil},
		{
			"fixed fee in another currency",
			func(i *pricing.PurchaseIntent) { i.FeeFixed = money.Zero(money.EUR) },
			money.ErrCurrencyMismatch,
		},
		{
			"subtotal overflow",
			func(i *pricing.PurchaseIntent) { i.Quantity = 1 << 62 },
			money.ErrOverflow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := valid()
			tt.mutate(&intent)
			_, err := pricing.ComputeQuote(intent)
			require.ErrorIs(t, err, pricing.ErrInvalidIntent)
			if tt.also != nil {
				require.ErrorIs(t, err, tt.also)
			}
		})
	}
}
