package checkout_test

import (
	"context"
	"sync"
	"testing"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/eventbus"
	"github.com/amirasaad/checkoutflow/pkg/funding"
	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/amirasaad/checkoutflow/pkg/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func usd(t *testing.T, amount float64) money.Money {
	t.Helper()
	m, err := money.FromDecimal(amount, money.USD)
	require.NoError(t, err)
	return m
}

// intentFor builds an intent for unitPrice x quantity with no discount or fees.
func intentFor(t *testing.T, unitPrice float64, quantity int64) pricing.PurchaseIntent {
	t.Helper()
	return pricing.PurchaseIntent{
		UnitPrice:       usd(t, unitPrice),
		Quantity:        quantity,
		DiscountPercent: decimal.Zero,
		FeeFixed:        money.Zero(money.USD),
		FeePercent:      decimal.Zero,
	}
}

// fortyFive is $10 x 5 with 10% off.
func fortyFive(t *testing.T) pricing.PurchaseIntent {
	t.Helper()
	i := intentFor(t, 10, 5)
	i.DiscountPercent = decimal.NewFromInt(10)
	return i
}

func wallet(t *testing.T, id string, balance float64) funding.Source {
	t.Helper()
	return funding.Source{
		ID:      id,
		Label:   "Wallet " + id,
		Balance: usd(t, balance),
		Details: funding.Wallet{Network: "internal", Address: id},
	}
}

// sessionIn drives a fresh session to state through the public API.
func sessionIn(t *testing.T, c *checkout.Controller, state checkout.State) checkout.Session {
	t.Helper()
	ctx := context.Background()

	s, err := c.Start(ctx, fortyFive(t), []funding.Source{wallet(t, "rich", 100), wallet(t, "poor", 40)})
	require.NoError(t, err)
	if state == checkout.StateAmount {
		return s
	}

	s, err = c.Dispatch(ctx, s, checkout.SubmitAmount{Intent: fortyFive(t)})
	require.NoError(t, err)
	if state == checkout.StateSelection {
		return s
	}

	s, err = c.Dispatch(ctx, s, checkout.SelectFunding{SourceID: "rich"})
	require.NoError(t, err)
	s, err = c.Dispatch(ctx, s, checkout.ConfirmSelection{})
	require.NoError(t, err)
	if state == checkout.StateReview {
		return s
	}

	s, err = c.Dispatch(ctx, s, checkout.ConfirmPurchase{})
	require.NoError(t, err)
	if state == checkout.StateProcessing {
		return s
	}

	settle := func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
		if state == checkout.StateSuccess {
			return checkout.Succeeded("conf-1"), nil
		}
		return checkout.Failed(checkout.ErrorNetwork, "timeout"), nil
	}
	s, err = c.Submit(ctx, s, settle)
	require.NoError(t, err)
	require.Equal(t, state, s.State)
	return s
}

// recordingBus keeps every emitted event.
type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Register(string, eventbus.HandlerFunc) {}

func (b *recordingBus) Emit(_ context.Context, e eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type())
	}
	return out
}
