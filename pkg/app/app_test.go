package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amirasaad/checkoutflow/infra/eventbus"
	"github.com/amirasaad/checkoutflow/infra/provider/mocksettlement"
	"github.com/amirasaad/checkoutflow/infra/sessionstore"
	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/amirasaad/checkoutflow/pkg/funding"
	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/amirasaad/checkoutflow/pkg/pricing"
	checkoutsvc "github.com/amirasaad/checkoutflow/pkg/service/checkout"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDebiter struct {
	mock.Mock
}

func (m *MockDebiter) Debit(ctx context.Context, ownerID, sourceID string, amount money.Money) error {
	return m.Called(ctx, ownerID, sourceID, amount).Error(0)
}

func testConfig() *config.App {
	return &config.App{
		Checkout: &config.Checkout{
			DefaultCurrency:   "USD",
			MinimumPurchase:   map[string]string{"USD": "5.00"},
			TokenPrice:        "15.00",
			SessionTTL:        time.Minute,
			SettlementTimeout: time.Second,
		},
	}
}

func TestNew_WiresCheckoutFlow(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewWithMemory(logger)
	store := sessionstore.NewMemoryStore()
	defer store.Close()

	wallet := funding.Source{
		ID:      "w-1",
		Label:   "Wallet",
		Balance: money.MustFromDecimal(100, money.USD),
		Details: funding.Wallet{},
	}
	debiter := new(MockDebiter)
	debiter.On("Debit", mock.Anything, "owner-1", "w-1", money.MustFromDecimal(30, money.USD)).Return(nil).Once()

	a, err := New(&Deps{
		Store:    store,
		Sources:  checkoutsvc.Shared{Provider: funding.NewStatic(wallet)},
		Settler:  mocksettlement.New(0, logger),
		Debiter:  debiter,
		EventBus: bus,
		Logger:   logger,
	}, testConfig())
	require.NoError(t, err)
	assert.Equal(t, money.MustFromDecimal(15, money.USD), a.TokenPrice)

	min, ok := a.Controller.Machine().MinimumPurchase(money.USD)
	require.True(t, ok)
	assert.Equal(t, money.MustFromDecimal(5, money.USD), min)

	ctx := context.Background()
	svc := a.CheckoutService
	intent := pricing.PurchaseIntent{
		UnitPrice:       a.TokenPrice,
		Quantity:        2,
		DiscountPercent: decimal.Zero,
		FeeFixed:        money.Zero(money.USD),
		FeePercent:      decimal.Zero,
	}
	sess, err := svc.Begin(ctx, "owner-1", intent)
	require.NoError(t, err)

	for _, e := range []checkout.Event{
		checkout.SubmitAmount{Intent: intent},
		checkout.SelectFunding{SourceID: "w-1"},
		checkout.ConfirmSelection{},
	} {
		sess, err = svc.Dispatch(ctx, "owner-1", sess.ID, e)
		require.NoError(t, err)
	}
	sess, err = svc.Submit(ctx, "owner-1", sess.ID)
	require.NoError(t, err)
	assert.True(t, sess.Succeeded())

	debiter.AssertExpectations(t)
	assert.NotEmpty(t, bus.Published())
}

func TestNew_RejectsBadMinimum(t *testing.T) {
	cfg := testConfig()
	cfg.Checkout.MinimumPurchase = map[string]string{"USD": "abc"}
	_, err := New(&Deps{}, cfg)
	require.Error(t, err)
}
