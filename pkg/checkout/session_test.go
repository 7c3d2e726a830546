package checkout_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_JSONRoundTrip(t *testing.T) {
	c := checkout.NewController(nil)
	s := sessionIn(t, c, checkout.StateFailure)

	data, err := s.ToJSON()
	require.NoError(t, err)

	decoded, err := checkout.FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, s.ID, decoded.ID)
	assert.Equal(t, s.State, decoded.State)
	assert.Equal(t, s.Attempt, decoded.Attempt)
	assert.Equal(t, s.Quote.Total, decoded.Quote.Total)
	assert.Equal(t, s.Sources, decoded.Sources)
	assert.Equal(t, *s.SelectedFunding, *decoded.SelectedFunding)
	assert.Equal(t, *s.Result, *decoded.Result)
	assert.True(t, s.Intent.DiscountPercent.Equal(decoded.Intent.DiscountPercent))
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := checkout.FromJSON([]byte(`{"id":"x","state":"review","attempt":0}`))
	require.Error(t, err)

	_, err = checkout.FromJSON([]byte(`{"id":"","state":"amount"}`))
	require.Error(t, err)

	_, err = checkout.FromJSON([]byte(`not json`))
	require.Error(t, err)
}

func TestGuardViolation(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", &checkout.GuardViolation{
		Rule:  checkout.RuleNoFundingSelected,
		State: checkout.StateSelection,
		Event: checkout.EventConfirmSelection,
	})

	assert.True(t, errors.Is(err, checkout.ErrGuardViolation))
	assert.Equal(t, checkout.RuleNoFundingSelected, checkout.RuleOf(err))
	assert.Contains(t, err.Error(), "no_funding_selected")

	var gv *checkout.GuardViolation
	require.True(t, errors.As(err, &gv))
	assert.Equal(t, "select a payment method first", gv.Message())

	assert.Equal(t, checkout.GuardRule(""), checkout.RuleOf(errors.New("other")))
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		kind          checkout.ErrorKind
		safeToRetry   bool
		changeFunding bool
	}{
		{checkout.ErrorNetwork, true, false},
		{checkout.ErrorInsufficientFunds, false, true},
		{checkout.ErrorFundingRejected, false, true},
		{checkout.ErrorUnknown, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.True(t, tt.kind.IsValid())
			assert.Equal(t, tt.safeToRetry, tt.kind.SafeToRetry())
			assert.Equal(t, tt.changeFunding, tt.kind.RequiresFundingChange())
		})
	}
	assert.False(t, checkout.ErrorKind("other").IsValid())
}

func TestNewEvent(t *testing.T) {
	for _, name := range []checkout.EventName{
		checkout.EventConfirmSelection,
		checkout.EventConfirmPurchase,
		checkout.EventBack,
		checkout.EventRetry,
		checkout.EventCancel,
	} {
		ev, err := checkout.NewEvent(name)
		require.NoError(t, err)
		assert.Equal(t, name, ev.Name())
	}

	_, err := checkout.NewEvent(checkout.EventSelectFunding)
	require.Error(t, err)
	_, err = checkout.NewEvent("jump")
	require.Error(t, err)
}
