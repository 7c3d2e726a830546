package checkout_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/eventbus"
	"github.com/amirasaad/checkoutflow/pkg/funding"
	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Start(t *testing.T) {
	ctx := context.Background()
	c := checkout.NewController(nil)

	t.Run("sole source below total", func(t *testing.T) {
		_, err := c.Start(ctx, fortyFive(t), []funding.Source{wallet(t, "w", 40)})
		require.ErrorIs(t, err, checkout.ErrNoEligibleFunding)
	})

	t.Run("no sources", func(t *testing.T) {
		_, err := c.Start(ctx, fortyFive(t), nil)
		require.ErrorIs(t, err, checkout.ErrNoEligibleFunding)
	})

	t.Run("invalid source", func(t *testing.T) {
		_, err := c.Start(ctx, fortyFive(t), []funding.Source{{ID: "x", Label: "x", Balance: usd(t, 100)}})
		require.ErrorIs(t, err, funding.ErrInvalidSource)
	})

	t.Run("creates session in amount", func(t *testing.T) {
		s, err := c.Start(ctx, fortyFive(t), []funding.Source{wallet(t, "w", 40), wallet(t, "v", 45)})
		require.NoError(t, err)
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, checkout.StateAmount, s.State)
		assert.Equal(t, int64(4500), s.Quote.Total.MinorUnits())
		assert.Len(t, s.Sources, 2)
		assert.Len(t, s.EligibleSources(), 1)
		require.NoError(t, s.Validate())
	})
}

func TestController_Begin(t *testing.T) {
	ctx := context.Background()

	_, err := checkout.NewController(nil).Begin(ctx, fortyFive(t))
	require.ErrorIs(t, err, checkout.ErrNoProvider)

	provider := funding.NewStatic(
		wallet(t, "usd", 100),
		funding.Source{ID: "eur", Label: "EUR", Balance: money.MustFromDecimal(500, money.EUR), Details: funding.Wallet{}},
	)
	c := checkout.NewController(nil, checkout.WithProvider(provider))
	s, err := c.Begin(ctx, fortyFive(t))
	require.NoError(t, err)
	require.Len(t, s.Sources, 1)
	assert.Equal(t, "usd", s.Sources[0].ID)
}

func TestController_SubmitNetworkErrorThenRetry(t *testing.T) {
	ctx := context.Background()
	c := checkout.NewController(nil)
	s := sessionIn(t, c, checkout.StateProcessing)

	s, err := c.Submit(ctx, s, func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
		return checkout.Failed(checkout.ErrorNetwork, "gateway timeout"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, checkout.StateFailure, s.State)
	assert.Equal(t, checkout.ErrorNetwork, s.FailureReason())
	assert.True(t, s.FailureReason().SafeToRetry())

	s, err = c.Dispatch(ctx, s, checkout.Retry{})
	require.NoError(t, err)
	assert.Equal(t, checkout.StateSelection, s.State)
	assert.Nil(t, s.SelectedFunding)
	assert.Nil(t, s.Result)
}

func TestController_RetryStartsNewAttempt(t *testing.T) {
	ctx := context.Background()
	c := checkout.NewController(nil)
	s := sessionIn(t, c, checkout.StateFailure)
	require.Equal(t, 1, s.Attempt)

	var err error
	for _, ev := range []checkout.Event{
		checkout.Retry{},
		checkout.SelectFunding{SourceID: "rich"},
		checkout.ConfirmSelection{},
		checkout.ConfirmPurchase{},
	} {
		s, err = c.Dispatch(ctx, s, ev)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, s.Attempt)

	var calls atomic.Int32
	s, err = c.Submit(ctx, s, func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
		calls.Add(1)
		return checkout.Succeeded("second-try"), nil
	})
	require.NoError(t, err)
	assert.True(t, s.Succeeded())
	assert.Equal(t, int32(1), calls.Load())
}

func TestController_SubmitAtMostOnce(t *testing.T) {
	ctx := context.Background()
	c := checkout.NewController(nil)
	s := sessionIn(t, c, checkout.StateProcessing)

	// a second confirm while processing changes nothing
	again, err := c.Dispatch(ctx, s, checkout.ConfirmPurchase{})
	require.NoError(t, err)
	assert.Equal(t, s, again)

	var calls atomic.Int32
	release := make(chan struct{})
	settle := func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
		calls.Add(1)
		<-release
		return checkout.Succeeded("only-once"), nil
	}

	const submitters = 8
	var wg sync.WaitGroup
	results := make([]checkout.Session, submitters)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Submit(ctx, s, settle)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, res := range results {
		assert.Equal(t, checkout.StateSuccess, res.State)
		assert.Equal(t, "only-once", res.Result.ConfirmationID)
	}

	// a late submit of the same processing value reuses the recorded outcome
	late, err := c.Submit(ctx, again, settle)
	require.NoError(t, err)
	assert.Equal(t, "only-once", late.Result.ConfirmationID)
	assert.Equal(t, int32(1), calls.Load())
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestController_SubmitErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		settle checkout.SettleFunc
		want   checkout.ErrorKind
	}{
		{
			name: "reported insufficient funds",
			settle: func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
				return checkout.Failed(checkout.ErrorInsufficientFunds, "declined"), nil
			},
			want: checkout.ErrorInsufficientFunds,
		},
		{
			name: "reported rejection",
			settle: func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
				return checkout.Failed(checkout.ErrorFundingRejected, "card blocked"), nil
			},
			want: checkout.ErrorFundingRejected,
		},
		{
			name: "deadline exceeded",
			settle: func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
				return checkout.SettlementResult{}, context.DeadlineExceeded
			},
			want: checkout.ErrorNetwork,
		},
		{
			name: "net error",
			settle: func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
				return checkout.SettlementResult{}, &net.OpError{Op: "dial", Net: "tcp", Err: timeoutError{}}
			},
			want: checkout.ErrorNetwork,
		},
		{
			name: "plain error",
			settle: func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
				return checkout.SettlementResult{}, errors.New("boom")
			},
			want: checkout.ErrorUnknown,
		},
		{
			name: "panic",
			settle: func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
				panic("settlement backend exploded")
			},
			want: checkout.ErrorUnknown,
		},
		{
			name: "empty result",
			settle: func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
				return checkout.SettlementResult{}, nil
			},
			want: checkout.ErrorUnknown,
		},
		{
			name: "unrecognised kind",
			settle: func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
				return checkout.Failed("card_melted", "?"), nil
			},
			want: checkout.ErrorUnknown,
		},
		{
			name:   "nil settle",
			settle: nil,
			want:   checkout.ErrorUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := checkout.NewController(nil)
			s := sessionIn(t, c, checkout.StateProcessing)

			got, err := c.Submit(context.Background(), s, tt.settle)
			require.NoError(t, err)
			assert.Equal(t, checkout.StateFailure, got.State)
			assert.Equal(t, tt.want, got.FailureReason())
		})
	}
}

func TestController_SubmitTimeout(t *testing.T) {
	c := checkout.NewController(nil, checkout.WithSettlementTimeout(20*time.Millisecond))
	s := sessionIn(t, c, checkout.StateProcessing)

	got, err := c.Submit(context.Background(), s, func(ctx context.Context, _ checkout.Session) (checkout.SettlementResult, error) {
		<-ctx.Done()
		return checkout.SettlementResult{}, ctx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, checkout.ErrorNetwork, got.FailureReason())
}

func TestController_SubmitIgnoresCallerCancellation(t *testing.T) {
	c := checkout.NewController(nil)
	s := sessionIn(t, c, checkout.StateProcessing)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := c.Submit(ctx, s, func(ctx context.Context, _ checkout.Session) (checkout.SettlementResult, error) {
		if err := ctx.Err(); err != nil {
			return checkout.SettlementResult{}, err
		}
		return checkout.Succeeded("still-settled"), nil
	})
	require.NoError(t, err)
	assert.True(t, got.Succeeded())
}

func TestController_SubmitRequiresProcessing(t *testing.T) {
	c := checkout.NewController(nil)
	settle := func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
		t.Fatal("settle must not be called")
		return checkout.SettlementResult{}, nil
	}

	for _, state := range []checkout.State{checkout.StateReview, checkout.StateSuccess, checkout.StateFailure} {
		s := sessionIn(t, c, state)
		got, err := c.Submit(context.Background(), s, settle)
		assert.Equal(t, checkout.RuleNotProcessing, checkout.RuleOf(err), "state %s", state)
		assert.Equal(t, s, got)
	}

	discarded, err := c.Dispatch(context.Background(), sessionIn(t, c, checkout.StateReview), checkout.Cancel{})
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), discarded, settle)
	assert.Equal(t, checkout.RuleSessionDiscarded, checkout.RuleOf(err))
}

func TestController_PublishesLifecycleEvents(t *testing.T) {
	bus := &recordingBus{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := checkout.NewController(nil,
		checkout.WithEventBus(bus),
		checkout.WithClock(func() time.Time { return fixed }),
	)

	s := sessionIn(t, c, checkout.StateSuccess)
	assert.Equal(t, fixed, s.UpdatedAt)
	assert.Equal(t, []string{
		checkout.EventTypeStarted,
		checkout.EventTypeTransitioned, // selection
		checkout.EventTypeTransitioned, // funding selected
		checkout.EventTypeTransitioned, // review
		checkout.EventTypeTransitioned, // processing
		checkout.EventTypeSucceeded,
	}, bus.types())

	last := bus.events[len(bus.events)-1].(*checkout.LifecycleEvent)
	assert.Equal(t, s.ID, last.SessionID)
	assert.Equal(t, "conf-1", last.ConfirmationID)
	assert.Equal(t, "rich", last.FundingID)
	assert.Equal(t, checkout.StateProcessing, last.From)
	assert.Equal(t, checkout.StateSuccess, last.To)

	bus.events = nil
	_, err := c.Dispatch(context.Background(), sessionIn(t, c, checkout.StateSelection), checkout.Cancel{})
	require.NoError(t, err)
	types := bus.types()
	assert.Equal(t, checkout.EventTypeCancelled, types[len(types)-1])
}

type failingBus struct{}

func (failingBus) Register(string, eventbus.HandlerFunc) {}

func (failingBus) Emit(context.Context, eventbus.Event) error {
	return errors.New("broker down")
}

func TestController_BusFailureDoesNotFailTransitions(t *testing.T) {
	c := checkout.NewController(nil, checkout.WithEventBus(failingBus{}))
	s := sessionIn(t, c, checkout.StateSuccess)
	assert.True(t, s.Succeeded())
}

func TestController_Discard(t *testing.T) {
	ctx := context.Background()
	c := checkout.NewController(nil)
	s := sessionIn(t, c, checkout.StateProcessing)

	var calls atomic.Int32
	settle := func(context.Context, checkout.Session) (checkout.SettlementResult, error) {
		calls.Add(1)
		return checkout.Succeeded("x"), nil
	}
	_, err := c.Submit(ctx, s, settle)
	require.NoError(t, err)

	c.Discard(s.ID)
	_, err = c.Submit(ctx, s, settle)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "forgotten attempts are settled again")
}
