package checkout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func processingSession(id string, attempt int) Session {
	return Session{ID: id, State: StateProcessing, Attempt: attempt}
}

func succeed(context.Context, Session) (SettlementResult, error) {
	return Succeeded("ok"), nil
}

func TestSubmissionTracker_BoundedAfterCompletedCheckouts(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewController(nil, WithLogger(quietLogger()), WithClock(clock.Now), WithSubmissionTTL(time.Minute))
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		done, err := c.Submit(ctx, processingSession(fmt.Sprintf("s-%d", i), 1), succeed)
		require.NoError(t, err)
		require.Equal(t, StateSuccess, done.State)
		clock.Advance(time.Second)
	}

	// 1000s of checkouts with a 60s TTL: only recent attempts survive sweeps
	assert.LessOrEqual(t, c.tracker.size(), 90)

	clock.Advance(2 * time.Minute)
	_, err := c.Submit(ctx, processingSession("last", 1), succeed)
	require.NoError(t, err)
	assert.Equal(t, 1, c.tracker.size())
}

func TestSubmissionTracker_ReplaysUntilExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewController(nil, WithLogger(quietLogger()), WithClock(clock.Now), WithSubmissionTTL(time.Minute))
	ctx := context.Background()
	s := processingSession("s-1", 1)

	calls := 0
	settle := func(context.Context, Session) (SettlementResult, error) {
		calls++
		return Succeeded(fmt.Sprintf("conf-%d", calls)), nil
	}

	first, err := c.Submit(ctx, s, settle)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	replayed, err := c.Submit(ctx, s, settle)
	require.NoError(t, err)
	assert.Equal(t, first.Result.ConfirmationID, replayed.Result.ConfirmationID)
	assert.Equal(t, 1, calls)

	clock.Advance(time.Minute)
	_, err = c.Submit(ctx, s, settle)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "expired attempts are settled again")
}

func TestSubmissionTracker_ForgetDropsAllAttempts(t *testing.T) {
	c := NewController(nil, WithLogger(quietLogger()))
	ctx := context.Background()

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := c.Submit(ctx, processingSession("s-1", attempt), succeed)
		require.NoError(t, err)
	}
	_, err := c.Submit(ctx, processingSession("s-2", 1), succeed)
	require.NoError(t, err)
	require.Equal(t, 4, c.tracker.size())

	c.Discard("s-1")
	assert.Equal(t, 1, c.tracker.size())
}

func TestWithSubmissionTTL_IgnoresNonPositive(t *testing.T) {
	assert.Equal(t, DefaultSubmissionTTL, NewController(nil, WithSubmissionTTL(0)).ttl)
	assert.Equal(t, time.Hour, NewController(nil, WithSubmissionTTL(time.Hour)).ttl)
}
