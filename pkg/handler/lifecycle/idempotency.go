package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/eventbus"
	"golang.org/x/sync/singleflight"
)

// KeyExtractor extracts an idempotency key from an event
type KeyExtractor func(eventbus.Event) string

// DefaultRetention is how long a processed key is remembered.
const DefaultRetention = 24 * time.Hour

// IdempotencyTracker tracks processed events by key. Keys are forgotten
// after the retention window.
type IdempotencyTracker struct {
	mu        sync.Mutex
	processed map[string]time.Time // key -> expiry
	inflight  singleflight.Group
	retention time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// TrackerOption configures an IdempotencyTracker.
type TrackerOption func(*IdempotencyTracker)

// WithRetention sets how long processed keys are kept. Non-positive values
// keep the default.
func WithRetention(d time.Duration) TrackerOption {
	return func(t *IdempotencyTracker) {
		if d > 0 {
			t.retention = d
		}
	}
}

// WithTrackerClock overrides time.Now.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *IdempotencyTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewIdempotencyTracker creates a new idempotency tracker
func NewIdempotencyTracker(opts ...TrackerOption) *IdempotencyTracker {
	t := &IdempotencyTracker{
		processed: make(map[string]time.Time),
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Seen reports whether key was processed successfully within the retention window.
func (t *IdempotencyTracker) Seen(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	expires, ok := t.processed[key]
	if !ok {
		return false
	}
	if !t.now().Before(expires) {
		delete(t.processed, key)
		return false
	}
	return true
}

// Len reports how many keys are held.
func (t *IdempotencyTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.processed)
}

func (t *IdempotencyTracker) markProcessed(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if now.Sub(t.lastSweep) >= t.retention/2 {
		t.lastSweep = now
		for k, expires := range t.processed {
			if !now.Before(expires) {
				delete(t.processed, k)
			}
		}
	}
	t.processed[key] = now.Add(t.retention)
}

// WithIdempotency wraps handler so each key is handled successfully at most
// once. Concurrent deliveries of the same key wait for the in-flight call and
// share its outcome; a failed call leaves the key unprocessed.
func WithIdempotency(
	handler eventbus.HandlerFunc,
	tracker *IdempotencyTracker,
	keyExtractor KeyExtractor,
	handlerName string,
	logger *slog.Logger,
) eventbus.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, e eventbus.Event) error {
		key := keyExtractor(e)
		if key == "" {
			return handler(ctx, e)
		}

		log := logger.With(
			"handler", handlerName,
			"event_type", e.Type(),
			"idempotency_key", key,
		)

		if tracker.Seen(key) {
			log.Info("🔁 [SKIP] Event already processed")
			return nil
		}

		_, err, _ := tracker.inflight.Do(key, func() (any, error) {
			if tracker.Seen(key) {
				return nil, nil
			}
			if err := handler(ctx, e); err != nil {
				return nil, err
			}
			tracker.markProcessed(key)
			return nil, nil
		})
		return err
	}
}

// AttemptKey keys lifecycle events by event type, session and attempt.
func AttemptKey(e eventbus.Event) string {
	ev, ok := asLifecycle(e)
	if !ok || ev.SessionID == "" {
		return ""
	}
	return ev.EventType + ":" + settlementKey(ev)
}
