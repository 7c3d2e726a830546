package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/eventbus"
	"github.com/amirasaad/checkoutflow/pkg/funding"
	"github.com/amirasaad/checkoutflow/pkg/pricing"
	"github.com/google/uuid"
)

// Controller binds a Machine to funding, settlement and event publication.
// It is the API a UI layer talks to.
type Controller struct {
	machine  *Machine
	provider funding.Provider
	bus      eventbus.Bus
	logger   *slog.Logger
	timeout  time.Duration
	ttl      time.Duration
	now      func() time.Time
	tracker  *submissionTracker
}

// Option configures a Controller.
type Option func(*Controller)

// WithProvider sets the funding provider used by Begin.
func WithProvider(p funding.Provider) Option {
	return func(c *Controller) { c.provider = p }
}

// WithEventBus sets the bus lifecycle events are emitted on.
func WithEventBus(b eventbus.Bus) Option {
	return func(c *Controller) {
		if b != nil {
			c.bus = b
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSettlementTimeout bounds each settle call. Zero means no bound.
func WithSettlementTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithSubmissionTTL sets how long a settled attempt is replayed to later
// submits of the same session value. Non-positive values keep the default.
func WithSubmissionTTL(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates a Controller. A nil machine gets NewMachine().
func NewController(machine *Machine, opts ...Option) *Controller {
	if machine == nil {
		machine = NewMachine()
	}
	c := &Controller{
		machine: machine,
		bus:     eventbus.Nop{},
		logger:  slog.Default(),
		ttl:     DefaultSubmissionTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tracker = newSubmissionTracker(c.ttl, c.now)
	c.logger = c.logger.With("component", "checkout")
	return c
}

// Machine returns the controller's state machine.
func (c *Controller) Machine() *Machine {
	return c.machine
}

// Start creates a session in the amount step for intent, paid from one of
// sources. It fails with ErrNoEligibleFunding unless at least one source
// can cover the quote.
func (c *Controller) Start(
	ctx context.Context,
	intent pricing.PurchaseIntent,
	sources []funding.Source,
) (Session, error) {
	log := c.logger.With("handler", "Start")

	q, err := pricing.ComputeQuote(intent)
	if err != nil {
		log.Warn("❌ [ERROR] Invalid purchase intent", "error", err)
		return Session{}, err
	}
	for _, src := range sources {
		if err := src.Validate(); err != nil {
			return Session{}, err
		}
	}
	if len(sources) == 0 {
		log.Info("🚫 [DENY] No funding sources supplied", "currency", q.Currency)
		return Session{}, fmt.Errorf("%w: no sources for %s", ErrNoEligibleFunding, q.Currency)
	}
	if !funding.AnyEligible(sources, q) {
		log.Info("🚫 [DENY] No source covers the quote", "total", q.Total, "sources", len(sources))
		return Session{}, fmt.Errorf("%w: none of %d sources covers %s", ErrNoEligibleFunding, len(sources), q.Total)
	}

	now := c.now().UTC()
	s := Session{
		ID:        uuid.NewString(),
		State:     StateAmount,
		Intent:    intent,
		Quote:     q,
		Sources:   append([]funding.Source(nil), sources...),
		CreatedAt: now,
		UpdatedAt: now,
	}

	log.Info("🛒 [START] Checkout session created", "session_id", s.ID, "total", q.Total)
	c.emit(ctx, newLifecycleEvent(EventTypeStarted, "", s, "", now))
	return s, nil
}

// Begin is Start with sources listed from the configured provider for the
// intent's currency.
func (c *Controller) Begin(ctx context.Context, intent pricing.PurchaseIntent) (Session, error) {
	if c.provider == nil {
		return Session{}, ErrNoProvider
	}
	sources, err := c.provider.List(ctx, intent.Currency())
	if err != nil {
		return Session{}, fmt.Errorf("list funding sources: %w", err)
	}
	return c.Start(ctx, intent, sources)
}

// Dispatch applies e to s. On error s is returned unchanged.
func (c *Controller) Dispatch(ctx context.Context, s Session, e Event) (Session, error) {
	log := c.logger.With("handler", "Dispatch", "session_id", s.ID, "state", s.State)
	if e != nil {
		log = log.With("event", e.Name())
	}

	next, err := c.machine.Apply(s, e)
	if err != nil {
		log.Info("⚠️ [GUARD] Transition rejected", "error", err)
		return s, err
	}
	if next.State == s.State && next.Discarded == s.Discarded && !changed(s, next) {
		log.Debug("🔁 [SKIP] Transition was a no-op")
		return s, nil
	}

	next.UpdatedAt = c.now().UTC()
	if next.Discarded {
		c.tracker.forget(next.ID)
		log.Info("🗑️ [CANCEL] Checkout session discarded")
		c.emit(ctx, newLifecycleEvent(EventTypeCancelled, s.State, next, e.Name(), next.UpdatedAt))
		return next, nil
	}

	log.Info("➡️ [TRANSITION] Checkout session moved", "to", next.State)
	c.emit(ctx, newLifecycleEvent(EventTypeTransitioned, s.State, next, e.Name(), next.UpdatedAt))
	return next, nil
}

// Submit settles a processing session through settle and returns the
// terminal session. Settlement failures are recorded on the session, never
// returned as errors; the only error is a GuardViolation when s is not
// processing.
//
// At most one settle call runs per session attempt: concurrent submits share
// it and later submits get the recorded outcome.
func (c *Controller) Submit(ctx context.Context, s Session, settle SettleFunc) (Session, error) {
	if s.Discarded {
		return s, violation(RuleSessionDiscarded, s, nil)
	}
	if s.State != StateProcessing {
		return s, violation(RuleNotProcessing, s, nil)
	}

	log := c.logger.With("handler", "Submit", "session_id", s.ID, "attempt", s.Attempt)
	next, ran := c.tracker.do(s, func() Session {
		log.Info("💳 [PROCESS] Settling checkout", "total", s.Quote.Total)
		res := c.settle(ctx, s, settle)
		done := resolve(s, res)
		done.UpdatedAt = c.now().UTC()

		if done.State == StateSuccess {
			log.Info("✅ [SUCCESS] Checkout settled", "confirmation_id", res.ConfirmationID)
			c.emit(ctx, newLifecycleEvent(EventTypeSucceeded, s.State, done, EventConfirmPurchase, done.UpdatedAt))
		} else {
			log.Warn("❌ [FAILED] Checkout settlement failed", "reason", res.ErrorKind, "message", res.Message)
			c.emit(ctx, newLifecycleEvent(EventTypeFailed, s.State, done, EventConfirmPurchase, done.UpdatedAt))
		}
		return done
	})
	if !ran {
		log.Info("🔁 [SKIP] Settlement already handled for this attempt", "state", next.State)
	}
	return next, nil
}

// Discard forgets tracked submissions for a session id.
func (c *Controller) Discard(sessionID string) {
	c.tracker.forget(sessionID)
}

func (c *Controller) settle(ctx context.Context, s Session, settle SettleFunc) (res SettlementResult) {
	if settle == nil {
		return Failed(ErrorUnknown, "no settlement function")
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("💥 [PANIC] Settlement panicked", "session_id", s.ID, "panic", r)
			res = Failed(ErrorUnknown, fmt.Sprintf("settlement panicked: %v", r))
		}
	}()

	// processing cannot be cancelled by the caller, only bounded by the timeout
	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	return normalize(settle(ctx, s.clone()))
}

func (c *Controller) emit(ctx context.Context, ev *LifecycleEvent) {
	if err := c.bus.Emit(ctx, ev); err != nil {
		c.logger.Error("failed to emit lifecycle event", "type", ev.Type(), "session_id", ev.SessionID, "error", err)
	}
}

func changed(a, b Session) bool {
	if a.Attempt != b.Attempt || a.Quote.Total != b.Quote.Total {
		return true
	}
	if (a.SelectedFunding == nil) != (b.SelectedFunding == nil) {
		return true
	}
	if a.SelectedFunding != nil && a.SelectedFunding.ID != b.SelectedFunding.ID {
		return true
	}
	return (a.Result == nil) != (b.Result == nil)
}
