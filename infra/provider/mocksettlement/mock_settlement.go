package mocksettlement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/provider/settlement"
	"github.com/google/uuid"
)

// MockSettler simulates a settlement backend for tests and local development.
//
// By default every settlement succeeds after Delay. Failures can be scripted
// per funding source id with FailFor. Outcomes are replayed for the
// retention window. This is NOT for production use.
type MockSettler struct {
	mu        sync.Mutex
	failures  map[string]checkout.ErrorKind
	settled   map[string]settledAttempt
	delay     time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

type settledAttempt struct {
	result  checkout.SettlementResult
	expires time.Time
}

// DefaultRetention is how long settled attempts are replayed.
const DefaultRetention = time.Hour

var _ settlement.Settler = (*MockSettler)(nil)

// New creates a MockSettler that waits delay before answering.
func New(delay time.Duration, logger *slog.Logger) *MockSettler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSettler{
		failures: make(map[string]checkout.ErrorKind),
		settled:   make(map[string]settledAttempt),
		delay:     delay,
		retention: DefaultRetention,
		now:       time.Now,
		logger:    logger.With("settler", "mock"),
	}
}

// Retain sets how long settled attempts are replayed. Non-positive values
// keep the current window.
func (m *MockSettler) Retain(d time.Duration, now func() time.Time) *MockSettler {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.retention = d
	}
	if now != nil {
		m.now = now
	}
	return m
}

// FailFor makes every settlement paid from sourceID fail with kind.
func (m *MockSettler) FailFor(sourceID string, kind checkout.ErrorKind) *MockSettler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[sourceID] = kind
	return m
}

// Settle implements settlement.Settler.
func (m *MockSettler) Settle(ctx context.Context, s checkout.Session) (checkout.SettlementResult, error) {
	key := settlement.IdempotencyKey(s)
	log := m.logger.With("session_id", s.ID, "idempotency_key", key)

	m.mu.Lock()
	if prev, ok := m.settled[key]; ok && m.now().Before(prev.expires) {
		m.mu.Unlock()
		log.Info("🔁 [SKIP] Replaying recorded settlement")
		return prev.result, nil
	}
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return checkout.SettlementResult{}, ctx.Err()
		}
	}

	var res checkout.SettlementResult
	m.mu.Lock()
	if s.SelectedFunding != nil {
		if kind, ok := m.failures[s.SelectedFunding.ID]; ok {
			res = checkout.Failed(kind, "mock settlement declined")
		}
	}
	if res.ErrorKind == "" {
		res = checkout.Succeeded("mock_" + uuid.NewString())
	}
	now := m.now()
	for k, prev := range m.settled {
		if !now.Before(prev.expires) {
			delete(m.settled, k)
		}
	}
	m.settled[key] = settledAttempt{result: res, expires: now.Add(m.retention)}
	m.mu.Unlock()

	log.Info("💳 [MOCK] Settlement simulated", "error_kind", res.ErrorKind, "confirmation_id", res.ConfirmationID)
	return res, nil
}

// Settled returns how many settled attempts are retained.
func (m *MockSettler) Settled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.settled)
}
