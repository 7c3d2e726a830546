package checkout

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultSubmissionTTL is how long a settled attempt is remembered when no
// WithSubmissionTTL option is given.
const DefaultSubmissionTTL = 30 * time.Minute

type resolvedAttempt struct {
	session Session
	expires time.Time
}

// submissionTracker guarantees at most one settlement per session attempt.
// Concurrent submitters share the in-flight call; later submitters get the
// recorded outcome until it expires.
type submissionTracker struct {
	mu        sync.Mutex
	resolved  map[string]map[int]resolvedAttempt // session id -> attempt
	inflight  singleflight.Group
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func newSubmissionTracker(ttl time.Duration, now func() time.Time) *submissionTracker {
	if now == nil {
		now = time.Now
	}
	return &submissionTracker{
		resolved: make(map[string]map[int]resolvedAttempt),
		ttl:      ttl,
		now:      now,
	}
}

func submissionKey(s Session) string {
	return fmt.Sprintf("%s:%d", s.ID, s.Attempt)
}

func (t *submissionTracker) load(s Session) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.resolved[s.ID][s.Attempt]
	if !ok {
		return Session{}, false
	}
	if t.ttl > 0 && !t.now().Before(r.expires) {
		t.dropLocked(s.ID, s.Attempt)
		return Session{}, false
	}
	return r.session, true
}

func (t *submissionTracker) store(done Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.sweepLocked(now)
	attempts, ok := t.resolved[done.ID]
	if !ok {
		attempts = make(map[int]resolvedAttempt)
		t.resolved[done.ID] = attempts
	}
	attempts[done.Attempt] = resolvedAttempt{session: done, expires: now.Add(t.ttl)}
}

// do runs fn once per session attempt. The bool reports whether this caller ran fn.
func (t *submissionTracker) do(s Session, fn func() Session) (Session, bool) {
	if done, ok := t.load(s); ok {
		return done.clone(), false
	}

	ran := false
	v, _, _ := t.inflight.Do(submissionKey(s), func() (any, error) {
		// another caller may have finished while we waited
		if done, ok := t.load(s); ok {
			return done, nil
		}
		ran = true
		done := fn()
		t.store(done)
		return done, nil
	})
	return v.(Session).clone(), ran
}

// forget drops every recorded attempt of a session.
func (t *submissionTracker) forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.resolved, sessionID)
}

// size reports how many attempts are recorded, expired ones included.
func (t *submissionTracker) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, attempts := range t.resolved {
		n += len(attempts)
	}
	return n
}

func (t *submissionTracker) dropLocked(id string, attempt int) {
	attempts := t.resolved[id]
	delete(attempts, attempt)
	if len(attempts) == 0 {
		delete(t.resolved, id)
	}
}

// sweepLocked removes expired attempts, at most once per half TTL.
func (t *submissionTracker) sweepLocked(now time.Time) {
	if t.ttl <= 0 || now.Sub(t.lastSweep) < t.ttl/2 {
		return
	}
	t.lastSweep = now
	for id, attempts := range t.resolved {
		for attempt, r := range attempts {
			if !now.Before(r.expires) {
				delete(attempts, attempt)
			}
		}
		if len(attempts) == 0 {
			delete(t.resolved, id)
		}
	}
}
