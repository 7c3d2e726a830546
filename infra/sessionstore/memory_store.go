package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
)

// MemoryStore implements checkout.Store in process memory.
type MemoryStore struct {
	sessions map[string]*cacheEntry
	mu       sync.RWMutex
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

var _ checkout.Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		sessions: make(map[string]*cacheEntry),
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	// Start cleanup goroutine
	go store.cleanup(5 * time.Minute)

	return store
}

// Get returns the session or checkout.ErrSessionNotFound once it expired
func (c *MemoryStore) Get(ctx context.Context, id string) (checkout.Session, error) {
	if err := ctx.Err(); err != nil {
		return checkout.Session{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.sessions[id]
	if !exists || entry.expired(c.now()) {
		return checkout.Session{}, checkout.ErrSessionNotFound
	}
	return entry.session, nil
}

// Save stores a session. A zero ttl keeps it until deleted.
func (c *MemoryStore) Save(ctx context.Context, s checkout.Session, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &cacheEntry{session: s}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.sessions[s.ID] = entry
	return nil
}

// Delete removes a session from the store
func (c *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sessions, id)
	return nil
}

// Len reports how many sessions are held, expired ones included.
func (c *MemoryStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// Close stops the cleanup goroutine.
func (c *MemoryStore) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

// cleanup removes expired entries from the store
func (c *MemoryStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *MemoryStore) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, entry := range c.sessions {
		if entry.expired(now) {
			delete(c.sessions, key)
		}
	}
}

type cacheEntry struct {
	session   checkout.Session
	expiresAt time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
