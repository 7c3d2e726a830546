// Package checkout exposes the checkout flow to transports: it loads and
// saves sessions around every controller call and scopes them to an owner.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/funding"
	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/amirasaad/checkoutflow/pkg/pricing"
	"github.com/amirasaad/checkoutflow/pkg/provider/settlement"
)

// Sources resolves the funding provider for an owner.
type Sources interface {
	ForOwner(ownerID string) funding.Provider
}

// Shared serves the same provider to every owner.
type Shared struct {
	funding.Provider
}

// ForOwner implements Sources.
func (s Shared) ForOwner(string) funding.Provider { return s.Provider }

// Service provides high-level operations for managing checkout sessions
type Service struct {
	controller *checkout.Controller
	store      checkout.Store
	sources    Sources
	settler    settlement.Settler
	ttl        time.Duration
	logger     *slog.Logger
}

// New creates a new checkout service.
func New(
	controller *checkout.Controller,
	store checkout.Store,
	sources Sources,
	settler settlement.Settler,
	ttl time.Duration,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		controller: controller,
		store:      store,
		sources:    sources,
		settler:    settler,
		ttl:        ttl,
		logger:     logger,
	}
}

// Quote prices an intent without starting a session.
func (s *Service) Quote(intent pricing.PurchaseIntent) (pricing.Quote, error) {
	return pricing.ComputeQuote(intent)
}

// TokenQuote splits amount into whole tokens of price.
func (s *Service) TokenQuote(amount, price money.Money) (pricing.TokenPurchase, error) {
	return pricing.ComputeTokenPurchase(amount, price)
}

// FundingSources lists the owner's sources in code.
func (s *Service) FundingSources(ctx context.Context, ownerID string, code money.Code) ([]funding.Source, error) {
	if s.sources == nil {
		return nil, checkout.ErrNoProvider
	}
	return s.sources.ForOwner(ownerID).List(ctx, code)
}

// Begin starts a session for ownerID with the owner's funding sources.
func (s *Service) Begin(ctx context.Context, ownerID string, intent pricing.PurchaseIntent) (checkout.Session, error) {
	log := s.logger.With("handler", "Begin", "owner_id", ownerID)

	sources, err := s.FundingSources(ctx, ownerID, intent.Currency())
	if err != nil {
		log.Error("❌ [ERROR] Failed to list funding sources", "error", err)
		return checkout.Session{}, fmt.Errorf("list funding sources: %w", err)
	}

	sess, err := s.controller.Start(ctx, intent, sources)
	if err != nil {
		return checkout.Session{}, err
	}
	sess.OwnerID = ownerID

	if err := s.save(ctx, sess); err != nil {
		return checkout.Session{}, err
	}
	log.Info("✅ [SUCCESS] Checkout session stored", "session_id", sess.ID)
	return sess, nil
}

// Get returns a session owned by ownerID. Sessions of other owners are
// reported as checkout.ErrSessionNotFound.
func (s *Service) Get(ctx context.Context, ownerID, id string) (checkout.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return checkout.Session{}, err
	}
	if sess.OwnerID != ownerID {
		s.logger.Warn("🚫 [DENY] Session requested by another owner", "session_id", id, "owner_id", ownerID)
		return checkout.Session{}, checkout.ErrSessionNotFound
	}
	return sess, nil
}

// Dispatch applies e to the stored session. Discarded sessions are deleted
// from the store and returned one last time.
func (s *Service) Dispatch(ctx context.Context, ownerID, id string, e checkout.Event) (checkout.Session, error) {
	sess, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return checkout.Session{}, err
	}

	next, err := s.controller.Dispatch(ctx, sess, e)
	if err != nil {
		return sess, err
	}

	if next.Discarded {
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Error("❌ [ERROR] Failed to delete discarded session", "session_id", id, "error", err)
			return checkout.Session{}, fmt.Errorf("delete session: %w", err)
		}
		return next, nil
	}
	if err := s.save(ctx, next); err != nil {
		return checkout.Session{}, err
	}
	return next, nil
}

// Submit confirms a session in review and settles it. A session already
// processing is settled as is; the terminal session is stored and returned.
func (s *Service) Submit(ctx context.Context, ownerID, id string) (checkout.Session, error) {
	sess, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return checkout.Session{}, err
	}
	if sess.State.IsTerminal() {
		return sess, nil
	}

	if sess.State == checkout.StateReview {
		sess, err = s.controller.Dispatch(ctx, sess, checkout.ConfirmPurchase{})
		if err != nil {
			return sess, err
		}
		// persist processing first so a crash mid-settlement is visible
		if err := s.save(ctx, sess); err != nil {
			return checkout.Session{}, err
		}
	}

	done, err := s.controller.Submit(ctx, sess, settlement.Func(s.settler))
	if err != nil {
		return sess, err
	}
	if err := s.save(ctx, done); err != nil {
		return checkout.Session{}, err
	}
	return done, nil
}

func (s *Service) save(ctx context.Context, sess checkout.Session) error {
	if err := s.store.Save(ctx, sess, s.ttl); err != nil {
		s.logger.Error("❌ [ERROR] Failed to save session", "session_id", sess.ID, "error", err)
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the session does not exist for the caller.
func IsNotFound(err error) bool {
	return errors.Is(err, checkout.ErrSessionNotFound)
}
