package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/eventbus"
	"github.com/amirasaad/checkoutflow/pkg/money"
)

// Debiter records a charge against a stored funding source balance.
type Debiter interface {
	Debit(ctx context.Context, ownerID, sourceID string, amount money.Money) error
}

// HandleSucceeded debits the selected funding source by the settled total.
// Redelivered events are filtered by tracker, keyed per session attempt.
func HandleSucceeded(
	debiter Debiter,
	tracker *IdempotencyTracker,
	logger *slog.Logger,
) eventbus.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	debit := func(ctx context.Context, e eventbus.Event) error {
		ev, ok := asLifecycle(e)
		if !ok || ev.EventType != checkout.EventTypeSucceeded {
			return nil
		}
		log := logger.With(
			"handler", "lifecycle.HandleSucceeded",
			"session_id", ev.SessionID,
			"funding_id", ev.FundingID,
		)
		if ev.OwnerID == "" || ev.FundingID == "" {
			log.Warn("Skipping debit for session without owner or funding")
			return nil
		}
		if ev.Total.IsZero() {
			return nil
		}
		log.Info("🛒 [START] Debiting funding source", "amount", ev.Total)
		if err := debiter.Debit(ctx, ev.OwnerID, ev.FundingID, ev.Total); err != nil {
			log.Error("❌ [ERROR] Debit failed", "error", err)
			return fmt.Errorf("debit %s for session %s: %w", ev.FundingID, ev.SessionID, err)
		}
		log.Info("✅ [SUCCESS] Funding source debited")
		return nil
	}
	return WithIdempotency(debit, tracker, AttemptKey, "lifecycle.HandleSucceeded", logger)
}
