// Package lifecycle holds the bus handlers that react to checkout lifecycle events.
package lifecycle

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/eventbus"
)

func asLifecycle(e eventbus.Event) (*checkout.LifecycleEvent, bool) {
	ev, ok := e.(*checkout.LifecycleEvent)
	return ev, ok && ev != nil
}

func settlementKey(ev *checkout.LifecycleEvent) string {
	return ev.SessionID + ":" + strconv.Itoa(ev.Attempt)
}

// HandleAudit logs every lifecycle event it receives.
func HandleAudit(logger *slog.Logger) eventbus.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, e eventbus.Event) error {
		ev, ok := asLifecycle(e)
		if !ok {
			logger.Warn("Skipping unexpected event type", "event_type", e.Type())
			return nil
		}
		log := logger.With(
			"handler", "lifecycle.HandleAudit",
			"event_type", ev.EventType,
			"session_id", ev.SessionID,
			"attempt", ev.Attempt,
		)
		switch ev.EventType {
		case checkout.EventTypeSucceeded:
			log.Info("✅ [SUCCESS] Checkout settled", "confirmation_id", ev.ConfirmationID, "total", ev.Total)
		case checkout.EventTypeFailed:
			log.Warn("⚠️ [DECLINED] Checkout failed", "reason", ev.Reason)
		case checkout.EventTypeCancelled:
			log.Info("🗑️ [CANCEL] Checkout cancelled", "from", ev.From)
		default:
			log.Info("📨 [EVENT] Checkout transitioned", "from", ev.From, "to", ev.To, "trigger", ev.Trigger)
		}
		return nil
	}
}
