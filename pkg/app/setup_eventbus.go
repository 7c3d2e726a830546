package app

import (
	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/handler/lifecycle"
)

// setupEventBus registers the lifecycle handlers with the event bus.
func (a *App) setupEventBus() {
	bus := a.Deps.EventBus
	logger := a.Deps.Logger

	audit := lifecycle.HandleAudit(logger)
	for eventType := range checkout.LifecycleEventTypes() {
		bus.Register(eventType, audit)
	}

	if a.Deps.Debiter != nil {
		bus.Register(
			checkout.EventTypeSucceeded,
			lifecycle.HandleSucceeded(a.Deps.Debiter, lifecycle.NewIdempotencyTracker(), logger),
		)
	}
}
