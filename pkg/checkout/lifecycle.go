package checkout

import (
	"time"

	"github.com/amirasaad/checkoutflow/pkg/eventbus"
	"github.com/amirasaad/checkoutflow/pkg/money"
)

// Lifecycle event types published by the Controller.
const (
	EventTypeStarted      = "checkout.started"
	EventTypeTransitioned = "checkout.transitioned"
	EventTypeSucceeded    = "checkout.succeeded"
	EventTypeFailed       = "checkout.failed"
	EventTypeCancelled    = "checkout.cancelled"
)

// LifecycleEvent reports a session change to the event bus.
type LifecycleEvent struct {
	EventType      string      `json:"type"`
	SessionID      string      `json:"session_id"`
	OwnerID        string      `json:"owner_id,omitempty"`
	From           State       `json:"from,omitempty"`
	To             State       `json:"to"`
	Trigger        EventName   `json:"trigger,omitempty"`
	Total          money.Money `json:"total"`
	FundingID      string      `json:"funding_id,omitempty"`
	Attempt        int         `json:"attempt"`
	ConfirmationID string      `json:"confirmation_id,omitempty"`
	Reason         ErrorKind   `json:"reason,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

// Type implements eventbus.Event.
func (e *LifecycleEvent) Type() string { return e.EventType }

// LifecycleEventTypes returns decoders for every lifecycle event type.
func LifecycleEventTypes() eventbus.TypeRegistry {
	ctor := func() eventbus.Event { return &LifecycleEvent{} }
	return eventbus.TypeRegistry{
		EventTypeStarted:      ctor,
		EventTypeTransitioned: ctor,
		EventTypeSucceeded:    ctor,
		EventTypeFailed:       ctor,
		EventTypeCancelled:    ctor,
	}
}

func newLifecycleEvent(eventType string, from State, s Session, trigger EventName, at time.Time) *LifecycleEvent {
	ev := &LifecycleEvent{
		EventType:  eventType,
		SessionID:  s.ID,
		OwnerID:    s.OwnerID,
		From:       from,
		To:         s.State,
		Trigger:    trigger,
		Total:      s.Quote.Total,
		Attempt:    s.Attempt,
		OccurredAt: at,
	}
	if s.SelectedFunding != nil {
		ev.FundingID = s.SelectedFunding.ID
	}
	if s.Result != nil {
		ev.ConfirmationID = s.Result.ConfirmationID
		ev.Reason = s.Result.Reason
	}
	return ev
}
