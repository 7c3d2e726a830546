package checkout

import (
	"fmt"

	"github.com/amirasaad/checkoutflow/pkg/pricing"
)

// EventName identifies a user event.
type EventName string

const (
	EventSubmitAmount     EventName = "submit_amount"
	EventSelectFunding    EventName = "select_funding"
	EventConfirmSelection EventName = "confirm_selection"
	EventConfirmPurchase  EventName = "confirm_purchase"
	EventBack             EventName = "back"
	EventRetry            EventName = "retry"
	EventCancel           EventName = "cancel"
)

// Event is a user action applied to a Session.
// Implemented only by the types in this file.
type Event interface {
	Name() EventName
	isEvent()
}

// SubmitAmount prices a new intent and moves to funding selection.
type SubmitAmount struct {
	Intent pricing.PurchaseIntent
}

// SelectFunding picks one of the session's funding sources.
type SelectFunding struct {
	SourceID string
}

// ConfirmSelection moves to review once a source is selected.
type ConfirmSelection struct{}

// ConfirmPurchase starts processing.
type ConfirmPurchase struct{}

// Back returns from review to selection.
type Back struct{}

// Retry returns from failure to selection.
type Retry struct{}

// Cancel discards the session.
type Cancel struct{}

func (SubmitAmount) Name() EventName     { return EventSubmitAmount }
func (SelectFunding) Name() EventName    { return EventSelectFunding }
func (ConfirmSelection) Name() EventName { return EventConfirmSelection }
func (ConfirmPurchase) Name() EventName  { return EventConfirmPurchase }
func (Back) Name() EventName             { return EventBack }
func (Retry) Name() EventName            { return EventRetry }
func (Cancel) Name() EventName           { return EventCancel }

func (SubmitAmount) isEvent()     {}
func (SelectFunding) isEvent()    {}
func (ConfirmSelection) isEvent() {}
func (ConfirmPurchase) isEvent()  {}
func (Back) isEvent()             {}
func (Retry) isEvent()            {}
func (Cancel) isEvent()           {}

// AllEvents returns one value of every event kind, useful for exhaustive checks.
func AllEvents() []Event {
	return []Event{
		SubmitAmount{},
		SelectFunding{},
		ConfirmSelection{},
		ConfirmPurchase{},
		Back{},
		Retry{},
		Cancel{},
	}
}

// NewEvent builds a payload-free event from its name. SubmitAmount and
// SelectFunding carry data and must be constructed directly.
func NewEvent(name EventName) (Event, error) {
	switch name {
	case EventConfirmSelection:
		return ConfirmSelection{}, nil
	case EventConfirmPurchase:
		return ConfirmPurchase{}, nil
	case EventBack:
		return Back{}, nil
	case EventRetry:
		return Retry{}, nil
	case EventCancel:
		return Cancel{}, nil
	case EventSubmitAmount, EventSelectFunding:
		return nil, fmt.Errorf("event %q requires a payload", name)
	default:
		return nil, fmt.Errorf("unknown event %q", name)
	}
}
