package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirasaad/checkoutflow/pkg/funding"
	"github.com/amirasaad/checkoutflow/pkg/pricing"
)

// Session is one checkout attempt. It is a value: every transition returns
// a new Session and never mutates the one it was given.
type Session struct {
	ID              string                 `json:"id"`
	OwnerID         string                 `json:"owner_id,omitempty"`
	State           State                  `json:"state"`
	Intent          pricing.PurchaseIntent `json:"intent"`
	Quote           pricing.Quote          `json:"quote"`
	Sources         []funding.Source       `json:"sources"`
	SelectedFunding *funding.Source        `json:"selected_funding,omitempty"`
	Result          *TerminalResult        `json:"result,omitempty"`
	Attempt         int                    `json:"attempt"`
	Discarded       bool                   `json:"discarded"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Store persists sessions between requests.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// EligibleSources returns the session's sources that can pay its quote.
func (s Session) EligibleSources() []funding.Source {
	return funding.Eligible(s.Sources, s.Quote)
}

// Succeeded reports whether the session settled successfully.
func (s Session) Succeeded() bool {
	return s.State == StateSuccess && s.Result != nil && s.Result.Kind == ResultSuccess
}

// FailureReason returns the error kind of a failed session, or "".
func (s Session) FailureReason() ErrorKind {
	if s.State != StateFailure || s.Result == nil {
		return ""
	}
	return s.Result.Reason
}

// Validate checks the session's structural invariants.
func (s Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if !s.State.IsValid() {
		return fmt.Errorf("unknown state %q", s.State)
	}
	if (s.State == StateReview || s.State == StateProcessing) && s.SelectedFunding == nil {
		return fmt.Errorf("state %s requires a selected funding source", s.State)
	}
	if s.State.IsTerminal() && s.Result == nil {
		return fmt.Errorf("state %s requires a terminal result", s.State)
	}
	return nil
}

// clone returns a deep copy so callers holding s never observe later changes.
func (s Session) clone() Session {
	out := s
	if s.Sources != nil {
		out.Sources = make([]funding.Source, len(s.Sources))
		copy(out.Sources, s.Sources)
	}
	if s.SelectedFunding != nil {
		sel := *s.SelectedFunding
		out.SelectedFunding = &sel
	}
	if s.Result != nil {
		res := *s.Result
		out.Result = &res
	}
	if s.Quote.Warnings != nil {
		out.Quote.Warnings = append([]pricing.Warning(nil), s.Quote.Warnings...)
	}
	return out
}

// ToJSON converts a Session to its JSON representation.
func (s Session) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// FromJSON creates a Session from its JSON representation.
func FromJSON(data []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Session{}, fmt.Errorf("invalid session data: %w", err)
	}
	return s, nil
}
