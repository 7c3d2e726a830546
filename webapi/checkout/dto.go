package checkout

import (
	"time"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	pricingweb "github.com/amirasaad/checkoutflow/webapi/pricing"
)

// EventRequest is a user event posted to a session.
type EventRequest struct {
	Type     string                    `json:"type" validate:"required,oneof=submit_amount select_funding confirm_selection confirm_purchase back retry cancel"`
	SourceID string                    `json:"source_id" validate:"required_if=Type select_funding"`
	Intent   *pricingweb.IntentRequest `json:"intent" validate:"required_if=Type submit_amount"`
}

// FundingSourceDTO renders a funding source. Eligible is set when the
// source is listed inside a session.
type FundingSourceDTO struct {
	ID       string              `json:"id"`
	Label    string              `json:"label"`
	Kind     string              `json:"kind"`
	Balance  pricingweb.MoneyDTO `json:"balance"`
	Eligible *bool               `json:"eligible,omitempty"`
}

// ResultDTO renders the terminal result of a session.
type ResultDTO struct {
	Kind                  string `json:"kind"`
	ConfirmationID        string `json:"confirmation_id,omitempty"`
	Reason                string `json:"reason,omitempty"`
	Message               string `json:"message,omitempty"`
	SafeToRetry           bool   `json:"safe_to_retry"`
	RequiresFundingChange bool   `json:"requires_funding_change"`
}

// SessionDTO represents a checkout session for API responses.
type SessionDTO struct {
	ID                string              `json:"id"`
	State             string              `json:"state"`
	Attempt           int                 `json:"attempt"`
	Quote             pricingweb.QuoteDTO `json:"quote"`
	Sources           []FundingSourceDTO  `json:"sources"`
	SelectedFundingID string              `json:"selected_funding_id,omitempty"`
	Result            *ResultDTO          `json:"result,omitempty"`
	Discarded         bool                `json:"discarded"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func toSourceDTO(id, label, kind string, balance pricingweb.MoneyDTO, eligible *bool) FundingSourceDTO {
	return FundingSourceDTO{ID: id, Label: label, Kind: kind, Balance: balance, Eligible: eligible}
}

// ToSessionDTO renders s.
func ToSessionDTO(s checkout.Session) SessionDTO {
	sources := make([]FundingSourceDTO, 0, len(s.Sources))
	for _, src := range s.Sources {
		eligible := src.IsEligible(s.Quote)
		sources = append(sources, toSourceDTO(
			src.ID, src.Label, string(src.Kind()), pricingweb.ToMoneyDTO(src.Balance), &eligible,
		))
	}

	dto := SessionDTO{
		ID:        s.ID,
		State:     s.State.String(),
		Attempt:   s.Attempt,
		Quote:     pricingweb.ToQuoteDTO(s.Quote),
		Sources:   sources,
		Discarded: s.Discarded,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.SelectedFunding != nil {
		dto.SelectedFundingID = s.SelectedFunding.ID
	}
	if s.Result != nil {
		dto.Result = &ResultDTO{
			Kind:                  string(s.Result.Kind),
			ConfirmationID:        s.Result.ConfirmationID,
			Reason:                string(s.Result.Reason),
			Message:               s.Result.Message,
			SafeToRetry:           s.Result.Reason.SafeToRetry(),
			RequiresFundingChange: s.Result.Reason.RequiresFundingChange(),
		}
	}
	return dto
}

// toEvent converts the request into a checkout event.
func (r EventRequest) toEvent() (checkout.Event, error) {
	switch checkout.EventName(r.Type) {
	case checkout.EventSubmitAmount:
		intent, err := r.Intent.ToIntent()
		if err != nil {
			return nil, err
		}
		return checkout.SubmitAmount{Intent: intent}, nil
	case checkout.EventSelectFunding:
		return checkout.SelectFunding{SourceID: r.SourceID}, nil
	default:
		return checkout.NewEvent(checkout.EventName(r.Type))
	}
}
