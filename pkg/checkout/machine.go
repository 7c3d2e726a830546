package checkout

import (
	"fmt"

	"github.com/amirasaad/checkoutflow/pkg/funding"
	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/amirasaad/checkoutflow/pkg/pricing"
)

// Machine applies events to sessions. It holds only configuration and is
// safe for concurrent use.
type Machine struct {
	minimums map[money.Code]money.Money
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithMinimumPurchase sets the smallest accepted total for min's currency.
// Currencies without a minimum only require a positive total.
func WithMinimumPurchase(min money.Money) MachineOption {
	return func(m *Machine) {
		m.minimums[min.Code()] = min
	}
}

// NewMachine creates a Machine.
func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{minimums: make(map[money.Code]money.Money)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MinimumPurchase returns the configured minimum for code.
func (m *Machine) MinimumPurchase(code money.Code) (money.Money, bool) {
	min, ok := m.minimums[code]
	return min, ok
}

// Apply returns the session that results from e. On error the returned
// session is s itself, unchanged.
//
//	amount     --SubmitAmount-->     selection
//	selection  --SelectFunding-->    selection
//	selection  --ConfirmSelection--> review
//	review     --ConfirmPurchase-->  processing
//	review     --Back-->             selection
//	processing --ConfirmPurchase-->  processing (no-op)
//	failure    --Retry-->            selection
//	any non-processing, non-success state --Cancel--> discarded
//
// Settlement outcomes are not events; Controller.Submit resolves processing.
func (m *Machine) Apply(s Session, e Event) (Session, error) {
	if e == nil {
		return s, violation(RuleIllegalTransition, s, nil)
	}
	if s.Discarded {
		return s, violation(RuleSessionDiscarded, s, e)
	}

	switch s.State {
	case StateAmount:
		switch ev := e.(type) {
		case SubmitAmount:
			return m.submitAmount(s, ev)
		case Cancel:
			return discard(s), nil
		}

	case StateSelection:
		switch ev := e.(type) {
		case SelectFunding:
			return selectFunding(s, ev)
		case ConfirmSelection:
			return confirmSelection(s, ev)
		case Cancel:
			return discard(s), nil
		}

	case StateReview:
		switch e.(type) {
		case ConfirmPurchase:
			next := s.clone()
			next.State = StateProcessing
			next.Attempt++
			next.Result = nil
			return next, nil
		case Back:
			next := s.clone()
			next.State = StateSelection
			return next, nil
		case Cancel:
			return discard(s), nil
		}

	case StateProcessing:
		if _, ok := e.(ConfirmPurchase); ok {
			// already submitted; the in-flight attempt stands
			return s, nil
		}

	case StateFailure:
		switch e.(type) {
		case Retry:
			next := s.clone()
			next.State = StateSelection
			next.SelectedFunding = nil
			next.Result = nil
			return next, nil
		case Cancel:
			return discard(s), nil
		}
	}

	return s, violation(RuleIllegalTransition, s, e)
}

func (m *Machine) submitAmount(s Session, ev SubmitAmount) (Session, error) {
	q, err := pricing.ComputeQuote(ev.Intent)
	if err != nil {
		return s, err
	}
	if !q.Total.IsPositive() {
		return s, violation(RuleZeroTotal, s, ev)
	}
	if min, ok := m.minimums[q.Currency]; ok {
		cmp, err := q.Total.Compare(min)
		if err != nil {
			return s, fmt.Errorf("minimum purchase: %w", err)
		}
		if cmp < 0 {
			return s, violation(RuleBelowMinimumPurchase, s, ev)
		}
	}

	next := s.clone()
	next.Intent = ev.Intent
	next.Quote = q
	next.State = StateSelection
	if next.SelectedFunding != nil && !next.SelectedFunding.IsEligible(q) {
		next.SelectedFunding = nil
	}
	return next, nil
}

func selectFunding(s Session, ev SelectFunding) (Session, error) {
	src, ok := funding.Find(s.Sources, ev.SourceID)
	if !ok {
		return s, violation(RuleUnknownFunding, s, ev)
	}
	if !src.IsEligible(s.Quote) {
		return s, violation(RuleFundingIneligible, s, ev)
	}
	next := s.clone()
	next.SelectedFunding = &src
	return next, nil
}

func confirmSelection(s Session, ev ConfirmSelection) (Session, error) {
	if s.SelectedFunding == nil {
		return s, violation(RuleNoFundingSelected, s, ev)
	}
	if !s.SelectedFunding.IsEligible(s.Quote) {
		return s, violation(RuleFundingIneligible, s, ev)
	}
	next := s.clone()
	next.State = StateReview
	return next, nil
}

// resolve moves a processing session to its terminal state.
func resolve(s Session, res SettlementResult) Session {
	next := s.clone()
	if res.ErrorKind != "" {
		next.State = StateFailure
		next.Result = &TerminalResult{
			Kind:    ResultError,
			Reason:  res.ErrorKind,
			Message: res.Message,
		}
		return next
	}
	next.State = StateSuccess
	next.Result = &TerminalResult{
		Kind:           ResultSuccess,
		ConfirmationID: res.ConfirmationID,
		Message:        res.Message,
	}
	return next
}

func discard(s Session) Session {
	next := s.clone()
	next.State = StateAmount
	next.SelectedFunding = nil
	next.Result = nil
	next.Discarded = true
	return next
}
