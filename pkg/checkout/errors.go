package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrGuardViolation matches every *GuardViolation via errors.Is.
	ErrGuardViolation = errors.New("guard violation")
	// ErrNoEligibleFunding is returned by Start when no source can pay the quote.
	ErrNoEligibleFunding = errors.New("no eligible funding source")
	// ErrSessionNotFound is returned by stores and services for unknown sessions.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrNoProvider is returned by Begin when the controller has no funding provider.
	ErrNoProvider = errors.New("no funding provider configured")
)

// GuardRule names the precondition a rejected transition violated.
type GuardRule string

const (
	RuleZeroTotal            GuardRule = "zero_total"
	RuleBelowMinimumPurchase GuardRule = "below_minimum_purchase"
	RuleUnknownFunding       GuardRule = "unknown_funding"
	RuleFundingIneligible    GuardRule = "funding_ineligible"
	RuleNoFundingSelected    GuardRule = "no_funding_selected"
	RuleIllegalTransition    GuardRule = "illegal_transition"
	RuleSessionDiscarded     GuardRule = "session_discarded"
	RuleNotProcessing        GuardRule = "not_processing"
)

var ruleMessages = map[GuardRule]string{
	RuleZeroTotal:            "enter an amount greater than zero",
	RuleBelowMinimumPurchase: "the amount is below the minimum purchase",
	RuleUnknownFunding:       "that payment method is not available for this checkout",
	RuleFundingIneligible:    "that payment method cannot cover this purchase",
	RuleNoFundingSelected:    "select a payment method first",
	RuleIllegalTransition:    "that action is not available at this step",
	RuleSessionDiscarded:     "this checkout was cancelled, start a new one",
	RuleNotProcessing:        "this checkout is not waiting for payment",
}

// GuardViolation is returned when a transition's precondition does not hold.
// The session passed in is left untouched.
type GuardViolation struct {
	Rule  GuardRule
	State State
	Event EventName
}

func (g *GuardViolation) Error() string {
	if g.Event == "" {
		return fmt.Sprintf("guard violation: %s in state %s", g.Rule, g.State)
	}
	return fmt.Sprintf("guard violation: %s (%s in state %s)", g.Rule, g.Event, g.State)
}

// Is makes errors.Is(err, ErrGuardViolation) true for any GuardViolation.
func (g *GuardViolation) Is(target error) bool {
	return target == ErrGuardViolation
}

// Message is a short user-facing explanation of the rule.
func (g *GuardViolation) Message() string {
	if msg, ok := ruleMessages[g.Rule]; ok {
		return msg
	}
	return string(g.Rule)
}

// RuleOf extracts the guard rule from err, or "" if err is not a GuardViolation.
func RuleOf(err error) GuardRule {
	var gv *GuardViolation
	if errors.As(err, &gv) {
		return gv.Rule
	}
	return ""
}

func violation(rule GuardRule, s Session, e Event) *GuardViolation {
	gv := &GuardViolation{Rule: rule, State: s.State}
	if e != nil {
		gv.Event = e.Name()
	}
	return gv
}
