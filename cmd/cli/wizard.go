package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/amirasaad/checkoutflow/pkg/pricing"
)

// Funding prompt answers that are not source ids.
const (
	choiceChangeAmount = "change-amount"
	choiceCancel       = "cancel"
)

type reviewChoice int

const (
	reviewConfirm reviewChoice = iota
	reviewBack
	reviewCancel
)

type outcomeChoice int

const (
	outcomeRetry outcomeChoice = iota
	outcomeCancel
)

// prompter is the terminal the wizard talks to.
type prompter interface {
	// Amount asks how much to spend. An error ends the wizard.
	Amount(tokenPrice money.Money) (string, error)
	// Funding returns a source id, choiceChangeAmount or choiceCancel.
	Funding(s checkout.Session, purchase pricing.TokenPurchase) (string, error)
	Review(s checkout.Session, purchase pricing.TokenPurchase) (reviewChoice, error)
	// Processing runs settle while showing progress.
	Processing(settle func()) error
	Outcome(s checkout.Session) (outcomeChoice, error)
	Receipt(s checkout.Session, purchase pricing.TokenPurchase)
	Notice(msg string)
}

// wizard walks one token purchase through the checkout controller.
type wizard struct {
	controller *checkout.Controller
	settle     checkout.SettleFunc
	tokenPrice money.Money
	ui         prompter
}

// Run loops until a purchase succeeds, the user cancels, or a prompt fails.
func (w *wizard) Run(ctx context.Context) (checkout.Session, error) {
	for {
		sess, purchase, err := w.begin(ctx)
		if err != nil {
			return checkout.Session{}, err
		}
		final, restart, err := w.drive(ctx, sess, purchase)
		if err != nil || !restart {
			return final, err
		}
	}
}

// begin prompts for an amount until it produces a session in selection.
func (w *wizard) begin(ctx context.Context) (checkout.Session, pricing.TokenPurchase, error) {
	for {
		raw, err := w.ui.Amount(w.tokenPrice)
		if err != nil {
			return checkout.Session{}, pricing.TokenPurchase{}, err
		}
		amount, err := money.Parse(raw, w.tokenPrice.Code())
		if err != nil {
			w.ui.Notice(fmt.Sprintf("%q is not a valid %s amount", raw, w.tokenPrice.Code()))
			continue
		}
		purchase, err := pricing.ComputeTokenPurchase(amount, w.tokenPrice)
		if err != nil {
			w.ui.Notice(fmt.Sprintf("%s does not buy a single token at %s", amount.Display(), w.tokenPrice.Display()))
			continue
		}

		intent := purchase.Intent()
		sess, err := w.controller.Begin(ctx, intent)
		if errors.Is(err, checkout.ErrNoEligibleFunding) {
			w.ui.Notice("No payment method can cover " + purchase.TotalCost.Display())
			continue
		}
		if err != nil {
			return checkout.Session{}, pricing.TokenPurchase{}, err
		}

		next, ok, err := w.apply(ctx, sess, checkout.SubmitAmount{Intent: intent})
		if err != nil {
			return checkout.Session{}, pricing.TokenPurchase{}, err
		}
		if !ok {
			continue
		}
		return next, purchase, nil
	}
}

// drive runs a session from selection to a terminal outcome. restart is
// true when the user asked to enter a different amount.
func (w *wizard) drive(
	ctx context.Context,
	sess checkout.Session,
	purchase pricing.TokenPurchase,
) (final checkout.Session, restart bool, err error) {
	for {
		if sess.Discarded {
			w.ui.Notice("Checkout cancelled.")
			return sess, false, nil
		}

		switch sess.State {
		case checkout.StateSelection:
			var choice string
			if choice, err = w.ui.Funding(sess, purchase); err != nil {
				return sess, false, err
			}
			switch choice {
			case choiceCancel:
				sess, _, err = w.apply(ctx, sess, checkout.Cancel{})
			case choiceChangeAmount:
				sess, _, err = w.apply(ctx, sess, checkout.Cancel{})
				return sess, err == nil, err
			default:
				var ok bool
				sess, ok, err = w.apply(ctx, sess, checkout.SelectFunding{SourceID: choice})
				if err == nil && ok {
					sess, _, err = w.apply(ctx, sess, checkout.ConfirmSelection{})
				}
			}

		case checkout.StateReview:
			var choice reviewChoice
			if choice, err = w.ui.Review(sess, purchase); err != nil {
				return sess, false, err
			}
			var e checkout.Event = checkout.ConfirmPurchase{}
			switch choice {
			case reviewBack:
				e = checkout.Back{}
			case reviewCancel:
				e = checkout.Cancel{}
			}
			sess, _, err = w.apply(ctx, sess, e)

		case checkout.StateProcessing:
			var settled checkout.Session
			var settleErr error
			err = w.ui.Processing(func() {
				settled, settleErr = w.controller.Submit(ctx, sess, w.settle)
			})
			if err == nil {
				err = settleErr
			}
			if err == nil {
				sess = settled
			}

		case checkout.StateSuccess:
			w.ui.Receipt(sess, purchase)
			return sess, false, nil

		case checkout.StateFailure:
			var choice outcomeChoice
			if choice, err = w.ui.Outcome(sess); err != nil {
				return sess, false, err
			}
			if choice == outcomeCancel {
				sess, _, err = w.apply(ctx, sess, checkout.Cancel{})
			} else {
				sess, _, err = w.apply(ctx, sess, checkout.Retry{})
			}

		default:
			return sess, false, fmt.Errorf("checkout stalled in state %s", sess.State)
		}

		if err != nil {
			return sess, false, err
		}
	}
}

// apply dispatches e. A guard violation is shown to the user and leaves
// the session unchanged with ok false.
func (w *wizard) apply(ctx context.Context, s checkout.Session, e checkout.Event) (checkout.Session, bool, error) {
	next, err := w.controller.Dispatch(ctx, s, e)
	if err == nil {
		return next, true, nil
	}
	var gv *checkout.GuardViolation
	if errors.As(err, &gv) {
		w.ui.Notice(gv.Message())
		return s, false, nil
	}
	return s, false, err
}
