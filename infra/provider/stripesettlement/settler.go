// Package stripesettlement settles checkout sessions through Stripe PaymentIntents.
package stripesettlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/config"
	"github.com/amirasaad/checkoutflow/pkg/provider/settlement"
	"github.com/stripe/stripe-go/v82"
)

// PaymentIntents is the slice of the Stripe client the settler needs.
type PaymentIntents interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
}

// Settler implements settlement.Settler using Stripe.
type Settler struct {
	intents     PaymentIntents
	description string
	logger      *slog.Logger
}

var _ settlement.Settler = (*Settler)(nil)

// New creates a Settler from the Stripe configuration.
func New(cfg *config.Stripe, logger *slog.Logger) *Settler {
	client := stripe.NewClient(cfg.ApiKey)
	return NewWithClient(client.V1PaymentIntents, cfg.Description, logger)
}

// NewWithClient creates a Settler over an explicit PaymentIntents client.
func NewWithClient(intents PaymentIntents, description string, logger *slog.Logger) *Settler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Settler{
		intents:     intents,
		description: description,
		logger:      logger,
	}
}

// Settle confirms a PaymentIntent for the session total against the
// selected funding source.
func (s *Settler) Settle(ctx context.Context, sess checkout.Session) (checkout.SettlementResult, error) {
	key := settlement.IdempotencyKey(sess)
	log := s.logger.With(
		"handler", "stripe.Settle",
		"session_id", sess.ID,
		"attempt", sess.Attempt,
	)
	log.Info("🛒 [START] Settling checkout")

	if sess.SelectedFunding == nil {
		return checkout.SettlementResult{}, fmt.Errorf("session %s has no funding source", sess.ID)
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(sess.Quote.Total.MinorUnits()),
		Currency:      stripe.String(strings.ToLower(string(sess.Quote.Total.Code()))),
		PaymentMethod: stripe.String(sess.SelectedFunding.ID),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(s.description),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.SetIdempotencyKey(key)
	params.AddMetadata("session_id", sess.ID)
	params.AddMetadata("owner_id", sess.OwnerID)
	params.AddMetadata("attempt", strconv.Itoa(sess.Attempt))
	params.AddMetadata("funding_kind", string(sess.SelectedFunding.Kind()))

	pi, err := s.intents.Create(ctx, params)
	if err != nil {
		res, mapped := mapError(err)
		if !mapped {
			log.Error("❌ [ERROR] Stripe request failed", "error", err)
			return checkout.SettlementResult{}, err
		}
		log.Warn("⚠️ [DECLINED] Stripe rejected the payment", "error_kind", res.ErrorKind, "error", err)
		return res, nil
	}

	res := fromStatus(pi)
	if res.ErrorKind != "" {
		log.Warn("⚠️ [DECLINED] PaymentIntent not settled", "status", pi.Status, "payment_intent", pi.ID)
		return res, nil
	}
	log.Info("✅ [SUCCESS] PaymentIntent succeeded", "payment_intent", pi.ID)
	return res, nil
}

func fromStatus(pi *stripe.PaymentIntent) checkout.SettlementResult {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return checkout.Succeeded(pi.ID)
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		msg := "payment method was declined"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			msg = pi.LastPaymentError.Msg
		}
		return checkout.Failed(checkout.ErrorFundingRejected, msg)
	default:
		return checkout.Failed(checkout.ErrorUnknown, "unexpected payment status "+string(pi.Status))
	}
}

// mapError turns a Stripe API error into a settlement outcome. Errors that
// are not Stripe API errors are left for the controller to classify.
func mapError(err error) (checkout.SettlementResult, bool) {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return checkout.SettlementResult{}, false
	}
	if serr.Type == stripe.ErrorTypeCard {
		if serr.DeclineCode == stripe.DeclineCodeInsufficientFunds {
			return checkout.Failed(checkout.ErrorInsufficientFunds, serr.Msg), true
		}
		return checkout.Failed(checkout.ErrorFundingRejected, serr.Msg), true
	}
	return checkout.Failed(checkout.ErrorUnknown, serr.Msg), true
}
