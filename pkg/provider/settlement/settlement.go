// Package settlement defines the backend that executes a confirmed checkout.
package settlement

import (
	"context"
	"strconv"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
)

// Settler executes the payment for a processing session.
type Settler interface {
	Settle(ctx context.Context, s checkout.Session) (checkout.SettlementResult, error)
}

// Func adapts a Settler to the controller's callback.
func Func(s Settler) checkout.SettleFunc {
	if s == nil {
		return nil
	}
	return s.Settle
}

// IdempotencyKey identifies one settlement attempt of a session. Backends
// that support idempotent requests send it so a retried call never charges twice.
func IdempotencyKey(s checkout.Session) string {
	return s.ID + ":" + strconv.Itoa(s.Attempt)
}
