package checkout

import (
	"context"
	"errors"
	"net"
)

// ErrorKind classifies a failed settlement.
type ErrorKind string

const (
	ErrorInsufficientFunds ErrorKind = "insufficient_funds"
	ErrorFundingRejected   ErrorKind = "funding_rejected"
	ErrorNetwork           ErrorKind = "network_error"
	ErrorUnknown           ErrorKind = "unknown"
)

// IsValid reports whether k is a known error kind.
func (k ErrorKind) IsValid() bool {
	switch k {
	case ErrorInsufficientFunds, ErrorFundingRejected, ErrorNetwork, ErrorUnknown:
		return true
	}
	return false
}

// SafeToRetry reports whether the same funding source can be retried immediately.
func (k ErrorKind) SafeToRetry() bool {
	return k == ErrorNetwork
}

// RequiresFundingChange reports whether the user must pick another source or
// amount before retrying.
func (k ErrorKind) RequiresFundingChange() bool {
	return k == ErrorInsufficientFunds || k == ErrorFundingRejected
}

// SettlementResult is what a settlement backend reports back.
// A non-empty ErrorKind means failure; otherwise ConfirmationID must be set.
type SettlementResult struct {
	ConfirmationID string    `json:"confirmation_id,omitempty"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(confirmationID string) SettlementResult {
	return SettlementResult{ConfirmationID: confirmationID}
}

// Failed builds a failed result.
func Failed(kind ErrorKind, message string) SettlementResult {
	return SettlementResult{ErrorKind: kind, Message: message}
}

// SettleFunc executes the payment for a processing session.
// Returning an error is equivalent to returning a failed result; the error is
// classified and never propagated out of Controller.Submit.
type SettleFunc func(ctx context.Context, s Session) (SettlementResult, error)

// ResultKind is the outcome recorded on a terminal session.
type ResultKind string

const (
	ResultSuccess ResultKind = "success"
	ResultError   ResultKind = "error"
)

// TerminalResult is the outcome of the last submission attempt.
type TerminalResult struct {
	Kind           ResultKind `json:"kind"`
	ConfirmationID string     `json:"confirmation_id,omitempty"`
	Reason         ErrorKind  `json:"reason,omitempty"`
	Message        string     `json:"message,omitempty"`
}

// normalize turns whatever settle produced into a well-formed result.
func normalize(res SettlementResult, err error) SettlementResult {
	if err != nil {
		return Failed(classify(err), err.Error())
	}
	if res.ErrorKind != "" {
		if !res.ErrorKind.IsValid() {
			return Failed(ErrorUnknown, res.Message)
		}
		return res
	}
	if res.ConfirmationID == "" {
		return Failed(ErrorUnknown, "settlement returned neither a confirmation nor an error")
	}
	return res
}

func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorNetwork
	}
	return ErrorUnknown
}
