// Package funding models the payment methods a checkout can draw from.
package funding

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/amirasaad/checkoutflow/pkg/pricing"
)

var (
	// ErrInvalidSource is returned for sources missing required fields.
	ErrInvalidSource = errors.New("invalid funding source")
	// ErrUnknownKind is returned when decoding a source with an unrecognised kind.
	ErrUnknownKind = errors.New("unknown funding source kind")
)

// Kind discriminates the Details variants.
type Kind string

const (
	KindWallet      Kind = "wallet"
	KindBankAccount Kind = "bank_account"
	KindCreditCard  Kind = "credit_card"
)

// Details holds the kind-specific part of a Source.
// Implemented only by Wallet, BankAccount and CreditCard.
type Details interface {
	kind() Kind
}

// Wallet is a stored-value or crypto wallet.
type Wallet struct {
	Network string `json:"network"`
	Address string `json:"address"`
}

// BankAccount is a linked bank account. Unverified accounts cannot fund a checkout.
type BankAccount struct {
	BankName string `json:"bank_name"`
	Last4    string `json:"last4"`
	Verified bool   `json:"verified"`
}

// CreditCard is a card on file. Locked cards cannot fund a checkout.
type CreditCard struct {
	Brand  string `json:"brand"`
	Last4  string `json:"last4"`
	Locked bool   `json:"locked"`
}

func (Wallet) kind() Kind      { return KindWallet }
func (BankAccount) kind() Kind { return KindBankAccount }
func (CreditCard) kind() Kind  { return KindCreditCard }

// Source is a payment method with an available balance.
// Balances are read-only here; settlement owns any debit.
type Source struct {
	ID      string
	Label   string
	Balance money.Money
	Details Details
}

// Kind returns the variant of the source's details, or "" when unset.
func (s Source) Kind() Kind {
	if s.Details == nil {
		return ""
	}
	return s.Details.kind()
}

// Currency returns the currency of the available balance.
func (s Source) Currency() money.Code {
	return s.Balance.Code()
}

// Validate checks required fields.
func (s Source) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidSource)
	case s.Label == "":
		return fmt.Errorf("%w: source %s missing label", ErrInvalidSource, s.ID)
	case s.Details == nil:
		return fmt.Errorf("%w: source %s missing details", ErrInvalidSource, s.ID)
	case !s.Balance.Code().IsValid():
		return fmt.Errorf("%w: source %s: %w", ErrInvalidSource, s.ID, money.ErrInvalidCurrency)
	}
	return nil
}

// IsEligible reports whether the source can pay for q.
// A source is never eligible on a currency mismatch or when its balance is
// below the quote total.
func (s Source) IsEligible(q pricing.Quote) bool {
	if s.Details == nil || s.Currency() != q.Currency {
		return false
	}
	cmp, err := s.Balance.Compare(q.Total)
	if err != nil || cmp < 0 {
		return false
	}
	switch d := s.Details.(type) {
	case BankAccount:
		return d.Verified
	case CreditCard:
		return !d.Locked
	case Wallet:
		return true
	default:
		return false
	}
}

// AnyEligible reports whether at least one source can pay for q.
func AnyEligible(sources []Source, q pricing.Quote) bool {
	for _, s := range sources {
		if s.IsEligible(q) {
			return true
		}
	}
	return false
}

// Eligible returns the sources that can pay for q, preserving order.
func Eligible(sources []Source, q pricing.Quote) []Source {
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if s.IsEligible(q) {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the source with the given id.
func Find(sources []Source, id string) (Source, bool) {
	for _, s := range sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

type sourceJSON struct {
	ID      string          `json:"id"`
	Label   string          `json:"label"`
	Kind    Kind            `json:"kind"`
	Balance money.Money     `json:"balance"`
	Details json.RawMessage `json:"details"`
}

// MarshalJSON writes the source with a "kind" discriminator.
func (s Source) MarshalJSON() ([]byte, error) {
	details, err := json.Marshal(s.Details)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sourceJSON{
		ID:      s.ID,
		Label:   s.Label,
		Kind:    s.Kind(),
		Balance: s.Balance,
		Details: details,
	})
}

// UnmarshalJSON resolves Details from the "kind" discriminator.
func (s *Source) UnmarshalJSON(data []byte) error {
	var aux sourceJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	details, err := DecodeDetails(aux.Kind, aux.Details)
	if err != nil {
		return err
	}
	*s = Source{
		ID:      aux.ID,
		Label:   aux.Label,
		Balance: aux.Balance,
		Details: details,
	}
	return nil
}

// DecodeDetails decodes raw JSON into the Details variant named by kind.
func DecodeDetails(kind Kind, raw []byte) (Details, error) {
	switch kind {
	case KindWallet:
		var w Wallet
		if err := unmarshalDetails(raw, &w); err != nil {
			return nil, err
		}
		return w, nil
	case KindBankAccount:
		var b BankAccount
		if err := unmarshalDetails(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case KindCreditCard:
		var c CreditCard
		if err := unmarshalDetails(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func unmarshalDetails(raw []byte, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
