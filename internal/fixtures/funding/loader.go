// Package funding loads demo funding sources from CSV fixtures.
package funding

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/amirasaad/checkoutflow/pkg/funding"
	"github.com/amirasaad/checkoutflow/pkg/money"
)

//go:embed sources.csv
var sourcesCSV string

const columns = 7

// LoadSourcesCSV loads funding sources with balances in code. If path is
// empty, the embedded fixture is used.
//
// Columns are id, label, kind, balance, provider, reference and flag, where
// provider and reference are the wallet network and address, the bank name
// and last4, or the card brand and last4. flag is Verified for bank accounts
// and Locked for cards.
func LoadSourcesCSV(path string, code money.Code) ([]funding.Source, error) {
	var r io.Reader
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	} else {
		r = strings.NewReader(sourcesCSV)
	}
	return parseSourcesCSV(r, code)
}

func parseSourcesCSV(r io.Reader, code money.Code) ([]funding.Source, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("invalid CSV format: missing header")
	}
	if len(records[0]) < columns {
		return nil, fmt.Errorf("invalid CSV format: expected at least %d columns, got %d", columns, len(records[0]))
	}

	sources := make([]funding.Source, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < columns {
			continue
		}
		src, err := toSource(rec, code)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func toSource(rec []string, code money.Code) (funding.Source, error) {
	balance, err := money.Parse(rec[3], code)
	if err != nil {
		return funding.Source{}, err
	}
	flag := strings.EqualFold(strings.TrimSpace(rec[6]), "true")

	var details funding.Details
	switch funding.Kind(strings.TrimSpace(rec[2])) {
	case funding.KindWallet:
		details = funding.Wallet{Network: rec[4], Address: rec[5]}
	case funding.KindBankAccount:
		details = funding.BankAccount{BankName: rec[4], Last4: rec[5], Verified: flag}
	case funding.KindCreditCard:
		details = funding.CreditCard{Brand: rec[4], Last4: rec[5], Locked: flag}
	default:
		return funding.Source{}, fmt.Errorf("%w: %q", funding.ErrUnknownKind, rec[2])
	}

	src := funding.Source{
		ID:      strings.TrimSpace(rec[0]),
		Label:   strings.TrimSpace(rec[1]),
		Balance: balance,
		Details: details,
	}
	return src, src.Validate()
}
