package funding

import (
	"context"

	"github.com/amirasaad/checkoutflow/pkg/money"
)

// Provider lists the funding sources available for a currency.
type Provider interface {
	List(ctx context.Context, code money.Code) ([]Source, error)
}

// Static serves a fixed set of sources from memory.
type Static struct {
	sources []Source
}

var _ Provider = (*Static)(nil)

// NewStatic returns a provider over a copy of sources.
func NewStatic(sources ...Source) *Static {
	cp := make([]Source, len(sources))
	copy(cp, sources)
	return &Static{sources: cp}
}

// List returns the sources whose balance is in code.
func (p *Static) List(ctx context.Context, code money.Code) ([]Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Source, 0, len(p.sources))
	for _, s := range p.sources {
		if s.Currency() == code {
			out = append(out, s)
		}
	}
	return out, nil
}
