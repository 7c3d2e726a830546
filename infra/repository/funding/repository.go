package funding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amirasaad/checkoutflow/pkg/funding"
	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a funding source does not exist for the owner.
var ErrNotFound = errors.New("funding source not found")

// ErrDebitRejected is returned when a debit names an unknown source, the
// wrong currency, or more than the available balance.
var ErrDebitRejected = errors.New("funding source debit rejected")

// Repository stores funding sources per owner.
type Repository struct {
	db *gorm.DB
}

// New creates a funding source repository using the provided *gorm.DB.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the funding_sources table.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&FundingSource{})
}

// Create stores src for ownerID. An empty src.ID gets a new uuid.
func (r *Repository) Create(ctx context.Context, ownerID string, src funding.Source) (funding.Source, error) {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if err := src.Validate(); err != nil {
		return funding.Source{}, err
	}
	row, err := mapSourceToModel(ownerID, src)
	if err != nil {
		return funding.Source{}, err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return funding.Source{}, mapGormError(err)
	}
	return src, nil
}

// Get returns one source owned by ownerID.
func (r *Repository) Get(ctx context.Context, ownerID, id string) (funding.Source, error) {
	var row FundingSource
	if err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&row).Error; err != nil {
		return funding.Source{}, mapGormError(err)
	}
	return mapModelToSource(&row)
}

// ListByOwner returns the owner's sources in code, oldest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string, code money.Code) ([]funding.Source, error) {
	var rows []FundingSource
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND currency = ?", ownerID, string(code)).
		Order("created_at").
		Find(&rows).Error; err != nil {
		return nil, mapGormError(err)
	}
	out := make([]funding.Source, 0, len(rows))
	for i := range rows {
		src, err := mapModelToSource(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// UpdateBalance sets the balance of a source owned by ownerID.
func (r *Repository) UpdateBalance(ctx context.Context, ownerID, id string, balance money.Money) error {
	res := r.db.WithContext(ctx).
		Model(&FundingSource{}).
		Where("id = ? AND owner_id = ? AND currency = ?", id, ownerID, string(balance.Code())).
		Update("balance", balance.MinorUnits())
	if res.Error != nil {
		return mapGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Debit subtracts amount from the source balance in a single conditional
// update, so concurrent debits cannot overdraw it.
func (r *Repository) Debit(ctx context.Context, ownerID, id string, amount money.Money) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", ErrDebitRejected, amount)
	}
	res := r.db.WithContext(ctx).
		Model(&FundingSource{}).
		Where(
			"id = ? AND owner_id = ? AND currency = ? AND balance >= ?",
			id, ownerID, string(amount.Code()), amount.MinorUnits(),
		).
		Update("balance", gorm.Expr("balance - ?", amount.MinorUnits()))
	if res.Error != nil {
		return mapGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: source %s amount %s", ErrDebitRejected, id, amount)
	}
	return nil
}

// Delete removes a source owned by ownerID.
func (r *Repository) Delete(ctx context.Context, ownerID, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&FundingSource{})
	if res.Error != nil {
		return mapGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ForOwner scopes the repository to ownerID as a funding.Provider.
func (r *Repository) ForOwner(ownerID string) funding.Provider {
	return ownerProvider{repo: r, ownerID: ownerID}
}

type ownerProvider struct {
	repo    *Repository
	ownerID string
}

func (p ownerProvider) List(ctx context.Context, code money.Code) ([]funding.Source, error) {
	return p.repo.ListByOwner(ctx, p.ownerID, code)
}

func mapSourceToModel(ownerID string, src funding.Source) (FundingSource, error) {
	details, err := json.Marshal(src.Details)
	if err != nil {
		return FundingSource{}, err
	}
	return FundingSource{
		ID:       src.ID,
		OwnerID:  ownerID,
		Label:    src.Label,
		Kind:     string(src.Kind()),
		Balance:  src.Balance.MinorUnits(),
		Currency: string(src.Currency()),
		Details:  string(details),
	}, nil
}

func mapModelToSource(row *FundingSource) (funding.Source, error) {
	details, err := funding.DecodeDetails(funding.Kind(row.Kind), []byte(row.Details))
	if err != nil {
		return funding.Source{}, err
	}
	balance, err := money.FromMinorUnits(row.Balance, money.Code(row.Currency))
	if err != nil {
		return funding.Source{}, err
	}
	return funding.Source{
		ID:      row.ID,
		Label:   row.Label,
		Balance: balance,
		Details: details,
	}, nil
}

func mapGormError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
