package funding

import "time"

// FundingSource represents a funding_sources record in the database. ID is
// a uuid for sources created here or the processor's payment method id.
type FundingSource struct {
	ID        string    `gorm:"type:varchar(64);primary_key"`
	OwnerID   string    `gorm:"type:varchar(64);index;not null"`
	Label     string    `gorm:"type:varchar(128);not null"`
	Kind      string    `gorm:"type:varchar(32);not null"`
	Balance   int64     `gorm:"not null"`
	Currency  string    `gorm:"type:varchar(3)"`
	Details   string    `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for the FundingSource model.
func (FundingSource) TableName() string {
	return "funding_sources"
}
