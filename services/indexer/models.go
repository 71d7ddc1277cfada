package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HarvestRecord is one archived strategy.harvest event. Amounts are stored as
// decimal strings so no precision is lost on either SQL backend.
type HarvestRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Strategy      string    `gorm:"size:42;index"`
	Caller        string    `gorm:"size:42"`
	Timestamp     int64     `gorm:"index"`
	AssetsBefore  string    `gorm:"size:80"`
	AssetsAfter   string    `gorm:"size:80"`
	Profit        string    `gorm:"size:80"`
	TreasuryFee   string    `gorm:"size:80"`
	StrategistFee string    `gorm:"size:80"`
	CallFee       string    `gorm:"size:80"`
	Coalesced     bool
	CreatedAt     time.Time
}

// BeforeCreate assigns a random identifier when none was set.
func (r *HarvestRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// LifecycleRecord archives every other vault or strategy event as its flat
// attribute set.
type LifecycleRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type       string    `gorm:"size:64;index"`
	Attributes string
	CreatedAt  time.Time
}

// BeforeCreate assigns a random identifier when none was set.
func (r *LifecycleRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
