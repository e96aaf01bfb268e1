package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Asset represents a tracked cryptocurrency
type Asset struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"size:50" json:"name"`
	Symbol      string       `gorm:"size:10;uniqueIndex;not null" json:"symbol"`
	PricePoints []PricePoint `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time    `json:"created_at"`
}

// PricePoint represents one immutable price observation for an asset.
// Rows are append-only: a new observation is always a new row, and the
// latest price of an asset is the row with the maximum created_at
// (ties broken by highest id).
type PricePoint struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	AssetID   uint            `gorm:"index:idx_asset_created" json:"asset_id"`
	Asset     Asset           `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
	Price     decimal.Decimal `gorm:"type:decimal(18,8)" json:"price"`
	CreatedAt time.Time       `gorm:"index:idx_asset_created" json:"created_at"`
}

// MigrateAssetModels runs database migrations for asset-related models
func MigrateAssetModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Asset{},
		&PricePoint{},
	)
}
