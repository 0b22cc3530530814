package models

import (
	"time"

	"github.com/angelmondragon/storefront/pkg/types"
)

// CartSnapshotItem is the persisted form of one cart line.
type CartSnapshotItem struct {
	ProductID      string  `json:"product_id"`
	VariantID      *string `json:"variant_id,omitempty"`
	ProductName    string  `json:"product_name"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	Quantity       int     `json:"quantity"`
	ImageURL       *string `json:"image_url,omitempty"`
	SellerID       *string `json:"seller_id,omitempty"`
}

// CartSnapshot holds the last known cart of a buyer. It never carries checkout state.
type CartSnapshot struct {
	BuyerID   string                            `gorm:"column:buyer_id;type:varchar(64);primaryKey"`
	Items     types.JSONSlice[CartSnapshotItem] `gorm:"column:items;type:text;not null"`
	UpdatedAt time.Time                         `gorm:"column:updated_at;not null"`
	ExpiresAt *time.Time                        `gorm:"column:expires_at"`
}

func (CartSnapshot) TableName() string { return "cart_snapshots" }
