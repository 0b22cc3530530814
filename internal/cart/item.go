package cart

import (
	"strings"

	"github.com/angelmondragon/storefront/internal/pricing"
)

// DefaultVariant stands in for products sold without variants.
const DefaultVariant = "default"

// Identity is the merge key of a line: product plus variant.
type Identity struct {
	ProductID string
	VariantID string
}

// NewIdentity normalizes an absent or blank variant to DefaultVariant.
func NewIdentity(productID string, variantID *string) Identity {
	id := Identity{ProductID: strings.TrimSpace(productID), VariantID: DefaultVariant}
	if variantID != nil {
		if v := strings.TrimSpace(*variantID); v != "" {
			id.VariantID = v
		}
	}
	return id
}

func (i Identity) String() string {
	return i.ProductID + ":" + i.VariantID
}

// LineItem is one product/variant in the cart with its quantity.
type LineItem struct {
	ProductID      string  `json:"product_id"`
	VariantID      *string `json:"variant_id,omitempty"`
	ProductName    string  `json:"product_name"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	Quantity       int     `json:"quantity"`
	ImageURL       *string `json:"image_url,omitempty"`
	SellerID       *string `json:"seller_id,omitempty"`
}

func (l LineItem) Identity() Identity {
	return NewIdentity(l.ProductID, l.VariantID)
}

// LineTotalCents is unit price times quantity.
func (l LineItem) LineTotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// AddItemInput carries the catalog data captured when a buyer adds a product.
type AddItemInput struct {
	ProductID      string
	VariantID      *string
	ProductName    string
	UnitPriceCents int64
	Quantity       int
	ImageURL       *string
	SellerID       *string
}

func (in AddItemInput) toLineItem() LineItem {
	id := NewIdentity(in.ProductID, in.VariantID)
	item := LineItem{
		ProductID:      id.ProductID,
		ProductName:    strings.TrimSpace(in.ProductName),
		UnitPriceCents: in.UnitPriceCents,
		Quantity:       in.Quantity,
		ImageURL:       nonEmpty(in.ImageURL),
		SellerID:       nonEmpty(in.SellerID),
	}
	if id.VariantID != DefaultVariant {
		variant := id.VariantID
		item.VariantID = &variant
	}
	return item
}

// Lines converts items for pricing.
func Lines(items []LineItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, pricing.Line{UnitPriceCents: item.UnitPriceCents, Quantity: item.Quantity})
	}
	return lines
}

func nonEmpty(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cloneItem(item LineItem) LineItem {
	out := item
	out.VariantID = cloneString(item.VariantID)
	out.ImageURL = cloneString(item.ImageURL)
	out.SellerID = cloneString(item.SellerID)
	return out
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
