package orders

import (
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/types"
)

// Submission is everything the checkout has accumulated at "place order".
type Submission struct {
	BuyerID         string
	Currency        enums.Currency
	Items           []cart.LineItem
	ShippingAddress types.ShippingAddress
	PaymentMethod   enums.PaymentMethod
	CouponCode      string
}

// CreateOrderRequest is the body expected by the order service.
type CreateOrderRequest struct {
	BuyerID            string            `json:"buyer_id"`
	Currency           string            `json:"currency"`
	ShippingName       string            `json:"shipping_name"`
	ShippingPhone      string            `json:"shipping_phone"`
	ShippingLine1      string            `json:"shipping_line1"`
	ShippingLine2      string            `json:"shipping_line2,omitempty"`
	ShippingCity       string            `json:"shipping_city"`
	ShippingState      string            `json:"shipping_state"`
	ShippingPostalCode string            `json:"shipping_postal_code"`
	ShippingCountry    string            `json:"shipping_country"`
	PaymentMethod      string            `json:"payment_method"`
	CouponCode         string            `json:"coupon_code,omitempty"`
	Items              []CreateOrderItem `json:"items"`

	// SellerFallbacks lists products whose seller defaulted to the buyer.
	SellerFallbacks []string `json:"-"`
}

// CreateOrderItem is one line of the order request.
type CreateOrderItem struct {
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id,omitempty"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	SellerID    string `json:"seller_id"`
}

// Order is the confirmed order returned by the order service.
type Order struct {
	ID              string                `json:"id"`
	OrderNumber     string                `json:"order_number"`
	Status          string                `json:"status"`
	Currency        string                `json:"currency"`
	SubtotalCents   int64                 `json:"subtotal_cents"`
	ShippingCents   int64                 `json:"shipping_cents"`
	TaxCents        int64                 `json:"tax_cents"`
	DiscountCents   int64                 `json:"discount_cents"`
	TotalCents      int64                 `json:"total_cents"`
	ItemCount       int                   `json:"item_count"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	PlacedAt        *time.Time            `json:"placed_at,omitempty"`
}
