package checkout

import (
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/pricing"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/money"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/google/uuid"
)

// Session is the state a buyer accumulates while walking through checkout.
// The ID doubles as the idempotency key of the order submission.
type Session struct {
	ID              uuid.UUID              `json:"id"`
	Step            enums.CheckoutStep     `json:"step"`
	ShippingAddress *types.ShippingAddress `json:"shipping_address,omitempty"`
	PaymentMethod   enums.PaymentMethod    `json:"payment_method,omitempty"`
	CouponCode      string                 `json:"coupon_code,omitempty"`
	DiscountCents   int64                  `json:"discount_cents"`
	StartedAt       time.Time              `json:"started_at"`
}

func (s Session) clone() Session {
	out := s
	if s.ShippingAddress != nil {
		addr := *s.ShippingAddress
		if s.ShippingAddress.Line2 != nil {
			line2 := *s.ShippingAddress.Line2
			addr.Line2 = &line2
		}
		out.ShippingAddress = &addr
	}
	return out
}

// Summary is the review-step view of the session and cart.
type Summary struct {
	Session   Session           `json:"session"`
	Items     []cart.LineItem   `json:"items"`
	ItemCount int               `json:"item_count"`
	Currency  enums.Currency    `json:"currency"`
	Breakdown pricing.Breakdown `json:"breakdown"`
	Display   Display           `json:"display"`
}

// Display holds the breakdown formatted for rendering.
type Display struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Tax      string `json:"tax"`
	Discount string `json:"discount"`
	Total    string `json:"total"`
}

func displayFor(b pricing.Breakdown, currency enums.Currency) Display {
	return Display{
		Subtotal: money.Format(b.Subtotal, currency),
		Shipping: money.Format(b.Shipping, currency),
		Tax:      money.Format(b.Tax, currency),
		Discount: money.Format(b.Discount, currency),
		Total:    money.Format(b.Total, currency),
	}
}
