package orders

import (
	"strings"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/enums"
)

// BuildRequest maps the checkout state onto the order service's request shape.
// Every cart line appears exactly once. A line without a seller is attributed to the
// buyer and reported in SellerFallbacks. variant_id is omitted unless set.
func BuildRequest(sub Submission) CreateOrderRequest {
	addr := sub.ShippingAddress.Normalized()
	method := sub.PaymentMethod
	if !method.IsValid() {
		method = enums.DefaultPaymentMethod
	}
	currency := sub.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}

	req := CreateOrderRequest{
		BuyerID:            sub.BuyerID,
		Currency:           currency.String(),
		ShippingName:       addr.Name,
		ShippingPhone:      addr.Phone,
		ShippingLine1:      addr.Line1,
		ShippingCity:       addr.City,
		ShippingState:      addr.State,
		ShippingPostalCode: addr.PostalCode,
		ShippingCountry:    addr.Country,
		PaymentMethod:      method.String(),
		CouponCode:         strings.TrimSpace(sub.CouponCode),
		Items:              make([]CreateOrderItem, 0, len(sub.Items)),
	}
	if addr.Line2 != nil {
		req.ShippingLine2 = *addr.Line2
	}

	for _, line := range sub.Items {
		item := CreateOrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPriceCents,
		}
		if line.VariantID != nil {
			if v := strings.TrimSpace(*line.VariantID); v != "" && v != cart.DefaultVariant {
				item.VariantID = v
			}
		}
		if line.SellerID != nil && strings.TrimSpace(*line.SellerID) != "" {
			item.SellerID = strings.TrimSpace(*line.SellerID)
		} else {
			item.SellerID = sub.BuyerID
			req.SellerFallbacks = append(req.SellerFallbacks, line.ProductID)
		}
		req.Items = append(req.Items, item)
	}
	return req
}
