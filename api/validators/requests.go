package validators

import (
	"strings"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

const (
	maxIDLength   = 128
	maxNameLength = 255
	maxURLLength  = 2048
	maxCodeLength = 64
)

// AddItemRequest is the payload of POST /cart/items. Price and name are trusted as sent
// by the storefront at add time.
type AddItemRequest struct {
	ProductID      string  `json:"product_id" validate:"required,max=128"`
	VariantID      *string `json:"variant_id,omitempty" validate:"omitempty,max=128"`
	ProductName    string  `json:"product_name" validate:"max=255"`
	UnitPriceCents int64   `json:"unit_price_cents" validate:"gte=0"`
	Quantity       int     `json:"quantity" validate:"gte=1"`
	ImageURL       *string `json:"image_url,omitempty" validate:"omitempty,max=2048"`
	SellerID       *string `json:"seller_id,omitempty" validate:"omitempty,max=128"`
}

// ToInput sanitizes the payload into a cart.AddItemInput.
func (r AddItemRequest) ToInput() cart.AddItemInput {
	return cart.AddItemInput{
		ProductID:      SanitizeString(r.ProductID, maxIDLength),
		VariantID:      sanitizeOptional(r.VariantID, maxIDLength),
		ProductName:    SanitizeString(r.ProductName, maxNameLength),
		UnitPriceCents: r.UnitPriceCents,
		Quantity:       r.Quantity,
		ImageURL:       sanitizeOptional(r.ImageURL, maxURLLength),
		SellerID:       sanitizeOptional(r.SellerID, maxIDLength),
	}
}

// UpdateQuantityRequest is the payload of PATCH /cart/items/{productID}/{variantID}.
// Values below 1 are accepted and clamped by the cart.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// PaymentRequest is the payload of PUT /checkout/payment.
type PaymentRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=card cod"`
}

// Method parses the validated payment method.
func (r PaymentRequest) Method() (enums.PaymentMethod, error) {
	method, err := enums.ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	return method, nil
}

// CouponRequest is the payload of POST /checkout/coupon.
type CouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// NormalizedCode trims the code and bounds its length.
func (r CouponRequest) NormalizedCode() string {
	return SanitizeString(r.Code, maxCodeLength)
}

func sanitizeOptional(value *string, maxLen int) *string {
	if value == nil {
		return nil
	}
	cleaned := SanitizeString(*value, maxLen)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// IdentityFromPath builds a line identity from route params. The literal variant
// "default" addresses products without variants.
func IdentityFromPath(productID, variantID string) (cart.Identity, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return cart.Identity{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	variant := strings.TrimSpace(variantID)
	return cart.NewIdentity(productID, &variant), nil
}
