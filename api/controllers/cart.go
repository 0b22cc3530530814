package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/pricing"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/money"
)

// CartView returns the buyer's cart.
func CartView(buyers BuyerResolver, currency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, newCartResponse(buyer.Cart.Items(), currency))
	}
}

// CartAddItem merges a product into the cart.
func CartAddItem(buyers BuyerResolver, currency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}

		var payload validators.AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, added := buyer.Cart.AddItem(r.Context(), payload.ToInput()); !added {
			if retiredCart(w, r, buyer, logg) {
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item rejected"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartResponse(buyer.Cart.Items(), currency))
	}
}

// CartUpdateItem sets the quantity of a line. Unknown lines leave the cart unchanged.
func CartUpdateItem(buyers BuyerResolver, currency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}

		id, err := validators.IdentityFromPath(chi.URLParam(r, "productID"), chi.URLParam(r, "variantID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload validators.UpdateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		buyer.Cart.UpdateQuantity(r.Context(), id, payload.Quantity)
		if retiredCart(w, r, buyer, logg) {
			return
		}
		responses.WriteSuccess(w, newCartResponse(buyer.Cart.Items(), currency))
	}
}

// CartRemoveItem deletes a line. Unknown lines leave the cart unchanged.
func CartRemoveItem(buyers BuyerResolver, currency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}

		id, err := validators.IdentityFromPath(chi.URLParam(r, "productID"), chi.URLParam(r, "variantID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		buyer.Cart.RemoveItem(r.Context(), id)
		if retiredCart(w, r, buyer, logg) {
			return
		}
		responses.WriteSuccess(w, newCartResponse(buyer.Cart.Items(), currency))
	}
}

// CartClear empties the cart.
func CartClear(buyers BuyerResolver, currency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}
		buyer.Cart.Clear(r.Context())
		if retiredCart(w, r, buyer, logg) {
			return
		}
		responses.WriteSuccess(w, newCartResponse(buyer.Cart.Items(), currency))
	}
}

type cartResponse struct {
	Items           []cartLineResponse `json:"items"`
	ItemCount       int                `json:"item_count"`
	Currency        string             `json:"currency"`
	SubtotalCents   int64              `json:"subtotal_cents"`
	SubtotalDisplay string             `json:"subtotal_display"`
}

type cartLineResponse struct {
	cart.LineItem
	LineTotalCents   int64  `json:"line_total_cents"`
	UnitPriceDisplay string `json:"unit_price_display"`
	LineTotalDisplay string `json:"line_total_display"`
}

// newCartResponse derives totals from one copy of the lines so counts and sums agree.
func newCartResponse(items []cart.LineItem, currency enums.Currency) cartResponse {
	lines := make([]cartLineResponse, 0, len(items))
	count := 0
	for _, item := range items {
		count += item.Quantity
		lines = append(lines, cartLineResponse{
			LineItem:         item,
			LineTotalCents:   item.LineTotalCents(),
			UnitPriceDisplay: money.Format(item.UnitPriceCents, currency),
			LineTotalDisplay: money.Format(item.LineTotalCents(), currency),
		})
	}
	subtotal := pricing.Subtotal(cart.Lines(items))
	return cartResponse{
		Items:           lines,
		ItemCount:       count,
		Currency:        currency.String(),
		SubtotalCents:   subtotal,
		SubtotalDisplay: money.Format(subtotal, currency),
	}
}
