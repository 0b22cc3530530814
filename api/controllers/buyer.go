package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/internal/sessions"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// BuyerResolver returns the live cart and checkout of a buyer.
type BuyerResolver interface {
	Get(ctx context.Context, buyerID string) (*sessions.Buyer, error)
}

func resolveBuyer(w http.ResponseWriter, r *http.Request, buyers BuyerResolver, logg *logger.Logger) (*sessions.Buyer, bool) {
	if buyers == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "buyer registry unavailable"))
		return nil, false
	}
	buyerID := middleware.BuyerIDFromContext(r.Context())
	if buyerID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing"))
		return nil, false
	}
	buyer, err := buyers.Get(r.Context(), buyerID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load buyer state"))
		return nil, false
	}
	return buyer, true
}

// retiredCart reports a mutation that landed on a cart the registry already dropped.
// Idempotency replay skips 409s, so the client can resend the request as is.
func retiredCart(w http.ResponseWriter, r *http.Request, buyer *sessions.Buyer, logg *logger.Logger) bool {
	if !buyer.Cart.Retired() {
		return false
	}
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "cart session expired, retry the request"))
	return true
}
