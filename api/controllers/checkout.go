package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/coupons"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

// CheckoutStart begins a checkout session, or resumes the open one, and returns its summary.
func CheckoutStart(buyers BuyerResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}
		if _, err := buyer.Checkout.Start(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSummary(w, r, buyer.Checkout, logg)
	}
}

// CheckoutSummary returns the session with its priced breakdown.
func CheckoutSummary(buyers BuyerResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}
		writeSummary(w, r, buyer.Checkout, logg)
	}
}

// CheckoutDiscard drops the session as when the buyer navigates away.
func CheckoutDiscard(buyers BuyerResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}
		buyer.Checkout.Discard(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

func CheckoutSetAddress(buyers BuyerResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}
		var payload types.ShippingAddress
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := buyer.Checkout.SetShippingAddress(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

func CheckoutSetPayment(buyers BuyerResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}
		var payload validators.PaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := payload.Method()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := buyer.Checkout.SelectPaymentMethod(r.Context(), method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

func CheckoutNext(buyers BuyerResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}
		session, err := buyer.Checkout.Next(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

func CheckoutBack(buyers BuyerResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}
		session, err := buyer.Checkout.Back(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

type couponResponse struct {
	Coupon  *coupons.Result  `json:"coupon"`
	Summary checkout.Summary `json:"summary"`
}

// CheckoutApplyCoupon validates a code with the promotions service. A rejected code is a
// 200 with valid=false; the summary shows whichever discount remains in effect.
func CheckoutApplyCoupon(buyers BuyerResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}
		var payload validators.CouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := buyer.Checkout.ApplyCoupon(r.Context(), payload.NormalizedCode())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := buyer.Checkout.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, couponResponse{Coupon: result, Summary: summary})
	}
}

func CheckoutRemoveCoupon(buyers BuyerResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}
		if _, err := buyer.Checkout.RemoveCoupon(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSummary(w, r, buyer.Checkout, logg)
	}
}

// CheckoutSubmit places the order and returns the confirmation.
func CheckoutSubmit(buyers BuyerResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, ok := resolveBuyer(w, r, buyers, logg)
		if !ok {
			return
		}
		order, err := buyer.Checkout.SubmitOrder(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func writeSummary(w http.ResponseWriter, r *http.Request, orch *checkout.Orchestrator, logg *logger.Logger) {
	summary, err := orch.Summary(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, summary)
}
