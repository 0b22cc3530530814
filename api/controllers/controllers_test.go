package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/coupons"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/internal/sessions"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/enums"
)

type stubCoupons struct {
	result *coupons.Result
}

func (s stubCoupons) Validate(context.Context, string, int64) (*coupons.Result, error) {
	return s.result, nil
}

type stubOrders struct {
	calls int
}

func (s *stubOrders) CreateOrder(_ context.Context, req orders.CreateOrderRequest, key string) (*orders.Order, error) {
	s.calls++
	return &orders.Order{ID: "ord-1", OrderNumber: "SO-1001", ItemCount: len(req.Items)}, nil
}

type testAPI struct {
	router http.Handler
	orders *stubOrders
}

func newTestAPI(t *testing.T, couponResult *coupons.Result) *testAPI {
	t.Helper()
	ord := &stubOrders{}
	reg, err := sessions.NewRegistry(sessions.Params{
		Snapshots: cart.NewMemorySnapshotStore(),
		Checkout:  checkout.Deps{Coupons: stubCoupons{result: couponResult}, Orders: ord},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	r := chi.NewRouter()
	r.Get("/cart", CartView(reg, enums.CurrencyUSD, nil))
	r.Post("/cart/items", CartAddItem(reg, enums.CurrencyUSD, nil))
	r.Patch("/cart/items/{productID}/{variantID}", CartUpdateItem(reg, enums.CurrencyUSD, nil))
	r.Delete("/cart/items/{productID}/{variantID}", CartRemoveItem(reg, enums.CurrencyUSD, nil))
	r.Delete("/cart", CartClear(reg, enums.CurrencyUSD, nil))
	r.Post("/checkout", CheckoutStart(reg, nil))
	r.Get("/checkout", CheckoutSummary(reg, nil))
	r.Delete("/checkout", CheckoutDiscard(reg, nil))
	r.Put("/checkout/address", CheckoutSetAddress(reg, nil))
	r.Put("/checkout/payment", CheckoutSetPayment(reg, nil))
	r.Post("/checkout/next", CheckoutNext(reg, nil))
	r.Post("/checkout/back", CheckoutBack(reg, nil))
	r.Post("/checkout/coupon", CheckoutApplyCoupon(reg, nil))
	r.Delete("/checkout/coupon", CheckoutRemoveCoupon(reg, nil))
	r.Post("/checkout/submit", CheckoutSubmit(reg, nil))
	return &testAPI{router: r, orders: ord}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(middleware.WithBuyerID(req.Context(), "buyer-1"))
	resp := httptest.NewRecorder()
	a.router.ServeHTTP(resp, req)
	return resp
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return payload.Error.Code
}

const addressBody = `{"name":"Ana Diaz","phone":"5550100","line1":"1 Main St","city":"Austin","state":"TX","postal_code":"78701"}`

func TestCartRequiresBuyerContext(t *testing.T) {
	api := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	resp := httptest.NewRecorder()
	api.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.do(t, http.MethodPost, "/cart/items", `{"product_id":"p1","product_name":"Tee","unit_price_cents":1250,"quantity":2}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	api.do(t, http.MethodPost, "/cart/items", `{"product_id":"p1","unit_price_cents":1250,"quantity":1}`)

	var view cartResponse
	decodeData(t, api.do(t, http.MethodGet, "/cart", ""), &view)
	if len(view.Items) != 1 || view.ItemCount != 3 {
		t.Fatalf("expected merged line with 3 units, got %+v", view)
	}
	if view.SubtotalCents != 3750 || view.SubtotalDisplay != "$37.50" {
		t.Fatalf("unexpected subtotal %d %q", view.SubtotalCents, view.SubtotalDisplay)
	}

	resp = api.do(t, http.MethodPatch, "/cart/items/p1/default", `{"quantity":0}`)
	decodeData(t, resp, &view)
	if view.ItemCount != 1 {
		t.Fatalf("expected quantity clamped to 1, got %d", view.ItemCount)
	}

	resp = api.do(t, http.MethodDelete, "/cart/items/p1/default", "")
	decodeData(t, resp, &view)
	if len(view.Items) != 0 {
		t.Fatalf("expected line removed, got %d", len(view.Items))
	}
}

func TestCartAddItemValidation(t *testing.T) {
	api := newTestAPI(t, nil)
	resp := api.do(t, http.MethodPost, "/cart/items", `{"product_id":"p1","unit_price_cents":100,"quantity":0}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutStartRequiresItems(t *testing.T) {
	api := newTestAPI(t, nil)
	resp := api.do(t, http.MethodPost, "/checkout", "")
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "STATE_CONFLICT" {
		t.Fatalf("expected STATE_CONFLICT got %s", code)
	}
}

func TestCheckoutFlowPlacesOrder(t *testing.T) {
	api := newTestAPI(t, nil)
	api.do(t, http.MethodPost, "/cart/items", `{"product_id":"p1","unit_price_cents":1000,"quantity":1,"seller_id":"s1"}`)

	resp := api.do(t, http.MethodPost, "/checkout", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("start: expected 200 got %d", resp.Code)
	}
	var summary checkout.Summary
	decodeData(t, resp, &summary)
	if summary.Session.Step != enums.CheckoutStepAddress || summary.Display.Total != "$10.00" {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if resp := api.do(t, http.MethodPost, "/checkout/next", ""); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected next without address to fail, got %d", resp.Code)
	}
	if resp := api.do(t, http.MethodPut, "/checkout/address", `{"name":"Ana"}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected incomplete address rejected, got %d", resp.Code)
	}
	steps := []struct {
		method, path, body string
	}{
		{http.MethodPut, "/checkout/address", addressBody},
		{http.MethodPost, "/checkout/next", ""},
		{http.MethodPut, "/checkout/payment", `{"payment_method":"card"}`},
		{http.MethodPost, "/checkout/next", ""},
	}
	for _, step := range steps {
		if resp := api.do(t, step.method, step.path, step.body); resp.Code != http.StatusOK {
			t.Fatalf("%s %s: expected 200 got %d: %s", step.method, step.path, resp.Code, resp.Body.String())
		}
	}

	resp = api.do(t, http.MethodPost, "/checkout/submit", "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var order orders.Order
	decodeData(t, resp, &order)
	if order.OrderNumber != "SO-1001" || api.orders.calls != 1 {
		t.Fatalf("unexpected order %+v calls=%d", order, api.orders.calls)
	}

	var view cartResponse
	decodeData(t, api.do(t, http.MethodGet, "/cart", ""), &view)
	if len(view.Items) != 0 {
		t.Fatalf("expected cart cleared after order, got %d lines", len(view.Items))
	}
	if resp := api.do(t, http.MethodGet, "/checkout", ""); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected session gone after order, got %d", resp.Code)
	}
}

func TestCheckoutRejectedCouponIsNotAnError(t *testing.T) {
	api := newTestAPI(t, &coupons.Result{Code: "NOPE", Valid: false, Message: "expired"})
	api.do(t, http.MethodPost, "/cart/items", `{"product_id":"p1","unit_price_cents":1000,"quantity":1}`)
	api.do(t, http.MethodPost, "/checkout", "")

	resp := api.do(t, http.MethodPost, "/checkout/coupon", `{"code":"nope"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var payload couponResponse
	decodeData(t, resp, &payload)
	if payload.Coupon == nil || payload.Coupon.Valid || payload.Summary.Breakdown.Discount != 0 {
		t.Fatalf("unexpected coupon response %+v", payload)
	}

	if resp := api.do(t, http.MethodDelete, "/checkout", ""); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	resp := httptest.NewRecorder()
	HealthReady(cfg, stubPinger{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get(envHeader) != "test" {
		t.Fatalf("expected env header")
	}

	resp = httptest.NewRecorder()
	HealthReady(cfg, stubPinger{err: errors.New("down")}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

type heldResolver struct {
	buyer *sessions.Buyer
}

func (h heldResolver) Get(context.Context, string) (*sessions.Buyer, error) {
	return h.buyer, nil
}

func TestCartMutationOnEvictedBuyerConflicts(t *testing.T) {
	ctx := context.Background()
	reg, err := sessions.NewRegistry(sessions.Params{
		Snapshots: cart.NewMemorySnapshotStore(),
		Checkout:  checkout.Deps{Coupons: stubCoupons{}, Orders: &stubOrders{}},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	buyer, err := reg.Get(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := reg.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	r := chi.NewRouter()
	r.Post("/cart/items", CartAddItem(heldResolver{buyer: buyer}, enums.CurrencyUSD, nil))
	r.Delete("/cart", CartClear(heldResolver{buyer: buyer}, enums.CurrencyUSD, nil))
	api := &testAPI{router: r}

	resp := api.do(t, http.MethodPost, "/cart/items", `{"product_id":"p1","unit_price_cents":100,"quantity":1}`)
	if resp.Code != http.StatusConflict || errorCode(t, resp) != "CONFLICT" {
		t.Fatalf("expected 409 CONFLICT for an evicted cart, got %d", resp.Code)
	}
	if resp := api.do(t, http.MethodDelete, "/cart", ""); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 on clear, got %d", resp.Code)
	}
}
