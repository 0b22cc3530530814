package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/coupons"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/internal/pricing"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/google/uuid"
)

type cartState interface {
	Owner() string
	Items() []cart.LineItem
	Subtotal() int64
	ItemCount() int
	IsEmpty() bool
	RemoveOrdered(ctx context.Context, ordered []cart.LineItem)
}

type couponValidator interface {
	Validate(ctx context.Context, code string, orderTotal int64) (*coupons.Result, error)
}

type orderCreator interface {
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest, idempotencyKey string) (*orders.Order, error)
}

type checkoutMetrics interface {
	ObserveSubmission(outcome string, duration time.Duration)
	IncSubmissionRejected()
	IncCoupon(result string)
}

// Deps are the collaborators of an Orchestrator. Events and Metrics are optional.
type Deps struct {
	Cart    cartState
	Coupons couponValidator
	Orders  orderCreator
	Events  EventPublisher
	Metrics checkoutMetrics
	Logger  *logger.Logger
}

// Options carries the per-deployment checkout policy.
type Options struct {
	Currency enums.Currency
	Policy   pricing.Policy
	Clock    func() time.Time
}

// Orchestrator drives one buyer's checkout: address, payment, review, then submission.
// Network calls run without the lock held; epoch is bumped whenever the session is
// discarded or completed so late responses can be recognised and dropped. pending
// belongs to the orchestrator, not the session: it outlives Discard until the order
// request returns.
type Orchestrator struct {
	mu sync.Mutex

	buyerID  string
	cart     cartState
	coupons  couponValidator
	orders   orderCreator
	events   EventPublisher
	metrics  checkoutMetrics
	logg     *logger.Logger
	currency enums.Currency
	policy   pricing.Policy
	now      func() time.Time

	session *Session
	epoch   uint64
	pending bool
}

// NewOrchestrator wires an orchestrator for the cart's owner.
func NewOrchestrator(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Cart == nil {
		return nil, fmt.Errorf("cart required")
	}
	if deps.Coupons == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if strings.TrimSpace(deps.Cart.Owner()) == "" {
		return nil, fmt.Errorf("cart owner required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if opts.Currency == "" {
		opts.Currency = enums.CurrencyUSD
	}
	if !opts.Currency.IsValid() {
		return nil, fmt.Errorf("unsupported currency %q", opts.Currency)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Orchestrator{
		buyerID:  deps.Cart.Owner(),
		cart:     deps.Cart,
		coupons:  deps.Coupons,
		orders:   deps.Orders,
		events:   deps.Events,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
		currency: opts.Currency,
		policy:   opts.Policy,
		now:      opts.Clock,
	}, nil
}

// Start opens a session at the address step. An existing session is resumed as is.
func (o *Orchestrator) Start(ctx context.Context) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != nil {
		return o.session.clone(), nil
	}
	if o.cart.IsEmpty() {
		return Session{}, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}
	o.session = &Session{
		ID:        uuid.New(),
		Step:      enums.CheckoutStepAddress,
		StartedAt: o.now().UTC(),
	}
	o.logg.Info(o.logg.WithCheckoutID(ctx, o.session.ID.String()), "checkout started")
	return o.session.clone(), nil
}

// Discard drops the session, e.g. when the buyer navigates away. In-flight coupon
// or submission results for it are ignored when they arrive.
func (o *Orchestrator) Discard(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return
	}
	o.logg.Info(o.logg.WithCheckoutID(ctx, o.session.ID.String()), "checkout discarded")
	o.resetLocked()
}

// Session returns a copy of the active session.
func (o *Orchestrator) Session() (Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return Session{}, false
	}
	return o.session.clone(), true
}

// Pending reports whether a submission is in flight, including one whose session was
// discarded.
func (o *Orchestrator) Pending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending
}

// SetShippingAddress captures the address. Only allowed on the address step.
func (o *Orchestrator) SetShippingAddress(_ context.Context, addr types.ShippingAddress) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.requireStepLocked(enums.CheckoutStepAddress); err != nil {
		return Session{}, err
	}
	normalized := addr.Normalized()
	if normalized.IsZero() {
		return Session{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	o.session.ShippingAddress = &normalized
	return o.session.clone(), nil
}

// SelectPaymentMethod records the buyer's choice. Only allowed on the payment step.
func (o *Orchestrator) SelectPaymentMethod(_ context.Context, method enums.PaymentMethod) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.requireStepLocked(enums.CheckoutStepPayment); err != nil {
		return Session{}, err
	}
	if !method.IsValid() {
		return Session{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}
	o.session.PaymentMethod = method
	return o.session.clone(), nil
}

// Next advances one step. Leaving address needs an address, leaving payment needs a method.
func (o *Orchestrator) Next(_ context.Context) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return Session{}, errNoSession()
	}
	switch o.session.Step {
	case enums.CheckoutStepAddress:
		if o.session.ShippingAddress == nil {
			return Session{}, pkgerrors.New(pkgerrors.CodeStateConflict, "shipping address required before payment")
		}
	case enums.CheckoutStepPayment:
		if o.session.PaymentMethod == "" {
			return Session{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payment method required before review")
		}
	}
	next, ok := o.session.Step.Next()
	if !ok {
		return Session{}, pkgerrors.New(pkgerrors.CodeStateConflict, "review is the final step")
	}
	o.session.Step = next
	return o.session.clone(), nil
}

// Back returns to the previous step. At the first step it does nothing.
func (o *Orchestrator) Back(_ context.Context) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return Session{}, errNoSession()
	}
	if prev, ok := o.session.Step.Previous(); ok {
		o.session.Step = prev
	}
	return o.session.clone(), nil
}

// ApplyCoupon validates code against the pre-discount total and stores the discount
// when the promotions service accepts it. A rejected code leaves the session as it
// was and is reported through the returned result, not as an error.
func (o *Orchestrator) ApplyCoupon(ctx context.Context, code string) (*coupons.Result, error) {
	normalized := coupons.NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}

	o.mu.Lock()
	if o.session == nil {
		o.mu.Unlock()
		return nil, errNoSession()
	}
	epoch := o.epoch
	sessionID := o.session.ID
	total := o.policy.Quote(cart.Lines(o.cart.Items()), 0).PreDiscountTotal()
	o.mu.Unlock()

	ctx = o.logg.WithFields(ctx, map[string]any{"checkout_id": sessionID.String(), "coupon_code": normalized})
	result, err := o.coupons.Validate(ctx, normalized, total)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.staleLocked(epoch, sessionID) {
		o.logg.Warn(ctx, "coupon result ignored for discarded checkout")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session is no longer active")
	}
	if err != nil {
		o.metrics.IncCoupon(metrics.CouponError)
		o.logg.Error(ctx, "coupon validation failed", err)
		return nil, err
	}
	if !result.Valid {
		o.metrics.IncCoupon(metrics.CouponInvalid)
		o.logg.Info(ctx, "coupon rejected")
		return result, nil
	}

	o.metrics.IncCoupon(metrics.CouponValid)
	o.session.CouponCode = normalized
	o.session.DiscountCents = result.DiscountCents
	return result, nil
}

// RemoveCoupon clears any applied coupon.
func (o *Orchestrator) RemoveCoupon(_ context.Context) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return Session{}, errNoSession()
	}
	o.session.CouponCode = ""
	o.session.DiscountCents = 0
	return o.session.clone(), nil
}

// Summary prices the current cart under the session's discount.
func (o *Orchestrator) Summary(_ context.Context) (Summary, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return Summary{}, errNoSession()
	}
	items := o.cart.Items()
	breakdown := o.policy.Quote(cart.Lines(items), o.session.DiscountCents)
	return Summary{
		Session:   o.session.clone(),
		Items:     items,
		ItemCount: o.cart.ItemCount(),
		Currency:  o.currency,
		Breakdown: breakdown,
		Display:   displayFor(breakdown, o.currency),
	}, nil
}

// SubmitOrder places the order from the review step. Only one submission may be in
// flight per buyer, across sessions. On success the ordered quantities leave the cart
// and the session is discarded; on failure the session is kept so the buyer can retry
// without repeating earlier steps.
func (o *Orchestrator) SubmitOrder(ctx context.Context) (*orders.Order, error) {
	o.mu.Lock()
	if o.pending {
		o.mu.Unlock()
		o.metrics.IncSubmissionRejected()
		return nil, pkgerrors.New(pkgerrors.CodeInFlight, "order submission already in progress")
	}
	if err := o.requireStepLocked(enums.CheckoutStepReview); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	if o.cart.IsEmpty() {
		o.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}
	if o.session.ShippingAddress == nil {
		o.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipping address required")
	}

	method := o.session.PaymentMethod
	if method == "" {
		method = enums.DefaultPaymentMethod
	}
	ordered := o.cart.Items()
	req := orders.BuildRequest(orders.Submission{
		BuyerID:         o.buyerID,
		Currency:        o.currency,
		Items:           ordered,
		ShippingAddress: *o.session.ShippingAddress,
		PaymentMethod:   method,
		CouponCode:      o.session.CouponCode,
	})
	epoch := o.epoch
	sessionID := o.session.ID
	o.pending = true
	o.mu.Unlock()

	ctx = o.logg.WithCheckoutID(ctx, sessionID.String())
	if len(req.SellerFallbacks) > 0 {
		o.logg.Warn(o.logg.WithField(ctx, "product_ids", req.SellerFallbacks), "seller missing on cart lines, attributing to buyer")
	}

	started := o.now()
	order, err := o.orders.CreateOrder(ctx, req, sessionID.String())
	elapsed := o.now().Sub(started)

	if err == nil && order.OrderNumber == "" {
		order.OrderNumber = sessionID.String()
		o.logg.Warn(ctx, "order response carried no order number, using checkout id")
	}

	o.mu.Lock()
	o.pending = false
	if o.staleLocked(epoch, sessionID) {
		if err == nil {
			// the order exists upstream; its lines must not be ordered twice
			o.cart.RemoveOrdered(ctx, ordered)
		}
		o.mu.Unlock()
		o.metrics.ObserveSubmission(metrics.OutcomeStale, elapsed)
		if err != nil {
			o.logg.Warn(ctx, "order submission failed after checkout was discarded")
		} else {
			o.logg.Warn(o.logg.WithField(ctx, "order_number", order.OrderNumber), "order placed after checkout was discarded")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session is no longer active")
	}
	if err != nil {
		o.mu.Unlock()
		o.metrics.ObserveSubmission(metrics.OutcomeFailure, elapsed)
		o.logg.Error(ctx, "order submission failed", err)
		return nil, err
	}
	o.cart.RemoveOrdered(ctx, ordered)
	o.resetLocked()
	o.mu.Unlock()

	o.metrics.ObserveSubmission(metrics.OutcomeSuccess, elapsed)
	ctx = o.logg.WithField(ctx, "order_number", order.OrderNumber)
	o.logg.Info(ctx, "order placed")
	o.publishPlaced(ctx, sessionID, order)
	return order, nil
}

func (o *Orchestrator) publishPlaced(ctx context.Context, sessionID uuid.UUID, order *orders.Order) {
	if o.events == nil {
		return
	}
	event := OrderPlacedEvent{
		BuyerID:     o.buyerID,
		CheckoutID:  sessionID.String(),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Currency:    o.currency.String(),
		TotalCents:  order.TotalCents,
		ItemCount:   order.ItemCount,
		PlacedAt:    o.now().UTC(),
	}
	if err := o.events.PublishOrderPlaced(ctx, event); err != nil {
		o.logg.Error(ctx, "publish order placed event", err)
	}
}

func (o *Orchestrator) requireStepLocked(step enums.CheckoutStep) error {
	if o.session == nil {
		return errNoSession()
	}
	if o.session.Step != step {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("checkout is at %s, not %s", o.session.Step, step)).
			WithDetails(map[string]any{"step": o.session.Step})
	}
	return nil
}

func (o *Orchestrator) staleLocked(epoch uint64, sessionID uuid.UUID) bool {
	return o.epoch != epoch || o.session == nil || o.session.ID != sessionID
}

func (o *Orchestrator) resetLocked() {
	o.session = nil
	o.epoch++
}

func errNoSession() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "no active checkout")
}

type noopMetrics struct{}

func (noopMetrics) ObserveSubmission(string, time.Duration) {}
func (noopMetrics) IncSubmissionRejected()                  {}
func (noopMetrics) IncCoupon(string)                        {}
