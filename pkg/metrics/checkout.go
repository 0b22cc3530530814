package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records cart and checkout activity.
type CheckoutMetrics struct {
	submissions    *prometheus.CounterVec
	submitDuration *prometheus.HistogramVec
	coupons        *prometheus.CounterVec
	cartMutations  *prometheus.CounterVec
	activeBuyers   prometheus.Gauge
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_submissions_total",
		Help: "Order submissions by outcome.",
	}, []string{"outcome"})
	submitDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_submit_duration_seconds",
		Help:    "Round trip to the order service in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	coupons := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_coupon_validations_total",
		Help: "Coupon validations by result.",
	}, []string{"result"})
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by operation.",
	}, []string{"op"})
	activeBuyers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_active_buyers",
		Help: "Buyers with in-memory cart state.",
	})
	reg.MustRegister(submissions, submitDuration, coupons, cartMutations, activeBuyers)
	return &CheckoutMetrics{
		submissions:    submissions,
		submitDuration: submitDuration,
		coupons:        coupons,
		cartMutations:  cartMutations,
		activeBuyers:   activeBuyers,
	}
}

// ObserveSubmission records one finished submission attempt.
func (c *CheckoutMetrics) ObserveSubmission(outcome string, duration time.Duration) {
	if c == nil || c.submissions == nil {
		return
	}
	label := normalizeLabel(outcome)
	c.submissions.WithLabelValues(label).Inc()
	c.submitDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// IncSubmissionRejected counts submissions refused before any request was sent.
func (c *CheckoutMetrics) IncSubmissionRejected() {
	if c == nil || c.submissions == nil {
		return
	}
	c.submissions.WithLabelValues(OutcomeRejected).Inc()
}

// IncCoupon counts a coupon validation by result.
func (c *CheckoutMetrics) IncCoupon(result string) {
	if c == nil || c.coupons == nil {
		return
	}
	c.coupons.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncCartMutation counts a cart mutation.
func (c *CheckoutMetrics) IncCartMutation(op string) {
	if c == nil || c.cartMutations == nil {
		return
	}
	c.cartMutations.WithLabelValues(normalizeLabel(op)).Inc()
}

// SetActiveBuyers reports the registry size.
func (c *CheckoutMetrics) SetActiveBuyers(n int) {
	if c == nil || c.activeBuyers == nil {
		return
	}
	c.activeBuyers.Set(float64(n))
}

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeStale    = "stale"

	CouponValid   = "valid"
	CouponInvalid = "invalid"
	CouponError   = "error"
)

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
