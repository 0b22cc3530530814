package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
)

// NewRouter wires the storefront API. storage may be nil for in-memory snapshots and
// idempotency may be nil to disable response replay.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	buyers controllers.BuyerResolver,
	storage controllers.Pinger,
	idempotency pkgredis.IdempotencyStore,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, storage, logg))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	currency := enums.Currency(cfg.Checkout.Currency)
	if !currency.IsValid() {
		currency = enums.CurrencyUSD
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotency, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartView(buyers, currency, logg))
			r.Delete("/", controllers.CartClear(buyers, currency, logg))
			r.Post("/items", controllers.CartAddItem(buyers, currency, logg))
			r.Patch("/items/{productID}/{variantID}", controllers.CartUpdateItem(buyers, currency, logg))
			r.Delete("/items/{productID}/{variantID}", controllers.CartRemoveItem(buyers, currency, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutStart(buyers, logg))
			r.Get("/", controllers.CheckoutSummary(buyers, logg))
			r.Delete("/", controllers.CheckoutDiscard(buyers, logg))
			r.Put("/address", controllers.CheckoutSetAddress(buyers, logg))
			r.Put("/payment", controllers.CheckoutSetPayment(buyers, logg))
			r.Post("/next", controllers.CheckoutNext(buyers, logg))
			r.Post("/back", controllers.CheckoutBack(buyers, logg))
			r.Post("/coupon", controllers.CheckoutApplyCoupon(buyers, logg))
			r.Delete("/coupon", controllers.CheckoutRemoveCoupon(buyers, logg))
			r.Post("/submit", controllers.CheckoutSubmit(buyers, logg))
		})
	})

	return r
}
