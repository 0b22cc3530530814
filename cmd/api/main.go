package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront/api/routes"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/coupons"
	"github.com/angelmondragon/storefront/internal/cron"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/internal/pricing"
	"github.com/angelmondragon/storefront/internal/sessions"
	"github.com/angelmondragon/storefront/pkg/breaker"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/instance"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/pubsub"
	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
)

const (
	shutdownTimeout = 20 * time.Second
	maintenanceLock = "maintenance"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, logg)
	requireResource(ctx, logg, "storage", err)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(promReg)
	maintenanceMetrics := metrics.NewMaintenanceMetrics(promReg)

	breakerSettings := func(name string) breaker.Settings {
		return breaker.Settings{
			Name:        name,
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout,
			Interval:    cfg.Breaker.Interval,
		}
	}
	couponClient, err := coupons.NewClient(cfg.Services.CouponsBaseURL,
		coupons.WithTimeout(cfg.Services.CouponsTimeout),
		coupons.WithBreaker(breaker.New[*coupons.Result](breakerSettings("promotions"), logg)),
	)
	requireResource(ctx, logg, "promotions client", err)
	orderClient, err := orders.NewClient(cfg.Services.OrdersBaseURL,
		orders.WithTimeout(cfg.Services.OrdersTimeout),
		orders.WithBreaker(breaker.New[*orders.Order](breakerSettings("orders"), logg)),
	)
	requireResource(ctx, logg, "orders client", err)

	deps := checkout.Deps{Coupons: couponClient, Orders: orderClient}
	var pubsubClient *pubsub.Client
	if cfg.PubSubEnabled() {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		publisher, err := checkout.NewPubSubEventPublisher(pubsubClient)
		requireResource(ctx, logg, "order event publisher", err)
		deps.Events = publisher
	} else {
		logg.Info(ctx, "pubsub not configured, order events disabled")
	}

	currency, err := enums.ParseCurrency(cfg.Checkout.Currency)
	requireResource(ctx, logg, "currency", err)

	buyers, err := sessions.NewRegistry(sessions.Params{
		Snapshots: store.snapshots,
		Checkout:  deps,
		Options: checkout.Options{
			Currency: currency,
			Policy: pricing.Policy{
				FlatShippingCents:      cfg.Checkout.FlatShippingCents,
				FreeShippingAboveCents: cfg.Checkout.FreeShippingAboveCents,
				TaxRateBps:             cfg.Checkout.TaxRateBps,
			},
		},
		Metrics: checkoutMetrics,
		Logger:  logg,
		IdleTTL: cfg.Checkout.SessionIdleTTL,
	})
	requireResource(ctx, logg, "buyer registry", err)

	maintenance, err := newMaintenance(cfg, logg, store, buyers, maintenanceMetrics)
	requireResource(ctx, logg, "maintenance", err)
	go func() {
		if err := maintenance.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "maintenance loop stopped unexpectedly", err)
		}
	}()

	// a nil *redis.Client must not become a non-nil interface
	var idempotency pkgredis.IdempotencyStore
	if store.redis != nil {
		idempotency = store.redis
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"storage":  cfg.Storage.Driver,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, buyers, store.pinger, idempotency, promReg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = multierr.Append(errs, err)
	}
	errs = multierr.Append(errs, buyers.Close(shutdownCtx))
	if pubsubClient != nil {
		errs = multierr.Append(errs, pubsubClient.Close())
	}
	errs = multierr.Append(errs, store.close())
	if errs != nil {
		logg.Error(serverCtx, "shutdown completed with errors", errs)
		os.Exit(1)
	}
	logg.Info(serverCtx, "api server stopped")
}

func newMaintenance(cfg *config.Config, logg *logger.Logger, store *storage, buyers *sessions.Registry, observer *metrics.MaintenanceMetrics) (*cron.Service, error) {
	sweep, err := cron.NewSessionSweepJob(buyers)
	if err != nil {
		return nil, err
	}
	jobs, err := cron.NewRegistry(sweep)
	if err != nil {
		return nil, err
	}
	if store.repo != nil {
		purge, err := cron.NewSnapshotPurgeJob(store.repo, logg)
		if err != nil {
			return nil, err
		}
		if err := jobs.Register(purge); err != nil {
			return nil, err
		}
	}

	params := cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Metrics:  observer,
		Interval: cfg.Checkout.SweepInterval,
	}
	if store.redis != nil {
		lock, err := cron.NewRedisLock(store.redis, store.redis.LockKey(maintenanceLock), 0)
		if err != nil {
			return nil, err
		}
		params.Lock = lock
	}
	return cron.NewService(params)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
