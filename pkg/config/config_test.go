package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}
	if cfg.App.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.App.Port)
	}
	if cfg.Storage.Driver != StorageDriverMemory {
		t.Fatalf("expected memory storage driver, got %q", cfg.Storage.Driver)
	}
	if got := cfg.Storage.SnapshotTTL; got != 720*time.Hour {
		t.Fatalf("expected snapshot ttl 720h, got %v", got)
	}
	if cfg.Checkout.Currency != "USD" {
		t.Fatalf("expected USD currency, got %q", cfg.Checkout.Currency)
	}
	if cfg.Services.OrdersBaseURL != "http://orders.local" {
		t.Fatalf("unexpected orders url %q", cfg.Services.OrdersBaseURL)
	}
	if cfg.PubSubEnabled() {
		t.Fatal("expected pubsub disabled without a project id")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_UnknownStorageDriver(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStorageDriver, "dynamo")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown storage driver to fail")
	}
}

func TestLoad_PostgresBuildsDSNFromParts(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStorageDriver, "Postgres")
	t.Setenv(EnvDBHost, "db.internal")
	t.Setenv(EnvDBUser, "store")
	t.Setenv(EnvDBName, "carts")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Storage.Driver != StorageDriverPostgres {
		t.Fatalf("expected driver normalized to postgres, got %q", cfg.Storage.Driver)
	}
	want := "postgres://store@db.internal:5432/carts?sslmode=disable"
	if cfg.DB.DSN != want {
		t.Fatalf("expected dsn %q, got %q", want, cfg.DB.DSN)
	}
	if !cfg.Storage.UsesSQL() {
		t.Fatal("expected postgres to use sql")
	}
}

func TestLoad_PostgresWithoutDSNFails(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStorageDriver, StorageDriverPostgres)

	if _, err := Load(); err == nil {
		t.Fatal("expected missing db settings to fail")
	}
}

func TestLoad_RedisRequiresAddress(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStorageDriver, StorageDriverRedis)

	if _, err := Load(); err == nil {
		t.Fatal("expected redis driver without url to fail")
	}

	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	if _, err := Load(); err != nil {
		t.Fatalf("expected redis driver with url to load: %v", err)
	}
}

func TestLoad_CheckoutPolicyAndPubSub(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvTaxRateBps, "825")
	t.Setenv(EnvGCPProjectID, "project-123")
	t.Setenv(EnvCORSOrigins, "https://shop.example,https://admin.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Checkout.TaxRateBps != 825 {
		t.Fatalf("expected tax 825 bps, got %d", cfg.Checkout.TaxRateBps)
	}
	if !cfg.PubSubEnabled() {
		t.Fatal("expected pubsub enabled with a project id")
	}
	if len(cfg.App.CORSOrigins) != 2 || cfg.App.CORSOrigins[1] != "https://admin.example" {
		t.Fatalf("unexpected cors origins %v", cfg.App.CORSOrigins)
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvJWTSecret, "secret")
	t.Setenv(EnvJWTIssuer, "storefront")
	t.Setenv(EnvOrdersBaseURL, "http://orders.local")
	t.Setenv(EnvCouponsBaseURL, "http://promotions.local")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
	if prodConfig.IsDev() {
		t.Fatalf("expected IsDev false for %q", prodConfig.Env)
	}
}
