package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	JWT      JWTConfig
	Storage  StorageConfig
	DB       DBConfig
	Redis    RedisConfig
	Services ServicesConfig
	Breaker  BreakerConfig
	Checkout CheckoutConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	if cfg.Storage.Driver == StorageDriverPostgres {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if cfg.Storage.Driver == StorageDriverRedis && cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return nil, fmt.Errorf("either %s or %s is required for the redis storage driver", EnvRedisURL, EnvRedisAddr)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string   `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
}

// StorageConfig selects where cart snapshots live between visits.
type StorageConfig struct {
	Driver        string        `envconfig:"STOREFRONT_STORAGE_DRIVER" default:"memory"`
	SnapshotTTL   time.Duration `envconfig:"STOREFRONT_CART_SNAPSHOT_TTL" default:"720h"`
	SQLitePath    string        `envconfig:"STOREFRONT_SQLITE_PATH" default:"file:storefront.db?cache=shared"`
	AutoMigrate   bool          `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
	MigrationsDir string        `envconfig:"STOREFRONT_MIGRATIONS_DIR" default:"pkg/migrate/migrations"`
}

// UsesSQL reports whether snapshots go through gorm.
func (s StorageConfig) UsesSQL() bool {
	return s.Driver == StorageDriverSQLite || s.Driver == StorageDriverPostgres
}

func (s *StorageConfig) validate() error {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	switch s.Driver {
	case StorageDriverMemory, StorageDriverRedis, StorageDriverSQLite, StorageDriverPostgres:
		return nil
	default:
		return fmt.Errorf("%s must be one of memory, redis, sqlite, postgres (got %q)", EnvStorageDriver, s.Driver)
	}
}

type DBConfig struct {
	DSN string `envconfig:"STOREFRONT_DB_DSN"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ServicesConfig points at the order and promotions services.
type ServicesConfig struct {
	OrdersBaseURL  string        `envconfig:"STOREFRONT_ORDERS_BASE_URL" required:"true"`
	OrdersTimeout  time.Duration `envconfig:"STOREFRONT_ORDERS_TIMEOUT" default:"15s"`
	CouponsBaseURL string        `envconfig:"STOREFRONT_COUPONS_BASE_URL" required:"true"`
	CouponsTimeout time.Duration `envconfig:"STOREFRONT_COUPONS_TIMEOUT" default:"5s"`
}

type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"STOREFRONT_BREAKER_MAX_FAILURES" default:"5"`
	OpenTimeout time.Duration `envconfig:"STOREFRONT_BREAKER_OPEN_TIMEOUT" default:"30s"`
	Interval    time.Duration `envconfig:"STOREFRONT_BREAKER_INTERVAL" default:"1m"`
}

// CheckoutConfig carries the pricing policy and session lifetime.
type CheckoutConfig struct {
	Currency               string        `envconfig:"STOREFRONT_CURRENCY" default:"USD"`
	FlatShippingCents      int64         `envconfig:"STOREFRONT_FLAT_SHIPPING_CENTS" default:"0"`
	FreeShippingAboveCents int64         `envconfig:"STOREFRONT_FREE_SHIPPING_ABOVE_CENTS" default:"0"`
	TaxRateBps             int64         `envconfig:"STOREFRONT_TAX_RATE_BPS" default:"0"`
	SessionIdleTTL         time.Duration `envconfig:"STOREFRONT_SESSION_IDLE_TTL" default:"2h"`
	SweepInterval          time.Duration `envconfig:"STOREFRONT_SESSION_SWEEP_INTERVAL" default:"5m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"storefront-orders"`
}

// PubSubEnabled reports whether order events should be published.
func (c Config) PubSubEnabled() bool {
	return strings.TrimSpace(c.GCP.ProjectID) != "" && strings.TrimSpace(c.PubSub.OrdersTopic) != ""
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
