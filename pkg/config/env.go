package config

// EnvPrefix is empty because every field carries its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverRedis    = "redis"
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
)

const (
	EnvAppEnv         = "STOREFRONT_APP_ENV"
	EnvPort           = "STOREFRONT_APP_PORT"
	EnvCORSOrigins    = "STOREFRONT_CORS_ORIGINS"
	EnvJWTSecret      = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer      = "STOREFRONT_JWT_ISSUER"
	EnvStorageDriver  = "STOREFRONT_STORAGE_DRIVER"
	EnvDBDSN          = "STOREFRONT_DB_DSN"
	EnvDBHost         = "STOREFRONT_DB_HOST"
	EnvDBUser         = "STOREFRONT_DB_USER"
	EnvDBName         = "STOREFRONT_DB_NAME"
	EnvRedisURL       = "STOREFRONT_REDIS_URL"
	EnvRedisAddr      = "STOREFRONT_REDIS_ADDR"
	EnvOrdersBaseURL  = "STOREFRONT_ORDERS_BASE_URL"
	EnvCouponsBaseURL = "STOREFRONT_COUPONS_BASE_URL"
	EnvTaxRateBps     = "STOREFRONT_TAX_RATE_BPS"
	EnvGCPProjectID   = "STOREFRONT_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
