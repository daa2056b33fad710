package config

const (
	EnvPrefix = "SHOPCORE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv = "SHOPCORE_APP_ENV"
	EnvPort   = "SHOPCORE_APP_PORT"

	EnvDBDSN  = "SHOPCORE_DB_DSN"
	EnvDBHost = "SHOPCORE_DB_HOST"
	EnvDBUser = "SHOPCORE_DB_USER"
	EnvDBName = "SHOPCORE_DB_NAME"

	EnvUseSQLite       = "SHOPCORE_USE_SQLITE"
	EnvRedisURL        = "SHOPCORE_REDIS_URL"
	EnvJWTSecret       = "SHOPCORE_JWT_SECRET"
	EnvJWTIssuer       = "SHOPCORE_JWT_ISSUER"
	EnvGatewayTestMode = "SHOPCORE_GATEWAY_TEST_MODE"

	EnvCheckoutAmountEpsilon = "SHOPCORE_CHECKOUT_AMOUNT_EPSILON"
	EnvOrderAccessKeySecret  = "SHOPCORE_ORDER_ACCESS_KEY_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
