package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	RateLimit    RateLimitConfig
	Checkout     CheckoutConfig
	Coupons      CouponsConfig
	VNPay        VNPayConfig
	Stripe       StripeConfig
	Square       SquareConfig
	Sendgrid     SendgridConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Sweeper      SweeperConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPCORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPCORE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SHOPCORE_LOG_FORMAT" default:"json"`
	PublicURL    string `envconfig:"SHOPCORE_PUBLIC_URL" default:"http://localhost:8080"`
	CORSOrigins  string `envconfig:"SHOPCORE_CORS_ORIGINS" default:"http://localhost:3000"`
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPCORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPCORE_DB_DSN"`
	Driver string `envconfig:"SHOPCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPCORE_DB_USER"`
	LegacyPassword string `envconfig:"SHOPCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPCORE_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"SHOPCORE_SQLITE_PATH" default:"file:shopcore.db?_busy_timeout=5000"`

	MaxOpenConns    int           `envconfig:"SHOPCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// TxTimeout bounds every settlement transaction; a timed-out transaction rolls back.
	TxTimeout time.Duration `envconfig:"SHOPCORE_DB_TX_TIMEOUT" default:"15s"`
	// TxRetries reruns a transaction that lost a serialization or deadlock race.
	TxRetries int `envconfig:"SHOPCORE_DB_TX_RETRIES" default:"2"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPCORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPCORE_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPCORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPCORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOPCORE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPCORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPCORE_AUTO_MIGRATE" default:"false"`
	// GatewayTestMode lets gateway adapters accept unsigned callbacks. It has no
	// effect in binaries built with the production tag.
	GatewayTestMode bool `envconfig:"SHOPCORE_GATEWAY_TEST_MODE" default:"false"`
}

type EventingConfig struct {
	WebhookReplayTTL       time.Duration `envconfig:"SHOPCORE_WEBHOOK_REPLAY_TTL" default:"72h"`
	CheckoutIdempotencyTTL time.Duration `envconfig:"SHOPCORE_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
	NotificationMarkerTTL  time.Duration `envconfig:"SHOPCORE_NOTIFICATION_MARKER_TTL" default:"168h"`
}

// RateLimitConfig throttles checkout and payment retries per client IP and
// per customer email, and public order lookups per IP and per order number.
// A zero window disables that limiter.
type RateLimitConfig struct {
	CheckoutWindow     time.Duration `envconfig:"SHOPCORE_CHECKOUT_RATE_WINDOW" default:"1m"`
	CheckoutIPLimit    int           `envconfig:"SHOPCORE_CHECKOUT_RATE_IP_LIMIT" default:"20"`
	CheckoutEmailLimit int           `envconfig:"SHOPCORE_CHECKOUT_RATE_EMAIL_LIMIT" default:"5"`
	LookupWindow       time.Duration `envconfig:"SHOPCORE_LOOKUP_RATE_WINDOW" default:"1m"`
	LookupIPLimit      int           `envconfig:"SHOPCORE_LOOKUP_RATE_IP_LIMIT" default:"30"`
	LookupNumberLimit  int           `envconfig:"SHOPCORE_LOOKUP_RATE_NUMBER_LIMIT" default:"10"`
}

type CheckoutConfig struct {
	AmountEpsilon     string `envconfig:"SHOPCORE_CHECKOUT_AMOUNT_EPSILON" default:"0.01"`
	AccessKeySecret   string `envconfig:"SHOPCORE_ORDER_ACCESS_KEY_SECRET" required:"true"`
	OrderNumberPrefix string `envconfig:"SHOPCORE_ORDER_NUMBER_PREFIX" default:"ORD"`
	DefaultCurrency   string `envconfig:"SHOPCORE_DEFAULT_CURRENCY" default:"USD"`
	ReturnBaseURL     string `envconfig:"SHOPCORE_PAYMENT_RETURN_BASE_URL" default:"http://localhost:8080/api/v1/payments"`
}

// Epsilon parses the tolerated gap between an order total and a gateway-reported amount.
func (c CheckoutConfig) Epsilon() decimal.Decimal {
	eps, err := decimal.NewFromString(strings.TrimSpace(c.AmountEpsilon))
	if err != nil || eps.IsNegative() {
		return decimal.RequireFromString("0.01")
	}
	return eps
}

func (c CheckoutConfig) validate() error {
	if _, err := decimal.NewFromString(strings.TrimSpace(c.AmountEpsilon)); err != nil {
		return fmt.Errorf("%s must be a decimal: %w", EnvCheckoutAmountEpsilon, err)
	}
	if len(c.AccessKeySecret) < 16 {
		return fmt.Errorf("%s must be at least 16 characters", EnvOrderAccessKeySecret)
	}
	return nil
}

// CouponsConfig seeds the static discount catalog, e.g. "WELCOME10:percent:10:0,FLAT5:fixed:5:20".
type CouponsConfig struct {
	Catalog string `envconfig:"SHOPCORE_COUPONS"`
}

type VNPayConfig struct {
	TmnCode    string `envconfig:"SHOPCORE_VNPAY_TMN_CODE"`
	HashSecret string `envconfig:"SHOPCORE_VNPAY_HASH_SECRET"`
	PayURL     string `envconfig:"SHOPCORE_VNPAY_PAY_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	Version    string `envconfig:"SHOPCORE_VNPAY_VERSION" default:"2.1.0"`
	Locale     string `envconfig:"SHOPCORE_VNPAY_LOCALE" default:"vn"`
}

// Enabled reports whether the VNPay adapter has credentials.
func (v VNPayConfig) Enabled() bool {
	return strings.TrimSpace(v.TmnCode) != "" && strings.TrimSpace(v.HashSecret) != ""
}

type StripeConfig struct {
	APIKey     string `envconfig:"SHOPCORE_STRIPE_API_KEY"`
	Secret     string `envconfig:"SHOPCORE_STRIPE_SECRET"`
	Env        string `envconfig:"SHOPCORE_STRIPE_ENV" default:"test"`
	SuccessURL string `envconfig:"SHOPCORE_STRIPE_SUCCESS_URL"`
	CancelURL  string `envconfig:"SHOPCORE_STRIPE_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether the Stripe adapter has credentials.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type SquareConfig struct {
	AccessToken   string `envconfig:"SHOPCORE_SQUARE_ACCESS_TOKEN"`
	Env           string `envconfig:"SHOPCORE_SQUARE_ENV" default:"sandbox"`
	LocationID    string `envconfig:"SHOPCORE_SQUARE_LOCATION_ID"`
	WebhookSecret string `envconfig:"SHOPCORE_SQUARE_WEBHOOK_SECRET"`
	WebhookURL    string `envconfig:"SHOPCORE_SQUARE_WEBHOOK_URL"`
}

// Environment returns the configured Square environment.
func (s SquareConfig) Environment() string {
	return strings.TrimSpace(strings.ToLower(s.Env))
}

// Enabled reports whether the Square adapter has credentials.
func (s SquareConfig) Enabled() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

type SendgridConfig struct {
	APIKey      string `envconfig:"SHOPCORE_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"SHOPCORE_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"SHOPCORE_SENDGRID_FROM_NAME" default:"Shopcore"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SHOPCORE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"SHOPCORE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic         string `envconfig:"SHOPCORE_PUBSUB_ORDERS_TOPIC" default:"shopcore-orders"`
	PaymentsTopic       string `envconfig:"SHOPCORE_PUBSUB_PAYMENTS_TOPIC" default:"shopcore-payments"`
	FulfillmentTopic    string `envconfig:"SHOPCORE_PUBSUB_FULFILLMENT_TOPIC" default:"shopcore-fulfillment"`
	OrdersSubscription  string `envconfig:"SHOPCORE_PUBSUB_ORDERS_SUBSCRIPTION"`
	PaymentSubscription string `envconfig:"SHOPCORE_PUBSUB_PAYMENTS_SUBSCRIPTION"`
	// FulfillmentSubscription feeds the digital delivery mailer in cmd/worker.
	FulfillmentSubscription string `envconfig:"SHOPCORE_PUBSUB_FULFILLMENT_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHOPCORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHOPCORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHOPCORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// SweeperConfig drives cmd/cron-worker.
type SweeperConfig struct {
	Interval         time.Duration `envconfig:"SHOPCORE_SWEEPER_INTERVAL" default:"15m"`
	LockTTL          time.Duration `envconfig:"SHOPCORE_SWEEPER_LOCK_TTL" default:"10m"`
	UnpaidOrderTTL   time.Duration `envconfig:"SHOPCORE_UNPAID_ORDER_TTL" default:"24h"`
	ExpiryBatchSize  int           `envconfig:"SHOPCORE_UNPAID_ORDER_BATCH" default:"200"`
	OutboxRetention  time.Duration `envconfig:"SHOPCORE_OUTBOX_RETENTION" default:"720h"`
	OutboxPruneBatch int           `envconfig:"SHOPCORE_OUTBOX_PRUNE_BATCH" default:"1000"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
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
