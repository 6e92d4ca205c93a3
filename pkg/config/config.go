package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Razorpay     RazorpayConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Reconcile    ReconcileConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Razorpay.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"STOREFRONT_DB_DSN"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// JWTConfig holds the verification settings for admin bearer tokens.
type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RazorpayConfig carries the gateway credentials. All three values are
// mandatory; the webhook secret is checked again per request.
type RazorpayConfig struct {
	KeyID         string `envconfig:"STOREFRONT_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"STOREFRONT_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"STOREFRONT_RAZORPAY_WEBHOOK_SECRET"`
}

func (r RazorpayConfig) validate() error {
	missing := []string{}
	for name, value := range map[string]string{
		EnvRazorpayKeyID:         r.KeyID,
		EnvRazorpayKeySecret:     r.KeySecret,
		EnvRazorpayWebhookSecret: r.WebhookSecret,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing razorpay configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

type WebhookConfig struct {
	EventIdempotencyTTL time.Duration `envconfig:"STOREFRONT_WEBHOOK_EVENT_TTL" default:"72h"`
	MaxBodyBytes        int64         `envconfig:"STOREFRONT_WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	PaymentTopic string `envconfig:"STOREFRONT_PUBSUB_PAYMENT_TOPIC" default:"storefront-payment-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"STOREFRONT_OUTBOX_RETENTION_DAYS" default:"30"`
}

// ReconcileConfig drives the background reconciliation jobs.
type ReconcileConfig struct {
	Interval         time.Duration `envconfig:"STOREFRONT_RECONCILE_INTERVAL" default:"5m"`
	InventoryGrace   time.Duration `envconfig:"STOREFRONT_RECONCILE_INVENTORY_GRACE" default:"10m"`
	RefundStaleAfter time.Duration `envconfig:"STOREFRONT_RECONCILE_REFUND_STALE_AFTER" default:"30m"`
	BatchSize        int           `envconfig:"STOREFRONT_RECONCILE_BATCH_SIZE" default:"100"`
	LockTTL          time.Duration `envconfig:"STOREFRONT_RECONCILE_LOCK_TTL" default:"4m"`
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
