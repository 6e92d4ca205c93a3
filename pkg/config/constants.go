package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvRazorpayKeyID         = "STOREFRONT_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret     = "STOREFRONT_RAZORPAY_KEY_SECRET"
	EnvRazorpayWebhookSecret = "STOREFRONT_RAZORPAY_WEBHOOK_SECRET"

	EnvGCPProjectID       = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubPaymentTopic = "STOREFRONT_PUBSUB_PAYMENT_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
