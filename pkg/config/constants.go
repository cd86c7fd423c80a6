package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "ENAMEL"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv     = "ENAMEL_APP_ENV"
	EnvPort       = "ENAMEL_APP_PORT"
	EnvDBDSN      = "ENAMEL_DB_DSN"
	EnvDBHost     = "ENAMEL_DB_HOST"
	EnvDBUser     = "ENAMEL_DB_USER"
	EnvDBName     = "ENAMEL_DB_NAME"
	EnvRedisURL   = "ENAMEL_REDIS_URL"
	EnvJWTSecret  = "ENAMEL_JWT_SECRET"
	EnvJWTIssuer  = "ENAMEL_JWT_ISSUER"
	EnvJWTExpMins = "ENAMEL_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
