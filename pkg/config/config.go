package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Stripe      StripeConfig
	Idempotency IdempotencyConfig
	Session     SessionConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ENAMEL_APP_ENV" required:"true"`
	Port         string `envconfig:"ENAMEL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ENAMEL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ENAMEL_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"ENAMEL_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ENAMEL_DB_DSN"`
	Driver string `envconfig:"ENAMEL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ENAMEL_DB_HOST"`
	LegacyPort     int    `envconfig:"ENAMEL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ENAMEL_DB_USER"`
	LegacyPassword string `envconfig:"ENAMEL_DB_PASSWORD"`
	LegacyName     string `envconfig:"ENAMEL_DB_NAME"`
	LegacySSLMode  string `envconfig:"ENAMEL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ENAMEL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ENAMEL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ENAMEL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ENAMEL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ENAMEL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ENAMEL_REDIS_ADDR"`
	Password     string        `envconfig:"ENAMEL_REDIS_PASSWORD"`
	DB           int           `envconfig:"ENAMEL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ENAMEL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ENAMEL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ENAMEL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ENAMEL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ENAMEL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ENAMEL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ENAMEL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ENAMEL_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiration returns the access token TTL configured in minutes.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type StripeConfig struct {
	APIKey         string `envconfig:"ENAMEL_STRIPE_API_KEY"`
	Secret         string `envconfig:"ENAMEL_STRIPE_WEBHOOK_SECRET"`
	Env            string `envconfig:"ENAMEL_STRIPE_ENV" default:"test"`
	ReturnURL      string `envconfig:"ENAMEL_STRIPE_RETURN_URL"`
	MinChargeTetri int64  `envconfig:"ENAMEL_STRIPE_MIN_CHARGE_TETRI" default:"50"`
	MaxChargeTetri int64  `envconfig:"ENAMEL_STRIPE_MAX_CHARGE_TETRI" default:"100000000"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type IdempotencyConfig struct {
	WebhookTTL time.Duration `envconfig:"ENAMEL_IDEMPOTENCY_WEBHOOK_TTL" default:"24h"`
	RequestTTL time.Duration `envconfig:"ENAMEL_IDEMPOTENCY_REQUEST_TTL" default:"24h"`
}

type SessionConfig struct {
	GuestCartTTL time.Duration `envconfig:"ENAMEL_SESSION_GUEST_CART_TTL" default:"720h"`
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
