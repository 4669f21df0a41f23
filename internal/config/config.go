package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	sslModeDisable = "disable"
	sslModeRequire = "require"

	minJWTSecretLen = 32
)

type (
	Config struct {
		Host              string        `mapstructure:"HOST"`
		Port              string        `mapstructure:"PORT"`
		DBHost            string        `mapstructure:"DB_HOST"`
		DBPort            string        `mapstructure:"DB_PORT"`
		DBUser            string        `mapstructure:"DB_USER"`
		DBPassword        string        `mapstructure:"DB_PASSWORD"`
		DBName            string        `mapstructure:"DB_NAME"`
		DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
		DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
		DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
		DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
		JWTSecret         string        `mapstructure:"JWT_SECRET"`
		JWTAccessTTL      time.Duration `mapstructure:"JWT_ACCESS_TTL"`
		JWTRefreshTTL     time.Duration `mapstructure:"JWT_REFRESH_TTL"`
		RedisURL          string        `mapstructure:"REDIS_URL"`
		SystemUserEmail   string        `mapstructure:"SYSTEM_USER_EMAIL"`
		LogDevelopment    bool          `mapstructure:"LOG_DEVELOPMENT"`
		AuthRateLimit     float64       `mapstructure:"AUTH_RATE_LIMIT"`
	}
)

var defaults = map[string]interface{}{
	"HOST":                 "0.0.0.0",
	"PORT":                 "1323",
	"DB_HOST":              "0.0.0.0",
	"DB_PORT":              "5432",
	"DB_USER":              "user",
	"DB_PASSWORD":          "password",
	"DB_NAME":              "db",
	"DB_SSL_MODE":          sslModeDisable,
	"DB_MAX_OPEN_CONNS":    10,
	"DB_MAX_IDLE_CONNS":    5,
	"DB_CONN_MAX_LIFETIME": "30m",
	"JWT_SECRET":           "",
	"JWT_ACCESS_TTL":       "1h",
	"JWT_REFRESH_TTL":      "168h",
	"REDIS_URL":            "",
	"SYSTEM_USER_EMAIL":    "system@jobboard.local",
	"LOG_DEVELOPMENT":      false,
	"AUTH_RATE_LIMIT":      5.0,
}

func NewConfig() (*Config, error) {
	// a missing .env file is fine, the environment may already be populated
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("JOBBOARD")

	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DBSSLMode != sslModeDisable && cfg.DBSSLMode != sslModeRequire {
		return errors.New(fmt.Sprintf("DB SSL mode is invalid: %s", cfg.DBSSLMode))
	}
	if len(cfg.JWTSecret) < minJWTSecretLen {
		return errors.New(fmt.Sprintf("JWT secret must be at least %d characters", minJWTSecretLen))
	}
	if cfg.DBMaxOpenConns <= 0 || cfg.DBMaxIdleConns < 0 {
		return errors.New("DB pool sizes must be positive")
	}
	if cfg.JWTAccessTTL <= 0 || cfg.JWTRefreshTTL <= 0 {
		return errors.New("JWT lifetimes must be positive")
	}
	if cfg.AuthRateLimit <= 0 {
		return errors.New("auth rate limit must be positive")
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return c.Host + ":" + c.Port
}
