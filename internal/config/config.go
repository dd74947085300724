package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	devAccessSecret  = "dev-access-secret-change-me"
	devRefreshSecret = "dev-refresh-secret-change-me"
)

// Config centraliza la configuración del servicio.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"5000"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	ClientURL   string `env:"CLIENT_URL" envDefault:"http://localhost:3000"`

	JWTAccessSecret  string        `env:"JWT_SECRET" envDefault:"dev-access-secret-change-me"`
	JWTAccessTTL     time.Duration `env:"JWT_EXPIRES_IN" envDefault:"1h"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET" envDefault:"dev-refresh-secret-change-me"`
	JWTRefreshTTL    time.Duration `env:"JWT_REFRESH_EXPIRES_IN" envDefault:"168h"`
	JWTIssuer        string        `env:"JWT_ISSUER" envDefault:"pantry-to-plate"`
	BcryptCost       int           `env:"BCRYPT_COST" envDefault:"10"`

	// Si es false, forgot-password responde igual exista o no la cuenta.
	ResetDisclosesAccounts bool `env:"RESET_DISCLOSES_ACCOUNTS" envDefault:"false"`
	ResetRequestsPerWindow int  `env:"RESET_REQUESTS_PER_WINDOW" envDefault:"3"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@pantrytoplate.com"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Pantry to Plate"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

var (
	ErrDefaultAccessSecret  = errors.New("JWT_SECRET must be set in production")
	ErrDefaultRefreshSecret = errors.New("JWT_REFRESH_SECRET must be set in production")
	ErrSharedSecret         = errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
)

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction indica si el proceso corre con APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate rechaza secretos de desarrollo en producción.
func (c *Config) Validate() error {
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return ErrSharedSecret
	}
	if !c.IsProduction() {
		return nil
	}
	if c.JWTAccessSecret == devAccessSecret {
		return ErrDefaultAccessSecret
	}
	if c.JWTRefreshSecret == devRefreshSecret {
		return ErrDefaultRefreshSecret
	}
	return nil
}
