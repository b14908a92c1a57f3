package auth

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// EnvConfig is the environment-backed service configuration. It satisfies
// the Config interface consumed by the token service and the HTTP
// controller.
type EnvConfig struct {
	Port  string `env:"API_PORT" envDefault:"9000"`
	Debug bool   `env:"DEBUG" envDefault:"false"`

	DSN             string        `env:"DATABASE_DSN" envDefault:"file:auth.db?cache=shared"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	ChallengePrefix string        `env:"OTP_KEY_PREFIX" envDefault:"otp"`
	ChallengeTTL    time.Duration `env:"OTP_TTL" envDefault:"1h"`

	SigningKey      string   `env:"JWT_SECRET,required"`
	TokenExpiration int      `env:"JWT_EXPIRATION_HOURS" envDefault:"24"`
	CookieName      string   `env:"JWT_COOKIE_NAME" envDefault:"gubi"`
	Issuer          string   `env:"JWT_ISSUER" envDefault:"go-auth-service"`
	Audience        []string `env:"JWT_AUDIENCE" envSeparator:","`

	SMTPHost      string        `env:"EMAIL_HOST"`
	SMTPPort      string        `env:"EMAIL_PORT" envDefault:"587"`
	EmailAddress  string        `env:"EMAIL_ADDRESS"`
	EmailPassword string        `env:"EMAIL_PASSWORD"`
	MailTimeout   time.Duration `env:"MAIL_TIMEOUT" envDefault:"10s"`
	VerifyURL     string        `env:"VERIFY_URL"`
}

var _ Config = (*EnvConfig)(nil)

// NewConfigFromEnv reads the configuration from process environment
// variables.
func NewConfigFromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse environment configuration")
	}
	return cfg, nil
}

func (c *EnvConfig) GetSigningKey() string {
	return c.SigningKey
}

// GetContextKey is the session cookie name.
func (c *EnvConfig) GetContextKey() string {
	return c.CookieName
}

// GetTokenExpiration is the session validity window in hours.
func (c *EnvConfig) GetTokenExpiration() int {
	return c.TokenExpiration
}

func (c *EnvConfig) GetIssuer() string {
	return c.Issuer
}

func (c *EnvConfig) GetAudience() []string {
	return c.Audience
}
