package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. It is loaded once at
// startup and must not be modified afterwards.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"10000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	BaseDomain     string   `env:"BASE_DOMAIN" envDefault:"localhost"`
	AuthSecret     string   `env:"AUTH_SECRET"`
	AuthURL        string   `env:"AUTH_URL" envDefault:"http://localhost:10000"`
	TrustedOrigins []string `env:"TRUSTED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	DatabaseURL   string `env:"DATABASE_STRING,required,notEmpty"`
	RedisURL      string `env:"REDIS_URL,required,notEmpty"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	Social SocialConfig
	AWS    AWSConfig
	Email  EmailConfig

	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookEndpoint   string        `env:"WEBHOOK_EP"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	AssetFetchTimeout time.Duration `env:"ASSET_FETCH_TIMEOUT" envDefault:"15s"`

	RequireEmailVerification bool          `env:"REQUIRE_EMAIL_VERIFICATION" envDefault:"false"`
	CookiePrefix             string        `env:"COOKIE_PREFIX" envDefault:"rhobots"`
	SessionTTL               time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	SessionCacheTTL          time.Duration `env:"SESSION_CACHE_TTL" envDefault:"5m"`
	SignInRateLimit          int           `env:"SIGN_IN_RATE_LIMIT" envDefault:"10"`
	SignInRateWindow         time.Duration `env:"SIGN_IN_RATE_WINDOW" envDefault:"10s"`
	PwnedAPIURL              string        `env:"PWNED_API_URL" envDefault:"https://api.pwnedpasswords.com/range/"`
	BreakerThreshold         int           `env:"BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown          time.Duration `env:"BREAKER_COOLDOWN" envDefault:"30s"`

	// LicenseKey is an EdDSA signed JWT; LicensePublicKey is the base64 ed25519 key that verifies it.
	LicenseKey       string `env:"EE_LICENSE_KEY"`
	LicensePublicKey string `env:"EE_LICENSE_PUBLIC_KEY"`
	// JWTPrivateKey is a base64 ed25519 seed or private key. A key is generated per process when empty.
	JWTPrivateKey string `env:"JWT_PRIVATE_KEY"`
}

type SocialConfig struct {
	GoogleClientID        string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `env:"GOOGLE_CLIENT_SECRET"`
	GithubClientID        string `env:"GITHUB_CLIENT_ID"`
	GithubClientSecret    string `env:"GITHUB_CLIENT_SECRET"`
	MicrosoftClientID     string `env:"MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `env:"MICROSOFT_CLIENT_SECRET"`
}

type AWSConfig struct {
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `env:"AWS_REGION" envDefault:"ap-south-1"`
	S3Region        string `env:"AWS_S3_REGION" envDefault:"ap-south-1"`
	S3Bucket        string `env:"AWS_S3_BUCKET"`
	S3Endpoint      string `env:"AWS_S3_ENDPOINT"`
}

type EmailConfig struct {
	SenderEmail  string `env:"AWS_SENDER_EMAIL"`
	TemplatesDir string `env:"EMAIL_TEMPLATES_DIR" envDefault:"email_templates"`
	ContactList  string `env:"EMAIL_CONTACT_LIST" envDefault:"General"`
	Topic        string `env:"EMAIL_TOPIC" envDefault:"Account"`
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment variables
// take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parse()
}

func parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.TrustedOrigins = normalizeOrigins(cfg.TrustedOrigins)
	cfg.BaseDomain = strings.TrimPrefix(strings.TrimSpace(cfg.BaseDomain), ".")
	cfg.AuthURL = strings.TrimSuffix(cfg.AuthURL, "/")

	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// Validate reports configuration that is accepted but weak (warnings) and
// configuration that must stop startup (error).
func (c *Config) Validate() (warnings []string, err error) {
	var errs []error

	if c.AuthSecret == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("AUTH_SECRET is required in production"))
		} else {
			warnings = append(warnings, "AUTH_SECRET is empty; sessions are signed with an empty key")
		}
	}
	if c.WebhookSecret == "" {
		warnings = append(warnings, "WEBHOOK_SECRET is empty; webhook signatures are weak")
	}
	if c.WebhookEndpoint == "" {
		warnings = append(warnings, "WEBHOOK_EP is empty; lifecycle webhooks are disabled")
	}
	if c.Email.SenderEmail == "" {
		warnings = append(warnings, "AWS_SENDER_EMAIL is empty; emails are not sent")
	}
	if c.AWS.S3Bucket == "" {
		warnings = append(warnings, "AWS_S3_BUCKET is empty; profile pictures are not mirrored")
	}
	if c.JWTPrivateKey == "" {
		warnings = append(warnings, "JWT_PRIVATE_KEY is empty; a signing key is generated and tokens do not survive restarts")
	}
	if _, perr := url.Parse(c.AuthURL); perr != nil || c.AuthURL == "" {
		errs = append(errs, fmt.Errorf("AUTH_URL %q is not a valid URL", c.AuthURL))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.SessionCacheTTL < 0 {
		errs = append(errs, errors.New("SESSION_CACHE_TTL must not be negative"))
	}

	return warnings, errors.Join(errs...)
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	level, _ := ParseLogLevel(c.LogLevel)
	return level
}

func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
