package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_STRING", "postgres://localhost/identity")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
}

func TestParse_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := parse()
	require.NoError(t, err)

	assert.Equal(t, "10000", cfg.Port)
	assert.Equal(t, "localhost", cfg.BaseDomain)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.TrustedOrigins)
	assert.Equal(t, "rhobots", cfg.CookiePrefix)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.SessionCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, "ap-south-1", cfg.AWS.S3Region)
	assert.Equal(t, "email_templates", cfg.Email.TemplatesDir)
	assert.Equal(t, "General", cfg.Email.ContactList)
	assert.Equal(t, "Account", cfg.Email.Topic)
	assert.False(t, cfg.RequireEmailVerification)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestParse_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TRUSTED_ORIGINS", " https://app.example.com/ ,https://admin.example.com,")
	t.Setenv("BASE_DOMAIN", ".example.com")
	t.Setenv("AUTH_URL", "https://auth.example.com/")
	t.Setenv("WEBHOOK_TIMEOUT", "3s")
	t.Setenv("REQUIRE_EMAIL_VERIFICATION", "true")
	t.Setenv("GOOGLE_CLIENT_ID", "gid")
	t.Setenv("AWS_SENDER_EMAIL", "noreply@example.com")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := parse()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.TrustedOrigins)
	assert.Equal(t, "example.com", cfg.BaseDomain)
	assert.Equal(t, "https://auth.example.com", cfg.AuthURL)
	assert.Equal(t, 3*time.Second, cfg.WebhookTimeout)
	assert.True(t, cfg.RequireEmailVerification)
	assert.Equal(t, "gid", cfg.Social.GoogleClientID)
	assert.Equal(t, "noreply@example.com", cfg.Email.SenderEmail)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestParse_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_STRING", "")
	t.Setenv("REDIS_URL", "")

	_, err := parse()
	assert.Error(t, err)
}

func TestParse_InvalidLogLevel(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "loud")

	_, err := parse()
	assert.ErrorContains(t, err, "LOG_LEVEL")
}

func TestValidate(t *testing.T) {
	setRequired(t)
	cfg, err := parse()
	require.NoError(t, err)

	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)

	cfg.AppEnv = "production"
	_, err = cfg.Validate()
	assert.ErrorContains(t, err, "AUTH_SECRET")

	cfg.AuthSecret = "s"
	cfg.WebhookSecret = "w"
	cfg.WebhookEndpoint = "https://hooks.example.com"
	cfg.Email.SenderEmail = "noreply@example.com"
	cfg.AWS.S3Bucket = "avatars"
	cfg.JWTPrivateKey = "key"
	warnings, err = cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)
}
