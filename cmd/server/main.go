package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/identity-service/internal/activity"
	"github.com/Priya8975/identity-service/internal/api"
	"github.com/Priya8975/identity-service/internal/assets"
	"github.com/Priya8975/identity-service/internal/capability"
	"github.com/Priya8975/identity-service/internal/config"
	"github.com/Priya8975/identity-service/internal/cookies"
	"github.com/Priya8975/identity-service/internal/email"
	"github.com/Priya8975/identity-service/internal/engine"
	"github.com/Priya8975/identity-service/internal/hooks"
	"github.com/Priya8975/identity-service/internal/store"
	"github.com/Priya8975/identity-service/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Warn("configuration warning", "warning", w)
	}
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(ctx, cfg.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	licensed := capability.Licensed(cfg.LicenseKey, cfg.LicensePublicKey, logger)
	caps := capability.Compose(licensed)
	logger.Info("capabilities composed", "licensed", licensed, "capabilities", caps.Kinds())

	bus, err := lifecycleBus(ctx, cfg, caps, logger)
	if err != nil {
		logger.Error("failed to configure lifecycle hooks", "error", err)
		os.Exit(1)
	}

	jwtKey, err := engine.ParseEd25519PrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		logger.Error("invalid JWT_PRIVATE_KEY", "error", err)
		os.Exit(1)
	}

	var authEngine *engine.Engine
	hub := activity.NewHub(func(origin string) bool { return authEngine.IsTrustedOrigin(origin) }, logger)
	go hub.Run(ctx)

	authEngine, err = engine.New(engine.Config{
		BasePath:                 api.AuthBasePath,
		BaseURL:                  cfg.AuthURL,
		Secret:                   cfg.AuthSecret,
		BaseDomain:               cfg.BaseDomain,
		CookiePrefix:             cfg.CookiePrefix,
		TrustedOrigins:           cfg.TrustedOrigins,
		SessionTTL:               cfg.SessionTTL,
		SessionCacheTTL:          cfg.SessionCacheTTL,
		RequireEmailVerification: cfg.RequireEmailVerification,
		SignInRateLimit:          cfg.SignInRateLimit,
		SignInRateWindow:         cfg.SignInRateWindow,
		PwnedAPIURL:              cfg.PwnedAPIURL,
		JWTKey:                   jwtKey,
		Providers: engine.SocialProviders(cfg.AuthURL+api.AuthBasePath, []engine.ProviderCredentials{
			{Name: "google", ClientID: cfg.Social.GoogleClientID, ClientSecret: cfg.Social.GoogleClientSecret},
			{Name: "github", ClientID: cfg.Social.GithubClientID, ClientSecret: cfg.Social.GithubClientSecret},
			{Name: "microsoft", ClientID: cfg.Social.MicrosoftClientID, ClientSecret: cfg.Social.MicrosoftClientSecret},
		}),
	}, pgStore, bus, caps, engine.Options{
		Cache:        redisStore,
		Limiter:      engine.NewRateLimiter(redisStore.Client(), logger),
		Breaker:      engine.NewCircuitBreaker(redisStore.Client(), cfg.BreakerThreshold, cfg.BreakerCooldown, logger),
		Activity:     activity.Multi(activity.NewLogSink(logger), hub),
		ActivityFeed: hub,
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
	}, logger)
	if err != nil {
		logger.Error("failed to configure auth engine", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(api.Deps{
		Auth:     authEngine,
		Rewriter: cookies.NewRewriter(api.AuthBasePath, logger),
		Checks: []api.Check{
			{Name: "postgres", Ping: pgStore.Ping},
			{Name: "redis", Ping: redisStore.Ping},
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()

	logger.Info("server stopped")
}

// lifecycleBus builds the hook bus and binds the orchestrator's side effects
// for whichever integrations are configured.
func lifecycleBus(ctx context.Context, cfg *config.Config, caps capability.Set, logger *slog.Logger) (*hooks.Bus, error) {
	var deps hooks.Deps

	if cfg.AWS.S3Bucket != "" {
		s3Client, err := assets.NewS3Client(ctx, assets.S3Config{
			Region:          cfg.AWS.S3Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			EndpointURL:     cfg.AWS.S3Endpoint,
		})
		if err != nil {
			return nil, err
		}
		deps.Assets = assets.NewIngester(s3Client, cfg.AWS.S3Region, cfg.AssetFetchTimeout, logger)
		deps.Bucket = cfg.AWS.S3Bucket
	}

	sesClient, err := email.NewSESClient(ctx, cfg.AWS.Region, cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey)
	if err != nil {
		return nil, err
	}
	deps.Mailer = email.NewSender(sesClient, email.SenderConfig{
		From:        cfg.Email.SenderEmail,
		ContactList: cfg.Email.ContactList,
		Topic:       cfg.Email.Topic,
	}, logger)
	deps.Renderer = email.NewRenderer(os.DirFS(cfg.Email.TemplatesDir))

	if cfg.WebhookEndpoint != "" {
		deps.Webhooks = webhook.NewDispatcher(webhook.Config{
			Endpoint: cfg.WebhookEndpoint,
			Secret:   cfg.WebhookSecret,
			Timeout:  cfg.WebhookTimeout,
		}, logger)
	}

	bus := hooks.NewBus()
	hooks.NewOrchestrator(deps, logger).Register(bus, caps)
	return bus, nil
}
