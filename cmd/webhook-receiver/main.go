// Command webhook-receiver is a development endpoint for lifecycle webhooks.
// It verifies the X-Signature header and offers success, slow and failing routes.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

type receiverConfig struct {
	Port      string        `env:"PORT" envDefault:"9090"`
	Secret    string        `env:"WEBHOOK_SECRET"`
	SlowDelay time.Duration `env:"RECEIVER_SLOW_DELAY" envDefault:"3s"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := env.ParseAs[receiverConfig]()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Secret == "" {
		logger.Warn("WEBHOOK_SECRET is empty; signatures are checked against an empty key")
	}

	logger.Info("webhook receiver starting",
		"port", cfg.Port,
		"routes", []string{"POST /webhook/success", "POST /webhook/slow", "POST /webhook/fail", "GET /stats"},
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newReceiver(cfg.Secret, cfg.SlowDelay, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
