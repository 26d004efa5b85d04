package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Priya8975/identity-service/internal/webhook"
)

type receiver struct {
	secret    string
	slowDelay time.Duration
	logger    *slog.Logger

	received atomic.Int64
	rejected atomic.Int64
}

func newReceiver(secret string, slowDelay time.Duration, logger *slog.Logger) http.Handler {
	rc := &receiver{secret: secret, slowDelay: slowDelay, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/webhook/success", rc.verified(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}))
	r.Post("/webhook/slow", rc.verified(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(rc.slowDelay):
		case <-r.Context().Done():
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "received (slow)"})
	}))
	r.Post("/webhook/fail", rc.verified(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}))
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]int64{
			"total_requests":    rc.received.Load(),
			"rejected_requests": rc.rejected.Load(),
		})
	})

	return r
}

// verified checks the body against X-Signature before calling next. The
// event is logged either way.
func (rc *receiver) verified(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count := rc.received.Add(1)

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
			return
		}

		var event webhook.Event
		_ = json.Unmarshal(body, &event)

		signature := r.Header.Get(webhook.SignatureHeader)
		if !webhook.Verify(body, signature, rc.secret) {
			rc.rejected.Add(1)
			rc.logger.Warn("webhook signature mismatch",
				"request", count,
				"path", r.URL.Path,
				"event_type", event.Type,
			)
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
			return
		}

		rc.logger.Info("webhook received",
			"request", count,
			"path", r.URL.Path,
			"event_type", event.Type,
			"signature", truncate(signature, 16),
		)
		next(w, r)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
