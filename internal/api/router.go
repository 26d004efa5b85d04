package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Priya8975/identity-service/internal/cookies"
	"github.com/Priya8975/identity-service/internal/engine"
)

const AuthBasePath = "/api/auth"

// Deps are the collaborators served by the HTTP router.
type Deps struct {
	Auth     *engine.Engine
	Rewriter *cookies.Rewriter
	Checks   []Check
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware(deps.Auth.IsTrustedOrigin))

	r.Get("/health", HealthHandler(deps.Checks...))

	auth := http.Handler(deps.Auth.Routes())
	if deps.Rewriter != nil {
		auth = deps.Rewriter.Middleware(auth)
	}
	r.Mount(AuthBasePath, auth)

	r.With(deps.Auth.Middleware).Get("/api/me", meHandler)

	return r
}

// meHandler returns the caller's session as resolved by the auth middleware.
func meHandler(w http.ResponseWriter, r *http.Request) {
	sess := engine.SessionFromContext(r.Context())
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

var (
	allowedMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}, ", ")
	exposedHeaders = "set-auth-token, set-auth-jwt"
)

// corsMiddleware answers browsers from trusted origins with credentials
// allowed. Other origins get no CORS headers.
func corsMiddleware(trusted func(origin string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && trusted(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", allowedMethods)
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Set("Access-Control-Expose-Headers", exposedHeaders)
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
