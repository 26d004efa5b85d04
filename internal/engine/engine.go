// Package engine implements the authentication routes: email and social
// sign-in, sessions, password reset, email verification and the optional
// capability modules.
package engine

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/markbates/goth"

	"github.com/Priya8975/identity-service/internal/capability"
	"github.com/Priya8975/identity-service/internal/domain"
	"github.com/Priya8975/identity-service/internal/hooks"
)

const (
	verificationTTL = time.Hour
	resetTokenTTL   = time.Hour
	oauthStateTTL   = 10 * time.Minute
	invitationTTL   = 48 * time.Hour
	jwtTTL          = 15 * time.Minute
)

type Config struct {
	// BasePath is where the engine is mounted, e.g. "/api/auth".
	BasePath string
	// BaseURL is the public origin of this service, e.g. "https://auth.example.com".
	BaseURL string
	Secret  string

	BaseDomain     string
	CookiePrefix   string
	TrustedOrigins []string

	SessionTTL               time.Duration
	SessionCacheTTL          time.Duration
	RequireEmailVerification bool

	SignInRateLimit  int
	SignInRateWindow time.Duration

	PwnedAPIURL string
	// JWTKey signs tokens issued by the jwt capability. Generated when nil.
	JWTKey ed25519.PrivateKey
	// Providers are the social login providers offered by the engine.
	Providers []goth.Provider
}

// Options carries optional collaborators.
type Options struct {
	Cache    SessionCache
	Limiter  *RateLimiter
	Activity ActivitySink
	// ActivityFeed serves the admin live activity stream.
	ActivityFeed http.Handler
	// HTTPClient is used for outbound lookups such as the breached password check.
	HTTPClient *http.Client
	// Breaker short-circuits outbound lookups after repeated failures.
	Breaker *CircuitBreaker
}

type Engine struct {
	cfg      Config
	store    Store
	cache    SessionCache
	limiter  *RateLimiter
	breaker  *CircuitBreaker
	activity ActivitySink
	feed     http.Handler
	bus      *hooks.Bus
	caps     capability.Set
	pwned    *PwnedChecker
	jwt      *jwtIssuer
	validate *validator.Validate
	routes   []routeInfo
	logger   *slog.Logger
	now      func() time.Time
}

func New(cfg Config, store Store, bus *hooks.Bus, caps capability.Set, opts Options, logger *slog.Logger) (*Engine, error) {
	cfg.BasePath = strings.TrimSuffix(cfg.BasePath, "/")
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.CookiePrefix == "" {
		cfg.CookiePrefix = "rhobots"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}

	e := &Engine{
		cfg:      cfg,
		store:    store,
		cache:    opts.Cache,
		limiter:  opts.Limiter,
		breaker:  opts.Breaker,
		activity: opts.Activity,
		feed:     opts.ActivityFeed,
		bus:      bus,
		caps:     caps,
		validate: newValidator(),
		logger:   logger,
		now:      time.Now,
	}
	if e.activity == nil {
		e.activity = noopActivitySink{}
	}

	if pw, ok := capability.Find[capability.HaveIBeenPwned](caps); ok {
		e.pwned = NewPwnedChecker(cfg.PwnedAPIURL, pw.CompromisedMessage, httpClient)
	}
	if caps.Has(capability.KindJWT) {
		issuer, err := newJWTIssuer(cfg.JWTKey, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring jwt: %w", err)
		}
		e.jwt = issuer
	}

	setupSocial(cfg)
	return e, nil
}

// Capabilities returns the capability set the engine was built with.
func (e *Engine) Capabilities() capability.Set {
	return e.caps
}

// Routes returns the auth router. Core routes are registered first, followed
// by each capability's routes in capability order.
func (e *Engine) Routes() chi.Router {
	r := chi.NewRouter()
	e.routes = nil

	e.handle(r, http.MethodPost, "/sign-up/email", "Sign up with email and password", e.signUpEmail)
	e.handle(r, http.MethodPost, "/sign-in/email", "Sign in with email and password", e.rateLimited(e.signInEmail))
	e.handle(r, http.MethodPost, "/sign-out", "Sign out the current session", e.signOut)
	e.handle(r, http.MethodGet, "/get-session", "Get the current session", e.getSession)
	e.handle(r, http.MethodGet, "/sign-in/social/{provider}", "Start a social sign in", e.signInSocial)
	e.handle(r, http.MethodGet, "/callback/{provider}", "Social sign in callback", e.socialCallback)
	e.handle(r, http.MethodPost, "/forget-password", "Request a password reset email", e.forgetPassword)
	e.handle(r, http.MethodGet, "/reset-password/{token}", "Follow a password reset link", e.resetPasswordCallback)
	e.handle(r, http.MethodPost, "/reset-password", "Reset the password with a token", e.resetPassword)
	e.handle(r, http.MethodPost, "/send-verification-email", "Send an email verification link", e.sendVerificationEmail)
	e.handle(r, http.MethodGet, "/verify-email", "Verify an email address", e.verifyEmail)

	for _, c := range e.caps.All() {
		switch c.(type) {
		case capability.Anonymous:
			e.handle(r, http.MethodPost, "/sign-in/anonymous", "Sign in as a guest", e.rateLimited(e.signInAnonymous))
		case capability.Admin:
			e.handle(r, http.MethodGet, "/admin/list-users", "List users", e.requireAdmin(e.listUsers))
			e.handle(r, http.MethodPost, "/admin/set-role", "Change a user's role", e.requireAdmin(e.setRole))
			e.handle(r, http.MethodPost, "/admin/ban-user", "Ban a user", e.requireAdmin(e.banUser))
			e.handle(r, http.MethodPost, "/admin/unban-user", "Unban a user", e.requireAdmin(e.unbanUser))
			if e.feed != nil {
				e.handle(r, http.MethodGet, "/admin/activity", "Live activity feed (websocket)", e.requireAdmin(e.feed.ServeHTTP))
			}
		case capability.OpenAPI:
			e.handle(r, http.MethodGet, "/reference", "OpenAPI description of these routes", e.openAPIReference)
		case capability.JWT:
			e.handle(r, http.MethodGet, "/token", "Issue a JWT for the current session", e.issueToken)
			e.handle(r, http.MethodGet, "/jwks", "JSON Web Key Set", e.jwks)
		case capability.Organization:
			e.handle(r, http.MethodPost, "/organization/create", "Create an organization", e.createOrganization)
			e.handle(r, http.MethodPost, "/organization/invite-member", "Invite a member", e.inviteMember)
			e.handle(r, http.MethodPost, "/organization/accept-invitation", "Accept an invitation", e.acceptInvitation)
		}
	}

	return r
}

type routeInfo struct {
	Method  string
	Path    string
	Summary string
}

func (e *Engine) handle(r chi.Router, method, path, summary string, h http.HandlerFunc) {
	r.Method(method, path, h)
	e.routes = append(e.routes, routeInfo{Method: method, Path: path, Summary: summary})
}

// createUser runs the before-create hooks, persists the user and runs the
// after-create hooks. A before-create failure aborts creation. After-create
// failures are logged; the user already exists at that point.
func (e *Engine) createUser(ctx context.Context, u *domain.User, acct *domain.Account) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if acct != nil {
		acct.UserID = u.ID
		if acct.ID == "" {
			acct.ID = uuid.NewString()
		}
		if acct.ProviderID == domain.ProviderCredential {
			acct.AccountID = u.ID
		}
	}

	if err := e.bus.BeforeUserCreate(ctx, u); err != nil {
		e.logger.Error("user creation aborted by hook", "email", u.Email, "error", err)
		return errFailedToCreateUser
	}

	if err := e.store.CreateUser(ctx, u, acct); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return errUserExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	if err := e.bus.AfterUserCreate(ctx, u); err != nil {
		e.logger.Error("after user create hook failed", "user_id", u.ID, "error", err)
	}

	e.record(ctx, Activity{Type: ActivitySignUp, UserID: u.ID})
	return nil
}

func (e *Engine) record(ctx context.Context, a Activity) {
	if a.OccurredAt.IsZero() {
		a.OccurredAt = e.now().UTC()
	}
	e.activity.Record(ctx, a)
}

// authURL returns an absolute URL for an engine route.
func (e *Engine) authURL(path string) string {
	return e.cfg.BaseURL + e.cfg.BasePath + path
}
