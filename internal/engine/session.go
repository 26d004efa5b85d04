package engine

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Priya8975/identity-service/internal/capability"
	"github.com/Priya8975/identity-service/internal/domain"
)

const (
	sessionCookieSuffix = ".session_token"
	authTokenHeader     = "set-auth-token"
	authJWTHeader       = "set-auth-jwt"
)

// randomToken returns 32 random bytes, base64url encoded.
func randomToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (e *Engine) signToken(token string) string {
	mac := hmac.New(sha256.New, []byte(e.cfg.Secret))
	mac.Write([]byte(token))
	return token + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verifySignedToken returns the token inside a "token.signature" value.
func (e *Engine) verifySignedToken(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", false
	}
	token := value[:i]
	expected := e.signToken(token)
	if !hmac.Equal([]byte(expected), []byte(value)) {
		return "", false
	}
	return token, true
}

func (e *Engine) sessionCookieName() string {
	return e.cfg.CookiePrefix + sessionCookieSuffix
}

// sessionCookie renders a Set-Cookie line for the session. It is written by
// hand because net/http drops the leading dot of the Domain attribute, which
// the cross-subdomain rewrite relies on.
func (e *Engine) sessionCookie(value string, maxAge time.Duration) string {
	var b strings.Builder
	b.WriteString(e.sessionCookieName())
	b.WriteByte('=')
	b.WriteString(value)
	if e.cfg.BaseDomain != "" {
		b.WriteString("; Domain=.")
		b.WriteString(e.cfg.BaseDomain)
	}
	b.WriteString("; Path=/")
	if maxAge > 0 {
		b.WriteString("; Expires=")
		b.WriteString(e.now().Add(maxAge).UTC().Format(http.TimeFormat))
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(int(maxAge.Seconds())))
	} else {
		b.WriteString("; Max-Age=0")
	}
	b.WriteString("; HttpOnly; Secure; SameSite=None")
	return b.String()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// issueSession creates a session for user and attaches it to the response as
// a cookie and, with the bearer capability, a set-auth-token header.
func (e *Engine) issueSession(ctx context.Context, w http.ResponseWriter, r *http.Request, user *domain.User) (*domain.Session, error) {
	sess := &domain.Session{
		ID:        uuid.NewString(),
		Token:     randomToken(),
		UserID:    user.ID,
		ExpiresAt: e.now().Add(e.cfg.SessionTTL).UTC(),
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if err := e.store.CreateSession(ctx, sess); err != nil {
		e.logger.Error("failed to create session", "user_id", user.ID, "error", err)
		return nil, errFailedToCreateSession
	}

	signed := e.signToken(sess.Token)
	w.Header().Add("Set-Cookie", e.sessionCookie(signed, e.cfg.SessionTTL))
	if e.caps.Has(capability.KindBearer) {
		w.Header().Set(authTokenHeader, signed)
	}

	e.cacheSession(ctx, &domain.SessionWithUser{Session: *sess, User: *user})
	e.record(ctx, Activity{Type: ActivitySignIn, UserID: user.ID, Metadata: map[string]any{"ip": sess.IPAddress}})
	return sess, nil
}

func (e *Engine) clearSessionCookie(w http.ResponseWriter) {
	w.Header().Add("Set-Cookie", e.sessionCookie("", 0))
}

// requestToken extracts and verifies the session token from the session
// cookie or, with the bearer capability, the Authorization header.
func (e *Engine) requestToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(e.sessionCookieName()); err == nil && c.Value != "" {
		if token, ok := e.verifySignedToken(c.Value); ok {
			return token, true
		}
	}

	bearer, ok := capability.Find[capability.Bearer](e.caps)
	if !ok {
		return "", false
	}
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	value := strings.TrimSpace(auth[7:])
	if token, ok := e.verifySignedToken(value); ok {
		return token, true
	}
	if !bearer.RequireSignature && value != "" && !strings.Contains(value, ".") {
		return value, true
	}
	return "", false
}

// SessionFromRequest returns the session identified by the request's cookie
// or bearer token, or nil when there is none. Banned users and expired
// sessions yield nil.
func (e *Engine) SessionFromRequest(r *http.Request) (*domain.SessionWithUser, error) {
	token, ok := e.requestToken(r)
	if !ok {
		return nil, nil
	}
	ctx := r.Context()

	if e.cache != nil {
		cached, err := e.cache.CachedSession(ctx, token)
		if err != nil {
			e.logger.Warn("session cache read failed", "error", err)
		} else if cached != nil && !cached.Session.Expired(e.now()) && !cached.User.Banned {
			return cached, nil
		}
	}

	sess, err := e.store.GetSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Session.Expired(e.now()) {
		if err := e.store.DeleteSession(ctx, token); err != nil {
			e.logger.Warn("failed to delete expired session", "error", err)
		}
		return nil, nil
	}
	if sess.User.Banned {
		return nil, nil
	}

	e.cacheSession(ctx, sess)
	return sess, nil
}

func (e *Engine) cacheSession(ctx context.Context, sess *domain.SessionWithUser) {
	if e.cache == nil || e.cfg.SessionCacheTTL <= 0 {
		return
	}
	ttl := e.cfg.SessionCacheTTL
	if remaining := sess.Session.ExpiresAt.Sub(e.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	if err := e.cache.CacheSession(ctx, sess, ttl); err != nil {
		e.logger.Warn("session cache write failed", "error", err)
	}
}

func (e *Engine) evictSessions(ctx context.Context, tokens ...string) {
	if e.cache == nil || len(tokens) == 0 {
		return
	}
	if err := e.cache.EvictSessions(ctx, tokens...); err != nil {
		e.logger.Warn("session cache evict failed", "error", err)
	}
}

// requireSession loads the session or writes a 401.
func (e *Engine) requireSession(w http.ResponseWriter, r *http.Request) (*domain.SessionWithUser, bool) {
	sess, err := e.SessionFromRequest(r)
	if err != nil {
		e.respondError(w, r, err)
		return nil, false
	}
	if sess == nil {
		e.respondError(w, r, errUnauthorized)
		return nil, false
	}
	return sess, true
}

type sessionContextKey struct{}

// SessionFromContext returns the session stored by Middleware.
func SessionFromContext(ctx context.Context) *domain.SessionWithUser {
	sess, _ := ctx.Value(sessionContextKey{}).(*domain.SessionWithUser)
	return sess
}

// Middleware resolves the session for downstream handlers. Requests without a
// session continue with no session in the context.
func (e *Engine) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := e.SessionFromRequest(r)
		if err != nil {
			e.logger.Warn("session lookup failed", "error", err)
		}
		if sess != nil {
			r = r.WithContext(context.WithValue(r.Context(), sessionContextKey{}, sess))
		}
		next.ServeHTTP(w, r)
	})
}
