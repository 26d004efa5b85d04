package engine

import (
	"net/http"
	"strings"

	"github.com/Priya8975/identity-service/internal/domain"
)

type signUpRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required"`
	Image       *string `json:"image" validate:"omitempty,url"`
	CallbackURL string  `json:"callbackURL"`
}

type signInRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	CallbackURL string `json:"callbackURL"`
}

type authResponse struct {
	Redirect *bool        `json:"redirect,omitempty"`
	URL      string       `json:"url,omitempty"`
	Token    *string      `json:"token"`
	User     *domain.User `json:"user"`
}

func (e *Engine) signUpEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signUpRequest
	if err := e.decode(r, &req); err != nil {
		e.respondError(w, r, err)
		return
	}
	if err := validatePasswordLength(req.Password); err != nil {
		e.respondError(w, r, err)
		return
	}
	if !e.isTrustedRedirect(req.CallbackURL) {
		e.respondError(w, r, errUntrustedCallback)
		return
	}
	if err := e.checkPwned(ctx, req.Password); err != nil {
		e.respondError(w, r, err)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		e.respondError(w, r, err)
		return
	}

	user := &domain.User{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
		Image: req.Image,
	}
	acct := &domain.Account{ProviderID: domain.ProviderCredential, PasswordHash: &hash}
	if err := e.createUser(ctx, user, acct); err != nil {
		e.respondError(w, r, err)
		return
	}

	e.sendVerification(ctx, user, req.CallbackURL)

	if e.cfg.RequireEmailVerification {
		respondJSON(w, http.StatusOK, authResponse{User: user})
		return
	}

	sess, err := e.issueSession(ctx, w, r, user)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: &sess.Token, User: user})
}

func (e *Engine) signInEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signInRequest
	if err := e.decode(r, &req); err != nil {
		e.respondError(w, r, err)
		return
	}
	if !e.isTrustedRedirect(req.CallbackURL) {
		e.respondError(w, r, errUntrustedCallback)
		return
	}

	user, err := e.store.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if user == nil {
		e.record(ctx, Activity{Type: ActivitySignInFailure, Metadata: map[string]any{"ip": clientIP(r)}})
		e.respondError(w, r, errInvalidCredentials)
		return
	}

	acct, err := e.store.GetUserAccount(ctx, user.ID, domain.ProviderCredential)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if acct == nil || !checkPassword(acct.PasswordHash, req.Password) {
		e.record(ctx, Activity{Type: ActivitySignInFailure, UserID: user.ID, Metadata: map[string]any{"ip": clientIP(r)}})
		e.respondError(w, r, errInvalidCredentials)
		return
	}

	if user.Banned {
		e.respondError(w, r, errBanned)
		return
	}
	if e.cfg.RequireEmailVerification && !user.EmailVerified {
		e.sendVerification(ctx, user, req.CallbackURL)
		e.respondError(w, r, errEmailNotVerified)
		return
	}

	sess, err := e.issueSession(ctx, w, r, user)
	if err != nil {
		e.respondError(w, r, err)
		return
	}

	redirect := req.CallbackURL != ""
	respondJSON(w, http.StatusOK, authResponse{
		Redirect: &redirect,
		URL:      req.CallbackURL,
		Token:    &sess.Token,
		User:     user,
	})
}

func (e *Engine) signOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if token, ok := e.requestToken(r); ok {
		sess, err := e.store.GetSession(ctx, token)
		if err != nil {
			e.respondError(w, r, err)
			return
		}
		if err := e.store.DeleteSession(ctx, token); err != nil {
			e.respondError(w, r, err)
			return
		}
		e.evictSessions(ctx, token)
		if sess != nil {
			e.record(ctx, Activity{Type: ActivitySignOut, UserID: sess.User.ID})
		}
	}

	e.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// getSession responds with the current session and user, or null.
func (e *Engine) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := e.SessionFromRequest(r)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if sess == nil {
		respondJSON(w, http.StatusOK, nil)
		return
	}

	if e.jwt != nil {
		token, err := e.jwt.issue(&sess.User, e.now())
		if err != nil {
			e.logger.Warn("failed to issue session jwt", "user_id", sess.User.ID, "error", err)
		} else {
			w.Header().Set(authJWTHeader, token)
		}
	}
	respondJSON(w, http.StatusOK, sess)
}

// rateLimited applies the per-client sign-in limit.
func (e *Engine) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if e.limiter != nil && !e.limiter.Allow(r.Context(), r.URL.Path, clientIP(r), e.cfg.SignInRateLimit, e.cfg.SignInRateWindow) {
			e.respondError(w, r, errTooManyRequests)
			return
		}
		next(w, r)
	}
}
