package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Priya8975/identity-service/internal/domain"
	"github.com/Priya8975/identity-service/internal/hooks"
)

const resetPasswordPrefix = "reset-password:"

type verificationClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func (e *Engine) verificationToken(email string) (string, error) {
	now := e.now()
	claims := verificationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(verificationTTL)),
		},
		Email: strings.ToLower(email),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(e.cfg.Secret))
}

func (e *Engine) parseVerificationToken(token string) (string, error) {
	claims := &verificationClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(e.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(e.now),
	)
	if err != nil {
		return "", err
	}
	if claims.Email == "" {
		return "", errors.New("verification token has no email")
	}
	return claims.Email, nil
}

// sendVerification emits a verification request for an unverified user.
// Failures are logged; the triggering request still succeeds.
func (e *Engine) sendVerification(ctx context.Context, user *domain.User, callbackURL string) {
	if user.EmailVerified {
		return
	}
	token, err := e.verificationToken(user.Email)
	if err != nil {
		e.logger.Error("failed to create verification token", "user_id", user.ID, "error", err)
		return
	}

	link := e.authURL("/verify-email?token=" + url.QueryEscape(token))
	if callbackURL != "" {
		link += "&callbackURL=" + url.QueryEscape(callbackURL)
	}

	evt := hooks.EmailVerificationRequested{User: user, URL: link, Token: token}
	if err := e.bus.EmailVerificationRequested(ctx, evt); err != nil {
		e.logger.Error("email verification hook failed", "user_id", user.ID, "error", err)
	}
}

type sendVerificationRequest struct {
	Email       string `json:"email" validate:"required,email"`
	CallbackURL string `json:"callbackURL"`
}

func (e *Engine) sendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sendVerificationRequest
	if err := e.decode(r, &req); err != nil {
		e.respondError(w, r, err)
		return
	}
	if !e.isTrustedRedirect(req.CallbackURL) {
		e.respondError(w, r, errUntrustedCallback)
		return
	}

	user, err := e.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if user != nil {
		e.sendVerification(ctx, user, req.CallbackURL)
	}
	respondJSON(w, http.StatusOK, map[string]bool{"status": true})
}

// verifyEmail marks the address verified and signs the user in.
func (e *Engine) verifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callbackURL := r.URL.Query().Get("callbackURL")
	if !e.isTrustedRedirect(callbackURL) {
		e.respondError(w, r, errUntrustedCallback)
		return
	}

	fail := func(apiErr *APIError) {
		if callbackURL != "" {
			http.Redirect(w, r, withQuery(callbackURL, "error", apiErr.Code), http.StatusFound)
			return
		}
		e.respondError(w, r, apiErr)
	}

	email, err := e.parseVerificationToken(r.URL.Query().Get("token"))
	if err != nil {
		fail(errInvalidToken)
		return
	}

	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if user == nil {
		fail(errUserNotFound)
		return
	}

	if !user.EmailVerified {
		if err := e.store.MarkEmailVerified(ctx, user.ID); err != nil {
			e.respondError(w, r, err)
			return
		}
		user.EmailVerified = true
		e.record(ctx, Activity{Type: ActivityEmailVerified, UserID: user.ID})
	}

	if !user.Banned {
		if _, err := e.issueSession(ctx, w, r, user); err != nil {
			e.respondError(w, r, err)
			return
		}
	}

	if callbackURL != "" {
		http.Redirect(w, r, callbackURL, http.StatusFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": true, "user": user})
}

type forgetPasswordRequest struct {
	Email      string `json:"email" validate:"required,email"`
	RedirectTo string `json:"redirectTo"`
}

// forgetPassword issues a reset token. The response does not reveal whether
// the address is registered.
func (e *Engine) forgetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req forgetPasswordRequest
	if err := e.decode(r, &req); err != nil {
		e.respondError(w, r, err)
		return
	}
	if !e.isTrustedRedirect(req.RedirectTo) {
		e.respondError(w, r, errUntrustedCallback)
		return
	}

	user, err := e.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if user == nil {
		e.logger.Info("password reset requested for unknown email")
		respondJSON(w, http.StatusOK, map[string]bool{"status": true})
		return
	}

	token := randomToken()
	v := &domain.Verification{
		ID:         uuid.NewString(),
		Identifier: resetPasswordPrefix + token,
		Value:      user.ID,
		ExpiresAt:  e.now().Add(resetTokenTTL).UTC(),
	}
	if err := e.store.CreateVerification(ctx, v); err != nil {
		e.respondError(w, r, err)
		return
	}

	link := e.authURL("/reset-password/" + token)
	if req.RedirectTo != "" {
		link += "?callbackURL=" + url.QueryEscape(req.RedirectTo)
	}
	evt := hooks.PasswordResetRequested{User: user, URL: link, Token: token}
	if err := e.bus.PasswordResetRequested(ctx, evt); err != nil {
		e.logger.Error("password reset hook failed", "user_id", user.ID, "error", err)
	}

	respondJSON(w, http.StatusOK, map[string]bool{"status": true})
}

// resetPasswordCallback sends the browser from the emailed link to the
// client's reset form, carrying the token or an error.
func (e *Engine) resetPasswordCallback(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	callbackURL := r.URL.Query().Get("callbackURL")
	if callbackURL == "" || !e.isTrustedRedirect(callbackURL) {
		e.respondError(w, r, errUntrustedCallback)
		return
	}

	v, err := e.store.GetVerification(r.Context(), resetPasswordPrefix+token)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if v == nil || !e.now().Before(v.ExpiresAt) {
		http.Redirect(w, r, withQuery(callbackURL, "error", errInvalidToken.Code), http.StatusFound)
		return
	}
	http.Redirect(w, r, withQuery(callbackURL, "token", token), http.StatusFound)
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required"`
	Token       string `json:"token" validate:"required"`
}

func (e *Engine) resetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resetPasswordRequest
	if err := e.decode(r, &req); err != nil {
		e.respondError(w, r, err)
		return
	}
	if err := validatePasswordLength(req.NewPassword); err != nil {
		e.respondError(w, r, err)
		return
	}
	if err := e.checkPwned(ctx, req.NewPassword); err != nil {
		e.respondError(w, r, err)
		return
	}

	v, err := e.store.ConsumeVerification(ctx, resetPasswordPrefix+req.Token)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if v == nil || !e.now().Before(v.ExpiresAt) {
		e.respondError(w, r, errInvalidToken)
		return
	}

	if err := e.setPassword(ctx, v.Value, req.NewPassword); err != nil {
		e.respondError(w, r, err)
		return
	}

	e.record(ctx, Activity{Type: ActivityPasswordReset, UserID: v.Value})
	respondJSON(w, http.StatusOK, map[string]bool{"status": true})
}

// setPassword replaces the user's password, creating a credential account
// for users who so far only signed in socially.
func (e *Engine) setPassword(ctx context.Context, userID, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	acct, err := e.store.GetUserAccount(ctx, userID, domain.ProviderCredential)
	if err != nil {
		return err
	}
	if acct != nil {
		return e.store.UpdatePassword(ctx, userID, hash)
	}
	return e.store.CreateAccount(ctx, &domain.Account{
		ID:           uuid.NewString(),
		UserID:       userID,
		ProviderID:   domain.ProviderCredential,
		AccountID:    userID,
		PasswordHash: &hash,
	})
}
