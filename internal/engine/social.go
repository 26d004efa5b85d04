package engine

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/github"
	"github.com/markbates/goth/providers/google"
	"github.com/markbates/goth/providers/microsoftonline"

	"github.com/Priya8975/identity-service/internal/domain"
)

const oauthStatePrefix = "oauth-state:"

// ProviderCredentials are the OAuth client credentials of a social provider.
type ProviderCredentials struct {
	Name         string
	ClientID     string
	ClientSecret string
}

// SocialProviders builds goth providers for the given credentials. Entries
// without a client id are skipped. callbackBase is the absolute URL of the
// engine mount, e.g. "https://auth.example.com/api/auth".
func SocialProviders(callbackBase string, creds []ProviderCredentials) []goth.Provider {
	callbackBase = strings.TrimSuffix(callbackBase, "/")

	var providers []goth.Provider
	for _, c := range creds {
		if c.ClientID == "" {
			continue
		}
		callback := callbackBase + "/callback/" + c.Name
		switch c.Name {
		case "google":
			providers = append(providers, google.New(c.ClientID, c.ClientSecret, callback, "email", "profile"))
		case "github":
			providers = append(providers, github.New(c.ClientID, c.ClientSecret, callback, "user:email"))
		case "microsoft":
			p := microsoftonline.New(c.ClientID, c.ClientSecret, callback)
			p.SetName("microsoft")
			providers = append(providers, p)
		}
	}
	return providers
}

// setupSocial configures gothic. Its OAuth session lives in a short-lived
// cookie signed with the auth secret.
func setupSocial(cfg Config) {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   strings.HasPrefix(cfg.BaseURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = store
	gothic.GetProviderName = func(r *http.Request) (string, error) {
		if name := chi.URLParam(r, "provider"); name != "" {
			return name, nil
		}
		return "", errors.New("no provider in request path")
	}

	if len(cfg.Providers) > 0 {
		goth.UseProviders(cfg.Providers...)
	}
}

func (e *Engine) hasProvider(name string) bool {
	for _, p := range e.cfg.Providers {
		if p.Name() == name {
			return true
		}
	}
	return false
}

// signInSocial redirects to the provider's consent page. The callbackURL is
// remembered under the OAuth state until the provider calls back.
func (e *Engine) signInSocial(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if !e.hasProvider(provider) {
		e.respondError(w, r, errProviderNotFound)
		return
	}

	callbackURL := r.URL.Query().Get("callbackURL")
	if callbackURL == "" {
		callbackURL = "/"
	}
	if !e.isTrustedRedirect(callbackURL) {
		e.respondError(w, r, errUntrustedCallback)
		return
	}

	state := randomToken()
	err := e.store.CreateVerification(r.Context(), &domain.Verification{
		ID:         uuid.NewString(),
		Identifier: oauthStatePrefix + state,
		Value:      callbackURL,
		ExpiresAt:  e.now().Add(oauthStateTTL).UTC(),
	})
	if err != nil {
		e.respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	q.Set("state", state)
	r.URL.RawQuery = q.Encode()

	authURL, err := gothic.GetAuthURL(w, r)
	if err != nil {
		e.logger.Error("failed to start social sign in", "provider", provider, "error", err)
		e.respondError(w, r, errInternal)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// socialCallback completes the OAuth exchange, finds or creates the user and
// redirects back to the client with a session cookie.
func (e *Engine) socialCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	if !e.hasProvider(provider) {
		e.respondError(w, r, errProviderNotFound)
		return
	}

	state, err := e.store.ConsumeVerification(ctx, oauthStatePrefix+r.URL.Query().Get("state"))
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if state == nil || !e.now().Before(state.ExpiresAt) {
		e.respondError(w, r, errInvalidToken)
		return
	}
	callbackURL := state.Value

	gothUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		e.logger.Warn("social sign in failed", "provider", provider, "error", err)
		http.Redirect(w, r, withQuery(callbackURL, "error", "OAUTH_FAILED"), http.StatusFound)
		return
	}
	_ = gothic.Logout(w, r)

	user, err := e.socialUser(ctx, provider, gothUser)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			http.Redirect(w, r, withQuery(callbackURL, "error", apiErr.Code), http.StatusFound)
			return
		}
		e.respondError(w, r, err)
		return
	}
	if user.Banned {
		http.Redirect(w, r, withQuery(callbackURL, "error", errBanned.Code), http.StatusFound)
		return
	}

	if _, err := e.issueSession(ctx, w, r, user); err != nil {
		e.respondError(w, r, err)
		return
	}
	http.Redirect(w, r, callbackURL, http.StatusFound)
}

// socialUser resolves the local user for a provider identity: an existing
// linked account, then a user with the same email, then a new user.
func (e *Engine) socialUser(ctx context.Context, provider string, gu goth.User) (*domain.User, error) {
	acct, err := e.store.GetAccount(ctx, provider, gu.UserID)
	if err != nil {
		return nil, err
	}
	if acct != nil {
		user, err := e.store.GetUserByID(ctx, acct.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, errUserNotFound
		}
		return user, nil
	}

	if gu.Email == "" {
		return nil, apiError(http.StatusBadRequest, "EMAIL_NOT_FOUND", "Provider did not return an email address")
	}

	link := &domain.Account{
		ID:         uuid.NewString(),
		ProviderID: provider,
		AccountID:  gu.UserID,
	}

	user, err := e.store.GetUserByEmail(ctx, gu.Email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		link.UserID = user.ID
		if err := e.store.CreateAccount(ctx, link); err != nil {
			return nil, err
		}
		return user, nil
	}

	name := gu.Name
	if name == "" {
		name = gu.NickName
	}
	user = &domain.User{
		Name:          name,
		Email:         strings.ToLower(gu.Email),
		EmailVerified: true,
	}
	if gu.AvatarURL != "" {
		avatar := gu.AvatarURL
		user.Image = &avatar
	}
	if err := e.createUser(ctx, user, link); err != nil {
		return nil, err
	}
	return user, nil
}
