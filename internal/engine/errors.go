package engine

import (
	"encoding/json"
	"errors"
	"net/http"
)

// APIError is an error with a stable code returned to clients as
// {"code": ..., "message": ...}.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

func apiError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

var (
	errUnauthorized          = apiError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
	errForbidden             = apiError(http.StatusForbidden, "FORBIDDEN", "You are not allowed to perform this action")
	errInvalidCredentials    = apiError(http.StatusUnauthorized, "INVALID_EMAIL_OR_PASSWORD", "Invalid email or password")
	errUserExists            = apiError(http.StatusUnprocessableEntity, "USER_ALREADY_EXISTS", "User already exists")
	errEmailNotVerified      = apiError(http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Email not verified")
	errBanned                = apiError(http.StatusForbidden, "BANNED_USER", "You have been banned from this application")
	errInvalidToken          = apiError(http.StatusBadRequest, "INVALID_TOKEN", "Invalid token")
	errUntrustedCallback     = apiError(http.StatusForbidden, "INVALID_CALLBACK_URL", "Invalid callbackURL")
	errTooManyRequests       = apiError(http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many requests. Please try again later.")
	errFailedToCreateUser    = apiError(http.StatusInternalServerError, "FAILED_TO_CREATE_USER", "Failed to create user")
	errFailedToCreateSession = apiError(http.StatusInternalServerError, "FAILED_TO_CREATE_SESSION", "Failed to create session")
	errUserNotFound          = apiError(http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	errProviderNotFound      = apiError(http.StatusNotFound, "PROVIDER_NOT_FOUND", "Provider not found")
	errInternal              = apiError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes err as an APIError. Errors that are not APIErrors are
// logged and reported as internal errors.
func (e *Engine) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		e.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		apiErr = errInternal
	}
	respondJSON(w, apiErr.Status, apiErr)
}
