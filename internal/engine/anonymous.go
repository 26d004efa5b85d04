package engine

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Priya8975/identity-service/internal/domain"
)

const anonymousName = "Anonymous"

var errAnonymousAgain = apiError(http.StatusBadRequest, "ANONYMOUS_USERS_CANNOT_SIGN_IN_AGAIN_ANONYMOUSLY", "Anonymous users cannot sign in again anonymously")

func (e *Engine) anonymousEmail(id string) string {
	domainName := e.cfg.BaseDomain
	if domainName == "" {
		domainName = "localhost"
	}
	return "temp-" + id + "@" + domainName
}

// signInAnonymous creates a guest user with a placeholder email and signs it in.
func (e *Engine) signInAnonymous(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	current, err := e.SessionFromRequest(r)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if current != nil && current.User.IsAnonymous {
		e.respondError(w, r, errAnonymousAgain)
		return
	}

	id := uuid.NewString()
	user := &domain.User{
		ID:          id,
		Name:        anonymousName,
		Email:       e.anonymousEmail(id),
		IsAnonymous: true,
	}
	if err := e.createUser(ctx, user, nil); err != nil {
		e.respondError(w, r, err)
		return
	}

	sess, err := e.issueSession(ctx, w, r, user)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: &sess.Token, User: user})
}
