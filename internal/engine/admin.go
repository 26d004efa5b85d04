package engine

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Priya8975/identity-service/internal/domain"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

var errCannotBanSelf = apiError(http.StatusBadRequest, "YOU_CANNOT_BAN_YOURSELF", "You cannot ban yourself")

// requireAdmin lets only signed-in admins through. The session is available
// to the handler through SessionFromContext.
func (e *Engine) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := e.requireSession(w, r)
		if !ok {
			return
		}
		if !sess.User.IsAdmin() {
			e.respondError(w, r, errForbidden)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), sessionContextKey{}, sess)))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func (e *Engine) listUsers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset := queryInt(r, "offset", 0)

	users, total, err := e.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"users":  users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

type setRoleRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=user admin"`
}

func (e *Engine) setRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req setRoleRequest
	if err := e.decode(r, &req); err != nil {
		e.respondError(w, r, err)
		return
	}

	user, ok := e.targetUser(w, r, req.UserID)
	if !ok {
		return
	}
	if err := e.store.SetUserRole(ctx, user.ID, req.Role); err != nil {
		e.respondError(w, r, err)
		return
	}
	previous := user.Role
	user.Role = req.Role

	e.record(ctx, Activity{
		Type:     ActivityRoleChanged,
		UserID:   user.ID,
		ActorID:  SessionFromContext(ctx).User.ID,
		Metadata: map[string]any{"from": previous, "to": req.Role},
	})
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

type banUserRequest struct {
	UserID    string  `json:"userId" validate:"required"`
	BanReason *string `json:"banReason" validate:"omitempty,max=500"`
}

// banUser bans the user and revokes all of their sessions.
func (e *Engine) banUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := SessionFromContext(ctx)

	var req banUserRequest
	if err := e.decode(r, &req); err != nil {
		e.respondError(w, r, err)
		return
	}
	if req.UserID == actor.User.ID {
		e.respondError(w, r, errCannotBanSelf)
		return
	}

	user, ok := e.targetUser(w, r, req.UserID)
	if !ok {
		return
	}
	if err := e.store.SetUserBanned(ctx, user.ID, true, req.BanReason); err != nil {
		e.respondError(w, r, err)
		return
	}
	tokens, err := e.store.DeleteUserSessions(ctx, user.ID)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	e.evictSessions(ctx, tokens...)

	user.Banned = true
	user.BanReason = req.BanReason
	e.record(ctx, Activity{
		Type:     ActivityUserBanned,
		UserID:   user.ID,
		ActorID:  actor.User.ID,
		Metadata: map[string]any{"revoked_sessions": len(tokens)},
	})
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

type unbanUserRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (e *Engine) unbanUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req unbanUserRequest
	if err := e.decode(r, &req); err != nil {
		e.respondError(w, r, err)
		return
	}

	user, ok := e.targetUser(w, r, req.UserID)
	if !ok {
		return
	}
	if err := e.store.SetUserBanned(ctx, user.ID, false, nil); err != nil {
		e.respondError(w, r, err)
		return
	}

	user.Banned = false
	user.BanReason = nil
	e.record(ctx, Activity{Type: ActivityUserUnbanned, UserID: user.ID, ActorID: SessionFromContext(ctx).User.ID})
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (e *Engine) targetUser(w http.ResponseWriter, r *http.Request, id string) (*domain.User, bool) {
	user, err := e.store.GetUserByID(r.Context(), id)
	if err != nil {
		e.respondError(w, r, err)
		return nil, false
	}
	if user == nil {
		e.respondError(w, r, errUserNotFound)
		return nil, false
	}
	return user, true
}
