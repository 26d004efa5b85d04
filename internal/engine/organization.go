package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Priya8975/identity-service/internal/capability"
	"github.com/Priya8975/identity-service/internal/domain"
	"github.com/Priya8975/identity-service/internal/hooks"
)

var (
	errOrganizationLimit    = apiError(http.StatusForbidden, "ORGANIZATION_LIMIT_REACHED", "You have reached the maximum number of organizations")
	errOrganizationExists   = apiError(http.StatusBadRequest, "ORGANIZATION_ALREADY_EXISTS", "Organization slug is already taken")
	errMembershipLimit      = apiError(http.StatusForbidden, "ORGANIZATION_MEMBERSHIP_LIMIT_REACHED", "Organization membership limit reached")
	errInvitationLimit      = apiError(http.StatusForbidden, "INVITATION_LIMIT_REACHED", "Invitation limit reached")
	errAlreadyMember        = apiError(http.StatusBadRequest, "USER_IS_ALREADY_A_MEMBER", "User is already a member of this organization")
	errInvitationNotFound   = apiError(http.StatusBadRequest, "INVITATION_NOT_FOUND", "Invitation not found")
	errInvitationRecipient  = apiError(http.StatusForbidden, "YOU_ARE_NOT_THE_RECIPIENT_OF_THE_INVITATION", "You are not the recipient of the invitation")
	errInvalidMetadata      = apiError(http.StatusBadRequest, "VALIDATION_ERROR", "metadata must be a JSON object")
	errOrganizationNotFound = apiError(http.StatusNotFound, "ORGANIZATION_NOT_FOUND", "Organization not found")
)

func (e *Engine) orgLimits() capability.Organization {
	limits, _ := capability.Find[capability.Organization](e.caps)
	return limits
}

// objectMetadata accepts a JSON object or nothing. The object's bytes are
// kept so key order survives into stored rows and webhooks.
func objectMetadata(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage(`{}`), nil
	}
	if trimmed[0] != '{' {
		return nil, errInvalidMetadata
	}
	return json.RawMessage(trimmed), nil
}

type createOrganizationRequest struct {
	Name     string         `json:"name" validate:"required,max=255"`
	Slug     string         `json:"slug" validate:"required,max=64"`
	Logo     *string        `json:"logo" validate:"omitempty,url"`
	Metadata json.RawMessage `json:"metadata"`
}

func (e *Engine) createOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := e.requireSession(w, r)
	if !ok {
		return
	}

	var req createOrganizationRequest
	if err := e.decode(r, &req); err != nil {
		e.respondError(w, r, err)
		return
	}

	metadata, err := objectMetadata(req.Metadata)
	if err != nil {
		e.respondError(w, r, err)
		return
	}

	owned, err := e.store.CountOwnedOrganizations(ctx, sess.User.ID)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if owned >= e.orgLimits().OrganizationLimit {
		e.respondError(w, r, errOrganizationLimit)
		return
	}

	org := &domain.Organization{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(req.Name),
		Slug:     strings.ToLower(strings.TrimSpace(req.Slug)),
		Logo:     req.Logo,
		Metadata: metadata,
	}
	owner := &domain.Member{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		UserID:         sess.User.ID,
		Role:           domain.MemberRoleOwner,
	}
	if err := e.store.CreateOrganization(ctx, org, owner); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			e.respondError(w, r, errOrganizationExists)
			return
		}
		e.respondError(w, r, err)
		return
	}

	user := sess.User
	evt := hooks.OrganizationCreated{Organization: org, Member: owner, User: &user}
	if err := e.bus.AfterOrganizationCreate(ctx, evt); err != nil {
		e.logger.Error("after organization create hook failed", "organization_id", org.ID, "error", err)
	}

	e.record(ctx, Activity{Type: ActivityOrganizationCreate, UserID: user.ID, Metadata: map[string]any{"organization_id": org.ID}})
	respondJSON(w, http.StatusOK, map[string]any{"organization": org, "member": owner})
}

type inviteMemberRequest struct {
	OrganizationID string `json:"organizationId" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Role           string `json:"role" validate:"required,oneof=member admin"`
}

func (e *Engine) inviteMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := e.requireSession(w, r)
	if !ok {
		return
	}

	var req inviteMemberRequest
	if err := e.decode(r, &req); err != nil {
		e.respondError(w, r, err)
		return
	}

	inviter, err := e.store.GetMember(ctx, req.OrganizationID, sess.User.ID)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if inviter == nil || !inviter.CanInvite() {
		e.respondError(w, r, errForbidden)
		return
	}

	limits := e.orgLimits()
	members, err := e.store.CountMembers(ctx, req.OrganizationID)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if members >= limits.MembershipLimit {
		e.respondError(w, r, errMembershipLimit)
		return
	}
	pending, err := e.store.CountPendingInvitations(ctx, req.OrganizationID)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if pending >= limits.InvitationLimit {
		e.respondError(w, r, errInvitationLimit)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if invitee, err := e.store.GetUserByEmail(ctx, email); err != nil {
		e.respondError(w, r, err)
		return
	} else if invitee != nil {
		existing, err := e.store.GetMember(ctx, req.OrganizationID, invitee.ID)
		if err != nil {
			e.respondError(w, r, err)
			return
		}
		if existing != nil {
			e.respondError(w, r, errAlreadyMember)
			return
		}
	}

	inv := &domain.Invitation{
		ID:             uuid.NewString(),
		OrganizationID: req.OrganizationID,
		Email:          email,
		Role:           req.Role,
		Status:         domain.InvitationPending,
		InviterID:      sess.User.ID,
		ExpiresAt:      e.now().Add(invitationTTL).UTC(),
	}
	if err := e.store.CreateInvitation(ctx, inv); err != nil {
		e.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

type acceptInvitationRequest struct {
	InvitationID string `json:"invitationId" validate:"required"`
}

func (e *Engine) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := e.requireSession(w, r)
	if !ok {
		return
	}

	var req acceptInvitationRequest
	if err := e.decode(r, &req); err != nil {
		e.respondError(w, r, err)
		return
	}

	inv, err := e.store.GetInvitation(ctx, req.InvitationID)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if inv == nil || inv.Status != domain.InvitationPending || !e.now().Before(inv.ExpiresAt) {
		e.respondError(w, r, errInvitationNotFound)
		return
	}
	if !strings.EqualFold(inv.Email, sess.User.Email) {
		e.respondError(w, r, errInvitationRecipient)
		return
	}

	org, err := e.store.GetOrganization(ctx, inv.OrganizationID)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if org == nil {
		e.respondError(w, r, errOrganizationNotFound)
		return
	}

	members, err := e.store.CountMembers(ctx, inv.OrganizationID)
	if err != nil {
		e.respondError(w, r, err)
		return
	}
	if members >= e.orgLimits().MembershipLimit {
		e.respondError(w, r, errMembershipLimit)
		return
	}

	member := &domain.Member{
		ID:             uuid.NewString(),
		OrganizationID: inv.OrganizationID,
		UserID:         sess.User.ID,
		Role:           inv.Role,
	}
	if err := e.store.AcceptInvitation(ctx, inv.ID, member); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			e.respondError(w, r, errAlreadyMember)
			return
		}
		e.respondError(w, r, err)
		return
	}
	inv.Status = domain.InvitationAccepted

	e.record(ctx, Activity{
		Type:     ActivityInvitationAccepted,
		UserID:   sess.User.ID,
		ActorID:  inv.InviterID,
		Metadata: map[string]any{"organization_id": org.ID},
	})
	respondJSON(w, http.StatusOK, map[string]any{"invitation": inv, "member": member})
}
