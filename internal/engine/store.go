package engine

import (
	"context"
	"time"

	"github.com/Priya8975/identity-service/internal/domain"
)

// Store persists identities, sessions and organizations. Lookups return
// (nil, nil) when nothing matches.
type Store interface {
	CreateUser(ctx context.Context, u *domain.User, acct *domain.Account) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, int, error)
	SetUserRole(ctx context.Context, id, role string) error
	SetUserBanned(ctx context.Context, id string, banned bool, reason *string) error
	MarkEmailVerified(ctx context.Context, id string) error

	CreateAccount(ctx context.Context, a *domain.Account) error
	GetAccount(ctx context.Context, providerID, accountID string) (*domain.Account, error)
	GetUserAccount(ctx context.Context, userID, providerID string) (*domain.Account, error)
	UpdatePassword(ctx context.Context, userID, hash string) error

	CreateSession(ctx context.Context, sess *domain.Session) error
	GetSession(ctx context.Context, token string) (*domain.SessionWithUser, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteUserSessions(ctx context.Context, userID string) ([]string, error)

	CreateVerification(ctx context.Context, v *domain.Verification) error
	GetVerification(ctx context.Context, identifier string) (*domain.Verification, error)
	ConsumeVerification(ctx context.Context, identifier string) (*domain.Verification, error)

	CreateOrganization(ctx context.Context, org *domain.Organization, owner *domain.Member) error
	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)
	CountOwnedOrganizations(ctx context.Context, userID string) (int, error)
	GetMember(ctx context.Context, orgID, userID string) (*domain.Member, error)
	CountMembers(ctx context.Context, orgID string) (int, error)
	CountPendingInvitations(ctx context.Context, orgID string) (int, error)
	CreateInvitation(ctx context.Context, inv *domain.Invitation) error
	GetInvitation(ctx context.Context, id string) (*domain.Invitation, error)
	AcceptInvitation(ctx context.Context, invitationID string, m *domain.Member) error
}

// SessionCache keeps short-lived session snapshots in front of the Store.
type SessionCache interface {
	CacheSession(ctx context.Context, sess *domain.SessionWithUser, ttl time.Duration) error
	CachedSession(ctx context.Context, token string) (*domain.SessionWithUser, error)
	EvictSessions(ctx context.Context, tokens ...string) error
}

// ActivityType names an auth event reported to the ActivitySink.
type ActivityType string

const (
	ActivitySignUp             ActivityType = "auth.sign_up"
	ActivitySignIn             ActivityType = "auth.sign_in"
	ActivitySignInFailure      ActivityType = "auth.sign_in.failure"
	ActivitySignOut            ActivityType = "auth.sign_out"
	ActivityPasswordReset      ActivityType = "auth.password.reset"
	ActivityEmailVerified      ActivityType = "auth.email.verified"
	ActivityUserBanned         ActivityType = "admin.user.banned"
	ActivityUserUnbanned       ActivityType = "admin.user.unbanned"
	ActivityRoleChanged        ActivityType = "admin.user.role_changed"
	ActivityOrganizationCreate ActivityType = "organization.created"
	ActivityInvitationAccepted ActivityType = "organization.invitation.accepted"
)

// Activity captures an auth event for auditing and the admin live feed.
type Activity struct {
	Type       ActivityType   `json:"type"`
	UserID     string         `json:"user_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ActivitySink consumes activity events.
type ActivitySink interface {
	Record(ctx context.Context, activity Activity)
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, activity Activity)

func (f ActivitySinkFunc) Record(ctx context.Context, activity Activity) {
	if f != nil {
		f(ctx, activity)
	}
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, Activity) {}
