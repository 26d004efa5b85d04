package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Priya8975/identity-service/internal/domain"
)

// memStore is an in-memory Store used by the engine tests.
type memStore struct {
	mu            sync.Mutex
	users         map[string]*domain.User
	accounts      []*domain.Account
	sessions      map[string]*domain.Session
	verifications map[string]*domain.Verification
	orgs          map[string]*domain.Organization
	members       []*domain.Member
	invitations   map[string]*domain.Invitation
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]*domain.User{},
		sessions:      map[string]*domain.Session{},
		verifications: map[string]*domain.Verification{},
		orgs:          map[string]*domain.Organization{},
		invitations:   map[string]*domain.Invitation{},
	}
}

func (m *memStore) CreateUser(_ context.Context, u *domain.User, acct *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.users[u.ID] = &cp
	if acct != nil {
		a := *acct
		m.accounts = append(m.accounts, &a)
	}
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListUsers(_ context.Context, limit, offset int) ([]domain.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memStore) mutateUser(id string, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	fn(u)
	return nil
}

func (m *memStore) SetUserRole(_ context.Context, id, role string) error {
	return m.mutateUser(id, func(u *domain.User) { u.Role = role })
}

func (m *memStore) SetUserBanned(_ context.Context, id string, banned bool, reason *string) error {
	return m.mutateUser(id, func(u *domain.User) { u.Banned, u.BanReason = banned, reason })
}

func (m *memStore) MarkEmailVerified(_ context.Context, id string) error {
	return m.mutateUser(id, func(u *domain.User) { u.EmailVerified = true })
}

func (m *memStore) CreateAccount(_ context.Context, a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.ProviderID == a.ProviderID && existing.AccountID == a.AccountID {
			return domain.ErrDuplicate
		}
	}
	cp := *a
	m.accounts = append(m.accounts, &cp)
	return nil
}

func (m *memStore) findAccount(match func(*domain.Account) bool) *domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if match(a) {
			cp := *a
			return &cp
		}
	}
	return nil
}

func (m *memStore) GetAccount(_ context.Context, providerID, accountID string) (*domain.Account, error) {
	return m.findAccount(func(a *domain.Account) bool {
		return a.ProviderID == providerID && a.AccountID == accountID
	}), nil
}

func (m *memStore) GetUserAccount(_ context.Context, userID, providerID string) (*domain.Account, error) {
	return m.findAccount(func(a *domain.Account) bool {
		return a.UserID == userID && a.ProviderID == providerID
	}), nil
}

func (m *memStore) UpdatePassword(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.UserID == userID && a.ProviderID == domain.ProviderCredential {
			h := hash
			a.PasswordHash = &h
			return nil
		}
	}
	return errors.New("no credential account")
}

func (m *memStore) CreateSession(_ context.Context, sess *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess.CreatedAt = time.Now().UTC()
	cp := *sess
	m.sessions[sess.Token] = &cp
	return nil
}

func (m *memStore) GetSession(_ context.Context, token string) (*domain.SessionWithUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	u, ok := m.users[sess.UserID]
	if !ok {
		return nil, nil
	}
	return &domain.SessionWithUser{Session: *sess, User: *u}, nil
}

func (m *memStore) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memStore) DeleteUserSessions(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tokens []string
	for token, sess := range m.sessions {
		if sess.UserID == userID {
			tokens = append(tokens, token)
			delete(m.sessions, token)
		}
	}
	return tokens, nil
}

func (m *memStore) CreateVerification(_ context.Context, v *domain.Verification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.verifications[v.Identifier] = &cp
	return nil
}

func (m *memStore) GetVerification(_ context.Context, identifier string) (*domain.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.verifications[identifier]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ConsumeVerification(_ context.Context, identifier string) (*domain.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.verifications[identifier]
	if !ok {
		return nil, nil
	}
	delete(m.verifications, identifier)
	return v, nil
}

func (m *memStore) CreateOrganization(_ context.Context, org *domain.Organization, owner *domain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orgs {
		if o.Slug == org.Slug {
			return domain.ErrDuplicate
		}
	}
	org.CreatedAt = time.Now().UTC()
	cp := *org
	m.orgs[org.ID] = &cp
	mc := *owner
	m.members = append(m.members, &mc)
	return nil
}

func (m *memStore) GetOrganization(_ context.Context, id string) (*domain.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orgs[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) CountOwnedOrganizations(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, mem := range m.members {
		if mem.UserID == userID && mem.Role == domain.MemberRoleOwner {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetMember(_ context.Context, orgID, userID string) (*domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members {
		if mem.OrganizationID == orgID && mem.UserID == userID {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CountMembers(_ context.Context, orgID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, mem := range m.members {
		if mem.OrganizationID == orgID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountPendingInvitations(_ context.Context, orgID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, inv := range m.invitations {
		if inv.OrganizationID == orgID && inv.Status == domain.InvitationPending {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateInvitation(_ context.Context, inv *domain.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.invitations[inv.ID] = &cp
	return nil
}

func (m *memStore) GetInvitation(_ context.Context, id string) (*domain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invitations[id]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) AcceptInvitation(_ context.Context, invitationID string, mem *domain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[invitationID]
	if !ok || inv.Status != domain.InvitationPending {
		return fmt.Errorf("invitation %s is no longer pending", invitationID)
	}
	for _, existing := range m.members {
		if existing.OrganizationID == mem.OrganizationID && existing.UserID == mem.UserID {
			return domain.ErrDuplicate
		}
	}
	inv.Status = domain.InvitationAccepted
	cp := *mem
	m.members = append(m.members, &cp)
	return nil
}

// addUser seeds a user with an email/password account.
func (m *memStore) addUser(u domain.User, password string) *domain.User {
	hash, err := hashPassword(password)
	if err != nil {
		panic(err)
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := u
	m.users[u.ID] = &cp
	m.accounts = append(m.accounts, &domain.Account{
		ID:           "acct-" + u.ID,
		UserID:       u.ID,
		ProviderID:   domain.ProviderCredential,
		AccountID:    u.ID,
		PasswordHash: &hash,
	})
	return &cp
}
