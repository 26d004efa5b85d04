package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ProviderCredential is the account provider id used for email/password accounts.
const ProviderCredential = "credential"

type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	Image         *string   `json:"image"`
	Role          string    `json:"role"`
	Banned        bool      `json:"banned"`
	BanReason     *string   `json:"banReason,omitempty"`
	IsAnonymous   bool      `json:"isAnonymous"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Account links a user to a login method: a password credential or a social provider identity.
type Account struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ProviderID   string    `json:"providerId"`
	AccountID    string    `json:"accountId"`
	PasswordHash *string   `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
