// Package hooks connects auth engine lifecycle events to their side effects.
package hooks

import (
	"context"
	"errors"

	"github.com/Priya8975/identity-service/internal/domain"
)

// OrganizationCreated is emitted after an organization and its owner
// membership have been persisted.
type OrganizationCreated struct {
	Organization *domain.Organization
	Member       *domain.Member
	User         *domain.User
}

// PasswordResetRequested is emitted once a reset token has been issued.
type PasswordResetRequested struct {
	User  *domain.User
	URL   string
	Token string
}

// EmailVerificationRequested is emitted once a verification token has been issued.
type EmailVerificationRequested struct {
	User  *domain.User
	URL   string
	Token string
}

type (
	UserHandler              func(ctx context.Context, user *domain.User) error
	OrganizationHandler      func(ctx context.Context, evt OrganizationCreated) error
	PasswordResetHandler     func(ctx context.Context, evt PasswordResetRequested) error
	EmailVerificationHandler func(ctx context.Context, evt EmailVerificationRequested) error
)

// Bus holds typed handlers for each lifecycle event. Handlers are registered
// during startup; the bus is read-only once requests are being served.
type Bus struct {
	beforeUserCreate        []UserHandler
	afterUserCreate         []UserHandler
	afterOrganizationCreate []OrganizationHandler
	passwordReset           []PasswordResetHandler
	emailVerification       []EmailVerificationHandler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) OnBeforeUserCreate(h UserHandler) {
	b.beforeUserCreate = append(b.beforeUserCreate, h)
}

func (b *Bus) OnAfterUserCreate(h UserHandler) {
	b.afterUserCreate = append(b.afterUserCreate, h)
}

func (b *Bus) OnAfterOrganizationCreate(h OrganizationHandler) {
	b.afterOrganizationCreate = append(b.afterOrganizationCreate, h)
}

func (b *Bus) OnPasswordResetRequested(h PasswordResetHandler) {
	b.passwordReset = append(b.passwordReset, h)
}

func (b *Bus) OnEmailVerificationRequested(h EmailVerificationHandler) {
	b.emailVerification = append(b.emailVerification, h)
}

// BeforeUserCreate runs handlers in order and stops at the first error.
// Handlers may modify user; the caller persists the result.
func (b *Bus) BeforeUserCreate(ctx context.Context, user *domain.User) error {
	for _, h := range b.beforeUserCreate {
		if err := h(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

// AfterUserCreate runs every handler and returns their joined errors.
func (b *Bus) AfterUserCreate(ctx context.Context, user *domain.User) error {
	var errs []error
	for _, h := range b.afterUserCreate {
		errs = append(errs, h(ctx, user))
	}
	return errors.Join(errs...)
}

func (b *Bus) AfterOrganizationCreate(ctx context.Context, evt OrganizationCreated) error {
	var errs []error
	for _, h := range b.afterOrganizationCreate {
		errs = append(errs, h(ctx, evt))
	}
	return errors.Join(errs...)
}

func (b *Bus) PasswordResetRequested(ctx context.Context, evt PasswordResetRequested) error {
	var errs []error
	for _, h := range b.passwordReset {
		errs = append(errs, h(ctx, evt))
	}
	return errors.Join(errs...)
}

func (b *Bus) EmailVerificationRequested(ctx context.Context, evt EmailVerificationRequested) error {
	var errs []error
	for _, h := range b.emailVerification {
		errs = append(errs, h(ctx, evt))
	}
	return errors.Join(errs...)
}
