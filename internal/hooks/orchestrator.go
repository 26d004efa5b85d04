package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Priya8975/identity-service/internal/capability"
	"github.com/Priya8975/identity-service/internal/domain"
	"github.com/Priya8975/identity-service/internal/email"
	"github.com/Priya8975/identity-service/internal/webhook"
)

const (
	EventUserCreated         = "user.created"
	EventOrganizationCreated = "organization.created"
)

const (
	subjectResetPassword = "Reset your password"
	subjectVerifyEmail   = "Verify your email address"
)

// UserCreatedData is the payload of a user.created webhook.
type UserCreatedData struct {
	ID        string  `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     string  `json:"email"`
	Image     *string `json:"image"`
}

// OrganizationCreatedData is the payload of an organization.created webhook.
type OrganizationCreatedData struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedByID string          `json:"created_by_id"`
}

type AssetUploader interface {
	Upload(ctx context.Context, sourceURL, bucket, key string) (string, error)
}

type TemplateRenderer interface {
	Render(name string, vars map[string]string) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

type WebhookDispatcher interface {
	Dispatch(ctx context.Context, event webhook.Event) (*webhook.Response, error)
}

// Orchestrator owns the side effects of identity lifecycle events: avatar
// mirroring, outbound webhooks and transactional email.
type Orchestrator struct {
	assets   AssetUploader
	bucket   string
	renderer TemplateRenderer
	mailer   Mailer
	webhooks WebhookDispatcher
	logger   *slog.Logger
	newKey   func() string
}

type Deps struct {
	Assets   AssetUploader
	Bucket   string
	Renderer TemplateRenderer
	Mailer   Mailer
	Webhooks WebhookDispatcher
}

func NewOrchestrator(deps Deps, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		assets:   deps.Assets,
		bucket:   deps.Bucket,
		renderer: deps.Renderer,
		mailer:   deps.Mailer,
		webhooks: deps.Webhooks,
		logger:   logger,
		newKey:   func() string { return "profile-pictures/" + uuid.NewString() + ".jpg" },
	}
}

// Register binds the orchestrator's handlers to bus. The organization hook is
// bound only when the organization capability is enabled. Handlers whose
// collaborator is missing are skipped.
func (o *Orchestrator) Register(bus *Bus, caps capability.Set) {
	if o.assets != nil && o.bucket != "" {
		bus.OnBeforeUserCreate(o.MirrorProfilePicture)
	} else {
		o.logger.Warn("profile picture mirroring disabled: object storage not configured")
	}

	if o.webhooks != nil {
		bus.OnAfterUserCreate(o.NotifyUserCreated)
		if caps.Has(capability.KindOrganization) {
			bus.OnAfterOrganizationCreate(o.NotifyOrganizationCreated)
		}
	}

	if o.renderer != nil && o.mailer != nil {
		bus.OnPasswordResetRequested(o.SendPasswordReset)
		bus.OnEmailVerificationRequested(o.SendEmailVerification)
	}
}

// MirrorProfilePicture copies an external avatar into owned storage and
// points the user at the copy. Any failure aborts user creation.
func (o *Orchestrator) MirrorProfilePicture(ctx context.Context, user *domain.User) error {
	if user.Image == nil || *user.Image == "" {
		return nil
	}

	key := o.newKey()
	publicURL, err := o.assets.Upload(ctx, *user.Image, o.bucket, key)
	if err != nil {
		return fmt.Errorf("mirroring profile picture: %w", err)
	}

	user.Image = &publicURL
	return nil
}

// NotifyUserCreated sends the user.created webhook.
func (o *Orchestrator) NotifyUserCreated(ctx context.Context, user *domain.User) error {
	first, last := SplitName(user.Name)

	_, err := o.webhooks.Dispatch(ctx, webhook.NewEvent(EventUserCreated, UserCreatedData{
		ID:        user.ID,
		FirstName: first,
		LastName:  last,
		Email:     user.Email,
		Image:     user.Image,
	}))
	if err != nil {
		return fmt.Errorf("dispatching %s: %w", EventUserCreated, err)
	}
	return nil
}

// NotifyOrganizationCreated sends the organization.created webhook.
func (o *Orchestrator) NotifyOrganizationCreated(ctx context.Context, evt OrganizationCreated) error {
	data := OrganizationCreatedData{
		ID:       evt.Organization.ID,
		Name:     evt.Organization.Name,
		Slug:     evt.Organization.Slug,
		Metadata: evt.Organization.Metadata,
	}
	if evt.User != nil {
		data.CreatedByID = evt.User.ID
	}

	_, err := o.webhooks.Dispatch(ctx, webhook.NewEvent(EventOrganizationCreated, data))
	if err != nil {
		return fmt.Errorf("dispatching %s: %w", EventOrganizationCreated, err)
	}
	return nil
}

// SendPasswordReset emails the reset link. Failures are logged only; the
// reset token has already been issued.
func (o *Orchestrator) SendPasswordReset(ctx context.Context, evt PasswordResetRequested) error {
	o.sendTemplate(ctx, evt.User, email.TemplateResetPassword, subjectResetPassword, map[string]string{
		"username":          evt.User.Name,
		"resetPasswordLink": evt.URL,
	})
	return nil
}

// SendEmailVerification emails the verification link. Failures are logged only.
func (o *Orchestrator) SendEmailVerification(ctx context.Context, evt EmailVerificationRequested) error {
	o.sendTemplate(ctx, evt.User, email.TemplateVerifyEmail, subjectVerifyEmail, map[string]string{
		"username":         evt.User.Name,
		"verificationLink": evt.URL,
	})
	return nil
}

func (o *Orchestrator) sendTemplate(ctx context.Context, user *domain.User, template, subject string, vars map[string]string) {
	body, err := o.renderer.Render(template, vars)
	if err != nil {
		o.logger.Error("failed to render email", "template", template, "user_id", user.ID, "error", err)
		return
	}

	messageID, err := o.mailer.Send(ctx, email.Message{
		To:      []string{user.Email},
		Subject: subject,
		Body:    body,
		IsHTML:  true,
	})
	if err != nil {
		o.logger.Error("failed to send email", "template", template, "user_id", user.ID, "error", err)
		return
	}

	o.logger.Info("email dispatched", "template", template, "user_id", user.ID, "message_id", messageID)
}
