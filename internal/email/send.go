package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SenderNotConfigured is returned by Send in place of a message id when no
// sender address is configured. Nothing is sent in that case.
const SenderNotConfigured = "AWS_SENDER_EMAIL not configured"

// API is the subset of the SES v2 client used for sending.
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Message is a single-part email addressed to every recipient in one call.
type Message struct {
	To      []string
	Subject string
	Body    string
	IsHTML  bool
}

// DeliveryError is returned when the provider rejects a message.
type DeliveryError struct {
	Recipients []string
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("sending email to %d recipient(s): %v", len(e.Recipients), e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type SenderConfig struct {
	From        string
	ContactList string
	Topic       string
}

type Sender struct {
	api    API
	cfg    SenderConfig
	logger *slog.Logger
}

func NewSender(api API, cfg SenderConfig, logger *slog.Logger) *Sender {
	return &Sender{api: api, cfg: cfg, logger: logger}
}

// Send delivers msg and returns the provider message id.
func (s *Sender) Send(ctx context.Context, msg Message) (string, error) {
	if s.cfg.From == "" {
		s.logger.Warn("email not sent: sender address not configured", "subject", msg.Subject)
		return SenderNotConfigured, nil
	}

	to := dedupe(msg.To)
	if len(to) == 0 {
		return "", &DeliveryError{Err: errors.New("no recipients")}
	}

	body := &types.Body{}
	content := &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")}
	if msg.IsHTML {
		body.Html = content
	} else {
		body.Text = content
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.cfg.From),
		Destination:      &types.Destination{ToAddresses: to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
	if s.cfg.ContactList != "" {
		input.ListManagementOptions = &types.ListManagementOptions{
			ContactListName: aws.String(s.cfg.ContactList),
			TopicName:       aws.String(s.cfg.Topic),
		}
	}

	out, err := s.api.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("email delivery failed", "subject", msg.Subject, "recipients", len(to), "error", err)
		return "", &DeliveryError{Recipients: to, Err: err}
	}
	if out == nil || out.MessageId == nil {
		return "", &DeliveryError{Recipients: to, Err: errors.New("no message id returned")}
	}

	s.logger.Info("email sent", "subject", msg.Subject, "recipients", len(to), "message_id", *out.MessageId)
	return *out.MessageId, nil
}

func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
