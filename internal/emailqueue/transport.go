package emailqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/driveaway-backend/pkg/config"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
)

type sendgridSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendgridTransport delivers through the SendGrid v3 mail API.
type SendgridTransport struct {
	client   sendgridSender
	fromAddr string
	fromName string
}

// NewSendgridTransport builds the production transport.
func NewSendgridTransport(cfg config.SendgridConfig) (*SendgridTransport, error) {
	if !cfg.Enabled() {
		return nil, errors.New("sendgrid api key required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, errors.New("sendgrid from address required")
	}
	return &SendgridTransport{
		client:   sendgrid.NewSendClient(cfg.APIKey),
		fromAddr: cfg.DefaultFrom,
		fromName: cfg.FromName,
	}, nil
}

func (t *SendgridTransport) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(t.fromName, t.fromAddr)
	to := mail.NewEmail("", msg.To)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")

	resp, err := t.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogTransport writes messages to the log instead of sending them. Used in
// dev and whenever no SendGrid key is configured.
type LogTransport struct {
	logg *logger.Logger
}

func NewLogTransport(logg *logger.Logger) *LogTransport {
	return &LogTransport{logg: logg}
}

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.logg.Info(t.logg.WithFields(ctx, map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
	}), "email delivered to log transport")
	return nil
}

// NewTransport picks SendGrid when configured and the log transport otherwise.
func NewTransport(cfg config.SendgridConfig, logg *logger.Logger) (Transport, error) {
	if !cfg.Enabled() {
		return NewLogTransport(logg), nil
	}
	return NewSendgridTransport(cfg)
}
