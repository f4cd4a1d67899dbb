package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"

	"TuxLetter/internal/config"
	"TuxLetter/internal/domain"
	"TuxLetter/internal/ports"
)

const senderName = "Tux Letter"

// sender is the part of *gomail.Client the notifier needs.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
	DialWithContext(ctx context.Context) error
	Close() error
}

// Notifier sends digests by authenticated SMTP submission to one recipient.
type Notifier struct {
	from      string
	recipient string
	location  *time.Location
	client    sender
	logger    *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier prepares an SMTP client with STARTTLS and PLAIN auth.
func NewNotifier(cfg config.EmailConfig, loc *time.Location, log *slog.Logger) (*Notifier, error) {
	if cfg.Host == "" || cfg.Recipient == "" {
		return nil, errors.New("email notifier misconfigured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
		gomail.WithTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return newNotifier(client, firstNonEmpty(cfg.From, cfg.Username), cfg.Recipient, loc, log), nil
}

func newNotifier(client sender, from, recipient string, loc *time.Location, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		from:      from,
		recipient: recipient,
		location:  loc,
		client:    client,
		logger:    log,
	}
}

// Send renders digest as HTML and submits it.
func (n *Notifier) Send(ctx context.Context, digest domain.Digest) error {
	if digest.Date.IsZero() {
		digest.Date = time.Now()
	}
	digest.Date = digest.Date.In(n.location)

	msg, err := n.message(digest)
	if err != nil {
		n.logger.Error("email build failed", "to", n.recipient, "error", err)
		return err
	}

	n.logger.Info("sending email",
		"to", n.recipient,
		"total_items", digest.TotalItems,
		"references", len(digest.References))

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		n.logger.Error("email send failed", "to", n.recipient, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("email sent", "to", n.recipient, "total_items", digest.TotalItems)
	return nil
}

func (n *Notifier) message(digest domain.Digest) (*gomail.Msg, error) {
	body, err := renderHTML(digest)
	if err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(senderName, n.from); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(n.recipient); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(Subject(digest))
	msg.SetDateWithValue(digest.Date)
	msg.SetBodyString(gomail.TypeTextHTML, body)
	return msg, nil
}

// TestConnection dials and authenticates against the SMTP server.
func (n *Notifier) TestConnection(ctx context.Context) bool {
	n.logger.Info("testing smtp connection")
	if err := n.client.DialWithContext(ctx); err != nil {
		n.logger.Error("smtp verification failed", "error", err)
		return false
	}
	if err := n.client.Close(); err != nil {
		n.logger.Warn("smtp close failed", "error", err)
	}
	n.logger.Info("smtp connection verified")
	return true
}

// Subject is "Tux Letter • YYYY-MM-DD • N updates".
func Subject(digest domain.Digest) string {
	return fmt.Sprintf("%s • %s • %d updates", senderName, digest.Date.Format(time.DateOnly), digest.TotalItems)
}

func renderHTML(digest domain.Digest) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, digest); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
