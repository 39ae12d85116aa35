// Package mail delivers the few transactional mails the service sends.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Message is a plain-text mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends a message or reports why it could not.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ResetPasswordMessage builds the mail carrying the password-reset link.
func ResetPasswordMessage(to, name, link string) Message {
	if name == "" {
		name = to
	}
	return Message{
		To:      to,
		Subject: "Reset your cardbook password",
		Body: fmt.Sprintf("Hi %s,\n\n"+
			"Someone asked to reset the password of your cardbook account.\n"+
			"Open the link below to choose a new one. It expires shortly.\n\n"+
			"%s\n\n"+
			"If you did not ask for this, ignore this mail.\n", name, link),
	}
}

// LogMailer writes mails to the log instead of sending them. Used in
// development and whenever no SMTP host is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail not sent, logging instead",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}

// SMTPConfig configures SMTPMailer. User may be empty for relays that
// accept unauthenticated mail.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay with go-mail, upgrading to
// TLS when the relay offers STARTTLS.
type SMTPMailer struct {
	cfg     SMTPConfig
	deliver func(ctx context.Context, msg *gomail.Msg) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg}
	m.deliver = m.dialAndSend
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gm, err := m.build(msg)
	if err != nil {
		return err
	}
	if err := m.deliver(ctx, gm); err != nil {
		return fmt.Errorf("mail: sending to %s: %w", msg.To, err)
	}
	return nil
}

// build turns msg into a MIME message. go-mail encodes non-ASCII header
// values; line breaks in them are rejected outright.
func (m *SMTPMailer) build(msg Message) (*gomail.Msg, error) {
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return nil, fmt.Errorf("mail: header values must not contain line breaks")
	}

	gm := gomail.NewMsg()
	if err := gm.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("mail: invalid sender %q: %w", m.cfg.From, err)
	}
	if err := gm.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail: invalid recipient %q: %w", msg.To, err)
	}
	gm.Subject(msg.Subject)
	gm.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return gm, nil
}

func (m *SMTPMailer) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithPort(m.cfg.Port),
	}
	if m.cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.User),
			gomail.WithPassword(m.cfg.Password),
		)
	}
	client, err := gomail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
