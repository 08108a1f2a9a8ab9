// Package notify renders availability alerts and delivers them by email
// through Mailjet, or to a log when no mail secrets are configured.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
)

const (
	defaultSender = "alerts@localhost"
	defaultName   = "Campsite Alerts"
)

// ErrNoRecipient is returned when Send is called without an address
var ErrNoRecipient = errors.New("no recipient")

// MailjetNotifier sends email through the Mailjet v3.1 send API
type MailjetNotifier struct {
	sender     string // Sender email address.
	name       string // Sender display name.
	publicKey  string
	privateKey string
	send       func(msgs *mailjet.MessagesV31) error
	logger     *log.Logger
}

// Option configures a MailjetNotifier
type Option func(*MailjetNotifier) error

// WithSender sets the From address and display name
func WithSender(email, name string) Option {
	return func(n *MailjetNotifier) error {
		if strings.TrimSpace(email) == "" {
			return errors.New("sender email is empty")
		}
		n.sender = email
		if name != "" {
			n.name = name
		}
		return nil
	}
}

// WithSecrets sets the Mailjet API keys
func WithSecrets(publicKey, privateKey string) Option {
	return func(n *MailjetNotifier) error {
		if publicKey == "" {
			return errors.New("mailjet public key not found")
		}
		if privateKey == "" {
			return errors.New("mailjet private key not found")
		}
		n.publicKey = publicKey
		n.privateKey = privateKey
		return nil
	}
}

// WithLogger replaces the default stdout logger
func WithLogger(l *log.Logger) Option {
	return func(n *MailjetNotifier) error {
		n.logger = l
		return nil
	}
}

// withSendFunc swaps the Mailjet call, for tests
func withSendFunc(fn func(msgs *mailjet.MessagesV31) error) Option {
	return func(n *MailjetNotifier) error {
		n.send = fn
		return nil
	}
}

// NewMailjetNotifier returns a notifier configured by options.
// WithSecrets is required.
func NewMailjetNotifier(options ...Option) (*MailjetNotifier, error) {
	n := &MailjetNotifier{
		sender: defaultSender,
		name:   defaultName,
		logger: log.New(os.Stdout, "", log.LstdFlags),
	}
	for _, opt := range options {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	if n.publicKey == "" || n.privateKey == "" {
		return nil, errors.New("mailjet secrets not configured")
	}
	if n.send == nil {
		clt := mailjet.NewMailjetClient(n.publicKey, n.privateKey)
		n.send = func(msgs *mailjet.MessagesV31) error {
			_, err := clt.SendMailV31(msgs)
			return err
		}
	}
	return n, nil
}

// Send delivers one message to one recipient
func (n *MailjetNotifier) Send(ctx context.Context, to, subject string, body Body) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info := []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: n.sender, Name: n.name},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: to}},
		Subject:  subject,
		TextPart: body.Text,
		HTMLPart: body.HTML,
	}}
	msgs := mailjet.MessagesV31{Info: info}
	if err := n.send(&msgs); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	n.logger.Printf("Email notification sent to %s: %s", to, subject)
	return nil
}

// LogNotifier prints messages instead of sending them
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier returns a dry-run notifier writing to logger.
// A nil logger writes to stdout.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	return &LogNotifier{logger: logger}
}

// Send logs the message and always succeeds for a non-empty recipient
func (n *LogNotifier) Send(ctx context.Context, to, subject string, body Body) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	n.logger.Printf("[dry-run] email to %s\nSubject: %s\n\n%s", to, subject, body.Text)
	return nil
}
