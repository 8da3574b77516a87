package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/pkg/config"
)

// Address is a named mailbox.
type Address struct {
	Name  string
	Email string
}

// Message is a single e-mail addressed to one or more recipients. Each
// recipient receives an individual copy.
type Message struct {
	To      []Address
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the mailer selected by cfg.Provider.
func New(cfg config.MailConfig, logger *zap.Logger) (Mailer, error) {
	from := Address{Name: cfg.FromName, Email: cfg.FromAddress}
	switch cfg.Provider {
	case "", "log":
		return NewLogMailer(from, logger), nil
	case "sendgrid":
		return NewSendgridMailer(cfg.SendgridAPIKey, from), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// LogMailer writes messages to the logger instead of sending them.
type LogMailer struct {
	from   Address
	logger *zap.Logger
}

// NewLogMailer returns a Mailer for development environments.
func NewLogMailer(from Address, logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{from: from, logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail not sent (log provider)",
		zap.String("from", m.from.Email),
		zap.Int("recipients", len(msg.To)),
		zap.String("subject", msg.Subject),
	)
	return nil
}
