package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/groupify/accounts-go/internal/lib/sl"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends each message over a fresh SMTP session.
type SMTPSender struct {
	dialer Dialer
	log    *slog.Logger
}

// NewSMTPSender creates a new SMTPSender.
func NewSMTPSender(dialer Dialer, log *slog.Logger) *SMTPSender {
	return &SMTPSender{dialer: dialer, log: log}
}

// Send delivers msg to its single recipient.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	const op = "mail.SMTPSender.Send"

	raw, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("%s: render: %w", op, err)
	}

	client, err := s.dialer.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			s.log.Debug("smtp client close", slog.String("op", op), sl.Err(err))
		}
	}()

	if err := client.Mail(msg.From); err != nil {
		return fmt.Errorf("%s: MAIL FROM: %w", op, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("%s: RCPT TO: %w", op, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: DATA: %w", op, err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("%s: write body: %w", op, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s: close body: %w", op, err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("%s: QUIT: %w", op, err)
	}

	return nil
}

// LogSender writes messages to the log instead of delivering them. It is used
// in development when no SMTP server is configured.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info("email not sent, smtp disabled",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}
