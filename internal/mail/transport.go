// Package mail delivers verification emails over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/groupify/accounts-go/internal/lib/sl"
)

var ErrStartTLSUnsupported = errors.New("smtp server does not support STARTTLS")

// Client is the subset of *smtp.Client used to send one message.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer opens an authenticated SMTP session.
type Dialer interface {
	Connect(ctx context.Context) (Client, error)
}

// TransportConfig holds the SMTP server coordinates.
type TransportConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Timeout  time.Duration
}

// Transport dials SMTP servers that require STARTTLS and PLAIN auth.
type Transport struct {
	cfg TransportConfig
	log *slog.Logger
}

// NewTransport creates a new Transport.
func NewTransport(cfg TransportConfig, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log}
}

// Connect dials the server, upgrades to TLS and authenticates.
func (t *Transport) Connect(ctx context.Context) (Client, error) {
	const op = "mail.Transport.Connect"
	log := t.log.With(slog.String("op", op), slog.String("host", t.cfg.Host))

	dialer := &net.Dialer{Timeout: t.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(t.cfg.Host, t.cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("%s: dial: %w", op, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: set deadline: %w", op, err)
		}
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Error("failed to close connection", sl.Err(closeErr))
		}
		return nil, fmt.Errorf("%s: new client: %w", op, err)
	}

	if ok, _ := client.Extension("STARTTLS"); !ok {
		t.closeClient(log, client)
		return nil, fmt.Errorf("%s: %w", op, ErrStartTLSUnsupported)
	}

	tlsConfig := &tls.Config{
		ServerName: t.cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		t.closeClient(log, client)
		return nil, fmt.Errorf("%s: starttls: %w", op, err)
	}

	if t.cfg.User != "" {
		auth := smtp.PlainAuth("", t.cfg.User, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			t.closeClient(log, client)
			return nil, fmt.Errorf("%s: auth: %w", op, err)
		}
	}

	return client, nil
}

func (t *Transport) closeClient(log *slog.Logger, client *smtp.Client) {
	if err := client.Close(); err != nil {
		log.Error("failed to close smtp client", sl.Err(err))
	}
}
