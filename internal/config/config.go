package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/ilyakaznacheev/cleanenv"
)

const defaultDSN = "root:password@tcp(127.0.0.1:3306)/groupify_assist?parseTime=true&loc=UTC"

var (
	ErrDefaultDSNInProduction = errors.New("DATABASE_DSN must be set in production environment")
	ErrSMTPHostInProduction   = errors.New("SMTP_HOST must be set in production environment")
	ErrInvalidSetting         = errors.New("invalid configuration value")
)

type Config struct {
	Port            string        `env:"PORT" env-default:"8080"`
	Env             string        `env:"ENV" env-default:"development"`
	DatabaseDSN     string        `env:"DATABASE_DSN"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`

	Token Token
	Mail  Mail
}

// Token configures the verification token lifecycle.
type Token struct {
	TTL              time.Duration `env:"TOKEN_TTL" env-default:"1h"`
	SweepInterval    time.Duration `env:"TOKEN_SWEEP_INTERVAL" env-default:"1h"`
	ExpiredRetention time.Duration `env:"TOKEN_EXPIRED_RETENTION" env-default:"24h"`
}

// Mail configures outbound SMTP delivery.
type Mail struct {
	SMTPHost      string        `env:"SMTP_HOST"`
	SMTPPort      string        `env:"SMTP_PORT" env-default:"587"`
	SMTPUser      string        `env:"SMTP_USER"`
	SMTPPass      string        `env:"SMTP_PASS"`
	From          string        `env:"MAIL_FROM"`
	RatePerSecond float64       `env:"MAIL_RATE_PER_SECOND" env-default:"5"`
	Burst         int           `env:"MAIL_BURST" env-default:"10"`
	Timeout       time.Duration `env:"MAIL_TIMEOUT" env-default:"10s"`
}

// Sender returns the envelope sender, falling back to the SMTP user.
func (m Mail) Sender() string {
	if m.From != "" {
		return m.From
	}
	return m.SMTPUser
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("reading env: %w", err)
	}

	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = defaultDSN
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	dsn, err := normalizeDSN(cfg.DatabaseDSN)
	if err != nil {
		return Config{}, err
	}
	cfg.DatabaseDSN = dsn

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) validate() error {
	switch {
	case c.Token.TTL <= 0:
		return fmt.Errorf("%w: TOKEN_TTL must be positive", ErrInvalidSetting)
	case c.Token.SweepInterval < 0:
		return fmt.Errorf("%w: TOKEN_SWEEP_INTERVAL must not be negative", ErrInvalidSetting)
	case c.Token.ExpiredRetention < 0:
		return fmt.Errorf("%w: TOKEN_EXPIRED_RETENTION must not be negative", ErrInvalidSetting)
	case c.Mail.RatePerSecond <= 0:
		return fmt.Errorf("%w: MAIL_RATE_PER_SECOND must be positive", ErrInvalidSetting)
	case c.Mail.Burst < 1:
		return fmt.Errorf("%w: MAIL_BURST must be at least 1", ErrInvalidSetting)
	case c.Mail.Timeout <= 0:
		return fmt.Errorf("%w: MAIL_TIMEOUT must be positive", ErrInvalidSetting)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: SHUTDOWN_TIMEOUT must be positive", ErrInvalidSetting)
	}

	if !c.IsProduction() {
		return nil
	}
	if c.DatabaseDSN == defaultDSN {
		return ErrDefaultDSNInProduction
	}
	if c.Mail.SMTPHost == "" {
		return ErrSMTPHostInProduction
	}
	return nil
}

// normalizeDSN turns on parseTime, which the repositories rely on to scan
// DATETIME columns into time.Time.
func normalizeDSN(dsn string) (string, error) {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("%w: DATABASE_DSN: %v", ErrInvalidSetting, err)
	}
	parsed.ParseTime = true
	return parsed.FormatDSN(), nil
}
