package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/groupify/accounts-go/internal/config"
	"github.com/groupify/accounts-go/internal/crypto"
	"github.com/groupify/accounts-go/internal/handler"
	"github.com/groupify/accounts-go/internal/lib/sl"
	"github.com/groupify/accounts-go/internal/mail"
	"github.com/groupify/accounts-go/internal/metrics"
	"github.com/groupify/accounts-go/internal/repository"
	"github.com/groupify/accounts-go/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", sl.Err(err))
		os.Exit(1)
	}

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("server stopped")
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", sl.Err(err))
		}
	}()

	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}

	m := metrics.New()

	transactor := repository.NewTransactor(db)
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)

	notifier := mail.NewNotifier(newMailSender(cfg, log), cfg.Mail.Sender(), cfg.Mail.RatePerSecond, cfg.Mail.Burst, m)
	hasher := crypto.NewPasswordHasher(crypto.DefaultHashParams())

	verification := service.NewVerificationService(log, tokenRepo, cfg.Token.TTL)
	accounts := service.NewAccountService(log, transactor, userRepo, verification, hasher, notifier, cfg.Mail.Timeout)

	router := handler.NewRouter(handler.NewAccountHandler(accounts, log), m, log)

	var wg sync.WaitGroup
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()

	if cfg.Token.SweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			verification.RunSweeper(sweepCtx, cfg.Token.SweepInterval, cfg.Token.ExpiredRetention, func(n int64) {
				m.TokensPurged.Add(float64(n))
			})
		}()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("port", cfg.Port), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stopSweep()
			wg.Wait()
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	shutdownErr := srv.Shutdown(shutdownCtx)

	stopSweep()
	wg.Wait()

	return shutdownErr
}

func newMailSender(cfg config.Config, log *slog.Logger) mail.Sender {
	if cfg.Mail.SMTPHost == "" {
		log.Warn("SMTP_HOST not set, verification emails will only be logged")
		return mail.NewLogSender(log)
	}

	transport := mail.NewTransport(mail.TransportConfig{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		User:     cfg.Mail.SMTPUser,
		Password: cfg.Mail.SMTPPass,
		Timeout:  cfg.Mail.Timeout,
	}, log)

	return mail.NewSMTPSender(transport, log)
}

func setupLogger(env string) *slog.Logger {
	if env == "development" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
