package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadfunnel_backend/internal/email"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/notification"
	"leadfunnel_backend/internal/scheduler"
	"leadfunnel_backend/platform/ai/completion"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/db"
	"leadfunnel_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	completer := initCompletion(ctx, cfg, log)
	sender := initSender(cfg, log)

	notifier := notification.NewService(repository.New(pool), sender, log)

	worker, err := scheduler.NewWorker(cfg, pool, completer, cfg.GetCompletionTimeout(), notifier, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	log.Info("worker listening", "queue", cfg.GetAsynqQueueName(), "concurrency", cfg.GetAsynqConcurrency())
	worker.Run(ctx)
}

// initCompletion returns nil when no API key is configured; assistant replies
// then always use the deterministic fallback.
func initCompletion(ctx context.Context, cfg config.CompletionConfig, log *logger.Logger) completion.Client {
	if !cfg.IsCompletionEnabled() {
		log.Warn("GEMINI_API_KEY not configured; assistant replies use fallback only")
		return nil
	}

	client, err := completion.NewGeminiClient(ctx, completion.Config{
		APIKey: cfg.GetGeminiAPIKey(),
		Model:  cfg.GetCompletionModel(),
	})
	if err != nil {
		log.Error("failed to initialize completion client", "error", err)
		return nil
	}

	return client
}

func initSender(cfg config.EmailConfig, log *logger.Logger) email.Sender {
	if !cfg.GetEmailEnabled() {
		log.Warn("SMTP not configured; confirmation emails disabled")
		return email.NoopSender{}
	}

	return email.NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt < attempts {
			delay := baseDelay * time.Duration(attempt)
			log.Warn("retrying after failure", "operation", name, "attempt", attempt, "delay", delay.String(), "error", lastErr.Error())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
