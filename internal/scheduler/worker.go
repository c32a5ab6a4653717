package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/platform/ai/completion"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConfirmationSender dispatches the booking confirmation for a lead.
type ConfirmationSender interface {
	SendBookingConfirmation(ctx context.Context, leadID uuid.UUID) error
}

type Worker struct {
	server            *asynq.Server
	mux               *asynq.ServeMux
	repo              repository.Store
	completer         completion.Client
	completionTimeout time.Duration
	notifier          ConfirmationSender
	log               *logger.Logger
}

func NewWorker(
	cfg config.SchedulerConfig,
	pool *pgxpool.Pool,
	completer completion.Client,
	completionTimeout time.Duration,
	notifier ConfirmationSender,
	log *logger.Logger,
) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:            server,
		mux:               mux,
		repo:              repository.New(pool),
		completer:         completer,
		completionTimeout: completionTimeout,
		notifier:          notifier,
		log:               log,
	}

	mux.HandleFunc(TaskAssistantReply, w.handleAssistantReply)
	mux.HandleFunc(TaskBookingConfirmation, w.handleBookingConfirmation)

	return w, nil
}

// handleAssistantReply generates the assistant turn for a pending user
// message. A reply is always appended: when the completion collaborator
// fails, times out, or is disabled, the deterministic fallback goes in
// instead, so the task never needs a retry for model trouble.
func (w *Worker) handleAssistantReply(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAssistantReplyPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	lead, err := w.repo.GetByID(ctx, leadID)
	if apperr.Is(err, apperr.KindNotFound) {
		// Lead was deleted between enqueue and processing.
		w.log.Info("assistant reply skipped, lead gone", "lead_id", payload.LeadID)
		return nil
	}
	if err != nil {
		return err
	}

	reply := w.generateReply(ctx, lead, payload.UserMessage)

	_, err = w.repo.AppendTurn(ctx, leadID, domain.RoleAssistant, reply)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	return err
}

func (w *Worker) generateReply(ctx context.Context, lead *domain.Lead, userMessage string) string {
	if w.completer == nil {
		return domain.FallbackReply(len(lead.Chat))
	}

	history := make([]completion.Message, 0, domain.HistoryLimit+1)
	turns := lead.Chat
	if len(turns) > domain.HistoryLimit {
		turns = turns[len(turns)-domain.HistoryLimit:]
	}
	for _, turn := range turns {
		role := completion.RoleUser
		if turn.Role == domain.RoleAssistant {
			role = completion.RoleAssistant
		}
		history = append(history, completion.Message{Role: role, Content: turn.Content})
	}
	history = append(history, completion.Message{Role: completion.RoleUser, Content: userMessage})

	timeout := w.completionTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := w.completer.Complete(ctx, domain.SystemPrompt, history)
	if err != nil {
		w.log.Warn("completion failed, using fallback",
			"lead_id", lead.ID.String(), "error", err.Error())
		return domain.FallbackReply(len(lead.Chat))
	}

	return reply
}

func (w *Worker) handleBookingConfirmation(ctx context.Context, task *asynq.Task) error {
	if w.notifier == nil {
		return nil
	}

	payload, err := ParseBookingConfirmationPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	return w.notifier.SendBookingConfirmation(ctx, leadID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
