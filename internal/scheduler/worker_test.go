package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/platform/ai/completion"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeStore struct {
	leads    map[uuid.UUID]*domain.Lead
	appended []domain.Turn
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[uuid.UUID]*domain.Lead)}
}

func (f *fakeStore) addLead(turns int) *domain.Lead {
	lead := &domain.Lead{ID: uuid.New(), State: domain.StateNew}
	for i := 0; i < turns; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		lead.Chat = append(lead.Chat, domain.Turn{
			ID:      uuid.New(),
			LeadID:  lead.ID,
			Role:    role,
			Content: fmt.Sprintf("turn %d", i),
		})
	}
	f.leads[lead.ID] = lead
	return lead
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return nil, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (f *fakeStore) AppendTurn(ctx context.Context, leadID uuid.UUID, role domain.Role, content string) (*domain.Turn, error) {
	if _, ok := f.leads[leadID]; !ok {
		return nil, apperr.NotFound("lead not found")
	}
	turn := domain.Turn{ID: uuid.New(), LeadID: leadID, Role: role, Content: content}
	f.appended = append(f.appended, turn)
	return &turn, nil
}

func (f *fakeStore) Create(ctx context.Context, params repository.CreateLeadParams) (*domain.Lead, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) CountRecentUserTurns(ctx context.Context, leadID uuid.UUID, window time.Duration) (int, error) {
	return 0, nil
}

func (f *fakeStore) SaveIntent(ctx context.Context, leadID uuid.UUID, intent domain.Intent) (bool, error) {
	return false, errors.New("not implemented")
}

func (f *fakeStore) ReserveSlot(ctx context.Context, leadID uuid.UUID, slot time.Time, timezone string, contact domain.Contact) error {
	return errors.New("not implemented")
}

func (f *fakeStore) SetBookingConfirmed(ctx context.Context, leadID uuid.UUID, confirmed bool) error {
	return nil
}

func (f *fakeStore) MarkLost(ctx context.Context, leadID uuid.UUID, reason string) error {
	return errors.New("not implemented")
}

func (f *fakeStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Lead, error) {
	return nil, nil
}

func (f *fakeStore) ListAll(ctx context.Context, limit int, state *domain.State) ([]domain.Lead, error) {
	return nil, nil
}

func (f *fakeStore) Stats(ctx context.Context) (*repository.Stats, error) {
	return &repository.Stats{}, nil
}

type fakeCompleter struct {
	reply   string
	err     error
	history []completion.Message
	system  string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt string, history []completion.Message) (string, error) {
	f.system = systemPrompt
	f.history = history
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeNotifier struct {
	leadIDs []uuid.UUID
}

func (f *fakeNotifier) SendBookingConfirmation(ctx context.Context, leadID uuid.UUID) error {
	f.leadIDs = append(f.leadIDs, leadID)
	return nil
}

func newTestWorker(store *fakeStore, completer completion.Client, notifier ConfirmationSender) *Worker {
	return &Worker{
		repo:              store,
		completer:         completer,
		completionTimeout: time.Second,
		notifier:          notifier,
		log:               logger.New("development"),
	}
}

func assistantTask(t *testing.T, leadID uuid.UUID, message string) *asynq.Task {
	t.Helper()
	task, err := NewAssistantReplyTask(AssistantReplyPayload{LeadID: leadID.String(), UserMessage: message})
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}
	return task
}

func TestAssistantReplyUsesModelText(t *testing.T) {
	store := newFakeStore()
	lead := store.addLead(2)
	completer := &fakeCompleter{reply: "Tell me more about your workflows."}
	w := newTestWorker(store, completer, nil)

	err := w.handleAssistantReply(context.Background(), assistantTask(t, lead.ID, "we run a bakery"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.appended) != 1 {
		t.Fatalf("expected one appended turn, got %d", len(store.appended))
	}
	turn := store.appended[0]
	if turn.Role != domain.RoleAssistant || turn.Content != completer.reply {
		t.Fatalf("unexpected turn: %+v", turn)
	}

	// The pending user message rides along as the final model input.
	if len(completer.history) != 3 {
		t.Fatalf("expected 3 history messages, got %d", len(completer.history))
	}
	last := completer.history[len(completer.history)-1]
	if last.Role != completion.RoleUser || last.Content != "we run a bakery" {
		t.Fatalf("expected pending message last, got %+v", last)
	}
	if !strings.Contains(completer.system, "AI business consultant") {
		t.Fatalf("expected consultant system prompt")
	}
}

func TestAssistantReplyFallsBackOnCompletionError(t *testing.T) {
	store := newFakeStore()
	lead := store.addLead(2)
	completer := &fakeCompleter{err: errors.New("model unavailable")}
	w := newTestWorker(store, completer, nil)

	err := w.handleAssistantReply(context.Background(), assistantTask(t, lead.ID, "hello"))
	if err != nil {
		t.Fatalf("fallback handling must not surface the failure, got %v", err)
	}

	if len(store.appended) != 1 {
		t.Fatalf("expected fallback turn appended, got %d", len(store.appended))
	}
	want := domain.FallbackReply(2)
	if store.appended[0].Content != want {
		t.Fatalf("expected fallback for chat length 2, got %q", store.appended[0].Content)
	}
}

func TestAssistantReplyFallsBackWithoutCompleter(t *testing.T) {
	store := newFakeStore()
	lead := store.addLead(5)
	w := newTestWorker(store, nil, nil)

	if err := w.handleAssistantReply(context.Background(), assistantTask(t, lead.ID, "hi")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.appended) != 1 || store.appended[0].Content != domain.FallbackReply(5) {
		t.Fatalf("expected fallback keyed by chat length 5")
	}
}

func TestAssistantReplySkipsMissingLead(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{reply: "should not be used"}
	w := newTestWorker(store, completer, nil)

	err := w.handleAssistantReply(context.Background(), assistantTask(t, uuid.New(), "hi"))
	if err != nil {
		t.Fatalf("missing lead must not fail the task, got %v", err)
	}
	if len(store.appended) != 0 {
		t.Fatalf("expected no turns appended for missing lead")
	}
	if completer.history != nil {
		t.Fatalf("expected no completion call for missing lead")
	}
}

func TestAssistantReplyTrimsHistory(t *testing.T) {
	store := newFakeStore()
	lead := store.addLead(15)
	completer := &fakeCompleter{reply: "ok"}
	w := newTestWorker(store, completer, nil)

	if err := w.handleAssistantReply(context.Background(), assistantTask(t, lead.ID, "latest")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 10 most recent turns plus the pending message.
	if len(completer.history) != domain.HistoryLimit+1 {
		t.Fatalf("expected %d messages, got %d", domain.HistoryLimit+1, len(completer.history))
	}
	if completer.history[0].Content != "turn 5" {
		t.Fatalf("expected oldest retained turn to be turn 5, got %q", completer.history[0].Content)
	}
}

func TestBookingConfirmationDispatches(t *testing.T) {
	notifier := &fakeNotifier{}
	w := newTestWorker(newFakeStore(), nil, notifier)

	leadID := uuid.New()
	task, err := NewBookingConfirmationTask(BookingConfirmationPayload{LeadID: leadID.String()})
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}

	if err := w.handleBookingConfirmation(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.leadIDs) != 1 || notifier.leadIDs[0] != leadID {
		t.Fatalf("expected notifier called with lead id, got %v", notifier.leadIDs)
	}
}
