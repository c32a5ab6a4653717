package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/scheduler"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore mimics the store's booking guarantees: per-slot uniqueness and
// lifecycle guards, serialized under a single lock.
type fakeStore struct {
	mu          sync.Mutex
	states      map[uuid.UUID]domain.State
	bookedSlots map[time.Time]uuid.UUID
	lastSlot    time.Time
	lastContact domain.Contact
	lastTZ      string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states:      make(map[uuid.UUID]domain.State),
		bookedSlots: make(map[time.Time]uuid.UUID),
	}
}

func (f *fakeStore) addLead(state domain.State) uuid.UUID {
	id := uuid.New()
	f.states[id] = state
	return id
}

func (f *fakeStore) ReserveSlot(ctx context.Context, leadID uuid.UUID, slot time.Time, timezone string, contact domain.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.states[leadID]
	if !ok {
		return apperr.NotFound("lead not found")
	}
	if err := domain.EnsureTransition(state, domain.StateBooked); err != nil {
		return err
	}
	if _, taken := f.bookedSlots[slot]; taken {
		return apperr.Conflict("slot-taken")
	}

	f.bookedSlots[slot] = leadID
	f.states[leadID] = domain.StateBooked
	f.lastSlot = slot
	f.lastContact = contact
	f.lastTZ = timezone
	return nil
}

func (f *fakeStore) Create(ctx context.Context, params repository.CreateLeadParams) (*domain.Lead, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) AppendTurn(ctx context.Context, leadID uuid.UUID, role domain.Role, content string) (*domain.Turn, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) CountRecentUserTurns(ctx context.Context, leadID uuid.UUID, window time.Duration) (int, error) {
	return 0, nil
}

func (f *fakeStore) SaveIntent(ctx context.Context, leadID uuid.UUID, intent domain.Intent) (bool, error) {
	return false, errors.New("not implemented")
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

type fakeEnqueuer struct {
	mu       sync.Mutex
	bookings []scheduler.BookingConfirmationPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueAssistantReply(ctx context.Context, payload scheduler.AssistantReplyPayload) error {
	return nil
}

func (f *fakeEnqueuer) EnqueueBookingConfirmation(ctx context.Context, payload scheduler.BookingConfirmationPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.bookings = append(f.bookings, payload)
	return nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeBus) Publish(ctx context.Context, event events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	f.Publish(ctx, event)
	return nil
}

func (f *fakeBus) Subscribe(eventName string, handler events.Handler) {}

// monday is a fixed reference instant: Monday 2026-03-02 09:00 UTC.
var monday = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore, enq *fakeEnqueuer, bus *fakeBus) *Service {
	svc := New(store, enq, bus, logger.New("development"))
	svc.now = func() time.Time { return monday }
	return svc
}

func validRequest() BookRequest {
	return BookRequest{
		Slot:     monday.Add(25 * time.Hour), // Tuesday 10:00 UTC
		Timezone: "UTC",
		Email:    "visitor@example.com",
	}
}

func TestBookInvalidEmail(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeEnqueuer{}, &fakeBus{})

	for _, bad := range []string{"", "no-at.example.com", "a b@example.com", "user@nodot"} {
		req := validRequest()
		req.Email = bad
		err := svc.Book(context.Background(), uuid.New(), req)
		if !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("email %q: expected validation error, got %v", bad, err)
		}
	}
}

func TestBookPastSlot(t *testing.T) {
	store := newFakeStore()
	leadID := store.addLead(domain.StateQualified)
	svc := newTestService(store, &fakeEnqueuer{}, &fakeBus{})

	req := validRequest()
	req.Slot = monday.Add(-time.Hour)
	if err := svc.Book(context.Background(), leadID, req); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected past-slot validation error, got %v", err)
	}

	req.Slot = monday // exactly now is also rejected
	if err := svc.Book(context.Background(), leadID, req); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected past-slot for non-future slot, got %v", err)
	}
}

func TestBookCustomSlotBusinessRules(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeEnqueuer{}, &fakeBus{})

	cases := []struct {
		name string
		slot time.Time
		want string
	}{
		{"before opening", monday.AddDate(0, 0, 1).Add(-time.Hour), "outside-business-hours"}, // Tue 08:00
		{"after closing", time.Date(2026, 3, 3, 19, 0, 0, 0, time.UTC), "outside-business-hours"},
		{"saturday", time.Date(2026, 3, 7, 11, 0, 0, 0, time.UTC), "weekend"},
		{"sunday", time.Date(2026, 3, 8, 11, 0, 0, 0, time.UTC), "weekend"},
	}

	for _, tc := range cases {
		leadID := store.addLead(domain.StateNew)
		req := validRequest()
		req.Custom = true
		req.Slot = tc.slot
		err := svc.Book(context.Background(), leadID, req)
		if !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
			continue
		}
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Message != tc.want {
			t.Errorf("%s: expected reason %q, got %q", tc.name, tc.want, appErr.Message)
		}
	}

	// A valid custom slot passes both checks.
	leadID := store.addLead(domain.StateNew)
	req := validRequest()
	req.Custom = true
	req.Slot = time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC)
	if err := svc.Book(context.Background(), leadID, req); err != nil {
		t.Fatalf("expected valid custom slot to book, got %v", err)
	}
}

func TestBookReservesAndDispatches(t *testing.T) {
	store := newFakeStore()
	leadID := store.addLead(domain.StateQualified)
	enq := &fakeEnqueuer{}
	bus := &fakeBus{}
	svc := newTestService(store, enq, bus)

	phone := "212-555-0123"
	req := validRequest()
	req.Phone = &phone

	if err := svc.Book(context.Background(), leadID, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.states[leadID] != domain.StateBooked {
		t.Fatalf("expected lead booked, got %s", store.states[leadID])
	}
	if store.lastSlot.Location() != time.UTC {
		t.Fatalf("expected slot stored in UTC")
	}
	if store.lastContact.Phone == nil || *store.lastContact.Phone != "+12125550123" {
		t.Fatalf("expected normalized phone, got %v", store.lastContact.Phone)
	}
	if len(enq.bookings) != 1 || enq.bookings[0].LeadID != leadID.String() {
		t.Fatalf("expected one confirmation task, got %v", enq.bookings)
	}
	if len(bus.events) != 1 || bus.events[0].EventName() != "booking.slot.booked" {
		t.Fatalf("expected slot booked event, got %v", bus.events)
	}
}

func TestBookSurvivesEnqueueFailure(t *testing.T) {
	store := newFakeStore()
	leadID := store.addLead(domain.StateNew)
	enq := &fakeEnqueuer{err: errors.New("redis down")}
	svc := newTestService(store, enq, &fakeBus{})

	if err := svc.Book(context.Background(), leadID, validRequest()); err != nil {
		t.Fatalf("booking must stand when the confirmation cannot be enqueued, got %v", err)
	}
	if store.states[leadID] != domain.StateBooked {
		t.Fatalf("expected lead booked despite enqueue failure")
	}
}

func TestBookStaleLifecycleStates(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeEnqueuer{}, &fakeBus{})

	for _, state := range []domain.State{domain.StateBooked, domain.StateCompleted, domain.StateLost} {
		leadID := store.addLead(state)
		req := validRequest()
		req.Slot = req.Slot.Add(time.Duration(len(store.states)) * time.Hour)
		if err := svc.Book(context.Background(), leadID, req); !apperr.Is(err, apperr.KindStaleState) {
			t.Errorf("state %s: expected stale state error, got %v", state, err)
		}
	}
}

func TestBookSameSlotConcurrently(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeEnqueuer{}, &fakeBus{})

	const attempts = 10
	leadIDs := make([]uuid.UUID, attempts)
	for i := range leadIDs {
		leadIDs[i] = store.addLead(domain.StateQualified)
	}

	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Book(context.Background(), leadIDs[i], validRequest())
		}(i)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case apperr.Is(err, apperr.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Fatalf("expected exactly one winner, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Fatalf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
}

func TestSlotsSkipWeekendsAndCap(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeEnqueuer{}, &fakeBus{})

	candidates := svc.Slots("UTC")
	if len(candidates) != maxCandidates {
		t.Fatalf("expected %d candidates, got %d", maxCandidates, len(candidates))
	}

	hourSet := map[int]bool{10: true, 11: true, 14: true, 15: true, 16: true}
	for _, c := range candidates {
		local := c.Slot.In(time.UTC)
		if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
			t.Errorf("candidate on weekend: %v", c.Slot)
		}
		if !hourSet[local.Hour()] {
			t.Errorf("candidate at unexpected hour: %v", c.Slot)
		}
		if !c.Slot.After(monday) {
			t.Errorf("candidate in the past: %v", c.Slot)
		}
		if c.Label == "" {
			t.Errorf("candidate missing label: %v", c.Slot)
		}
	}

	// Starting Monday, the first candidate is Tuesday 10:00.
	first := candidates[0].Slot.In(time.UTC)
	if first.Weekday() != time.Tuesday || first.Hour() != 10 {
		t.Fatalf("expected first candidate Tuesday 10:00, got %v", first)
	}
}
