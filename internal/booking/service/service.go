// Package service implements the discovery-session booking coordinator.
// The store guarantees a slot is never double-booked; this layer owns the
// validation rules, candidate generation and post-booking side effects.
package service

import (
	"context"
	"regexp"
	"time"

	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/scheduler"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/phone"

	"github.com/google/uuid"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// slotHours are the offered session start hours, local to the visitor.
var slotHours = []int{10, 11, 14, 15, 16}

const (
	candidateDays    = 5
	maxCandidates    = 12
	businessOpenHour = 9
	businessEndHour  = 18
)

// BookRequest carries a validated booking attempt.
type BookRequest struct {
	Slot     time.Time
	Timezone string
	Custom   bool
	Email    string
	Name     *string
	Company  *string
	Phone    *string
}

// SlotCandidate is one offered slot with its display label.
type SlotCandidate struct {
	Slot  time.Time `json:"slot"`
	Label string    `json:"label"`
}

type Service struct {
	store    repository.Store
	enqueuer scheduler.TaskEnqueuer
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

func New(store repository.Store, enqueuer scheduler.TaskEnqueuer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		enqueuer: enqueuer,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// Book reserves the slot for the lead. Exactly one of any number of
// concurrent attempts on the same slot succeeds; the rest get a conflict.
// The confirmation email is dispatched out of band and its fate never
// affects the reservation.
func (s *Service) Book(ctx context.Context, leadID uuid.UUID, req BookRequest) error {
	if !emailRegex.MatchString(req.Email) {
		return apperr.Validation("invalid-email")
	}

	now := s.now()
	if !req.Slot.After(now) {
		return apperr.Validation("past-slot")
	}

	if req.Custom {
		if err := validateBusinessHours(req.Slot, req.Timezone); err != nil {
			return err
		}
	}

	contact := domain.Contact{
		Email:   req.Email,
		Name:    req.Name,
		Company: req.Company,
		Phone:   normalizePhone(req.Phone),
	}

	if err := s.store.ReserveSlot(ctx, leadID, req.Slot.UTC(), req.Timezone, contact); err != nil {
		return err
	}

	err := s.enqueuer.EnqueueBookingConfirmation(ctx, scheduler.BookingConfirmationPayload{
		LeadID: leadID.String(),
	})
	if err != nil {
		// The booking stands; the dispatcher flips the confirmation flag
		// whenever the task eventually runs.
		s.log.Warn("failed to enqueue booking confirmation",
			"lead_id", leadID.String(), "error", err.Error())
	}

	s.bus.Publish(ctx, events.SlotBooked{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		Slot:      req.Slot.UTC(),
		Timezone:  req.Timezone,
		Email:     req.Email,
	})

	return nil
}

// Slots generates the offered candidates: the next five weekdays at the
// fixed session hours, capped, in the visitor's timezone.
func (s *Service) Slots(timezone string) []SlotCandidate {
	loc := loadLocation(timezone)
	now := s.now().In(loc)

	candidates := make([]SlotCandidate, 0, maxCandidates)
	day := now.AddDate(0, 0, 1)
	weekdays := 0

	for weekdays < candidateDays {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)
			continue
		}
		weekdays++

		for _, hour := range slotHours {
			if len(candidates) >= maxCandidates {
				return candidates
			}
			slot := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
			if !slot.After(now) {
				continue
			}
			candidates = append(candidates, SlotCandidate{
				Slot:  slot.UTC(),
				Label: slot.Format("Monday, Jan 2 at 3:04 PM"),
			})
		}

		day = day.AddDate(0, 0, 1)
	}

	return candidates
}

// validateBusinessHours applies the extra rules for visitor-chosen slots:
// weekdays only, starting between 09:00 and 17:59 local time.
func validateBusinessHours(slot time.Time, timezone string) error {
	local := slot.In(loadLocation(timezone))

	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return apperr.Validation("weekend")
	}
	if local.Hour() < businessOpenHour || local.Hour() >= businessEndHour {
		return apperr.Validation("outside-business-hours")
	}
	return nil
}

func loadLocation(timezone string) *time.Location {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// normalizePhone converts to E.164 when the number parses; unparseable input
// is kept as-is, since losing a contact number is worse than storing it
// unnormalized.
func normalizePhone(raw *string) *string {
	if raw == nil || *raw == "" {
		return raw
	}
	normalized := phone.NormalizeE164(*raw)
	return &normalized
}
