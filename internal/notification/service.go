// Package notification dispatches best-effort outbound notifications for the
// lead funnel. Delivery failures never surface to the flows that trigger
// them: a lost email must not undo a booking.
package notification

import (
	"context"
	"fmt"

	"leadfunnel_backend/internal/email"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

type Service struct {
	store  repository.Store
	sender email.Sender
	log    *logger.Logger
}

func NewService(store repository.Store, sender email.Sender, log *logger.Logger) *Service {
	return &Service{store: store, sender: sender, log: log}
}

// SendBookingConfirmation delivers the confirmation email for a booked lead
// and flips the confirmation flag. The flag records that dispatch ran, not
// that delivery succeeded, so it is set even when the send fails. Re-running
// is harmless.
func (s *Service) SendBookingConfirmation(ctx context.Context, leadID uuid.UUID) error {
	lead, err := s.store.GetByID(ctx, leadID)
	if apperr.Is(err, apperr.KindNotFound) {
		s.log.Info("booking confirmation skipped, lead gone", "lead_id", leadID.String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load lead for confirmation: %w", err)
	}

	if lead.Booking == nil || lead.Email == nil || *lead.Email == "" {
		return nil
	}

	name := ""
	if lead.Name != nil {
		name = *lead.Name
	}

	err = s.sender.SendBookingConfirmationEmail(ctx, email.BookingConfirmation{
		ToEmail:  *lead.Email,
		Name:     name,
		Slot:     lead.Booking.Slot,
		Timezone: lead.Booking.Timezone,
	})
	if err != nil {
		s.log.DeliveryFailed("email", *lead.Email, err)
	}

	if err := s.store.SetBookingConfirmed(ctx, leadID, true); err != nil {
		return err
	}

	return nil
}
