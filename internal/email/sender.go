// Package email renders and delivers the outbound mails for the lead funnel.
// Delivery is best-effort: callers decide what a failed send means.
package email

import (
	"context"
	"time"
)

// BookingConfirmation carries everything the confirmation mail renders.
type BookingConfirmation struct {
	ToEmail  string
	Name     string
	Slot     time.Time
	Timezone string
}

type Sender interface {
	SendBookingConfirmationEmail(ctx context.Context, confirmation BookingConfirmation) error
}

// NoopSender is used when email delivery is not configured.
type NoopSender struct{}

func (NoopSender) SendBookingConfirmationEmail(ctx context.Context, confirmation BookingConfirmation) error {
	return nil
}
