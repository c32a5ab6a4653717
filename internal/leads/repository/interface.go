package repository

import (
	"context"
	"time"

	"leadfunnel_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// CreateLeadParams carries everything needed to create a lead together with
// its first user turn.
type CreateLeadParams struct {
	OwnerID     *uuid.UUID
	VisitorText string
	Source      string
	IPAddress   *string
	UserAgent   *string
}

// Stats is the funnel conversion snapshot computed over all leads.
type Stats struct {
	Total                 int     `json:"total"`
	New                   int     `json:"new"`
	Qualified             int     `json:"qualified"`
	Booked                int     `json:"booked"`
	Confirmed             int     `json:"confirmed"`
	ConversionRatePercent float64 `json:"conversionRatePercent"`
}

// Store is the durable lead store. The Postgres implementation serializes
// conflicting writers per lead (row lock) and per slot (unique constraint);
// any other implementation must give the same guarantees.
type Store interface {
	// Create inserts a new lead in state "new" with its first user turn.
	Create(ctx context.Context, params CreateLeadParams) (*domain.Lead, error)

	// GetByID returns the lead with its full chat log, or a not-found error.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error)

	// AppendTurn appends one turn to the lead's chat log with a timestamp
	// that never regresses, and bumps last_activity. Appends to the same
	// lead are serialized.
	AppendTurn(ctx context.Context, leadID uuid.UUID, role domain.Role, content string) (*domain.Turn, error)

	// CountRecentUserTurns counts user turns whose timestamp falls within
	// the trailing window. The count is taken without exclusivity.
	CountRecentUserTurns(ctx context.Context, leadID uuid.UUID, window time.Duration) (int, error)

	// SaveIntent overwrites the qualification summary and moves a new lead
	// to qualified. Returns true when the state actually transitioned.
	SaveIntent(ctx context.Context, leadID uuid.UUID, intent domain.Intent) (bool, error)

	// ReserveSlot atomically books the slot for the lead: state guard,
	// slot-uniqueness check and booking patch commit together or not at all.
	ReserveSlot(ctx context.Context, leadID uuid.UUID, slot time.Time, timezone string, contact domain.Contact) error

	// SetBookingConfirmed flips the confirmation flag. A lead without a
	// booking is left untouched; re-running is harmless.
	SetBookingConfirmed(ctx context.Context, leadID uuid.UUID, confirmed bool) error

	// MarkLost moves a non-terminal lead to lost with the given reason.
	MarkLost(ctx context.Context, leadID uuid.UUID, reason string) error

	// ListByOwner returns the owner's leads, most recent first, capped.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Lead, error)

	// ListAll returns leads most recent first, optionally filtered by state.
	ListAll(ctx context.Context, limit int, state *domain.State) ([]domain.Lead, error)

	// Stats computes the funnel snapshot over all leads at call time.
	Stats(ctx context.Context) (*Stats, error)
}
