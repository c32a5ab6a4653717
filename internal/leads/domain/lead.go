// Package domain provides the core business rules for the lead funnel:
// the lead aggregate, its lifecycle state machine, and the deterministic
// chat rules that must hold regardless of transport or storage.
package domain

import (
	"time"

	"leadfunnel_backend/platform/apperr"

	"github.com/google/uuid"
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is a known chat role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message in a lead's conversation.
type Turn struct {
	ID        uuid.UUID `json:"id"`
	LeadID    uuid.UUID `json:"-"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Intent is the structured qualification summary produced once the chat has
// surfaced enough business context. It may be overwritten by a later
// qualification pass.
type Intent struct {
	Goal               string   `json:"goal"`
	Industry           *string  `json:"industry,omitempty"`
	CompanySize        *string  `json:"companySize,omitempty"`
	Budget             *string  `json:"budget,omitempty"`
	Timeline           *string  `json:"timeline,omitempty"`
	PainPoints         []string `json:"painPoints"`
	AIInterest         string   `json:"aiInterest"`
	QualificationScore int      `json:"qualificationScore"`
}

// Validate checks the intent invariants.
func (i Intent) Validate() error {
	if i.QualificationScore < 1 || i.QualificationScore > 10 {
		return apperr.Validation("invalid-score")
	}
	return nil
}

// Booking holds the reserved discovery session details.
type Booking struct {
	Slot      time.Time `json:"slot"`
	Timezone  string    `json:"timezone"`
	BookedAt  time.Time `json:"bookedAt"`
	Confirmed bool      `json:"confirmed"`
}

// Lead is the aggregate root tracked through the qualification and booking
// funnel. Chat turns are stored as an append-only log keyed by the lead id;
// the Chat slice is populated on reads that need it.
type Lead struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      *uuid.UUID `json:"ownerId,omitempty"`
	VisitorText  string     `json:"visitorText"`
	State        State      `json:"state"`
	Chat         []Turn     `json:"chat,omitempty"`
	Intent       *Intent    `json:"leadIntent,omitempty"`
	Booking      *Booking   `json:"booking,omitempty"`
	Email        *string    `json:"email,omitempty"`
	Name         *string    `json:"name,omitempty"`
	Company      *string    `json:"company,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	LostReason   *string    `json:"lostReason,omitempty"`
	Source       string     `json:"source"`
	IPAddress    *string    `json:"-"`
	UserAgent    *string    `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActivity time.Time  `json:"lastActivity"`
}

// Contact groups the contact fields captured at booking time.
type Contact struct {
	Email   string
	Name    *string
	Company *string
	Phone   *string
}
