// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadfunnel_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published when a visitor starts the funnel.
type LeadCreated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Source string    `json:"source"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadQualified is published the first time a lead reaches qualified.
type LeadQualified struct {
	BaseEvent
	LeadID             uuid.UUID `json:"leadId"`
	QualificationScore int       `json:"qualificationScore"`
}

func (e LeadQualified) EventName() string { return "leads.lead.qualified" }

// LeadLost is published when a lead is marked lost.
type LeadLost struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Reason string    `json:"reason"`
}

func (e LeadLost) EventName() string { return "leads.lead.lost" }

// =============================================================================
// Booking Domain Events
// =============================================================================

// SlotBooked is published when a discovery session slot is reserved.
type SlotBooked struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	Slot     time.Time `json:"slot"`
	Timezone string    `json:"timezone"`
	Email    string    `json:"email"`
}

func (e SlotBooked) EventName() string { return "booking.slot.booked" }
