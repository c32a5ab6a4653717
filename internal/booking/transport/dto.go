// Package transport defines the request/response DTOs for the booking HTTP API.
package transport

import "time"

// BookSlotRequest reserves a discovery session slot for a lead.
type BookSlotRequest struct {
	Slot     time.Time `json:"slot" validate:"required"`
	Timezone string    `json:"timezone" validate:"required"`
	Custom   bool      `json:"custom"`
	Email    string    `json:"email" validate:"required"`
	Name     *string   `json:"name"`
	Company  *string   `json:"company"`
	Phone    *string   `json:"phone"`
}
