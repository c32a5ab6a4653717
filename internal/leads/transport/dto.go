// Package transport defines the request/response DTOs for the leads HTTP API.
package transport

import (
	"leadfunnel_backend/internal/leads/domain"
)

// CreateLeadRequest starts the funnel with the visitor's opening message.
type CreateLeadRequest struct {
	Message string `json:"message" validate:"required"`
	Source  string `json:"source" validate:"omitempty,max=64"`
}

// AppendTurnRequest appends one chat turn to a lead.
type AppendTurnRequest struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// AssistantTurnRequest asks for an out-of-band assistant reply to the given
// user message.
type AssistantTurnRequest struct {
	Message string `json:"message" validate:"required"`
}

// SaveIntentRequest overwrites the lead's qualification summary.
type SaveIntentRequest struct {
	Goal               string   `json:"goal" validate:"required"`
	Industry           *string  `json:"industry"`
	CompanySize        *string  `json:"companySize"`
	Budget             *string  `json:"budget"`
	Timeline           *string  `json:"timeline"`
	PainPoints         []string `json:"painPoints"`
	AIInterest         string   `json:"aiInterest" validate:"required"`
	QualificationScore int      `json:"qualificationScore" validate:"required"`
}

// ToDomain converts the request into the domain intent.
func (r SaveIntentRequest) ToDomain() domain.Intent {
	painPoints := r.PainPoints
	if painPoints == nil {
		painPoints = []string{}
	}
	return domain.Intent{
		Goal:               r.Goal,
		Industry:           r.Industry,
		CompanySize:        r.CompanySize,
		Budget:             r.Budget,
		Timeline:           r.Timeline,
		PainPoints:         painPoints,
		AIInterest:         r.AIInterest,
		QualificationScore: r.QualificationScore,
	}
}

// MarkLostRequest closes out a lead with a reason.
type MarkLostRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// AcceptedResponse acknowledges an operation that completes out of band.
type AcceptedResponse struct {
	Status string `json:"status"`
}
