// Package ports defines the capability interfaces the leads module expects
// its host to provide.
package ports

import "github.com/google/uuid"

// Authorizer decides which authenticated users may see the whole funnel
// (listings across owners and aggregate stats).
type Authorizer interface {
	CanViewAllLeads(userID uuid.UUID) bool
}

// AllowAuthenticated grants funnel-wide access to every authenticated user.
// Hosts with a role system plug in their own Authorizer instead.
type AllowAuthenticated struct{}

func (AllowAuthenticated) CanViewAllLeads(uuid.UUID) bool { return true }
