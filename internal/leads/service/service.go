// Package service implements the lead lifecycle and chat orchestration use
// cases. Concurrency guarantees (per-lead append serialization, slot
// uniqueness) live in the store; this layer enforces input rules, rate
// limits, authorization and event publication.
package service

import (
	"context"
	"fmt"
	"strings"

	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/internal/leads/ports"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/scheduler"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	ownerListLimit  = 50
	adminListLimit  = 100
	appendAttempts  = 3
	defaultLeadFrom = "website"
)

// ClientMeta carries request metadata captured at lead creation.
type ClientMeta struct {
	Source    string
	IPAddress *string
	UserAgent *string
}

type Service struct {
	store    repository.Store
	enqueuer scheduler.TaskEnqueuer
	bus      events.Bus
	authz    ports.Authorizer
	log      *logger.Logger
}

func New(store repository.Store, enqueuer scheduler.TaskEnqueuer, bus events.Bus, authz ports.Authorizer, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		enqueuer: enqueuer,
		bus:      bus,
		authz:    authz,
		log:      log,
	}
}

// SubmitVisitorText starts the funnel: a new lead in state "new" whose chat
// log opens with the visitor's message as the first user turn.
func (s *Service) SubmitVisitorText(ctx context.Context, owner *uuid.UUID, text string, meta ClientMeta) (*domain.Lead, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("empty-text")
	}

	source := meta.Source
	if source == "" {
		source = defaultLeadFrom
	}

	lead, err := s.store.Create(ctx, repository.CreateLeadParams{
		OwnerID:     owner,
		VisitorText: text,
		Source:      source,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Source:    source,
	})

	return lead, nil
}

// AppendTurn appends one chat turn. The store serializes appends per lead;
// transient store failures get a bounded retry since appends are safe to
// re-attempt before the insert committed.
func (s *Service) AppendTurn(ctx context.Context, leadID uuid.UUID, role domain.Role, content string) (*domain.Turn, error) {
	if !role.Valid() {
		return nil, apperr.Validation("invalid-role")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("empty-text")
	}

	var turn *domain.Turn
	var err error
	for attempt := 1; attempt <= appendAttempts; attempt++ {
		turn, err = s.store.AppendTurn(ctx, leadID, role, content)
		if err == nil {
			return turn, nil
		}
		if apperr.GetKind(err) != apperr.KindUnknown || ctx.Err() != nil {
			return nil, err
		}
		s.log.Warn("append turn retry", "lead_id", leadID.String(), "attempt", attempt, "error", err.Error())
	}
	return nil, apperr.Wrap(apperr.KindInternal, "failed to append turn", fmt.Errorf("after %d attempts: %w", appendAttempts, err))
}

// RequestAssistantTurn asks for an assistant reply to the pending user
// message. The reply is generated out of band; callers get an immediate
// accepted/rejected answer. Over the rate limit nothing is enqueued and the
// chat log is left untouched.
func (s *Service) RequestAssistantTurn(ctx context.Context, leadID uuid.UUID, userMessage string) error {
	if strings.TrimSpace(userMessage) == "" {
		return apperr.Validation("empty-text")
	}

	if _, err := s.store.GetByID(ctx, leadID); err != nil {
		return err
	}

	count, err := s.store.CountRecentUserTurns(ctx, leadID, domain.RateLimitWindow)
	if err != nil {
		return err
	}
	if count > domain.RateLimitMaxUserTurns {
		return apperr.RateLimited("rate-limited")
	}

	err = s.enqueuer.EnqueueAssistantReply(ctx, scheduler.AssistantReplyPayload{
		LeadID:      leadID.String(),
		UserMessage: userMessage,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue assistant reply: %w", err)
	}

	return nil
}

// SaveIntent stores the qualification summary. The first save moves the lead
// to qualified and publishes LeadQualified; later saves just overwrite.
func (s *Service) SaveIntent(ctx context.Context, leadID uuid.UUID, intent domain.Intent) error {
	if err := intent.Validate(); err != nil {
		return err
	}

	transitioned, err := s.store.SaveIntent(ctx, leadID, intent)
	if err != nil {
		return err
	}

	if transitioned {
		s.bus.Publish(ctx, events.LeadQualified{
			BaseEvent:          events.NewBaseEvent(),
			LeadID:             leadID,
			QualificationScore: intent.QualificationScore,
		})
	}

	return nil
}

// MarkLost closes out a lead that will not convert.
func (s *Service) MarkLost(ctx context.Context, leadID uuid.UUID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperr.Validation("empty-text")
	}

	if err := s.store.MarkLost(ctx, leadID, reason); err != nil {
		return err
	}

	s.bus.Publish(ctx, events.LeadLost{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		Reason:    reason,
	})

	return nil
}

// GetLead returns the lead with its chat log. A lead claimed by an owner is
// hidden from other authenticated viewers with not-found so its existence
// does not leak; anonymous viewers still see it, since the visitor keeps
// chatting through the public widget without signing in.
func (s *Service) GetLead(ctx context.Context, leadID uuid.UUID, viewer *uuid.UUID) (*domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if lead.OwnerID != nil && viewer != nil && *viewer != *lead.OwnerID {
		return nil, apperr.NotFound("lead not found")
	}

	return lead, nil
}

// ListForOwner returns the caller's own leads, most recent first.
func (s *Service) ListForOwner(ctx context.Context, owner uuid.UUID) ([]domain.Lead, error) {
	return s.store.ListByOwner(ctx, owner, ownerListLimit)
}

// ListAll returns leads across all owners, optionally filtered by state.
func (s *Service) ListAll(ctx context.Context, viewer *uuid.UUID, limit int, state *domain.State) ([]domain.Lead, error) {
	if err := s.requireFunnelAccess(viewer); err != nil {
		return nil, err
	}
	if state != nil && !state.Valid() {
		return nil, apperr.Validation("invalid-state")
	}
	if limit <= 0 || limit > adminListLimit {
		limit = adminListLimit
	}
	return s.store.ListAll(ctx, limit, state)
}

// Stats returns the funnel conversion snapshot.
func (s *Service) Stats(ctx context.Context, viewer *uuid.UUID) (*repository.Stats, error) {
	if err := s.requireFunnelAccess(viewer); err != nil {
		return nil, err
	}
	return s.store.Stats(ctx)
}

func (s *Service) requireFunnelAccess(viewer *uuid.UUID) error {
	if viewer == nil {
		return apperr.Unauthorized("authentication required")
	}
	if !s.authz.CanViewAllLeads(*viewer) {
		return apperr.Forbidden("not allowed")
	}
	return nil
}
