// Package repository provides Postgres persistence for the leads bounded
// context. Chat turns live in an append-only log table keyed by lead id;
// appends take the lead row lock so concurrent writers never lose an update.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadColumns = `id, owner_id, visitor_text, state, email, name, company, phone,
	intent, booking_slot, booking_timezone, booked_at, booking_confirmed,
	lost_reason, source, ip_address, user_agent, created_at, last_activity`

// slotUniqueConstraint is the partial unique index guarding active bookings.
const slotUniqueConstraint = "leads_active_booking_slot_key"

// Repository implements Store on top of a pgx connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a leads repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (*domain.Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin create lead: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	lead := &domain.Lead{
		ID:           uuid.New(),
		OwnerID:      params.OwnerID,
		VisitorText:  params.VisitorText,
		State:        domain.StateNew,
		Source:       params.Source,
		IPAddress:    params.IPAddress,
		UserAgent:    params.UserAgent,
		CreatedAt:    now,
		LastActivity: now,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO leads (id, owner_id, visitor_text, state, source, ip_address, user_agent, created_at, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		lead.ID, lead.OwnerID, lead.VisitorText, lead.State, lead.Source,
		lead.IPAddress, lead.UserAgent, lead.CreatedAt, lead.LastActivity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert lead: %w", err)
	}

	firstTurn := domain.Turn{
		ID:        uuid.New(),
		LeadID:    lead.ID,
		Role:      domain.RoleUser,
		Content:   params.VisitorText,
		Timestamp: now,
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO lead_turns (id, lead_id, role, content, ts)
		VALUES ($1, $2, $3, $4, $5)`,
		firstTurn.ID, firstTurn.LeadID, firstTurn.Role, firstTurn.Content, firstTurn.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert first turn: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit create lead: %w", err)
	}

	lead.Chat = []domain.Turn{firstTurn}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("lead not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	turns, err := r.loadTurns(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	lead.Chat = turns[id]

	return lead, nil
}

func (r *Repository) AppendTurn(ctx context.Context, leadID uuid.UUID, role domain.Role, content string) (*domain.Turn, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin append turn: %w", err)
	}
	defer tx.Rollback(ctx)

	// The lead row lock serializes concurrent appends to the same lead.
	var state domain.State
	err = tx.QueryRow(ctx, `SELECT state FROM leads WHERE id = $1 FOR UPDATE`, leadID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("lead not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock lead: %w", err)
	}

	var last time.Time
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(ts), to_timestamp(0)) FROM lead_turns WHERE lead_id = $1`, leadID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to read last turn timestamp: %w", err)
	}

	turn := domain.Turn{
		ID:        uuid.New(),
		LeadID:    leadID,
		Role:      role,
		Content:   content,
		Timestamp: domain.NextTurnTimestamp(time.Now().UTC(), last),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO lead_turns (id, lead_id, role, content, ts)
		VALUES ($1, $2, $3, $4, $5)`,
		turn.ID, turn.LeadID, turn.Role, turn.Content, turn.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert turn: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE leads SET last_activity = $2 WHERE id = $1`, leadID, turn.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to update last activity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit append turn: %w", err)
	}

	return &turn, nil
}

func (r *Repository) CountRecentUserTurns(ctx context.Context, leadID uuid.UUID, window time.Duration) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM lead_turns
		WHERE lead_id = $1 AND role = 'user' AND ts > now() - make_interval(secs => $2)`,
		leadID, window.Seconds(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent user turns: %w", err)
	}
	return count, nil
}

func (r *Repository) SaveIntent(ctx context.Context, leadID uuid.UUID, intent domain.Intent) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin save intent: %w", err)
	}
	defer tx.Rollback(ctx)

	var state domain.State
	err = tx.QueryRow(ctx, `SELECT state FROM leads WHERE id = $1 FOR UPDATE`, leadID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, apperr.NotFound("lead not found")
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock lead: %w", err)
	}

	// Re-qualification overwrites the intent without a state change.
	transitioned := false
	switch state {
	case domain.StateNew:
		transitioned = true
	case domain.StateQualified:
	default:
		return false, domain.EnsureTransition(state, domain.StateQualified)
	}

	payload, err := json.Marshal(intent)
	if err != nil {
		return false, fmt.Errorf("failed to encode intent: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE leads SET intent = $2, state = $3, last_activity = now() WHERE id = $1`,
		leadID, payload, domain.StateQualified,
	)
	if err != nil {
		return false, fmt.Errorf("failed to save intent: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit save intent: %w", err)
	}

	return transitioned, nil
}

func (r *Repository) ReserveSlot(ctx context.Context, leadID uuid.UUID, slot time.Time, timezone string, contact domain.Contact) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reserve slot: %w", err)
	}
	defer tx.Rollback(ctx)

	var state domain.State
	err = tx.QueryRow(ctx, `SELECT state FROM leads WHERE id = $1 FOR UPDATE`, leadID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("lead not found")
	}
	if err != nil {
		return fmt.Errorf("failed to lock lead: %w", err)
	}

	if err := domain.EnsureTransition(state, domain.StateBooked); err != nil {
		return err
	}

	// Friendly check first; the partial unique index is the race backstop.
	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE booking_slot = $1 AND state IN ('booked', 'completed') AND id <> $2
		)`, slot, leadID,
	).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check slot availability: %w", err)
	}
	if taken {
		return apperr.Conflict("slot-taken")
	}

	_, err = tx.Exec(ctx, `
		UPDATE leads SET
			booking_slot = $2, booking_timezone = $3, booked_at = now(),
			booking_confirmed = FALSE, state = $4,
			email = $5, name = $6, company = $7, phone = $8,
			last_activity = now()
		WHERE id = $1`,
		leadID, slot, timezone, domain.StateBooked,
		contact.Email, contact.Name, contact.Company, contact.Phone,
	)
	if isUniqueViolation(err, slotUniqueConstraint) {
		return apperr.Conflict("slot-taken")
	}
	if err != nil {
		return fmt.Errorf("failed to reserve slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err, slotUniqueConstraint) {
			return apperr.Conflict("slot-taken")
		}
		return fmt.Errorf("failed to commit reserve slot: %w", err)
	}

	return nil
}

func (r *Repository) SetBookingConfirmed(ctx context.Context, leadID uuid.UUID, confirmed bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET booking_confirmed = $2
		WHERE id = $1 AND booking_slot IS NOT NULL`,
		leadID, confirmed,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking confirmation: %w", err)
	}
	return nil
}

func (r *Repository) MarkLost(ctx context.Context, leadID uuid.UUID, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin mark lost: %w", err)
	}
	defer tx.Rollback(ctx)

	var state domain.State
	err = tx.QueryRow(ctx, `SELECT state FROM leads WHERE id = $1 FOR UPDATE`, leadID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("lead not found")
	}
	if err != nil {
		return fmt.Errorf("failed to lock lead: %w", err)
	}

	if err := domain.EnsureTransition(state, domain.StateLost); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE leads SET state = $2, lost_reason = $3, last_activity = now() WHERE id = $1`,
		leadID, domain.StateLost, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to mark lead lost: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit mark lost: %w", err)
	}

	return nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads by owner: %w", err)
	}
	return r.collectLeads(ctx, rows)
}

func (r *Repository) ListAll(ctx context.Context, limit int, state *domain.State) ([]domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []interface{}{}
	if state != nil {
		query += ` WHERE state = $1`
		args = append(args, *state)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return r.collectLeads(ctx, rows)
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE state = 'new'),
			COUNT(*) FILTER (WHERE state = 'qualified'),
			COUNT(*) FILTER (WHERE state = 'booked'),
			COUNT(*) FILTER (WHERE booking_confirmed)
		FROM leads`,
	).Scan(&stats.Total, &stats.New, &stats.Qualified, &stats.Booked, &stats.Confirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	stats.ConversionRatePercent = ConversionRate(stats.Booked, stats.Total)
	return &stats, nil
}

// ConversionRate returns booked/total as a percentage with one decimal.
func ConversionRate(booked, total int) float64 {
	if total == 0 {
		return 0
	}
	rate := float64(booked) / float64(total) * 100
	return float64(int(rate*10+0.5)) / 10
}

func (r *Repository) collectLeads(ctx context.Context, rows pgx.Rows) ([]domain.Lead, error) {
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, *lead)
		ids = append(ids, lead.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}

	if len(ids) == 0 {
		return leads, nil
	}

	turns, err := r.loadTurns(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range leads {
		leads[i].Chat = turns[leads[i].ID]
	}

	return leads, nil
}

func (r *Repository) loadTurns(ctx context.Context, leadIDs []uuid.UUID) (map[uuid.UUID][]domain.Turn, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, role, content, ts FROM lead_turns
		WHERE lead_id = ANY($1)
		ORDER BY ts, id`, leadIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	turns := make(map[uuid.UUID][]domain.Turn)
	for rows.Next() {
		var turn domain.Turn
		if err := rows.Scan(&turn.ID, &turn.LeadID, &turn.Role, &turn.Content, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns[turn.LeadID] = append(turns[turn.LeadID], turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}

	return turns, nil
}

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var lead domain.Lead
	var intentPayload []byte
	var bookingSlot, bookedAt *time.Time
	var bookingTimezone *string
	var bookingConfirmed bool

	err := row.Scan(
		&lead.ID,
		&lead.OwnerID,
		&lead.VisitorText,
		&lead.State,
		&lead.Email,
		&lead.Name,
		&lead.Company,
		&lead.Phone,
		&intentPayload,
		&bookingSlot,
		&bookingTimezone,
		&bookedAt,
		&bookingConfirmed,
		&lead.LostReason,
		&lead.Source,
		&lead.IPAddress,
		&lead.UserAgent,
		&lead.CreatedAt,
		&lead.LastActivity,
	)
	if err != nil {
		return nil, err
	}

	if len(intentPayload) > 0 {
		var intent domain.Intent
		if err := json.Unmarshal(intentPayload, &intent); err != nil {
			return nil, fmt.Errorf("failed to decode intent: %w", err)
		}
		lead.Intent = &intent
	}

	if bookingSlot != nil {
		booking := domain.Booking{
			Slot:      *bookingSlot,
			Confirmed: bookingConfirmed,
		}
		if bookingTimezone != nil {
			booking.Timezone = *bookingTimezone
		}
		if bookedAt != nil {
			booking.BookedAt = *bookedAt
		}
		lead.Booking = &booking
	}

	return &lead, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
