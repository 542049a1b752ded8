package leads

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// Save upserts the lead keyed by session id. NULLIF/COALESCE keeps previously
// stored values when the incoming field is empty.
func (r *PostgresRepository) Save(ctx context.Context, lead *Lead) (*Lead, error) {
	if err := lead.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO leads (id, session_id, name, phone, contact_time, need, budget, vehicle_summary, plan_summary, channel)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), leads.name),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), leads.phone),
			contact_time = COALESCE(NULLIF(EXCLUDED.contact_time, ''), leads.contact_time),
			need = COALESCE(NULLIF(EXCLUDED.need, ''), leads.need),
			budget = CASE WHEN EXCLUDED.budget > 0 THEN EXCLUDED.budget ELSE leads.budget END,
			vehicle_summary = COALESCE(NULLIF(EXCLUDED.vehicle_summary, ''), leads.vehicle_summary),
			plan_summary = COALESCE(NULLIF(EXCLUDED.plan_summary, ''), leads.plan_summary),
			channel = COALESCE(NULLIF(EXCLUDED.channel, ''), leads.channel),
			updated_at = now()
		RETURNING id, created_at, updated_at
	`
	stored := *lead
	if err := r.pool.QueryRow(ctx, query,
		id,
		lead.SessionID,
		lead.Name,
		lead.Phone,
		lead.ContactTime,
		lead.Need,
		lead.Budget,
		lead.VehicleSummary,
		lead.PlanSummary,
		lead.Channel,
	).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt); err != nil {
		return nil, fmt.Errorf("leads: upsert failed: %w", err)
	}
	return &stored, nil
}

// GetBySession fetches the lead for a session.
func (r *PostgresRepository) GetBySession(ctx context.Context, sessionID string) (*Lead, error) {
	query := `
		SELECT id, session_id, name, phone, contact_time, need, budget, vehicle_summary, plan_summary, channel, created_at, updated_at
		FROM leads
		WHERE session_id = $1
	`
	row := r.pool.QueryRow(ctx, query, sessionID)
	var lead Lead
	if err := row.Scan(
		&lead.ID,
		&lead.SessionID,
		&lead.Name,
		&lead.Phone,
		&lead.ContactTime,
		&lead.Need,
		&lead.Budget,
		&lead.VehicleSummary,
		&lead.PlanSummary,
		&lead.Channel,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return &lead, nil
}
