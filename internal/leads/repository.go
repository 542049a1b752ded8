package leads

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead storage.
type Repository interface {
	// Save upserts the lead keyed by session id. Fields left empty on a
	// later save keep their previously stored values.
	Save(ctx context.Context, lead *Lead) (*Lead, error)
	GetBySession(ctx context.Context, sessionID string) (*Lead, error)
}

// InMemoryRepository is an in-memory Repository for tests and local runs.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead // keyed by session id
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{leads: make(map[string]*Lead)}
}

// Save upserts the lead for its session.
func (r *InMemoryRepository) Save(ctx context.Context, lead *Lead) (*Lead, error) {
	if err := lead.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := r.leads[lead.SessionID]
	if !ok {
		stored := *lead
		stored.ID = uuid.New().String()
		stored.CreatedAt = now
		stored.UpdatedAt = now
		r.leads[lead.SessionID] = &stored
		out := stored
		return &out, nil
	}

	merged := mergeLead(existing, lead)
	merged.UpdatedAt = now
	r.leads[lead.SessionID] = merged
	out := *merged
	return &out, nil
}

// GetBySession retrieves the lead for a session.
func (r *InMemoryRepository) GetBySession(ctx context.Context, sessionID string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[sessionID]
	if !ok {
		return nil, ErrLeadNotFound
	}
	out := *lead
	return &out, nil
}

// mergeLead overlays the non-empty fields of update onto base.
func mergeLead(base, update *Lead) *Lead {
	merged := *base
	if update.Name != "" {
		merged.Name = update.Name
	}
	if update.Phone != "" {
		merged.Phone = update.Phone
	}
	if update.ContactTime != "" {
		merged.ContactTime = update.ContactTime
	}
	if update.Need != "" {
		merged.Need = update.Need
	}
	if update.Budget > 0 {
		merged.Budget = update.Budget
	}
	if update.VehicleSummary != "" {
		merged.VehicleSummary = update.VehicleSummary
	}
	if update.PlanSummary != "" {
		merged.PlanSummary = update.PlanSummary
	}
	if update.Channel != "" {
		merged.Channel = update.Channel
	}
	return &merged
}
