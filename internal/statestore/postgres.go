package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/autoventas/sales-ai-platform/internal/conversation"
	"github.com/autoventas/sales-ai-platform/pkg/logging"
)

// rowQuerier is the slice of pgxpool.Pool this store needs.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists states as JSONB rows with a version column for the
// optimistic check.
type PostgresStore struct {
	db     rowQuerier
	ttl    time.Duration
	logger *logging.Logger
	now    func() time.Time
}

// NewPostgresStore builds a store backed by a pgx pool.
func NewPostgresStore(db rowQuerier, ttl time.Duration, logger *logging.Logger) *PostgresStore {
	if db == nil {
		panic("statestore: pgx pool cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresStore{db: db, ttl: ttl, logger: logger, now: time.Now}
}

func (s *PostgresStore) Load(ctx context.Context, sessionID, channel string) (*conversation.State, error) {
	query := `
		SELECT payload, version, last_updated_at
		FROM conversation_states
		WHERE session_id = $1
	`
	var (
		payload     []byte
		version     int64
		lastUpdated time.Time
	)
	err := s.db.QueryRow(ctx, query, sessionID).Scan(&payload, &version, &lastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return conversation.NewState(sessionID, channel), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrStorageUnavailable, sessionID, err)
	}

	var state conversation.State
	if err := json.Unmarshal(payload, &state); err != nil {
		// A corrupt row must not wedge the session forever.
		s.logger.Error("discarding unreadable state payload", "session_id", sessionID, "error", err)
		fresh := conversation.NewState(sessionID, channel)
		fresh.Version = version
		return fresh, nil
	}
	state.Version = version
	state.LastUpdatedAt = lastUpdated

	if state.Expired(s.ttl, s.now()) {
		fresh := conversation.NewState(sessionID, channel)
		fresh.Version = version
		return fresh, nil
	}
	return &state, nil
}

func (s *PostgresStore) Save(ctx context.Context, state *conversation.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("statestore: marshal state: %w", err)
	}

	query := `
		INSERT INTO conversation_states (session_id, payload, version, last_updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (session_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			version = conversation_states.version + 1,
			last_updated_at = now()
		WHERE conversation_states.version = $3
		RETURNING version, last_updated_at
	`
	var (
		version     int64
		lastUpdated time.Time
	)
	err = s.db.QueryRow(ctx, query, state.SessionID, payload, state.Version).Scan(&version, &lastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrStorageUnavailable, state.SessionID, err)
	}

	state.Version = version
	state.LastUpdatedAt = lastUpdated
	return nil
}
