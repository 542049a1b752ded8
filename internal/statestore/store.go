// Package statestore persists conversation state snapshots. Durable backends
// (Postgres, DynamoDB) are the source of truth; the Redis cache is only an
// accelerator and its failures never fail a turn.
package statestore

import (
	"context"
	"errors"

	"github.com/autoventas/sales-ai-platform/internal/conversation"
)

var (
	// ErrVersionConflict is returned by Save when the stored version moved
	// since this state was loaded.
	ErrVersionConflict = errors.New("statestore: version conflict")

	// ErrStorageUnavailable wraps durable-store failures. The turn cannot
	// proceed without state; callers surface a retryable error.
	ErrStorageUnavailable = errors.New("statestore: storage unavailable")
)

// Store loads and saves conversation state.
//
// Load never fails on absence: a missing or expired session yields a fresh
// state at the start of the flow, carrying the stored version so a later Save
// still passes the optimistic check.
//
// Save applies an optimistic version check and increments the version on
// success, mutating the passed state to match what was stored.
type Store interface {
	Load(ctx context.Context, sessionID, channel string) (*conversation.State, error)
	Save(ctx context.Context, state *conversation.State) error
}
