// Package idempotency deduplicates webhook deliveries by provider message id.
// Exactly one concurrent delivery of a message observes Fresh; the rest wait
// for the committed reply and replay it without touching conversation state.
package idempotency

import "context"

// Result is the outcome of Begin for one delivery.
type Result struct {
	// Fresh is true for the single caller that must process the message.
	Fresh bool
	// Reply carries the first delivery's committed reply for duplicates.
	// Empty when the original never committed within the bounded wait; the
	// caller answers with a safe fallback instead of reprocessing.
	Reply string
}

// Guard marks message ids as in flight and records their replies.
type Guard interface {
	// Begin claims the message id. Atomic across concurrent callers.
	Begin(ctx context.Context, messageID string) (Result, error)
	// Commit stores the reply for future duplicates. Called on every exit
	// path of a fresh turn, with a fallback reply on errors, so waiting
	// duplicates always unblock.
	Commit(ctx context.Context, messageID, reply string)
}

// NoopGuard accepts every delivery as fresh. For deployments that tolerate
// at-least-once processing.
type NoopGuard struct{}

func NewNoopGuard() *NoopGuard { return &NoopGuard{} }

func (NoopGuard) Begin(context.Context, string) (Result, error) { return Result{Fresh: true}, nil }

func (NoopGuard) Commit(context.Context, string, string) {}
