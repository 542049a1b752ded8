package llm

import "context"

// Client generates a completion from a system instruction and a user prompt.
// Implementations must honor the context deadline.
type Client interface {
	Generate(ctx context.Context, system, user string) (string, error)
}
