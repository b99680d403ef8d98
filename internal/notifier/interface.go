package notifier

import "context"

// MaxTokensPerSend caps how many device tokens a single Send call may
// carry. Callers chunk larger recipient sets.
const MaxTokensPerSend = 100

// PushDelivery hands a batch of device tokens to the downstream delivery
// pipeline. Implementations must not be relied on for at-least-once
// semantics: delivery is fire-and-forget from this engine's perspective.
type PushDelivery interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) error
	Close() error
}
