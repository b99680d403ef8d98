package consumer

import (
	"context"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/eventbroker"
)

// PostEventHandler processes a decoded post lifecycle event.
type PostEventHandler interface {
	HandlePostCreated(ctx context.Context, event *eventbroker.PostCreatedEvent) error
}

// PostEventConsumer manages the Kafka consumer lifecycle.
type PostEventConsumer interface {
	Start(ctx context.Context) error
	Close() error
}
