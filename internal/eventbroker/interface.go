package eventbroker

import (
	"context"
	"time"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
)

// PostCreatedEvent is the wire contract between the post write path and
// the fan-out consumer.
type PostCreatedEvent struct {
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostEventPublisher announces committed post mutations. Publishing is best
// effort: a broker failure must never fail the mutation that triggered it.
type PostEventPublisher interface {
	PublishPostCreated(ctx context.Context, post *domain.Post) error
	Close() error
}
