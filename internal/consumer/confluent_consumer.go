package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/eventbroker"
	pkglog "github.com/OmerEfron/friendlinesv2.0-sub002/pkg/log"
)

// ConfluentConsumer implements PostEventConsumer using confluent-kafka-go.
// It drives the notification fan-out off the post.created topic so that
// delivery work never runs inside the request that created the post.
type ConfluentConsumer struct {
	consumer *kafka.Consumer
	topic    string
	handler  PostEventHandler
	doneCh   chan struct{}
}

// NewConfluentConsumer creates a new Kafka consumer for post events.
func NewConfluentConsumer(brokers, topic, groupID string, handler PostEventHandler) (*ConfluentConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &ConfluentConsumer{
		consumer: c,
		topic:    topic,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins consuming post events from Kafka.
func (cc *ConfluentConsumer) Start(ctx context.Context) error {
	if err := cc.consumer.Subscribe(cc.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", cc.topic, err)
	}

	l := pkglog.L()
	l.Info().Str(pkglog.FieldTopic, cc.topic).Msg("kafka post event consumer started")

	go cc.consumeLoop(ctx)

	return nil
}

func (cc *ConfluentConsumer) consumeLoop(ctx context.Context) {
	l := pkglog.L()
	defer close(cc.doneCh)

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("kafka post event consumer shutting down")
			return
		default:
			msg, err := cc.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				if err.(kafka.Error).Code() == kafka.ErrTimedOut {
					continue
				}
				l.Error().Err(err).Msg("kafka post event consumer error")
				continue
			}

			cc.processMessage(context.WithoutCancel(ctx), msg)
		}
	}
}

func (cc *ConfluentConsumer) processMessage(ctx context.Context, msg *kafka.Message) {
	l := pkglog.L()

	var event eventbroker.PostCreatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		l.Error().Err(err).Msg("failed to unmarshal post event")
		return
	}

	l.Debug().
		Str(pkglog.FieldPostID, event.PostID).
		Str(pkglog.FieldUserID, event.AuthorID).
		Msg("received post event")

	// Fan-out errors stay here. They must never surface to the request
	// that created the post.
	handleCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := cc.handler.HandlePostCreated(handleCtx, &event); err != nil {
		l.Error().Err(err).Str(pkglog.FieldPostID, event.PostID).Msg("failed to handle post event")
	}
}

// Close stops the consumer and releases resources.
// It waits for any in-flight processMessage call to complete before closing.
func (cc *ConfluentConsumer) Close() error {
	<-cc.doneCh // wait for in-flight processMessage to complete
	if err := cc.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}

// Ensure interface is satisfied at compile time.
var _ PostEventConsumer = (*ConfluentConsumer)(nil)
