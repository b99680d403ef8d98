package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
	pkglog "github.com/OmerEfron/friendlinesv2.0-sub002/pkg/log"
)

// KafkaPublisher implements PostEventPublisher using confluent-kafka-go.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

// NewKafkaPublisher creates a producer for post lifecycle events.
func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kp := &KafkaPublisher{
		producer: p,
		topic:    topic,
		doneCh:   make(chan struct{}),
	}

	go kp.deliveryReportHandler()

	return kp, nil
}

// deliveryReportHandler processes delivery reports from the producer.
// Failures are logged only; the originating request has long since
// returned.
func (kp *KafkaPublisher) deliveryReportHandler() {
	l := pkglog.L()
	for e := range kp.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				l.Error().
					Err(ev.TopicPartition.Error).
					Str(pkglog.FieldTopic, kp.topic).
					Msg("post event delivery failed")
			}
		}
	}
	close(kp.doneCh)
}

// PublishPostCreated enqueues a post.created event keyed by author, so one
// author's posts stay ordered within a partition.
func (kp *KafkaPublisher) PublishPostCreated(ctx context.Context, post *domain.Post) error {
	event := PostCreatedEvent{
		PostID:    post.ID,
		AuthorID:  post.AuthorID,
		CreatedAt: post.CreatedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal post event: %w", err)
	}

	err = kp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &kp.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(post.AuthorID),
		Value: data,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce post event: %w", err)
	}

	return nil
}

// Close flushes outstanding messages and shuts the producer down.
func (kp *KafkaPublisher) Close() error {
	kp.producer.Flush(5000)
	kp.producer.Close()
	<-kp.doneCh
	return nil
}

// Ensure interface is satisfied at compile time.
var _ PostEventPublisher = (*KafkaPublisher)(nil)
