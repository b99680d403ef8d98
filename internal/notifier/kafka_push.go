package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/OmerEfron/friendlinesv2.0-sub002/pkg/log"
)

// pushDispatch is the wire format consumed by the delivery worker that
// talks to APNs/FCM. One message per token batch.
type pushDispatch struct {
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// KafkaPushDelivery implements PushDelivery by publishing dispatch batches
// to a Kafka topic. The actual provider call happens in a separate worker.
type KafkaPushDelivery struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

// NewKafkaPushDelivery creates a producer for push dispatch batches.
func NewKafkaPushDelivery(brokers, topic string) (*KafkaPushDelivery, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	d := &KafkaPushDelivery{
		producer: p,
		topic:    topic,
		doneCh:   make(chan struct{}),
	}

	go d.deliveryReportHandler()

	return d, nil
}

func (d *KafkaPushDelivery) deliveryReportHandler() {
	l := pkglog.L()
	for e := range d.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				l.Error().
					Err(ev.TopicPartition.Error).
					Str(pkglog.FieldTopic, d.topic).
					Msg("push dispatch delivery failed")
			}
		}
	}
	close(d.doneCh)
}

// Send publishes one dispatch batch. Batches above MaxTokensPerSend are
// rejected: chunking is the caller's job.
func (d *KafkaPushDelivery) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) > MaxTokensPerSend {
		return fmt.Errorf("push batch of %d exceeds limit of %d", len(tokens), MaxTokensPerSend)
	}

	payload, err := json.Marshal(pushDispatch{
		Tokens: tokens,
		Title:  title,
		Body:   body,
		Data:   data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push dispatch: %w", err)
	}

	err = d.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &d.topic,
			Partition: kafka.PartitionAny,
		},
		Value: payload,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce push dispatch: %w", err)
	}

	return nil
}

// Close flushes outstanding messages and shuts the producer down.
func (d *KafkaPushDelivery) Close() error {
	d.producer.Flush(5000)
	d.producer.Close()
	<-d.doneCh
	return nil
}

// Ensure interface is satisfied at compile time.
var _ PushDelivery = (*KafkaPushDelivery)(nil)
