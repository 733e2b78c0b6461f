package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

type Type string

const (
	OrderCompleted     Type = "order.completed"
	OrderPaymentFailed Type = "order.payment_failed"
	OrderRefunded      Type = "order.refunded"
)

type Event struct {
	Type       Type      `json:"type"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId,omitempty"`
	Total      int       `json:"total,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher writes order lifecycle events to a kafka topic, keyed by order so
// that every event of one order lands on the same partition.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to kafka brokers %v: %w", brokers, err)
	}
	return p, nil
}

func New(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, evt Event) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", evt.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.OrderID),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(evt.Type)},
		},
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publishing %s for order[%s]: %w", evt.Type, evt.OrderID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
