package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/go-cmp/cmp"
)

func TestPublish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()

	evt := Event{
		Type:       OrderCompleted,
		OrderID:    "order_456",
		UserID:     "user_1",
		Total:      40,
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "govod.orders" {
			return errors.New("unexpected topic " + msg.Topic)
		}

		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != evt.OrderID {
			return errors.New("message is not keyed by order")
		}

		b, err := msg.Value.Encode()
		if err != nil {
			return err
		}

		var got Event
		if err := json.Unmarshal(b, &got); err != nil {
			return err
		}
		if diff := cmp.Diff(evt, got); diff != "" {
			return errors.New("event mismatch (-want +got):\n" + diff)
		}
		return nil
	})

	p := New(producer, "govod.orders")
	if err := p.Publish(context.Background(), evt); err != nil {
		t.Fatalf("publishing: %v", err)
	}
}

func TestPublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := New(producer, "govod.orders")
	err := p.Publish(context.Background(), Event{Type: OrderRefunded, OrderID: "order_1"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
}
