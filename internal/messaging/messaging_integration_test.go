//go:build integration

package messaging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/joao-fontenele/orderflow-saga/internal/domain"
	"github.com/joao-fontenele/orderflow-saga/internal/testutil"
)

func TestProducerConsumer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brokers := testutil.StartKafka(ctx, t)

	producer := NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	event := domain.OrderPlacedEvent{OrderID: "order-1", Email: "ada@example.com"}

	// the first write may race topic auto-creation
	var err error
	for range 10 {
		publishCtx, cancelPublish := context.WithTimeout(ctx, 5*time.Second)
		err = producer.Publish(publishCtx, domain.TopicOrderPlaced, event.OrderID, event)
		cancelPublish()
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	consumer := NewConsumer(brokers, domain.TopicOrderPlaced, "test-group",
		slog.New(slog.NewTextHandler(io.Discard, nil)), WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	received := make(chan domain.OrderPlacedEvent, 1)
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		_ = consumer.Consume(consumeCtx, func(_ context.Context, payload []byte) error {
			var got domain.OrderPlacedEvent
			if err := json.Unmarshal(payload, &got); err != nil {
				return err
			}
			received <- got
			stop()
			return nil
		})
	}()

	select {
	case got := <-received:
		if got.OrderID != event.OrderID || got.Email != event.Email {
			t.Errorf("unexpected event %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
