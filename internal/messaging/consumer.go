package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("messaging/consumer")

// Handler processes one message payload. A returned error is retried with
// backoff on the same message; the offset is committed only once the
// handler succeeds. Handlers drop payloads they can never process by
// returning nil.
type Handler func(ctx context.Context, payload []byte) error

// messageReader is the part of *kafka.Reader the consumer drives.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  messageReader
	topic   string
	groupID string
	retry   retryPolicy
	logger  *slog.Logger
}

type retryPolicy struct {
	initial time.Duration
	max     time.Duration
}

type consumerSettings struct {
	reader kafka.ReaderConfig
	retry  retryPolicy
}

type ConsumerOption func(*consumerSettings)

func WithStartOffset(offset int64) ConsumerOption {
	return func(s *consumerSettings) {
		s.reader.StartOffset = offset
	}
}

// WithRetryInterval bounds the backoff between attempts at a failing message.
func WithRetryInterval(initial, max time.Duration) ConsumerOption {
	return func(s *consumerSettings) {
		s.retry = retryPolicy{initial: initial, max: max}
	}
}

func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	s := consumerSettings{
		reader: kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		},
		retry: retryPolicy{initial: 500 * time.Millisecond, max: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&s)
	}

	return &Consumer{
		reader:  kafka.NewReader(s.reader),
		topic:   topic,
		groupID: groupID,
		retry:   s.retry,
		logger:  logger.With("topic", topic, "group", groupID),
	}
}

func (c *Consumer) Topic() string {
	return c.topic
}

// Consume handles messages one at a time, in partition order, until ctx is
// done. A failing message blocks its partition and is retried until it
// succeeds; only fetch and commit failures end the loop.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("fetch from %s: %w", c.topic, err)
		}

		if err := c.deliver(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit %s offset %d: %w", c.topic, msg.Offset, err)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, handler Handler) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.initial
	b.MaxInterval = c.retry.max

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.process(ctx, msg, handler, attempt)
		if err != nil {
			c.logger.Warn("message handling failed, retrying",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"attempt", attempt,
				"error", err,
			)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return fmt.Errorf("deliver %s offset %d: %w", c.topic, msg.Offset, err)
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message, handler Handler, attempt int) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, carrierFor(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
			attribute.Int("messaging.delivery.attempt", attempt),
		),
	)
	defer span.End()

	if err := handler(spanCtx, msg.Value); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
