package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const maxBackoff = 30 * time.Second

// Handler processes one decoded event. An error requeues the delivery.
type Handler func(context.Context, *ComparisonExecutedMessage) error

// ConsumeComparisonExecuted delivers events to handle until ctx is done,
// reconnecting with exponential backoff when the broker goes away.
// Undecodable bodies are rejected without requeue.
func (c *Client) ConsumeComparisonExecuted(ctx context.Context, handle Handler) error {
	for attempt := 0; ; attempt++ {
		ch, err := c.channelOrDial()
		if err == nil {
			attempt = 0
			err = c.consume(ctx, ch, handle)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := backoff(attempt)
		slog.WarnContext(ctx, "Event consumer interrupted, reconnecting",
			"error", err, "attempt", attempt+1, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consume(ctx context.Context, ch *amqp091.Channel, handle Handler) error {
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	slog.InfoContext(ctx, "Consuming comparison events", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			process(ctx, d.Body, d, handle)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func process(ctx context.Context, body []byte, ack acknowledger, handle Handler) {
	msg, err := ComparisonExecutedMessageFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping undecodable comparison event", "error", err)
		_ = ack.Nack(false, false)
		return
	}
	if err := handle(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Comparison event failed, requeueing", "error", err, "run_id", msg.RunID)
		_ = ack.Nack(false, true)
		return
	}
	_ = ack.Ack(false)
}

// backoff doubles from one second up to maxBackoff.
func backoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Second<<attempt, maxBackoff)
}
