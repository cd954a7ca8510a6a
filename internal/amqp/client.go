// Package amqp publishes comparison.executed events and consumes them in
// the history worker.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"comparativo/internal/core"
)

const (
	// RoutingKey of comparison.executed events.
	RoutingKey = "comparison.executed"

	failureThreshold = 5
	breakerCooldown  = 30 * time.Second
	publishTimeout   = 5 * time.Second
)

// Client owns one connection and channel, reopened on demand.
type Client struct {
	url      string
	exchange string
	queue    string
	breaker  *breaker

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewClient dials the broker and declares the direct exchange, the durable
// queue and their binding on RoutingKey.
func NewClient(url, exchange, queue string) (*Client, error) {
	c := &Client{
		url:      url,
		exchange: exchange,
		queue:    queue,
		breaker:  newBreaker(failureThreshold, breakerCooldown),
	}
	if _, err := c.channelOrDial(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) channelOrDial() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.dropLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := c.declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	c.conn, c.channel = conn, ch
	return ch, nil
}

func (c *Client) declare(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(c.exchange, amqp091.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchange, err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := ch.QueueBind(c.queue, RoutingKey, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", c.queue, c.exchange, err)
	}
	return nil
}

// PublishComparisonExecuted sends the persistent event for run. Failures
// count towards the circuit breaker; ErrCircuitOpen is returned while it is
// open.
func (c *Client) PublishComparisonExecuted(ctx context.Context, run core.Run) error {
	if !c.breaker.allow() {
		_, failures := c.breaker.snapshot()
		return fmt.Errorf("%w: publishing suspended after %d failures", ErrCircuitOpen, failures)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := NewComparisonExecutedMessage(run).ToJSON()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ch, err := c.channelOrDial()
	if err != nil {
		c.breaker.failure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		MessageId:    run.ID,
		Type:         RoutingKey,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, c.exchange, RoutingKey, false, false, msg); err != nil {
		c.breaker.failure()
		if isConnectionError(err) {
			c.drop()
		}
		return fmt.Errorf("publish %s: %w", run.ID, err)
	}
	c.breaker.success()

	slog.DebugContext(ctx, "Comparison event published",
		"run_id", run.ID,
		"base", run.Base,
		"actual", run.Actual,
		"exchange", c.exchange)
	return nil
}

func (c *Client) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
}

func (c *Client) dropLocked() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close closes the channel and the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

var connectionErrorHints = []string{"connection", "eof", "broken pipe", "closed network"}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range connectionErrorHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
