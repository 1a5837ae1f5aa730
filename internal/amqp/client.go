package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Client publishes and consumes the two message kinds the system exchanges:
// ledger-changed events and achievement-earned notifications.
type Client struct {
	mu           sync.Mutex
	url          string
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	changesQueue string
	earnedQueue  string
}

func NewClient(url, exchangeName, changesQueue, earnedQueue string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		changesQueue: changesQueue,
		earnedQueue:  earnedQueue,
	}
	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()

	if err := c.setup(); err != nil {
		c.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.changesQueue, c.earnedQueue} {
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key is the queue name, direct exchange.
		err = c.channel.QueueBind(queue, queue, c.exchangeName, false, nil)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// PublishLedgerChanged publishes a change event for a user's ledger.
func (c *Client) PublishLedgerChanged(ctx context.Context, userID string) error {
	msg := NewLedgerChangedMessage(userID)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, c.changesQueue, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published ledger change",
		"user_id", userID,
		"exchange", c.exchangeName,
		"queue", c.changesQueue)
	return nil
}

// PublishAchievementEarned publishes a newly-earned notification.
func (c *Client) PublishAchievementEarned(ctx context.Context, userID, name, dateEarned string) error {
	msg := NewAchievementEarnedMessage(userID, name, dateEarned)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, c.earnedQueue, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published achievement earned",
		"user_id", userID,
		"achievement", name,
		"queue", c.earnedQueue)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	err := channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// ConsumeLedgerChanges consumes ledger-change messages until ctx is done,
// redialing with exponential backoff when the broker connection drops.
func (c *Client) ConsumeLedgerChanges(ctx context.Context, handler func(*LedgerChangedMessage) error) error {
	return c.consumeWithReconnect(ctx, c.changesQueue, func(body []byte) error {
		msg, err := LedgerChangedMessageFromJSON(body)
		if err != nil {
			return errUnmarshal{err}
		}
		return handler(msg)
	})
}

// ConsumeAchievementEarned consumes earned notifications until ctx is done.
func (c *Client) ConsumeAchievementEarned(ctx context.Context, handler func(*AchievementEarnedMessage) error) error {
	return c.consumeWithReconnect(ctx, c.earnedQueue, func(body []byte) error {
		msg, err := AchievementEarnedMessageFromJSON(body)
		if err != nil {
			return errUnmarshal{err}
		}
		return handler(msg)
	})
}

// errUnmarshal marks messages that can never be processed; they are rejected
// without requeue.
type errUnmarshal struct{ err error }

func (e errUnmarshal) Error() string { return e.err.Error() }

func (c *Client) consumeWithReconnect(ctx context.Context, queue string, handle func([]byte) error) error {
	for attempt := 0; ; attempt++ {
		err := c.consume(ctx, queue, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		delay := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting",
			"queue", queue,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			slog.ErrorContext(ctx, "AMQP reconnect failed", "error", err)
			continue
		}
		attempt = 0
	}
}

func (c *Client) consume(ctx context.Context, queue string, handle func([]byte) error) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	msgs, err := channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			if err := handle(delivery.Body); err != nil {
				if _, permanent := err.(errUnmarshal); permanent {
					slog.ErrorContext(ctx, "Failed to unmarshal message",
						"queue", queue, "error", err)
					delivery.Nack(false, false) // reject, don't requeue
					continue
				}
				slog.ErrorContext(ctx, "Failed to handle message",
					"queue", queue, "error", err)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
		}
	}
}

// exponentialBackoff returns the redial delay for an attempt, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	delay := time.Second << uint(attempt)
	if delay > 30*time.Second || delay <= 0 {
		return 30 * time.Second
	}
	return delay
}

// isConnectionError reports whether the error looks like a lost broker
// connection rather than an application failure.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"channel/connection is not open",
		"unexpected eof",
		"broken pipe",
		"message channel closed",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
