package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	// ChangesExchange fans table change events out to every app instance.
	ChangesExchange = "table_changes"
	// OrderQueue holds order.created events for back-office consumers.
	OrderQueue = "order_queue"
)

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex // guards publishing on channel
	log     *zap.Logger
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL    string
	Logger *zap.Logger
}

// NewClient connects to RabbitMQ and declares the changes exchange and the
// order queue.
func NewClient(cfg Config) (*Client, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		ChangesExchange, // name
		"fanout",        // kind
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s exchange: %w", ChangesExchange, err)
	}

	if _, err := ch.QueueDeclare(
		OrderQueue, // name
		true,       // durable
		false,      // delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", OrderQueue, err)
	}

	log.Info("RabbitMQ client connected", zap.String("exchange", ChangesExchange), zap.String("queue", OrderQueue))

	return &Client{
		conn:    conn,
		channel: ch,
		log:     log,
	}, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Client) publish(ctx context.Context, exchange, key string, body []byte) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel.Publish(
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
}

// PublishChange broadcasts a table change on the fanout exchange.
func (c *Client) PublishChange(ctx context.Context, body []byte) error {
	if err := c.publish(ctx, ChangesExchange, "", body); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// PublishOrderCreated publishes an order.created event to the order queue.
func (c *Client) PublishOrderCreated(ctx context.Context, body []byte) error {
	if err := c.publish(ctx, "", OrderQueue, body); err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}
	c.log.Debug("sent order event", zap.ByteString("body", body))
	return nil
}

// ConsumeChanges binds a private, auto-deleted queue to the changes exchange
// and feeds every message to handler. Messages the handler rejects are
// dropped, since redelivering a change it cannot apply would not help.
func (c *Client) ConsumeChanges(handler func(body []byte) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	queue, err := c.channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare changes queue: %w", err)
	}
	if err := c.channel.QueueBind(queue.Name, "", ChangesExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind changes queue: %w", err)
	}
	return c.consume(queue.Name, handler, false)
}

// ConsumeOrderEvents feeds order.created events to handler. A failed message
// is requeued once and dropped when it fails again.
func (c *Client) ConsumeOrderEvents(handler func(body []byte) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}
	return c.consume(OrderQueue, handler, true)
}

func (c *Client) consume(queue string, handler func(body []byte) error, requeue bool) error {
	msgs, err := c.channel.Consume(
		queue, // queue
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", queue, err)
	}

	go func() {
		for msg := range msgs {
			if err := handler(msg.Body); err != nil {
				c.log.Warn("failed to process message",
					zap.String("queue", queue), zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(err))
				if nackErr := msg.Nack(false, requeue && !msg.Redelivered); nackErr != nil {
					c.log.Error("failed to nack message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(nackErr))
				}
				continue
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				c.log.Error("failed to ack message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(ackErr))
			}
		}
		c.log.Debug("consumer stopped", zap.String("queue", queue))
	}()
	return nil
}
