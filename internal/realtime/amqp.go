package realtime

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transport is the message bus the AMQP broker rides on. It is satisfied by
// *rabbitmq.Client.
type Transport interface {
	PublishChange(ctx context.Context, body []byte) error
	ConsumeChanges(handler func(body []byte) error) error
}

// AMQPBroker publishes changes to the bus and dispatches every change read
// back from it, including this process's own, to local subscribers. Every
// instance therefore sees the same ordered stream.
type AMQPBroker struct {
	transport Transport
	subs      subscribers
}

// NewAMQPBroker starts consuming from transport.
func NewAMQPBroker(transport Transport, onError ErrorFunc) (*AMQPBroker, error) {
	b := &AMQPBroker{transport: transport, subs: subscribers{onError: onError}}
	if err := transport.ConsumeChanges(b.deliver); err != nil {
		return nil, fmt.Errorf("failed to consume table changes: %w", err)
	}
	return b, nil
}

func (b *AMQPBroker) Publish(ctx context.Context, c Change) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if err := b.transport.PublishChange(ctx, body); err != nil {
		return fmt.Errorf("failed to publish %s change for %s: %w", c.Table, c.ID, err)
	}
	return nil
}

func (b *AMQPBroker) Subscribe(table string, h Handler) {
	b.subs.add(table, h)
}

// Close is a no-op; the transport is owned and closed by the caller.
func (b *AMQPBroker) Close() error { return nil }

func (b *AMQPBroker) deliver(body []byte) error {
	var c Change
	if err := json.Unmarshal(body, &c); err != nil {
		return fmt.Errorf("failed to decode change: %w", err)
	}
	b.subs.dispatch(context.Background(), c)
	return nil
}
