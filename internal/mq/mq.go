package mq

import "context"

// Message is a broker-agnostic notification event: the JSON payload
// plus attributes identifying the event kind.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes one message. A non-nil error nacks the message so
// the broker redelivers it.
type Handler func(ctx context.Context, msg Message) error

// Broker abstracts the message broker. RabbitMQ and GCP Pub/Sub
// backends are provided; which one runs is a config choice.
type Broker interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ is the bus handle the rest of the app holds. Workflow services
// publish to it; the notification worker subscribes.
type MQ struct {
	broker Broker
}

func New(broker Broker) *MQ {
	return &MQ{broker: broker}
}

// Publish sends a message to the named channel and returns its id.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.broker.Publish(ctx, channel, data, attrs)
}

// Subscribe blocks, delivering channel messages to the handler until
// the context is cancelled.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.broker.Subscribe(ctx, channel, handler)
}

func (m *MQ) Close() error {
	return m.broker.Close()
}
