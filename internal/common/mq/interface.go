package mq

import (
	"context"
	"time"
)

// MessageQueue publishes and consumes messages.
type MessageQueue interface {
	Producer
	Consumer
	Ping(ctx context.Context) error
	Close() error
}

// Producer publishes messages. Messages sharing an ID keep their order.
type Producer interface {
	Publish(ctx context.Context, topic string, message *Message) error
}

// Consumer delivers messages of subscribed topics to handlers.
// Nothing is consumed before Start.
type Consumer interface {
	SubscribeWithOptions(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error
	Start() error
	Stop() error
}

// Message is one queued payload. ID doubles as the partition key.
type Message struct {
	ID         string            `json:"id"`
	Body       []byte            `json:"body"`
	Headers    map[string]string `json:"headers"`
	Timestamp  time.Time         `json:"timestamp"`
	RetryCount int               `json:"retry_count"`
	MaxRetries int               `json:"max_retries"`
	// Expiration drops the message when it is older than this on delivery.
	Expiration time.Duration `json:"expiration"`
}

// HandlerFunc handles one message. A non-nil error schedules a retry.
type HandlerFunc func(ctx context.Context, message *Message) error

// SubscribeOptions tune one subscription.
type SubscribeOptions struct {
	// ConsumerGroup defaults to "olymp-<topic>".
	ConsumerGroup string
	// Concurrency is the number of handler goroutines. Default 1.
	Concurrency int
	// MaxRetries per message before dead-lettering. Default 3.
	MaxRetries int
	// RetryDelay between attempts. Default 1s.
	RetryDelay time.Duration
	// DeadLetterTopic receives messages whose retries ran out.
	DeadLetterTopic string
	// MessageTTL applies to messages without their own expiration.
	MessageTTL time.Duration
}

// SetDefaults fills unset options.
func (o *SubscribeOptions) SetDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = time.Second
	}
}

// NewMessage creates a message stamped with the current time.
func NewMessage(body []byte) *Message {
	return &Message{
		Body:       body,
		Headers:    make(map[string]string),
		Timestamp:  time.Now(),
		MaxRetries: 3,
	}
}

// SetHeader sets a header value.
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// GetHeader returns a header value.
func (m *Message) GetHeader(key string) (string, bool) {
	val, ok := m.Headers[key]
	return val, ok
}
