package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"olymp/pkg/utils/contextkey"

	"github.com/segmentio/kafka-go"
)

func TestKafkaMessageHeaders(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &Message{
		ID:         "run-1",
		Body:       []byte(`{"x":1}`),
		Headers:    map[string]string{"trace": "t-1"},
		Timestamp:  ts,
		RetryCount: 2,
		MaxRetries: 5,
		Expiration: 3 * time.Second,
	}
	km := toKafkaMessage("judge.runs", in)
	if km.Topic != "judge.runs" || string(km.Key) != "run-1" {
		t.Fatalf("unexpected routing %q %q", km.Topic, km.Key)
	}

	out := fromKafkaMessage(km)
	if out.ID != in.ID || string(out.Body) != string(in.Body) || !out.Timestamp.Equal(ts) {
		t.Fatalf("unexpected message %+v", out)
	}
	if out.RetryCount != 2 || out.MaxRetries != 5 || out.Expiration != 3*time.Second {
		t.Fatalf("unexpected retry info %+v", out)
	}
	if v, _ := out.GetHeader("trace"); v != "t-1" || len(out.Headers) != 1 {
		t.Fatalf("unexpected headers %v", out.Headers)
	}
}

func TestKafkaMessageKeyFallback(t *testing.T) {
	out := fromKafkaMessage(kafka.Message{Key: []byte("k-7"), Value: []byte("v")})
	if out.ID != "k-7" {
		t.Fatalf("expected key as id, got %q", out.ID)
	}
}

func TestNewKafkaQueueRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaQueue(KafkaConfig{}); err == nil {
		t.Fatal("expected error without brokers")
	}
	q, err := NewKafkaQueue(KafkaConfig{Brokers: []string{"127.0.0.1:9092"}})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	if q.config.BatchSize != 100 || q.config.RequiredAcks != kafka.RequireOne {
		t.Fatalf("defaults not applied: %+v", q.config)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDeliver(t *testing.T) {
	opts := SubscribeOptions{MaxRetries: 2, RetryDelay: time.Millisecond}
	failing := errors.New("busy")

	cases := []struct {
		name     string
		failures int
		msg      *Message
		want     disposition
		calls    int
	}{
		{"first_try", 0, NewMessage(nil), dispCommit, 1},
		{"after_retries", 2, NewMessage(nil), dispCommit, 3},
		{"exhausted", 5, NewMessage(nil), dispDeadLetter, 3},
		{"expired", 0, &Message{Timestamp: time.Now().Add(-time.Hour), Expiration: time.Minute}, dispCommit, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			handler := func(context.Context, *Message) error {
				calls++
				if calls <= tc.failures {
					return failing
				}
				return nil
			}
			tc.msg.MaxRetries = 0
			if got := deliver(context.Background(), handler, tc.msg, opts); got != tc.want {
				t.Fatalf("expected disposition %d, got %d", tc.want, got)
			}
			if calls != tc.calls {
				t.Fatalf("expected %d calls, got %d", tc.calls, calls)
			}
		})
	}
}

func TestDeliverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := func(context.Context, *Message) error {
		cancel()
		return errors.New("interrupted")
	}
	if got := deliver(ctx, handler, NewMessage(nil), SubscribeOptions{MaxRetries: 3, RetryDelay: time.Second}); got != dispAbandon {
		t.Fatalf("cancelled delivery must stay uncommitted, got %d", got)
	}
}

func TestDeliverCarriesTraceID(t *testing.T) {
	msg := NewMessage(nil)
	msg.SetHeader(headerTraceID, "trace-9")
	var seen interface{}
	handler := func(ctx context.Context, _ *Message) error {
		seen = ctx.Value(contextkey.TraceID)
		return nil
	}
	deliver(context.Background(), handler, msg, SubscribeOptions{})
	if seen != "trace-9" {
		t.Fatalf("expected trace id in handler context, got %v", seen)
	}
}
