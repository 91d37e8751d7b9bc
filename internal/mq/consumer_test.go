package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestPermanent(t *testing.T) {
	base := errors.New("image missing in object store")
	wrapped := Permanent(base)

	if !IsPermanent(wrapped) {
		t.Error("wrapped error must classify as permanent")
	}
	if !errors.Is(wrapped, base) {
		t.Error("Permanent must preserve the wrapped error")
	}

	// Классификация выживает при дополнительном оборачивании
	chained := fmt.Errorf("process artifact: %w", wrapped)
	if !IsPermanent(chained) {
		t.Error("classification must survive wrapping")
	}

	if IsPermanent(base) {
		t.Error("plain error is not permanent")
	}
	if IsPermanent(nil) {
		t.Error("nil is not permanent")
	}
}

func TestReadAttempt(t *testing.T) {
	cases := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{"no headers", nil, 1},
		{"missing key", amqp.Table{"other": 5}, 1},
		// AMQP-клиент отдаёт числовые заголовки как int32 или int64
		{"int32", amqp.Table{attemptHeader: int32(2)}, 2},
		{"int64", amqp.Table{attemptHeader: int64(3)}, 3},
		{"int", amqp.Table{attemptHeader: 4}, 4},
		{"wrong type", amqp.Table{attemptHeader: "5"}, 1},
	}
	for _, c := range cases {
		got := readAttempt(amqp.Delivery{Headers: c.headers})
		if got != c.want {
			t.Errorf("%s: expected %d, got %d", c.name, c.want, got)
		}
	}
}

func TestParsePayload(t *testing.T) {
	artifactID := uuid.New()
	msg := &Message{
		Type: MessageTypeArtifactProcess,
		Payload: map[string]any{
			"artifact_id": artifactID.String(),
		},
	}

	payload, err := ParsePayload[ArtifactProcessPayload](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.ArtifactID != artifactID {
		t.Errorf("expected %s, got %s", artifactID, payload.ArtifactID)
	}
}

func TestParsePayload_Invalid(t *testing.T) {
	msg := &Message{
		Type: MessageTypeArtifactProcess,
		Payload: map[string]any{
			"artifact_id": "not-a-uuid",
		},
	}
	if _, err := ParsePayload[ArtifactProcessPayload](msg); err == nil {
		t.Fatal("expected error for malformed uuid")
	}
}

func TestProcessDeliveries_ConcurrentWithinPrefetch(t *testing.T) {
	const prefetch = 4

	// Медленный обработчик фиксирует пик одновременных вызовов:
	// сообщения должны обрабатываться параллельно, но не шире prefetch
	var running, peak atomic.Int32
	started := make(chan struct{}, prefetch)

	handler := func(ctx context.Context, d *Delivery) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		started <- struct{}{}
		time.Sleep(50 * time.Millisecond)
		running.Add(-1)
		return nil
	}

	c := NewConsumer(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), ConsumerConfig{
		Queue:    "artifacts.process",
		Handler:  handler,
		Prefetch: prefetch,
	})

	deliveries := make(chan amqp.Delivery)
	done := make(chan error, 1)
	go func() { done <- c.processDeliveries(context.Background(), deliveries) }()

	for i := 0; i < prefetch; i++ {
		body, err := json.Marshal(Message{ID: uuid.NewString(), Type: MessageTypeArtifactProcess})
		if err != nil {
			t.Fatalf("marshal message: %v", err)
		}
		deliveries <- amqp.Delivery{Body: body}
	}
	for i := 0; i < prefetch; i++ {
		<-started
	}
	close(deliveries)

	if err := <-done; err == nil {
		t.Error("expected error after deliveries channel closed")
	}
	if got := peak.Load(); got < 2 {
		t.Errorf("handlers never overlapped, peak = %d", got)
	}
	if got := peak.Load(); got > prefetch {
		t.Errorf("concurrency above prefetch: %d > %d", got, prefetch)
	}
}
