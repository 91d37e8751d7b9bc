package sweeper

import (
	"context"
	"testing"
)

func TestRequeueFailed_NoBroker(t *testing.T) {
	// Sweeper поднимается и без брокера: переотправка должна тихо
	// пропускаться, а не падать на nil publisher
	s := New(Config{})

	requeued, err := s.requeueFailed(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requeued != 0 {
		t.Errorf("expected 0 requeued, got %d", requeued)
	}
}

func TestRetryableFailure(t *testing.T) {
	cases := []struct {
		message   string
		retryable bool
	}{
		// Транзиентные отказы переотправляются
		{"step ocr: step execution timeout after 30s", true},
		{"abandoned: worker crashed mid-run", true},
		// Детерминированные доменные отказы — нет
		{"step detect: no detectable subject: image 32x32 below minimum 64px side", false},
		{"step detect: multiple subjects detected: 4", false},
		{"step detect: invalid image data", false},
		{"", false},
	}
	for _, c := range cases {
		if got := retryableFailure(c.message); got != c.retryable {
			t.Errorf("%q: expected %v, got %v", c.message, c.retryable, got)
		}
	}
}
