package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubStep — шаг с настраиваемым именем и порядком для проверки реестра.
type stubStep struct {
	name  string
	order int
}

func (s *stubStep) Name() string           { return s.name }
func (s *stubStep) Order() int             { return s.order }
func (s *stubStep) Timeout() time.Duration { return time.Second }
func (s *stubStep) Execute(context.Context, *Request) (*Response, error) {
	return &Response{}, nil
}

func TestNewRegistry_Valid(t *testing.T) {
	r, err := NewRegistry(
		&stubStep{name: StepDetect, order: 1},
		&stubStep{name: StepOCR, order: 2},
		&stubStep{name: StepGrade, order: 3},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Len() != 3 {
		t.Errorf("expected 3 steps, got %d", r.Len())
	}

	names := r.Names()
	want := []string{StepDetect, StepOCR, StepGrade}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("position %d: expected %s, got %s", i, name, names[i])
		}
	}

	step, err := r.Get(StepOCR)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.Name() != StepOCR {
		t.Errorf("Get returned wrong step: %s", step.Name())
	}
}

func TestNewRegistry_UnknownName(t *testing.T) {
	_, err := NewRegistry(&stubStep{name: "translate", order: 1})
	if !errors.Is(err, ErrUnknownStepName) {
		t.Fatalf("expected ErrUnknownStepName, got %v", err)
	}
}

func TestNewRegistry_DuplicateName(t *testing.T) {
	_, err := NewRegistry(
		&stubStep{name: StepDetect, order: 1},
		&stubStep{name: StepDetect, order: 2},
	)
	if !errors.Is(err, ErrDuplicateStep) {
		t.Fatalf("expected ErrDuplicateStep, got %v", err)
	}
}

func TestNewRegistry_OrderMismatch(t *testing.T) {
	_, err := NewRegistry(
		&stubStep{name: StepDetect, order: 1},
		&stubStep{name: StepOCR, order: 3},
	)
	if !errors.Is(err, ErrOrderMismatch) {
		t.Fatalf("expected ErrOrderMismatch, got %v", err)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r, err := NewRegistry(&stubStep{name: StepDetect, order: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Get("translate"); !errors.Is(err, ErrUnknownStepName) {
		t.Fatalf("expected ErrUnknownStepName, got %v", err)
	}
}
