package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Bindery/internal/domain"
)

// Терминальный шаг неизменяем: мутация отсекается до обращения к базе,
// поэтому репозиторий здесь собирается с nil-пулом.
func TestStepRepo_TerminalIsImmutable(t *testing.T) {
	r := NewStepRepo(nil)
	ctx := context.Background()

	for _, status := range []domain.StepStatus{
		domain.StepStatusCompleted,
		domain.StepStatusFailed,
		domain.StepStatusSkipped,
	} {
		step := &domain.StepRecord{ID: uuid.New(), Name: "ocr", Status: status}

		if err := r.Start(ctx, step); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Start on %s: expected ErrInvalidState, got %v", status, err)
		}
		if err := r.Complete(ctx, step, nil, 10); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Complete on %s: expected ErrInvalidState, got %v", status, err)
		}
		if err := r.Fail(ctx, step, "late writer", 10); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Fail on %s: expected ErrInvalidState, got %v", status, err)
		}
		if err := r.Skip(ctx, step, "late sweep"); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Skip on %s: expected ErrInvalidState, got %v", status, err)
		}
		if step.Status != status {
			t.Errorf("status mutated: %s -> %s", status, step.Status)
		}
	}
}
