package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Bindery/internal/domain"
)

// Терминальный execution неизменяем: гонка двух писателей (sweeper
// признал прогон брошенным, воркер очнулся и дописывает результат)
// разрешается в пользу того, кто успел первым. Мутация отсекается до
// обращения к базе, поэтому репозиторий здесь собирается с nil-пулом.
func TestExecutionRepo_TerminalIsImmutable(t *testing.T) {
	r := NewExecutionRepo(nil)
	ctx := context.Background()

	for _, status := range []domain.ExecutionStatus{
		domain.ExecutionStatusCompleted,
		domain.ExecutionStatusFailed,
	} {
		exec := &domain.Execution{ID: uuid.New(), Status: status}

		if err := r.Start(ctx, exec); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Start on %s: expected ErrInvalidState, got %v", status, err)
		}
		if err := r.Complete(ctx, exec); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Complete on %s: expected ErrInvalidState, got %v", status, err)
		}
		if err := r.Fail(ctx, exec, "late writer"); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Fail on %s: expected ErrInvalidState, got %v", status, err)
		}
		if exec.Status != status {
			t.Errorf("status mutated: %s -> %s", status, exec.Status)
		}
	}
}
