package pipeline

import (
	"fmt"
	"slices"
)

// Registry — статически упорядоченный список шагов пайплайна.
//
// Порядок слайса — источник истины о порядке выполнения; Order()
// каждого шага обязан совпадать с его позицией (с 1). Регистрация
// динамических плагинов не поддерживается: новый шаг — это
// перекомпиляция.
type Registry struct {
	steps  []Step
	byName map[string]Step
}

// NewRegistry создаёт реестр из упорядоченного списка шагов.
//
// Валидирует конфигурацию до любого запуска:
//   - имя каждого шага входит в закрытое множество KnownStepNames
//   - имена не повторяются
//   - Order() совпадает с позицией в списке
func NewRegistry(steps ...Step) (*Registry, error) {
	r := &Registry{
		steps:  steps,
		byName: make(map[string]Step, len(steps)),
	}

	for i, step := range steps {
		name := step.Name()
		if !slices.Contains(KnownStepNames, name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStepName, name)
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStep, name)
		}
		if step.Order() != i+1 {
			return nil, fmt.Errorf("%w: step %s declares order %d, registered at position %d",
				ErrOrderMismatch, name, step.Order(), i+1)
		}
		r.byName[name] = step
	}

	return r, nil
}

// DefaultRegistry создаёт реестр со стандартным пайплайном:
// detect → ocr → grade.
func DefaultRegistry(ocr *OCRStep) (*Registry, error) {
	return NewRegistry(
		NewDetectStep(),
		ocr,
		NewGradeStep(),
	)
}

// Steps возвращает шаги в порядке выполнения.
func (r *Registry) Steps() []Step {
	return r.steps
}

// Get возвращает шаг по имени.
func (r *Registry) Get(name string) (Step, error) {
	step, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStepName, name)
	}
	return step, nil
}

// Names возвращает имена шагов в порядке выполнения.
// Этот список используется при атомарном создании записей шагов.
func (r *Registry) Names() []string {
	names := make([]string, len(r.steps))
	for i, step := range r.steps {
		names[i] = step.Name()
	}
	return names
}

// Len возвращает количество шагов.
func (r *Registry) Len() int {
	return len(r.steps)
}
