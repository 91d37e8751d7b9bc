package pipeline

import (
	"errors"
	"fmt"
)

// Ошибки шагов.
var (
	// ErrStepTimeout — шаг превысил объявленный бюджет времени.
	ErrStepTimeout = errors.New("step execution timeout")

	// ErrInvalidImage — байты не являются поддерживаемым изображением.
	ErrInvalidImage = errors.New("invalid image data")

	// ErrUnknownStepName — имя шага вне закрытого множества.
	ErrUnknownStepName = errors.New("unknown step name")

	// ErrOrderMismatch — Order() шага не совпадает с позицией в реестре.
	ErrOrderMismatch = errors.New("step order mismatch")

	// ErrDuplicateStep — шаг с таким именем уже зарегистрирован.
	ErrDuplicateStep = errors.New("duplicate step name")
)

// NoSubjectError — доменная ошибка валидации: на изображении не найден
// объект (книга). Не системный сбой; вызывающая сторона ветвится по типу.
type NoSubjectError struct {
	// Reason — человекочитаемое объяснение (слишком маленькое изображение,
	// нет контрастного контура и т.п.).
	Reason string
}

func (e *NoSubjectError) Error() string {
	return fmt.Sprintf("no detectable subject: %s", e.Reason)
}

// MultipleSubjectsError — доменная ошибка валидации: на изображении
// несколько объектов, пайплайн ожидает ровно один.
type MultipleSubjectsError struct {
	// Count — сколько объектов обнаружено.
	Count int

	// Suggestion — подсказка пользователю.
	Suggestion string
}

func (e *MultipleSubjectsError) Error() string {
	return fmt.Sprintf("multiple subjects detected: %d", e.Count)
}

// IsDomainError возвращает true для доменных ошибок валидации,
// которые не являются системными сбоями.
func IsDomainError(err error) bool {
	var noSubject *NoSubjectError
	var multiple *MultipleSubjectsError
	return errors.As(err, &noSubject) || errors.As(err, &multiple)
}
