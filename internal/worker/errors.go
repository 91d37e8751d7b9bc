package worker

import "errors"

// Ошибки обработки артефактов.
var (
	// ErrArtifactNotFound — артефакт не найден в БД.
	// Повторять бессмысленно: сообщение подтверждается без обработки.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrImageMissing — запись об артефакте есть, а объекта в хранилище нет.
	// Безвозвратная ошибка: сообщение уходит в DLQ для разбора оператором.
	ErrImageMissing = errors.New("artifact image missing in object store")
)
