package domain

import (
	"time"

	"github.com/google/uuid"
)

// Artifact — метаданные загруженного изображения.
//
// Сами байты артефакта живут в объектном хранилище (MinIO) под ObjectKey;
// строка в БД хранит только метаданные и денормализованный статус
// пайплайна, который обновляют Complete/FailExecution как побочный эффект.
type Artifact struct {
	// ID — уникальный идентификатор артефакта.
	ID uuid.UUID `json:"id"`

	// ObjectKey — ключ объекта в хранилище.
	ObjectKey string `json:"object_key"`

	// ContentType — MIME-тип изображения (image/jpeg, image/png).
	ContentType string `json:"content_type"`

	// SizeBytes — размер объекта в байтах.
	SizeBytes int64 `json:"size_bytes"`

	// Checksum — SHA-256 содержимого (hex). Обновляется workflow "crop".
	Checksum string `json:"checksum"`

	// PipelineStatus — денормализованный статус последнего execution.
	PipelineStatus PipelineStatus `json:"pipeline_status"`

	// CreatedAt — время загрузки.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения (crop обновляет).
	UpdatedAt time.Time `json:"updated_at"`
}

// NewArtifact создаёт артефакт со статусом пайплайна NONE.
func NewArtifact(objectKey, contentType string, sizeBytes int64, checksum string) *Artifact {
	now := time.Now()
	return &Artifact{
		ID:             uuid.New(),
		ObjectKey:      objectKey,
		ContentType:    contentType,
		SizeBytes:      sizeBytes,
		Checksum:       checksum,
		PipelineStatus: PipelineStatusNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
