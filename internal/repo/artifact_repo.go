package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Bindery/internal/domain"
)

// ArtifactRepo — репозиторий для работы с артефактами.
//
// Байты артефакта живут в объектном хранилище; здесь только метаданные.
type ArtifactRepo struct {
	pool *pgxpool.Pool
}

// NewArtifactRepo создаёт новый ArtifactRepo.
func NewArtifactRepo(pool *pgxpool.Pool) *ArtifactRepo {
	return &ArtifactRepo{pool: pool}
}

// Create создаёт новый артефакт.
func (r *ArtifactRepo) Create(ctx context.Context, a *domain.Artifact) error {
	query := `
		INSERT INTO artifacts (id, object_key, content_type, size_bytes, checksum,
		                       pipeline_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.ObjectKey,
		a.ContentType,
		a.SizeBytes,
		a.Checksum,
		a.PipelineStatus,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// GetByID возвращает артефакт по ID.
func (r *ArtifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	query := `
		SELECT id, object_key, content_type, size_bytes, checksum,
		       pipeline_status, created_at, updated_at
		FROM artifacts
		WHERE id = $1
	`
	var a domain.Artifact
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.ObjectKey,
		&a.ContentType,
		&a.SizeBytes,
		&a.Checksum,
		&a.PipelineStatus,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	return &a, nil
}

// UpdateContent обновляет метаданные после перезаписи байтов
// (workflow "crop" кладёт исправленное изображение обратно в хранилище).
func (r *ArtifactRepo) UpdateContent(ctx context.Context, id uuid.UUID, sizeBytes int64, checksum string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE artifacts SET size_bytes = $2, checksum = $3, updated_at = $4 WHERE id = $1
	`, id, sizeBytes, checksum, time.Now())
	if err != nil {
		return fmt.Errorf("update artifact content: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFailed возвращает артефакты, чей пайплайн завершился неудачей.
// Используется sweeper'ом для повторной постановки в очередь.
func (r *ArtifactRepo) ListFailed(ctx context.Context, limit int) ([]domain.Artifact, error) {
	query := `
		SELECT id, object_key, content_type, size_bytes, checksum,
		       pipeline_status, created_at, updated_at
		FROM artifacts
		WHERE pipeline_status = 'FAILED'
		ORDER BY updated_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		err := rows.Scan(
			&a.ID,
			&a.ObjectKey,
			&a.ContentType,
			&a.SizeBytes,
			&a.Checksum,
			&a.PipelineStatus,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// CountExecutions возвращает количество executions артефакта.
// Sweeper ограничивает повторные запуски этим счётчиком.
func (r *ArtifactRepo) CountExecutions(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM executions WHERE artifact_id = $1
	`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count executions: %w", err)
	}
	return count, nil
}
