package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound возвращается, когда объекта нет в бакете.
var ErrNotFound = errors.New("object not found")

// Config — конфигурация подключения к MinIO (или S3-совместимому хранилищу).
type Config struct {
	// Endpoint — адрес хранилища (host:port).
	Endpoint string

	// AccessKey и SecretKey — ключи доступа.
	AccessKey string
	SecretKey string

	// Bucket — бакет с изображениями артефактов.
	Bucket string

	// Region — регион (опционально).
	Region string

	// UseSSL — использовать TLS при подключении.
	UseSSL bool
}

// Validate проверяет обязательные поля конфигурации.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("objectstore: endpoint is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("objectstore: access key and secret key are required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("objectstore: bucket is required")
	}
	return nil
}

// ObjectInfo — метаданные объекта в хранилище.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Store — хранилище изображений артефактов поверх MinIO.
//
// Изображения неизменяемы с точки зрения пайплайна: шаги читают байты
// по ключу артефакта. Исключение — crop, который перезаписывает объект
// обрезанной версией.
type Store struct {
	client *minio.Client
	bucket string
}

// New создаёт Store и проверяет конфигурацию.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket создаёт бакет, если его ещё нет.
// Вызывается при старте сервисов (локальная разработка, тесты).
func (s *Store) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Load читает объект целиком и возвращает байты с content type.
func (s *Store) Load(ctx context.Context, key string) ([]byte, string, error) {
	info, err := s.Stat(ctx, key)
	if err != nil {
		return nil, "", err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get object %s: %w", key, mapError(err))
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("read object %s: %w", key, mapError(err))
	}

	return data, info.ContentType, nil
}

// Stat возвращает метаданные объекта.
func (s *Store) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat object %s: %w", key, mapError(err))
	}
	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// Put записывает объект по ключу, перезаписывая существующий.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Remove удаляет объект. Отсутствующий объект не считается ошибкой.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// mapError переводит minio-ошибки в доменные sentinels.
func mapError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
