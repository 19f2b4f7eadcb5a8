// Пакет s3store — реализация blob-хранилища поверх S3-совместимого
// объектного хранилища (MinIO, AWS S3). Используется, когда локальный
// диск пода не подходит (эфемерные файловые системы, несколько реплик
// за балансировщиком на общем bucket-е).
package s3store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bigkaa/dropspot/internal/storage/blobstore"
)

// Options — параметры подключения к S3.
type Options struct {
	// Endpoint — адрес S3 endpoint (host:port)
	Endpoint string
	// AccessKey, SecretKey — ключи доступа
	AccessKey string
	SecretKey string
	// Bucket — имя bucket-а для объектов
	Bucket string
	// UseSSL — использовать TLS при подключении
	UseSSL bool
}

// S3Store — blob-хранилище на S3-совместимом backend-е.
type S3Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// New создаёт S3Store и проверяет доступность bucket-а,
// создавая его при отсутствии.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*S3Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания S3-клиента: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("ошибка создания bucket %s: %w", opts.Bucket, err)
		}
		logger.Info("Bucket создан", slog.String("bucket", opts.Bucket))
	}

	return &S3Store{
		client: client,
		bucket: opts.Bucket,
		logger: logger.With(slog.String("component", "s3store")),
	}, nil
}

// Save записывает поток в bucket под новым уникальным именем,
// считая SHA-256 на лету. Размер неизвестен заранее (-1) —
// клиент использует multipart upload. При ошибке частично
// записанный объект удаляется best-effort.
func (s *S3Store) Save(ctx context.Context, reader io.Reader, originalName string) (*blobstore.SaveResult, error) {
	storageName := blobstore.NewStorageName(originalName)

	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	info, err := s.client.PutObject(ctx, s.bucket, storageName, tee, -1, minio.PutObjectOptions{})
	if err != nil {
		if rmErr := s.client.RemoveObject(ctx, s.bucket, storageName, minio.RemoveObjectOptions{}); rmErr != nil {
			s.logger.Warn("Не удалось удалить частично записанный объект",
				slog.String("storage_name", storageName),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, fmt.Errorf("ошибка записи объекта %s: %w", storageName, err)
	}

	return &blobstore.SaveResult{
		StorageName: storageName,
		Size:        info.Size,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает объект для чтения. *minio.Object реализует
// io.ReadSeekCloser, поэтому скачивание работает через
// http.ServeContent так же, как с локального диска.
// GetObject ленивый — наличие объекта проверяется через Stat.
func (s *S3Store) Open(ctx context.Context, storageName string) (io.ReadSeekCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, storageName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия объекта %s: %w", storageName, err)
	}

	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%s: %w", storageName, blobstore.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка stat объекта %s: %w", storageName, err)
	}

	return obj, nil
}

// Delete удаляет объект из bucket-а. S3 удаление отсутствующего
// объекта считает успехом, что совпадает с контрактом.
func (s *S3Store) Delete(ctx context.Context, storageName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, storageName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("ошибка удаления объекта %s: %w", storageName, err)
	}
	return nil
}

// Exists проверяет наличие объекта в bucket-е.
func (s *S3Store) Exists(ctx context.Context, storageName string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, storageName, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка stat объекта %s: %w", storageName, err)
	}
	return true, nil
}

// List возвращает все объекты bucket-а.
func (s *S3Store) List(ctx context.Context) ([]blobstore.BlobInfo, error) {
	var infos []blobstore.BlobInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("ошибка обхода bucket %s: %w", s.bucket, obj.Err)
		}
		infos = append(infos, blobstore.BlobInfo{
			Name:    obj.Key,
			ModTime: obj.LastModified,
		})
	}
	return infos, nil
}

// Probe проверяет доступность bucket-а (для readiness probe).
func (s *S3Store) Probe(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("S3 недоступен: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s не существует", s.bucket)
	}
	return nil
}

// isNoSuchKey распознаёт ответ S3 «объект отсутствует».
func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// Проверка контракта на этапе компиляции.
var _ blobstore.BlobStore = (*S3Store)(nil)
