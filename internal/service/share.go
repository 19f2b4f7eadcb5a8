// Пакет service — бизнес-логика Dropspot.
// share.go — сервис обмена файлами: приём загрузки, выдача метаданных
// по коду, выдача содержимого по коду. Единственная точка входа
// транспортного слоя; все ошибки возвращаются типизированными.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	apierrors "github.com/bigkaa/dropspot/internal/api/errors"
	"github.com/bigkaa/dropspot/internal/api/middleware"
	"github.com/bigkaa/dropspot/internal/config"
	"github.com/bigkaa/dropspot/internal/domain/code"
	"github.com/bigkaa/dropspot/internal/domain/model"
	"github.com/bigkaa/dropspot/internal/registry"
	"github.com/bigkaa/dropspot/internal/storage/blobstore"
)

// ShareError — ошибка операции с HTTP-кодом.
type ShareError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ShareError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ShareService — оркестрация загрузки и выдачи файлов.
type ShareService struct {
	cfg    *config.Config
	store  blobstore.BlobStore
	reg    *registry.Registry
	logger *slog.Logger
}

// NewShareService создаёт сервис обмена файлами.
func NewShareService(
	cfg *config.Config,
	store blobstore.BlobStore,
	reg *registry.Registry,
	logger *slog.Logger,
) *ShareService {
	return &ShareService{
		cfg:    cfg,
		store:  store,
		reg:    reg,
		logger: logger.With(slog.String("component", "share_service")),
	}
}

// NewExpireCleanup возвращает хук очистки blob-а для реестра.
// Вызывается при удалении записи по истечении TTL любым из путей
// (таймер, ленивая проверка, janitor); повторные вызовы и отсутствие
// blob-а безопасны.
func NewExpireCleanup(store blobstore.BlobStore, logger *slog.Logger) registry.ExpireFunc {
	return func(rec *model.FileRecord) {
		if err := store.Delete(context.Background(), rec.StorageName); err != nil {
			// Неудачное удаление не эскалируется: blob подберёт janitor
			logger.Warn("Не удалось удалить blob истёкшего файла",
				slog.String("code", rec.Code),
				slog.String("storage_name", rec.StorageName),
				slog.String("error", err.Error()),
			)
		}
		middleware.FilesLive.Dec()
		middleware.OperationsTotal.WithLabelValues("expire", "success").Inc()
	}
}

// SubmitUpload принимает загрузку файла.
//
// Поток:
//  1. Валидация входа (имя, MIME-тип, заявленный размер)
//  2. Streaming-запись в blob-хранилище с обрывом при превышении лимита
//  3. Проверка на пустой файл
//  4. Registry.Create (код + TTL + таймер очистки)
//
// Запись в реестре появляется только после полностью успешной записи
// blob-а; при любой последующей ошибке blob удаляется best-effort.
// declaredSize — размер из транспорта, -1 если неизвестен.
func (s *ShareService) SubmitUpload(ctx context.Context, reader io.Reader, originalName, contentType string, declaredSize int64) (*model.FileRecord, *ShareError) {
	if reader == nil || strings.TrimSpace(originalName) == "" {
		return nil, &ShareError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Файл не передан",
		}
	}

	// Заявленный размер известен — отклоняем до записи первого байта
	if declaredSize > s.cfg.MaxFileSize {
		return nil, s.tooLarge(declaredSize)
	}

	limited := blobstore.LimitReader(reader, s.cfg.MaxFileSize)
	saved, err := s.store.Save(ctx, limited, originalName)
	if err != nil {
		if errors.Is(err, blobstore.ErrFileTooLarge) {
			middleware.OperationsTotal.WithLabelValues("upload", "too_large").Inc()
			return nil, s.tooLarge(-1)
		}
		s.logger.Error("Ошибка записи blob-а",
			slog.String("filename", originalName),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("upload", "storage_error").Inc()
		return nil, &ShareError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageError,
			Message:    "Ошибка записи файла в хранилище",
		}
	}

	if saved.Size == 0 {
		s.cleanupBlob(ctx, saved.StorageName)
		return nil, &ShareError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Пустой файл не принимается",
		}
	}

	rec, err := s.reg.Create(originalName, saved.Size, detectContentType(contentType), saved.Checksum, saved.StorageName)
	if err != nil {
		// Записи в реестре нет — blob не должен осиротеть
		s.cleanupBlob(ctx, saved.StorageName)
		s.logger.Error("Ошибка создания записи реестра",
			slog.String("filename", originalName),
			slog.String("error", err.Error()),
		)
		return nil, &ShareError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка при регистрации файла",
		}
	}

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.FilesLive.Inc()

	s.logger.Info("Файл загружен",
		slog.String("code", rec.Code),
		slog.String("filename", rec.OriginalName),
		slog.Int64("size", rec.Size),
		slog.String("checksum", rec.Checksum),
		slog.Time("expires_at", rec.ExpiresAt),
	)

	return rec, nil
}

// GetInfo возвращает метаданные живого файла по коду.
// Некорректный код (длина/алфавит) не доходит до реестра и
// неотличим для клиента от отсутствующего (404). Истёкший в момент
// обращения код даёт 410, следующее обращение — 404.
func (s *ShareService) GetInfo(rawCode string) (*model.FileRecord, *ShareError) {
	normalized, ok := code.Normalize(rawCode, s.cfg.CodeLength)
	if !ok {
		return nil, s.notFound(rawCode)
	}

	rec, err := s.reg.Lookup(normalized)
	if err != nil {
		if errors.Is(err, registry.ErrExpired) {
			return nil, &ShareError{
				StatusCode: 410,
				Code:       apierrors.CodeFileExpired,
				Message:    fmt.Sprintf("Срок жизни файла %s истёк", normalized),
			}
		}
		return nil, s.notFound(normalized)
	}

	return rec, nil
}

// FetchDownload открывает содержимое живого файла по коду.
// Если blob отсутствует при живой записи (рассогласование), запись
// удаляется и клиент получает обычный 404, а не 500.
// Вызывающий код обязан закрыть возвращённый поток.
func (s *ShareService) FetchDownload(ctx context.Context, rawCode string) (io.ReadSeekCloser, *model.FileRecord, *ShareError) {
	rec, shareErr := s.GetInfo(rawCode)
	if shareErr != nil {
		return nil, nil, shareErr
	}

	blob, err := s.store.Open(ctx, rec.StorageName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			// Осиротевшая запись: blob исчез из-под живой записи.
			// Параллельная очистка могла успеть раньше — тогда её хук
			// уже уменьшил gauge, повторный декремент увёл бы его в минус.
			if s.reg.Delete(rec.Code) {
				middleware.FilesLive.Dec()
			}
			s.logger.Warn("Blob отсутствует при живой записи, запись удалена",
				slog.String("code", rec.Code),
				slog.String("storage_name", rec.StorageName),
			)
			return nil, nil, s.notFound(rec.Code)
		}
		s.logger.Error("Ошибка открытия blob-а",
			slog.String("code", rec.Code),
			slog.String("storage_name", rec.StorageName),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("download", "storage_error").Inc()
		return nil, nil, &ShareError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageError,
			Message:    "Ошибка чтения файла из хранилища",
		}
	}

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()
	return blob, rec, nil
}

// LiveCount возвращает число живых записей (для health endpoint).
func (s *ShareService) LiveCount() int {
	return s.reg.Count()
}

// cleanupBlob удаляет blob best-effort; неудача логируется, не эскалируется.
func (s *ShareService) cleanupBlob(ctx context.Context, storageName string) {
	if err := s.store.Delete(ctx, storageName); err != nil {
		s.logger.Warn("Не удалось удалить blob после отклонённой загрузки",
			slog.String("storage_name", storageName),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ShareService) tooLarge(size int64) *ShareError {
	msg := fmt.Sprintf("Размер файла превышает максимум %d байт", s.cfg.MaxFileSize)
	if size >= 0 {
		msg = fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", size, s.cfg.MaxFileSize)
	}
	return &ShareError{
		StatusCode: 413,
		Code:       apierrors.CodeFileTooLarge,
		Message:    msg,
	}
}

func (s *ShareService) notFound(c string) *ShareError {
	return &ShareError{
		StatusCode: 404,
		Code:       apierrors.CodeNotFound,
		Message:    fmt.Sprintf("Файл %s не найден", c),
	}
}

// detectContentType возвращает MIME-тип без параметров (charset и т.д.).
// Пустой тип заменяется на application/octet-stream.
func detectContentType(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
