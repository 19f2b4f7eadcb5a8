// Пакет blobstore — контракт blob-хранилища Dropspot.
//
// Хранилище оперирует только байтами под непрозрачными storage-именами
// и ничего не знает о TTL: единственный источник истины о живости
// файла — реестр. Контракт вынесен в интерфейс, чтобы сервис работал
// одинаково поверх локального диска и S3 и чтобы хранилище можно было
// подменять в тестах.
package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound — объект с таким storage-именем отсутствует.
	ErrNotFound = errors.New("объект не найден в хранилище")

	// ErrFileTooLarge — поток превысил допустимый размер.
	// Возвращается LimitReader и прерывает запись на лету.
	ErrFileTooLarge = errors.New("превышен максимальный размер файла")
)

// SaveResult — результат записи объекта в хранилище.
type SaveResult struct {
	// StorageName — имя объекта в хранилище
	StorageName string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого
	Checksum string
}

// BlobInfo — сведения об объекте для обхода хранилища janitor-ом.
type BlobInfo struct {
	// Name — storage-имя объекта
	Name string
	// ModTime — время последней модификации объекта
	ModTime time.Time
}

// BlobStore — хранилище байтов файлов.
type BlobStore interface {
	// Save записывает поток в хранилище под новым уникальным именем,
	// считая SHA-256 на лету. При любой ошибке частично записанные
	// данные удаляются.
	Save(ctx context.Context, reader io.Reader, originalName string) (*SaveResult, error)

	// Open открывает объект для чтения. Возвращает ErrNotFound,
	// если объект отсутствует. Вызывающий код обязан закрыть поток.
	Open(ctx context.Context, storageName string) (io.ReadSeekCloser, error)

	// Delete удаляет объект. Отсутствие объекта — не ошибка.
	Delete(ctx context.Context, storageName string) error

	// Exists проверяет наличие объекта.
	Exists(ctx context.Context, storageName string) (bool, error)

	// List возвращает все объекты хранилища (для поиска сирот).
	List(ctx context.Context) ([]BlobInfo, error)
}

// LimitReader оборачивает reader так, что чтение сверх max байт
// прерывается ошибкой ErrFileTooLarge. Поток размером ровно max
// проходит без ошибки. Позволяет прервать загрузку в момент
// превышения лимита, не буферизуя файл целиком.
func LimitReader(r io.Reader, max int64) io.Reader {
	return &limitReader{r: r, remaining: max + 1}
}

type limitReader struct {
	r         io.Reader
	remaining int64 // max+1: чтение последнего байта означает превышение
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, ErrFileTooLarge
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining <= 0 {
		return n, ErrFileTooLarge
	}
	return n, err
}
