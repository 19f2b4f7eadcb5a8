// Пакет filestore — дисковая реализация blob-хранилища.
// Streaming-запись с подсчётом SHA-256 на лету, temp-файл и
// атомарный rename; частично записанные данные не видны читателям.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/dropspot/internal/storage/blobstore"
)

// tmpSuffix — суффикс временных файлов незавершённой записи.
const tmpSuffix = ".tmp"

// FileStore — blob-хранилище на локальном диске.
type FileStore struct {
	// dataDir — корневая директория хранения (DS_DATA_DIR)
	dataDir string
}

// New создаёт FileStore, при необходимости создавая директорию данных.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

// Save записывает поток на диск под новым уникальным именем.
// Паттерн: temp файл → запись + SHA-256 → fsync → атомарный rename.
// При любой ошибке (включая превышение лимита из LimitReader)
// temp файл удаляется.
func (fs *FileStore) Save(_ context.Context, reader io.Reader, originalName string) (*blobstore.SaveResult, error) {
	storageName := blobstore.NewStorageName(originalName)
	fullPath := filepath.Join(fs.dataDir, storageName)
	tmpPath := fullPath + tmpSuffix

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &blobstore.SaveResult{
		StorageName: storageName,
		Size:        size,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает объект для чтения. *os.File реализует io.ReadSeekCloser,
// что позволяет отдавать файл через http.ServeContent с Range-запросами.
func (fs *FileStore) Open(_ context.Context, storageName string) (io.ReadSeekCloser, error) {
	f, err := os.Open(filepath.Join(fs.dataDir, storageName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", storageName, blobstore.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storageName, err)
	}
	return f, nil
}

// Delete удаляет объект с диска. Отсутствие объекта — не ошибка.
func (fs *FileStore) Delete(_ context.Context, storageName string) error {
	err := os.Remove(filepath.Join(fs.dataDir, storageName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storageName, err)
	}
	return nil
}

// Exists проверяет наличие объекта на диске.
func (fs *FileStore) Exists(_ context.Context, storageName string) (bool, error) {
	_, err := os.Stat(filepath.Join(fs.dataDir, storageName))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка stat файла %s: %w", storageName, err)
	}
	return true, nil
}

// List возвращает все объекты хранилища. Временные файлы
// незавершённых записей и скрытые файлы пропускаются.
func (fs *FileStore) List(_ context.Context) ([]blobstore.BlobInfo, error) {
	entries, err := os.ReadDir(fs.dataDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", fs.dataDir, err)
	}

	var infos []blobstore.BlobInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, tmpSuffix) || strings.HasPrefix(name, ".") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, blobstore.BlobInfo{
			Name:    name,
			ModTime: fi.ModTime(),
		})
	}
	return infos, nil
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// Probe проверяет доступность директории данных на запись
// (для readiness probe).
func (fs *FileStore) Probe(_ context.Context) error {
	testFile := filepath.Join(fs.dataDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("директория данных недоступна для записи: %w", err)
	}
	os.Remove(testFile)
	return nil
}

// Проверка контракта на этапе компиляции.
var _ blobstore.BlobStore = (*FileStore)(nil)
