package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/dropspot/internal/storage/blobstore"
)

// newTestStore создаёт FileStore во временной директории.
func newTestStore(t *testing.T) *FileStore {
	t.Helper()

	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	return fs
}

// TestSaveAndOpen проверяет цикл запись → чтение с контролем
// размера и контрольной суммы.
func TestSaveAndOpen(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()
	payload := []byte("содержимое тестового файла")

	res, err := fs.Save(ctx, strings.NewReader(string(payload)), "test.txt")
	if err != nil {
		t.Fatalf("ошибка Save: %v", err)
	}

	if res.Size != int64(len(payload)) {
		t.Errorf("размер = %d, ожидалось %d", res.Size, len(payload))
	}
	wantSum := sha256.Sum256(payload)
	if res.Checksum != hex.EncodeToString(wantSum[:]) {
		t.Errorf("контрольная сумма не совпадает: %s", res.Checksum)
	}

	r, err := fs.Open(ctx, res.StorageName)
	if err != nil {
		t.Fatalf("ошибка Open: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("прочитанные данные не совпадают с записанными")
	}
}

// TestSave_NoTempLeftover проверяет, что после успешной записи
// temp файл не остаётся на диске.
func TestSave_NoTempLeftover(t *testing.T) {
	fs := newTestStore(t)

	if _, err := fs.Save(context.Background(), strings.NewReader("data"), "a.txt"); err != nil {
		t.Fatalf("ошибка Save: %v", err)
	}

	entries, err := os.ReadDir(fs.DataDir())
	if err != nil {
		t.Fatalf("ошибка чтения директории: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("остался временный файл %s", e.Name())
		}
	}
}

// errReader — reader, возвращающий ошибку после первых байт.
type errReader struct {
	data []byte
	read bool
}

func (r *errReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, blobstore.ErrFileTooLarge
}

// TestSave_CleanupOnError проверяет удаление частично записанных
// данных при ошибке потока.
func TestSave_CleanupOnError(t *testing.T) {
	fs := newTestStore(t)

	_, err := fs.Save(context.Background(), &errReader{data: []byte("partial")}, "bad.txt")
	if err == nil {
		t.Fatal("ожидалась ошибка Save")
	}
	if !errors.Is(err, blobstore.ErrFileTooLarge) {
		t.Fatalf("ошибка потока должна пробрасываться: %v", err)
	}

	entries, err := os.ReadDir(fs.DataDir())
	if err != nil {
		t.Fatalf("ошибка чтения директории: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("в директории остались файлы после ошибки: %v", entries)
	}
}

// TestOpen_NotFound проверяет маппинг отсутствующего объекта
// на blobstore.ErrNotFound.
func TestOpen_NotFound(t *testing.T) {
	fs := newTestStore(t)

	_, err := fs.Open(context.Background(), "no_such_blob.bin")
	if !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("ожидалась blobstore.ErrNotFound, получено %v", err)
	}
}

// TestDelete_Idempotent проверяет идемпотентность удаления.
func TestDelete_Idempotent(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	res, err := fs.Save(ctx, strings.NewReader("data"), "a.txt")
	if err != nil {
		t.Fatalf("ошибка Save: %v", err)
	}

	if err := fs.Delete(ctx, res.StorageName); err != nil {
		t.Fatalf("ошибка первого Delete: %v", err)
	}
	if err := fs.Delete(ctx, res.StorageName); err != nil {
		t.Fatalf("повторный Delete должен быть no-op: %v", err)
	}

	exists, err := fs.Exists(ctx, res.StorageName)
	if err != nil {
		t.Fatalf("ошибка Exists: %v", err)
	}
	if exists {
		t.Error("объект существует после удаления")
	}
}

// TestList проверяет обход хранилища: temp и скрытые файлы
// пропускаются.
func TestList(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	res1, err := fs.Save(ctx, strings.NewReader("one"), "one.txt")
	if err != nil {
		t.Fatalf("ошибка Save: %v", err)
	}
	res2, err := fs.Save(ctx, strings.NewReader("two"), "two.txt")
	if err != nil {
		t.Fatalf("ошибка Save: %v", err)
	}

	// Мусор, который List обязан пропустить
	for _, name := range []string{"stale.bin.tmp", ".health_check"} {
		if err := os.WriteFile(filepath.Join(fs.DataDir(), name), []byte("x"), 0o600); err != nil {
			t.Fatalf("ошибка подготовки файла %s: %v", name, err)
		}
	}

	infos, err := fs.List(ctx)
	if err != nil {
		t.Fatalf("ошибка List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List вернул %d объектов, ожидалось 2", len(infos))
	}

	names := map[string]bool{}
	for _, info := range infos {
		names[info.Name] = true
		if info.ModTime.IsZero() {
			t.Errorf("объект %s без времени модификации", info.Name)
		}
	}
	if !names[res1.StorageName] || !names[res2.StorageName] {
		t.Errorf("List не вернул сохранённые объекты: %v", names)
	}
}

// TestProbe проверяет readiness-проверку директории данных.
func TestProbe(t *testing.T) {
	fs := newTestStore(t)

	if err := fs.Probe(context.Background()); err != nil {
		t.Fatalf("ошибка Probe на доступной директории: %v", err)
	}

	entries, err := os.ReadDir(fs.DataDir())
	if err != nil {
		t.Fatalf("ошибка чтения директории: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Probe оставил файлы: %v", entries)
	}
}
