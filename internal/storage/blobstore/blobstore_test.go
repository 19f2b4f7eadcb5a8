package blobstore

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// TestLimitReader_UnderLimit проверяет чтение потока меньше лимита.
func TestLimitReader_UnderLimit(t *testing.T) {
	src := strings.NewReader("hello")
	lr := LimitReader(src, 100)

	data, err := io.ReadAll(lr)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("прочитано %q, ожидалось hello", data)
	}
}

// TestLimitReader_ExactLimit проверяет границу: поток размером
// ровно max проходит без ошибки.
func TestLimitReader_ExactLimit(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 10)
	lr := LimitReader(bytes.NewReader(payload), 10)

	data, err := io.ReadAll(lr)
	if err != nil {
		t.Fatalf("поток ровно в max байт не должен давать ошибку: %v", err)
	}
	if len(data) != 10 {
		t.Errorf("прочитано %d байт, ожидалось 10", len(data))
	}
}

// TestLimitReader_OverLimit проверяет прерывание на max+1 байте.
func TestLimitReader_OverLimit(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 11)
	lr := LimitReader(bytes.NewReader(payload), 10)

	_, err := io.ReadAll(lr)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("ожидалась ErrFileTooLarge, получено %v", err)
	}
}

// TestLimitReader_OverLimitSmallChunks проверяет прерывание при чтении
// мелкими порциями.
func TestLimitReader_OverLimitSmallChunks(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 20)
	lr := LimitReader(bytes.NewReader(payload), 10)

	buf := make([]byte, 3)
	var total int
	for {
		n, err := lr.Read(buf)
		total += n
		if err != nil {
			if !errors.Is(err, ErrFileTooLarge) {
				t.Fatalf("ожидалась ErrFileTooLarge, получено %v", err)
			}
			break
		}
	}
	if total > 11 {
		t.Errorf("прочитано %d байт, ожидалось не более max+1", total)
	}
}

// TestNewStorageName проверяет формат и санацию storage-имени.
func TestNewStorageName(t *testing.T) {
	tests := []struct {
		name     string
		original string
		wantExt  string
	}{
		{"обычное имя", "report.pdf", ".pdf"},
		{"без расширения", "README", ""},
		{"кириллица", "отчёт.docx", ".docx"},
		{"опасные символы", "../../etc/passwd", ""},
		{"пробелы и скобки", "my file (1).txt", ".txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewStorageName(tt.original)

			if tt.wantExt != "" && !strings.HasSuffix(got, tt.wantExt) {
				t.Errorf("имя %q не сохранило расширение %q", got, tt.wantExt)
			}
			if strings.ContainsAny(got, "/\\ ()") {
				t.Errorf("имя %q содержит недопустимые символы", got)
			}
			if strings.Count(got, "_") < 2 {
				t.Errorf("имя %q не соответствует формату name_ts_uid", got)
			}
		})
	}
}

// TestNewStorageName_Unique проверяет уникальность имён для одного
// и того же исходного файла.
func TestNewStorageName_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := NewStorageName("file.txt")
		if seen[n] {
			t.Fatalf("storage-имя %q сгенерировано дважды", n)
		}
		seen[n] = true
	}
}

// TestNewStorageName_LongName проверяет усечение длинных имён.
func TestNewStorageName_LongName(t *testing.T) {
	long := strings.Repeat("a", 200) + ".txt"
	got := NewStorageName(long)

	if len(got) > 100 {
		t.Errorf("имя не усечено: длина %d", len(got))
	}
	if !strings.HasSuffix(got, ".txt") {
		t.Errorf("усечение потеряло расширение: %q", got)
	}
}
