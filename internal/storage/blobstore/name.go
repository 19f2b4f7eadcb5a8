// name.go — генерация уникальных storage-имён, общая для всех бэкендов.
package blobstore

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewStorageName генерирует уникальное имя объекта в хранилище.
// Формат: {name}_{timestamp}_{uuid8}{ext}
// Пример: report_20260901150405_a1b2c3d4.pdf
// Имя не зависит от публичного кода: blob и запись реестра связаны
// только через FileRecord.StorageName.
func NewStorageName(originalName string) string {
	ext := filepath.Ext(originalName)
	name := sanitize(strings.TrimSuffix(originalName, ext))

	if len(name) > 50 {
		name = name[:50]
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8]

	return fmt.Sprintf("%s_%s_%s%s", name, ts, uid, ext)
}

// sanitize оставляет в строке только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}
