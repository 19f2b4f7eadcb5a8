// Пакет model — доменные модели Dropspot.
// FileRecord — запись реестра об одном принятом файле.
package model

import (
	"time"
)

// FileRecord — метаданные загруженного файла.
// Создаётся один раз при успешной загрузке, после создания не изменяется.
// Живёт только в памяти процесса: при рестарте реестр пуст.
type FileRecord struct {
	// Code — публичный код доступа (фиксированная длина, верхний hex).
	// Уникален среди живых записей; после удаления записи код может
	// быть выдан повторно.
	Code string `json:"code"`

	// StorageName — имя объекта в blob-хранилище.
	// Не возвращается в API, используется только внутри сервиса.
	StorageName string `json:"-"`

	// OriginalName — оригинальное имя файла при загрузке
	OriginalName string `json:"original_name"`

	// ContentType — MIME-тип файла
	ContentType string `json:"content_type"`

	// Size — размер файла в байтах
	Size int64 `json:"size"`

	// Checksum — SHA-256 хэш содержимого файла
	Checksum string `json:"checksum"`

	// CreatedAt — дата и время загрузки (UTC)
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt — момент истечения срока жизни: CreatedAt + TTL.
	// Устанавливается при создании и никогда не мутирует.
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired проверяет, истёк ли срок жизни записи на момент now.
func (r *FileRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
