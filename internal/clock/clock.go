// Пакет clock — абстракция источника времени.
// Позволяет подменять часы в тестах и проверять истечение TTL
// без реальных ожиданий.
package clock

import "time"

// Clock — источник текущего времени.
type Clock interface {
	Now() time.Time
}

// System — системные часы (time.Now в UTC).
type System struct{}

// Now возвращает текущее время в UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}
