// Пакет code — генерация и нормализация публичных кодов доступа.
//
// Код — строка фиксированной длины над алфавитом верхнего hex (0-9A-F),
// полученная из криптографически стойкого источника случайности.
// Генератор не гарантирует уникальность: защита от коллизий среди
// живых кодов — ответственность реестра (retry при Create).
package code

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet — алфавит кода: верхний hex.
const Alphabet = "0123456789ABCDEF"

// DefaultLength — длина кода по умолчанию.
const DefaultLength = 6

// Generator — источник публичных кодов.
type Generator interface {
	// Generate возвращает новый случайный код.
	Generate() (string, error)
}

// HexGenerator — генератор кодов из crypto/rand.
type HexGenerator struct {
	length int
}

// NewHexGenerator создаёт генератор кодов длины length.
func NewHexGenerator(length int) *HexGenerator {
	if length <= 0 {
		length = DefaultLength
	}
	return &HexGenerator{length: length}
}

// Generate возвращает случайный код из length символов алфавита Alphabet.
func (g *HexGenerator) Generate() (string, error) {
	buf := make([]byte, g.length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ошибка чтения crypto/rand: %w", err)
	}

	var sb strings.Builder
	sb.Grow(g.length)
	for _, b := range buf {
		// 16 символов алфавита — остаток от деления не вносит перекоса
		sb.WriteByte(Alphabet[int(b)%len(Alphabet)])
	}
	return sb.String(), nil
}

// Length возвращает длину генерируемых кодов.
func (g *HexGenerator) Length() int {
	return g.length
}

// Normalize приводит код к каноническому виду (верхний регистр) и
// валидирует длину и алфавит. Некорректный код возвращает ok=false:
// такие коды не должны доходить до реестра, для клиента они
// неотличимы от отсутствующих.
func Normalize(raw string, length int) (string, bool) {
	if len(raw) != length {
		return "", false
	}
	normalized := strings.ToUpper(raw)
	for i := 0; i < len(normalized); i++ {
		c := normalized[i]
		if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')) {
			return "", false
		}
	}
	return normalized, true
}
