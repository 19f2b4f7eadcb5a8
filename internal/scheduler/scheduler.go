// Пакет scheduler — одноразовое планирование действий на момент времени.
//
// Реестру нужна только способность «выполнить действие один раз не раньше
// заданного момента». Продакшен-реализация — таймер на запись;
// тесты подставляют ручной планировщик и управляют временем сами.
package scheduler

import (
	"time"

	"github.com/bigkaa/dropspot/internal/clock"
)

// Scheduler — планировщик одноразовых действий.
type Scheduler interface {
	// Schedule выполняет fn не раньше момента at. Момент в прошлом
	// означает немедленное выполнение. Отмена не поддерживается:
	// действие обязано быть идемпотентным.
	Schedule(at time.Time, fn func())
}

// Timer — планировщик на основе time.AfterFunc.
// Таймеры живут до конца процесса; вместе с ним и умирают,
// что согласуется с волатильностью реестра.
type Timer struct {
	clk clock.Clock
}

// NewTimer создаёт таймерный планировщик с указанными часами.
func NewTimer(clk clock.Clock) *Timer {
	return &Timer{clk: clk}
}

// Schedule взводит одноразовый таймер на момент at.
func (t *Timer) Schedule(at time.Time, fn func()) {
	d := at.Sub(t.clk.Now())
	if d < 0 {
		d = 0
	}
	time.AfterFunc(d, fn)
}
