// Пакет registry — потокобезопасный in-memory реестр живых файлов.
//
// Реестр отображает публичный код в FileRecord и является единственным
// источником истины о «живости» файла. Не персистентный: создаётся
// пустым при старте процесса и исчезает вместе с ним.
//
// Истечение TTL обеспечивается тремя независимыми путями, каждый из
// которых идемпотентен и безопасен при гонке с остальными:
//   - одноразовый таймер, взводимый при Create;
//   - ленивая проверка в Lookup (защищает от дрейфа таймеров);
//   - фоновый janitor через PurgeExpired.
package registry

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/dropspot/internal/clock"
	"github.com/bigkaa/dropspot/internal/domain/code"
	"github.com/bigkaa/dropspot/internal/domain/model"
	"github.com/bigkaa/dropspot/internal/scheduler"
)

// maxCodeAttempts — бюджет retry генерации кода при коллизии.
// При пространстве 16^6 и разумном числе живых записей исчерпание
// бюджета практически недостижимо.
const maxCodeAttempts = 16

var (
	// ErrNotFound — код отсутствует в реестре.
	ErrNotFound = errors.New("запись не найдена")

	// ErrExpired — запись была найдена, но TTL истёк; запись удалена
	// в момент обращения. Следующий Lookup того же кода вернёт ErrNotFound.
	ErrExpired = errors.New("срок жизни записи истёк")

	// ErrCodeSpaceExhausted — исчерпан бюджет retry генерации кода.
	ErrCodeSpaceExhausted = errors.New("не удалось выдать уникальный код")
)

// ExpireFunc — хук очистки, вызываемый при удалении записи по истечении
// TTL. Получает копию удалённой записи; обязан переносить повторные
// вызовы и отсутствие blob-а.
type ExpireFunc func(rec *model.FileRecord)

// Registry — реестр живых файлов.
type Registry struct {
	mu    sync.Mutex
	files map[string]*model.FileRecord // code → record

	gen      code.Generator
	clk      clock.Clock
	sched    scheduler.Scheduler
	ttl      time.Duration
	onExpire ExpireFunc
	logger   *slog.Logger
}

// New создаёт пустой реестр.
// onExpire может быть nil, если очистка blob-ов не требуется (тесты).
func New(
	gen code.Generator,
	clk clock.Clock,
	sched scheduler.Scheduler,
	ttl time.Duration,
	onExpire ExpireFunc,
	logger *slog.Logger,
) *Registry {
	return &Registry{
		files:    make(map[string]*model.FileRecord),
		gen:      gen,
		clk:      clk,
		sched:    sched,
		ttl:      ttl,
		onExpire: onExpire,
		logger:   logger.With(slog.String("component", "registry")),
	}
}

// Create генерирует код, не занятый живой записью, создаёт FileRecord
// с created_at = now и expires_at = now + TTL, вставляет его в реестр
// и взводит таймер очистки. Коллизия с живым кодом приводит к retry;
// исчерпание бюджета — ErrCodeSpaceExhausted.
func (r *Registry) Create(originalName string, size int64, contentType, checksum, storageName string) (*model.FileRecord, error) {
	now := r.clk.Now()

	r.mu.Lock()
	var rec *model.FileRecord
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		c, err := r.gen.Generate()
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		if _, busy := r.files[c]; busy {
			continue
		}
		rec = &model.FileRecord{
			Code:         c,
			StorageName:  storageName,
			OriginalName: originalName,
			ContentType:  contentType,
			Size:         size,
			Checksum:     checksum,
			CreatedAt:    now,
			ExpiresAt:    now.Add(r.ttl),
		}
		r.files[c] = rec
		break
	}
	r.mu.Unlock()

	if rec == nil {
		return nil, ErrCodeSpaceExhausted
	}

	// Таймер — страховка от накопления записей без обращений.
	// Ленивая проверка в Lookup не зависит от его срабатывания.
	purgeCode := rec.Code
	r.sched.Schedule(rec.ExpiresAt, func() {
		r.purge(purgeCode, "timer")
	})

	copied := *rec
	return &copied, nil
}

// Lookup возвращает живую запись по коду. Код приводится к верхнему
// регистру. Запись с истёкшим TTL удаляется на месте (вместе с blob-ом
// через onExpire) и возвращается ErrExpired — независимо от того,
// сработал ли уже таймер.
func (r *Registry) Lookup(rawCode string) (*model.FileRecord, error) {
	c := strings.ToUpper(rawCode)

	r.mu.Lock()
	rec, ok := r.files[c]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNotFound
	}

	if rec.IsExpired(r.clk.Now()) {
		removed := *rec
		delete(r.files, c)
		r.mu.Unlock()

		r.expireHook(&removed)
		r.logger.Info("Запись удалена при обращении: TTL истёк",
			slog.String("code", c),
			slog.String("filename", removed.OriginalName),
		)
		return nil, ErrExpired
	}

	copied := *rec
	r.mu.Unlock()
	return &copied, nil
}

// Delete удаляет запись из реестра без вызова onExpire.
// Идемпотентна: отсутствие записи — не ошибка.
// Используется сервисом при обнаружении осиротевшей записи
// (blob уже отсутствует, удалять нечего).
func (r *Registry) Delete(code string) bool {
	c := strings.ToUpper(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[c]; !ok {
		return false
	}
	delete(r.files, c)
	return true
}

// Count возвращает число живых записей.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

// LiveStorageNames возвращает множество storage-имён живых записей.
// Используется janitor-ом для поиска осиротевших blob-ов.
func (r *Registry) LiveStorageNames() map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make(map[string]struct{}, len(r.files))
	for _, rec := range r.files {
		names[rec.StorageName] = struct{}{}
	}
	return names
}

// PurgeExpired удаляет все записи с истёкшим на момент now TTL.
// Страховочный проход janitor-а на случай пропущенных таймеров.
// Возвращает число удалённых записей.
func (r *Registry) PurgeExpired(now time.Time) int {
	r.mu.Lock()
	var removed []*model.FileRecord
	for c, rec := range r.files {
		if rec.IsExpired(now) {
			copied := *rec
			removed = append(removed, &copied)
			delete(r.files, c)
		}
	}
	r.mu.Unlock()

	for _, rec := range removed {
		r.expireHook(rec)
		r.logger.Info("Запись удалена страховочным проходом: TTL истёк",
			slog.String("code", rec.Code),
			slog.String("filename", rec.OriginalName),
		)
	}
	return len(removed)
}

// purge удаляет запись по срабатыванию таймера. Запись могла быть
// уже удалена ленивой проверкой или janitor-ом — тогда no-op.
// Код под таймером могла занять и новая живая запись: после удаления
// старой записи код легитимно переиспользуется, а её таймер не
// отменяется. Запись удаляется только по её собственному expires_at,
// поэтому непросроченная запись означает чужой таймер — тоже no-op.
func (r *Registry) purge(code, reason string) {
	r.mu.Lock()
	rec, ok := r.files[code]
	if !ok || !rec.IsExpired(r.clk.Now()) {
		r.mu.Unlock()
		return
	}
	removed := *rec
	delete(r.files, code)
	r.mu.Unlock()

	r.expireHook(&removed)
	r.logger.Info("Запись удалена: TTL истёк",
		slog.String("code", code),
		slog.String("filename", removed.OriginalName),
		slog.String("reason", reason),
	)
}

// expireHook вызывает onExpire, если он задан.
func (r *Registry) expireHook(rec *model.FileRecord) {
	if r.onExpire != nil {
		r.onExpire(rec)
	}
}
