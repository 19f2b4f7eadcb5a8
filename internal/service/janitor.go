// janitor.go — сервис страховочной фоновой очистки.
//
// Janitor выполняет две задачи:
//  1. Удаляет записи реестра с истёкшим TTL, чей таймер не сработал
//     (страховка поверх ленивой проверки в Lookup)
//  2. Удаляет осиротевшие blob-ы — объекты хранилища без живой записи
//     (в том числе оставшиеся от предыдущего запуска процесса:
//     реестр волатилен, диск — нет)
//
// Запускается как горутина с периодическим тикером (DS_JANITOR_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/dropspot/internal/api/middleware"
	"github.com/bigkaa/dropspot/internal/clock"
	"github.com/bigkaa/dropspot/internal/registry"
	"github.com/bigkaa/dropspot/internal/storage/blobstore"
)

// Prometheus метрики janitor-а
var (
	// janitorRunsTotal — количество запусков janitor-а.
	janitorRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_janitor_runs_total",
		Help: "Общее количество запусков janitor",
	})

	// janitorExpiredTotal — количество записей, удалённых страховочным проходом.
	janitorExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_janitor_expired_total",
		Help: "Общее количество истёкших записей, удалённых janitor",
	})

	// janitorOrphansTotal — количество удалённых осиротевших blob-ов.
	janitorOrphansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_janitor_orphans_total",
		Help: "Общее количество осиротевших blob-ов, удалённых janitor",
	})

	// janitorDurationSeconds — длительность выполнения janitor-а.
	janitorDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ds_janitor_duration_seconds",
		Help:    "Длительность выполнения janitor в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// JanitorResult — результат одного прохода janitor-а.
type JanitorResult struct {
	// ExpiredCount — записей удалено страховочным проходом
	ExpiredCount int
	// OrphanCount — осиротевших blob-ов удалено
	OrphanCount int
	// Errors — количество ошибок при обработке
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// Janitor — сервис страховочной фоновой очистки.
type Janitor struct {
	store    blobstore.BlobStore
	reg      *registry.Registry
	clk      clock.Clock
	interval time.Duration
	// grace — blob-ы моложе grace не считаются сиротами: загрузка
	// могла записать blob, но ещё не успеть создать запись реестра
	grace  time.Duration
	logger *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewJanitor создаёт сервис страховочной очистки.
func NewJanitor(
	store blobstore.BlobStore,
	reg *registry.Registry,
	clk clock.Clock,
	interval time.Duration,
	logger *slog.Logger,
) *Janitor {
	return &Janitor{
		store:    store,
		reg:      reg,
		clk:      clk,
		interval: interval,
		grace:    interval,
		logger:   logger.With(slog.String("component", "janitor")),
	}
}

// Start запускает фоновую горутину janitor-а с периодическим тикером.
// Вызывается один раз при старте приложения.
func (j *Janitor) Start(ctx context.Context) {
	jCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	go j.run(jCtx)

	j.logger.Info("Janitor запущен",
		slog.String("interval", j.interval.String()),
	)
}

// Stop останавливает фоновый процесс janitor-а.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.logger.Info("Janitor остановлен")
}

// run — основной цикл фоновой горутины.
func (j *Janitor) run(ctx context.Context) {
	// Первый запуск — сразу после старта: подбирает blob-ы,
	// оставшиеся от предыдущего процесса
	j.RunOnce(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход очистки.
// Потокобезопасен: mutex защищает от параллельного запуска.
func (j *Janitor) RunOnce(ctx context.Context) *JanitorResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	result := &JanitorResult{}
	now := j.clk.Now()

	// Фаза 1: страховочное удаление истёкших записей.
	// Хук очистки реестра удалит и соответствующие blob-ы.
	result.ExpiredCount = j.reg.PurgeExpired(now)

	// Фаза 2: удаление осиротевших blob-ов
	orphans, errs := j.deleteOrphans(ctx, now)
	result.OrphanCount = orphans
	result.Errors = errs

	result.Duration = time.Since(start)

	janitorRunsTotal.Inc()
	janitorExpiredTotal.Add(float64(result.ExpiredCount))
	janitorOrphansTotal.Add(float64(result.OrphanCount))
	janitorDurationSeconds.Observe(result.Duration.Seconds())

	// Синхронизируем gauge с фактическим состоянием реестра
	middleware.FilesLive.Set(float64(j.reg.Count()))

	if result.ExpiredCount > 0 || result.OrphanCount > 0 || result.Errors > 0 {
		j.logger.Info("Janitor завершил проход",
			slog.Int("expired", result.ExpiredCount),
			slog.Int("orphans", result.OrphanCount),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", result.Duration),
		)
	}

	return result
}

// deleteOrphans удаляет blob-ы, на которые не ссылается ни одна живая
// запись. Blob-ы моложе grace пропускаются: между Save и Create есть
// окно, в котором blob легитимно не имеет записи.
func (j *Janitor) deleteOrphans(ctx context.Context, now time.Time) (deleted, errors int) {
	blobs, err := j.store.List(ctx)
	if err != nil {
		j.logger.Error("Janitor: ошибка обхода хранилища",
			slog.String("error", err.Error()),
		)
		return 0, 1
	}

	live := j.reg.LiveStorageNames()

	for _, blob := range blobs {
		if _, ok := live[blob.Name]; ok {
			continue
		}
		if now.Sub(blob.ModTime) < j.grace {
			continue
		}

		if err := j.store.Delete(ctx, blob.Name); err != nil {
			j.logger.Error("Janitor: ошибка удаления осиротевшего blob-а",
				slog.String("storage_name", blob.Name),
				slog.String("error", err.Error()),
			)
			errors++
			continue
		}

		j.logger.Debug("Janitor: осиротевший blob удалён",
			slog.String("storage_name", blob.Name),
		)
		deleted++
	}

	return deleted, errors
}
