// health.go — обработчики health endpoints.
// Отдают число живых записей и текущее время сервера; readiness
// дополнительно проверяет доступность blob-хранилища.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bigkaa/dropspot/internal/config"
)

// serviceName — имя сервиса в health-ответах.
const serviceName = "dropspot"

// LiveCounter — источник числа живых записей реестра.
type LiveCounter interface {
	LiveCount() int
}

// StorageProber — проверка доступности blob-хранилища.
type StorageProber interface {
	Probe(ctx context.Context) error
}

// HealthHandler реализует endpoints /health/live и /health/ready.
type HealthHandler struct {
	version string
	counter LiveCounter
	prober  StorageProber
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(counter LiveCounter, prober StorageProber) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		counter: counter,
		prober:  prober,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив; зависимости не проверяются.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"version":      h.version,
		"service":      serviceName,
		"active_files": h.counter.LiveCount(),
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет доступность blob-хранилища.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	storageCheck := map[string]any{"status": "ok"}

	if err := h.prober.Probe(r.Context()); err != nil {
		status = "fail"
		httpStatus = http.StatusServiceUnavailable
		storageCheck = map[string]any{
			"status":  "fail",
			"message": err.Error(),
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":       status,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"version":      h.version,
		"service":      serviceName,
		"active_files": h.counter.LiveCount(),
		"checks": map[string]any{
			"storage": storageCheck,
		},
	})
}
