// metrics.go — Prometheus HTTP метрики Dropspot.
// Регистрирует метрики: ds_http_requests_total, ds_http_request_duration_seconds.
// Бизнес-метрики (ds_files_live, ds_operations_total) экспортируются
// для обновления из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ds_http_requests_total",
			Help: "Общее количество HTTP-запросов к Dropspot",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ds_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Dropspot в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (обновляются из сервисного слоя)
var (
	// FilesLive — текущее количество живых записей реестра (gauge).
	FilesLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ds_files_live",
			Help: "Текущее количество живых записей реестра",
		},
	)

	// OperationsTotal — общее количество файловых операций.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ds_operations_total",
			Help: "Общее количество файловых операций",
		},
		[]string{"operation", "result"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем код на {code} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// filesPrefix — префикс файловых endpoints.
const filesPrefix = "/api/v1/files/"

// normalizePath заменяет сегмент кода на {code} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/files/3F9A1C/download → /api/v1/files/{code}/download
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics", "/api/v1/files":
		return path
	}

	if !strings.HasPrefix(path, filesPrefix) {
		return path
	}

	rest := path[len(filesPrefix):]
	segment, suffix, _ := strings.Cut(rest, "/")
	if !isCodeSegment(segment) {
		return path
	}
	if suffix == "download" {
		return "/api/v1/files/{code}/download"
	}
	if suffix == "" {
		return "/api/v1/files/{code}"
	}
	return path
}

// isCodeSegment проверяет, похож ли сегмент пути на публичный код
// (hex, допустимый диапазон длины без привязки к конфигурации).
func isCodeSegment(segment string) bool {
	if len(segment) < 4 || len(segment) > 12 {
		return false
	}
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
