// Пакет config — загрузка и валидация конфигурации Dropspot
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды blob-хранилища.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config содержит все параметры конфигурации Dropspot.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// TTL файла: expires_at = created_at + FileTTL
	FileTTL time.Duration
	// Максимальный размер файла в байтах
	MaxFileSize int64
	// Длина публичного кода
	CodeLength int
	// Интервал страховочной очистки (janitor)
	JanitorInterval time.Duration
	// Бэкенд blob-хранилища: local или s3
	StorageBackend string
	// Путь к директории хранения файлов (только local)
	DataDir string
	// Параметры S3 (только s3)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
	// Разрешённые CORS origins (через запятую)
	CORSOrigins []string
	// Путь к TLS сертификату и ключу (опционально)
	TLSCert string
	TLSKey  string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// DS_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("DS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("DS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("DS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// DS_FILE_TTL — срок жизни файла (по умолчанию 24h)
	cfg.FileTTL, err = getEnvDuration("DS_FILE_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DS_FILE_TTL: %w", err)
	}
	if cfg.FileTTL <= 0 {
		return nil, fmt.Errorf("DS_FILE_TTL: значение должно быть положительным")
	}

	// DS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 100 MiB)
	cfg.MaxFileSize, err = getEnvInt64("DS_MAX_FILE_SIZE", 100<<20)
	if err != nil {
		return nil, fmt.Errorf("DS_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("DS_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// DS_CODE_LENGTH — длина публичного кода (по умолчанию 6)
	cfg.CodeLength, err = getEnvInt("DS_CODE_LENGTH", 6)
	if err != nil {
		return nil, fmt.Errorf("DS_CODE_LENGTH: %w", err)
	}
	if cfg.CodeLength < 4 || cfg.CodeLength > 12 {
		return nil, fmt.Errorf("DS_CODE_LENGTH: значение %d вне допустимого диапазона 4-12", cfg.CodeLength)
	}

	// DS_JANITOR_INTERVAL — интервал страховочной очистки (по умолчанию 1h)
	cfg.JanitorInterval, err = getEnvDuration("DS_JANITOR_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DS_JANITOR_INTERVAL: %w", err)
	}

	// DS_STORAGE_BACKEND — бэкенд хранилища (по умолчанию local)
	cfg.StorageBackend = getEnvDefault("DS_STORAGE_BACKEND", BackendLocal)
	switch cfg.StorageBackend {
	case BackendLocal:
		// DS_DATA_DIR — обязательный для local
		cfg.DataDir, err = getEnvRequired("DS_DATA_DIR")
		if err != nil {
			return nil, err
		}
	case BackendS3:
		if cfg.S3Endpoint, err = getEnvRequired("DS_S3_ENDPOINT"); err != nil {
			return nil, err
		}
		if cfg.S3AccessKey, err = getEnvRequired("DS_S3_ACCESS_KEY"); err != nil {
			return nil, err
		}
		if cfg.S3SecretKey, err = getEnvRequired("DS_S3_SECRET_KEY"); err != nil {
			return nil, err
		}
		if cfg.S3Bucket, err = getEnvRequired("DS_S3_BUCKET"); err != nil {
			return nil, err
		}
		cfg.S3UseSSL, err = getEnvBool("DS_S3_USE_SSL", true)
		if err != nil {
			return nil, fmt.Errorf("DS_S3_USE_SSL: %w", err)
		}
	default:
		return nil, fmt.Errorf("DS_STORAGE_BACKEND: недопустимое значение %q, допустимые: local, s3", cfg.StorageBackend)
	}

	// DS_CORS_ORIGINS — разрешённые origins (по умолчанию *)
	origins := getEnvDefault("DS_CORS_ORIGINS", "*")
	for _, o := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, trimmed)
		}
	}

	// DS_TLS_CERT / DS_TLS_KEY — опциональны, но задаются парой
	cfg.TLSCert = getEnvDefault("DS_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("DS_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("DS_TLS_CERT и DS_TLS_KEY должны задаваться вместе")
	}

	// DS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DS_LOG_LEVEL: %w", err)
	}

	// DS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// DS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("DS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 24h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
