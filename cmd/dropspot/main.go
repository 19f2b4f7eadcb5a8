// Точка входа Dropspot — сервиса анонимного обмена файлами по коду.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/dropspot/internal/api/handlers"
	"github.com/bigkaa/dropspot/internal/clock"
	"github.com/bigkaa/dropspot/internal/config"
	"github.com/bigkaa/dropspot/internal/domain/code"
	"github.com/bigkaa/dropspot/internal/registry"
	"github.com/bigkaa/dropspot/internal/scheduler"
	"github.com/bigkaa/dropspot/internal/server"
	"github.com/bigkaa/dropspot/internal/service"
	"github.com/bigkaa/dropspot/internal/storage/blobstore"
	"github.com/bigkaa/dropspot/internal/storage/filestore"
	"github.com/bigkaa/dropspot/internal/storage/s3store"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Dropspot запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage_backend", cfg.StorageBackend),
		slog.String("file_ttl", cfg.FileTTL.String()),
		slog.Int64("max_file_size", cfg.MaxFileSize),
		slog.Int("code_length", cfg.CodeLength),
	)

	ctx := context.Background()

	// --- Инициализация компонентов ---

	// 1. Blob-хранилище
	var store blobstore.BlobStore
	var prober handlers.StorageProber
	switch cfg.StorageBackend {
	case config.BackendS3:
		s3, err := s3store.New(ctx, s3store.Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		}, logger)
		if err != nil {
			logger.Error("Ошибка инициализации S3-хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store, prober = s3, s3
	default:
		fs, err := filestore.New(cfg.DataDir)
		if err != nil {
			logger.Error("Ошибка инициализации файлового хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store, prober = fs, fs
	}

	// 2. Реестр живых файлов: системные часы, таймерный планировщик,
	//    хук очистки blob-ов при истечении TTL
	clk := clock.System{}
	reg := registry.New(
		code.NewHexGenerator(cfg.CodeLength),
		clk,
		scheduler.NewTimer(clk),
		cfg.FileTTL,
		service.NewExpireCleanup(store, logger),
		logger,
	)

	// 3. Сервис обмена файлами
	shareSvc := service.NewShareService(cfg, store, reg, logger)

	// 4. Janitor — страховочная фоновая очистка
	janitor := service.NewJanitor(store, reg, clk, cfg.JanitorInterval, logger)
	janitor.Start(ctx)
	defer janitor.Stop()

	// 5. Handlers и HTTP-сервер
	filesHandler := handlers.NewFilesHandler(shareSvc)
	healthHandler := handlers.NewHealthHandler(shareSvc, prober)

	router := server.NewRouter(cfg, logger, filesHandler, healthHandler)
	srv := server.New(cfg, logger, router)

	if err := srv.Run(); err != nil {
		logger.Error("Сервер завершился с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
