package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/cache"
	"github.com/taskdesk/taskdesk/internal/config"
	"github.com/taskdesk/taskdesk/internal/handler"
	"github.com/taskdesk/taskdesk/internal/service"
	"github.com/taskdesk/taskdesk/internal/settings"
	"github.com/taskdesk/taskdesk/internal/storage"
	"github.com/taskdesk/taskdesk/internal/worker"
)

func main() {
	// Подключаем логгер
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Загрузка конфигурации
	cfg := config.Load()

	store := storage.NewStore(logger)

	// Проверяем, что каталоги на месте и в них можно писать
	if err := store.Probe(cfg.ConfigDir); err != nil {
		log.Fatal("Config dir is not writable: ", err)
	}
	if err := store.Probe(cfg.DataDir); err != nil {
		log.Fatal("Data dir is not writable: ", err)
	}
	logger.Info("Storage directories ready",
		zap.String("configDir", cfg.ConfigDir),
		zap.String("dataDir", cfg.DataDir),
	)

	settingsPath := filepath.Join(cfg.ConfigDir, "settings.json")
	settingsStore := settings.NewStore(store, settingsPath, settings.Defaults(cfg.DataDir), logger)

	clock := cache.NewClock()
	taskService := service.NewTaskService(store, settingsStore, clock, logger)
	tagService := service.NewTagService(store, settingsStore, taskService, clock, logger)

	taskHandler := handler.NewTaskHandler(taskService, logger)
	tagHandler := handler.NewTagHandler(tagService, logger)
	settingsHandler := handler.NewSettingsHandler(settingsStore, logger)
	storageHandler := handler.NewStorageHandler(store, settingsStore, clock, logger)

	r := handler.NewRouter(clock, taskHandler, tagHandler, settingsHandler, storageHandler, middleware.Logger)

	// Фоновая уборка бэкапов
	janitor := worker.NewJanitor(store, settingsStore, logger, cfg.JanitorInterval)
	janitor.Start(context.Background())

	srv := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() { // Запуск сервера и обработка ошибок
		logger.Info("Server started at ", zap.String("port", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed: ", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Shutdown error: ", zap.Error(err))
	}
	janitor.Stop()
	logger.Info("Server stopped succsessfully!")
}
