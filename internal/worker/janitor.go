package worker

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/settings"
	"github.com/taskdesk/taskdesk/internal/storage"
)

// Janitor — фоновая уборка бэкапов: раз в interval проходит по
// record-файлам каталога данных и оставляет каждому не больше
// app.maxBackups снимков. Настройки перечитываются на каждый проход,
// смена каталога или лимита подхватывается без рестарта.
type Janitor struct {
	store    *storage.Store
	settings *settings.Store
	logger   *zap.Logger
	interval time.Duration
	wg       sync.WaitGroup
	stop     chan struct{}
}

func NewJanitor(store *storage.Store, st *settings.Store, logger *zap.Logger, interval time.Duration) *Janitor {
	return &Janitor{
		store:    store,
		settings: st,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("Starting backup janitor", zap.Duration("interval", j.interval))

	j.wg.Add(1)
	go j.run(ctx)
}

func (j *Janitor) Stop() {
	j.logger.Info("Stopping backup janitor...")
	close(j.stop)
	j.wg.Wait()
	j.logger.Info("Backup janitor stopped")
}

func (j *Janitor) run(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Sweep(ctx); err != nil {
				j.logger.Error("janitor sweep error", zap.Error(err))
			}
		}
	}
}

// Sweep — один проход уборки. Выделен отдельно, чтобы звать из тестов.
func (j *Janitor) Sweep(ctx context.Context) error {
	cfg, err := j.settings.Get()
	if err != nil {
		return err
	}

	files, err := j.store.ListFiles(cfg.Storage.DataDir, ".json")
	if err != nil {
		return err
	}

	for _, name := range files {
		path := filepath.Join(cfg.Storage.DataDir, name)
		removed, err := j.store.PruneBackups(path, cfg.App.MaxBackups)
		if err != nil {
			j.logger.Error("prune failed", zap.String("file", name), zap.Error(err))
			continue
		}
		if removed > 0 {
			j.logger.Info("Pruned backups",
				zap.String("file", name),
				zap.Int("removed", removed),
				zap.Int("kept", cfg.App.MaxBackups),
			)
		}
	}
	return nil
}
