package settings

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/model"
	"github.com/taskdesk/taskdesk/internal/storage"
)

// Хвост MRU-списка обрезаем, бесконечно он расти не должен
const maxRecentFiles = 10

const (
	defaultTaskFile   = "tasks.json"
	defaultPageSize   = 50
	defaultMaxBackups = 10
)

func Defaults(dataDir string) model.Settings {
	return model.Settings{
		Storage: model.StorageSettings{
			DataDir:         dataDir,
			CurrentTaskFile: defaultTaskFile,
			RecentTaskFiles: []string{},
		},
		App: model.AppSettings{
			MaxTasksPerPage: defaultPageSize,
			MaxBackups:      defaultMaxBackups,
		},
	}
}

// Store хранит настройки в одном record-файле. Ленивая инициализация
// при первом Get, дальше — кэш на время жизни процесса. Внешняя правка
// файла настроек мимо процесса не подхватывается, это осознанно.
type Store struct {
	rec      *storage.Store
	path     string
	defaults model.Settings
	logger   *zap.Logger

	mu     sync.Mutex
	cached *model.Settings
}

func NewStore(rec *storage.Store, path string, defaults model.Settings, logger *zap.Logger) *Store {
	return &Store{
		rec:      rec,
		path:     path,
		defaults: defaults,
		logger:   logger,
	}
}

func (s *Store) Get() (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked()
}

func (s *Store) getLocked() (model.Settings, error) {
	if s.cached != nil {
		return clone(*s.cached), nil
	}

	v, err := storage.Read(s.rec, s.path, s.defaults)
	if err != nil {
		return model.Settings{}, err
	}
	if v.Storage.RecentTaskFiles == nil {
		v.Storage.RecentTaskFiles = []string{}
	}
	s.cached = &v
	s.logger.Info("settings loaded",
		zap.String("dataDir", v.Storage.DataDir),
		zap.String("currentTaskFile", v.Storage.CurrentTaskFile),
	)
	return clone(v), nil
}

// Update мержит только переданные группы; отсутствующие поля остаются
// как были. На диск всегда уходит весь документ целиком.
func (s *Store) Update(p model.SettingsPatch) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.getLocked()
	if err != nil {
		return model.Settings{}, err
	}

	merged := merge(cur, p)
	if err := s.writeLocked(merged); err != nil {
		return model.Settings{}, err
	}
	return clone(merged), nil
}

func (s *Store) Reset() (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	def := clone(s.defaults)
	if err := s.writeLocked(def); err != nil {
		return model.Settings{}, err
	}
	return clone(def), nil
}

// SetDataDir переключает каталог данных. Каталог должен существовать
// (создаем) и быть записываемым (пробная запись + удаление).
func (s *Store) SetDataDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return storage.ErrInvalidName
	}
	if err := s.rec.Probe(dir); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.getLocked()
	if err != nil {
		return err
	}
	cur.Storage.DataDir = dir
	return s.writeLocked(cur)
}

// SetCurrentTaskFile делает name текущим файлом и поднимает его в
// начало MRU-списка, убрав прежнее вхождение.
func (s *Store) SetCurrentTaskFile(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.getLocked()
	if err != nil {
		return err
	}

	recent := make([]string, 0, len(cur.Storage.RecentTaskFiles)+1)
	recent = append(recent, name)
	for _, f := range cur.Storage.RecentTaskFiles {
		if f != name {
			recent = append(recent, f)
		}
	}
	if len(recent) > maxRecentFiles {
		recent = recent[:maxRecentFiles]
	}

	cur.Storage.CurrentTaskFile = name
	cur.Storage.RecentTaskFiles = recent
	return s.writeLocked(cur)
}

func (s *Store) RecentTaskFiles() ([]string, error) {
	cur, err := s.Get()
	if err != nil {
		return nil, err
	}
	return cur.Storage.RecentTaskFiles, nil
}

func (s *Store) writeLocked(v model.Settings) error {
	if err := s.rec.Write(s.path, v); err != nil {
		return err
	}
	s.cached = &v
	return nil
}

// merge: present-and-non-nil перекрывает, absent сохраняет
func merge(cur model.Settings, p model.SettingsPatch) model.Settings {
	if p.Storage != nil {
		if p.Storage.DataDir != nil {
			cur.Storage.DataDir = *p.Storage.DataDir
		}
		if p.Storage.CurrentTaskFile != nil {
			cur.Storage.CurrentTaskFile = *p.Storage.CurrentTaskFile
		}
	}
	if p.App != nil {
		if p.App.MaxTasksPerPage != nil && *p.App.MaxTasksPerPage > 0 {
			cur.App.MaxTasksPerPage = *p.App.MaxTasksPerPage
		}
		if p.App.MaxBackups != nil && *p.App.MaxBackups > 0 {
			cur.App.MaxBackups = *p.App.MaxBackups
		}
	}
	return cur
}

func clone(v model.Settings) model.Settings {
	recent := make([]string, len(v.Storage.RecentTaskFiles))
	copy(recent, v.Storage.RecentTaskFiles)
	v.Storage.RecentTaskFiles = recent
	return v
}
