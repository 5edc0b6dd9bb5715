package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrCorruptData = errors.New("corrupt data")
	ErrInvalidName = errors.New("invalid name")
)

const (
	backupExt   = ".bak"
	lockExt     = ".lock"
	backupStamp = "20060102T150405.000" // лексикографический порядок = хронологический
)

// Store работает с record-файлами: один JSON-документ на файл,
// запись атомарная (temp + rename), перед перезаписью — бэкап.
type Store struct {
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Locker возвращает мьютекс на конкретный файл. Все read-modify-write
// операции сервисов держат его целиком, иначе возможен lost update.
func (s *Store) Locker(path string) *sync.Mutex {
	key := filepath.Clean(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Read парсит документ по пути path. Отсутствующий файл — не ошибка:
// записываем def и возвращаем его.
func Read[T any](s *Store, path string, def T) (T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if werr := s.Write(path, def); werr != nil {
			return def, werr
		}
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("read %s: %w", path, err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def, fmt.Errorf("%w: %s: %v", ErrCorruptData, filepath.Base(path), err)
	}
	return v, nil
}

// Write сериализует v и атомарно кладет на место path.
// Существующий файл сначала копируется в бэкап; ошибка бэкапа не
// роняет запись — логируем и продолжаем, новые данные важнее.
func (s *Store) Write(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	flk := flock.New(path + lockExt)
	if err := flk.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer flk.Unlock()

	if _, err := os.Stat(path); err == nil {
		if _, berr := s.backupLocked(path); berr != nil {
			s.logger.Warn("backup before write failed",
				zap.String("file", filepath.Base(path)),
				zap.Error(berr),
			)
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return atomicWrite(path, data)
}

// Backup делает снимок текущего содержимого файла и возвращает имя
// бэкапа. Отсутствующий оригинал — ErrNotFound.
func (s *Store) Backup(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}

	flk := flock.New(path + lockExt)
	if err := flk.Lock(); err != nil {
		return "", fmt.Errorf("lock %s: %w", path, err)
	}
	defer flk.Unlock()

	return s.backupLocked(path)
}

func (s *Store) backupLocked(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	// При совпадении штампа до миллисекунды сдвигаем время, чтобы не
	// затереть предыдущий снимок
	stamp := s.now().UTC()
	var name string
	for {
		name = filepath.Base(path) + "." + stamp.Format(backupStamp) + backupExt
		if _, err := os.Stat(filepath.Join(filepath.Dir(path), name)); errors.Is(err, fs.ErrNotExist) {
			break
		}
		stamp = stamp.Add(time.Millisecond)
	}

	dst := filepath.Join(filepath.Dir(path), name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup %s: %w", name, err)
	}
	return name, nil
}

// ListBackups перечисляет бэкапы файла, старые первыми.
func (s *Store) ListBackups(path string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Dir(path))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", filepath.Dir(path), err)
	}

	prefix := filepath.Base(path) + "."
	names := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, prefix) && strings.HasSuffix(n, backupExt) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Restore возвращает содержимое бэкапа на место оригинала.
// Текущий оригинал перед этим сам уходит в бэкап — неудачный restore
// можно откатить.
func (s *Store) Restore(path, backupName string) error {
	base := filepath.Base(path)
	if backupName != filepath.Base(backupName) ||
		!strings.HasPrefix(backupName, base+".") ||
		!strings.HasSuffix(backupName, backupExt) {
		return fmt.Errorf("%w: %s", ErrInvalidName, backupName)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), backupName)); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, backupName)
	}

	flk := flock.New(path + lockExt)
	if err := flk.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer flk.Unlock()

	data, err := os.ReadFile(filepath.Join(filepath.Dir(path), backupName))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, backupName)
	}
	if err != nil {
		return fmt.Errorf("read backup %s: %w", backupName, err)
	}

	if _, err := os.Stat(path); err == nil {
		if _, berr := s.backupLocked(path); berr != nil {
			s.logger.Warn("backup before restore failed",
				zap.String("file", base),
				zap.Error(berr),
			)
		}
	}
	return atomicWrite(path, data)
}

// PruneBackups оставляет keep свежих бэкапов, остальные удаляет.
// Возвращает число удаленных.
func (s *Store) PruneBackups(path string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	backups, err := s.ListBackups(path)
	if err != nil {
		return 0, err
	}
	if len(backups) <= keep {
		return 0, nil
	}

	dir := filepath.Dir(path)
	removed := 0
	for _, name := range backups[:len(backups)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, fmt.Errorf("remove backup %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

// ListFiles перечисляет record-файлы каталога (без бэкапов и служебных).
func (s *Store) ListFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	names := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasSuffix(n, backupExt) || strings.HasSuffix(n, lockExt) {
			continue
		}
		if ext != "" && !strings.HasSuffix(n, ext) {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Exists сообщает, есть ли основной файл на диске.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Probe проверяет, что каталог существует и в него можно писать:
// пробная запись + удаление.
func (s *Store) Probe(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	probe := filepath.Join(dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("probe %s: %w", dir, err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("probe cleanup %s: %w", dir, err)
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
