package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/cache"
	"github.com/taskdesk/taskdesk/internal/model"
	"github.com/taskdesk/taskdesk/internal/settings"
	"github.com/taskdesk/taskdesk/internal/storage"
)

var ErrTagInUse = errors.New("tag in use")

// TagInUseError несет число ссылок для ответа клиенту
type TagInUseError struct {
	Name  string
	Count int
}

func (e *TagInUseError) Error() string {
	return fmt.Sprintf("tag in use: %s referenced by %d task(s)", e.Name, e.Count)
}

func (e *TagInUseError) Unwrap() error {
	return ErrTagInUse
}

const tagsFile = "tags.json"

var colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// TaskReader — то, что реестру тегов нужно от хранилища задач: счет
// ссылок и принудительное отцепление. Интерфейс вместо обратной ссылки
// на TaskService разрывает цикл между сервисами.
type TaskReader interface {
	All(ctx context.Context) ([]model.Task, error)
	RemoveTag(ctx context.Context, name string) error
}

// TagService хранит определения тегов в отдельном record-файле каталога
// данных. Использование тегов считается только по текущему task-файлу.
type TagService struct {
	store    *storage.Store
	settings *settings.Store
	tasks    TaskReader
	clock    *cache.Clock
	logger   *zap.Logger
}

func NewTagService(store *storage.Store, st *settings.Store, tasks TaskReader, clock *cache.Clock, logger *zap.Logger) *TagService {
	return &TagService{
		store:    store,
		settings: st,
		tasks:    tasks,
		clock:    clock,
		logger:   logger,
	}
}

func (s *TagService) path() (string, error) {
	cfg, err := s.settings.Get()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.Storage.DataDir, tagsFile), nil
}

func (s *TagService) readAll(path string) (map[string]model.Tag, error) {
	tags, err := storage.Read(s.store, path, map[string]model.Tag{})
	if err != nil {
		return nil, err
	}
	for name, tag := range tags {
		tag.Name = name
		tags[name] = tag
	}
	return tags, nil
}

func (s *TagService) List(ctx context.Context) (map[string]model.Tag, error) {
	path, err := s.path()
	if err != nil {
		return nil, err
	}
	return s.readAll(path)
}

func (s *TagService) Get(ctx context.Context, name string) (model.Tag, error) {
	tags, err := s.List(ctx)
	if err != nil {
		return model.Tag{}, err
	}
	tag, ok := tags[name]
	if !ok {
		return model.Tag{}, fmt.Errorf("%w: tag %s", storage.ErrNotFound, name)
	}
	return tag, nil
}

func (s *TagService) Create(ctx context.Context, in model.TagInput) (model.Tag, error) {
	if err := validateTagName(in.Name); err != nil {
		return model.Tag{}, err
	}
	if in.Color == "" {
		return model.Tag{}, invalid("color", "is required")
	}
	if err := validateTagFields(in.Color, in.Description); err != nil {
		return model.Tag{}, err
	}

	path, err := s.path()
	if err != nil {
		return model.Tag{}, err
	}

	lock := s.store.Locker(path)
	lock.Lock()
	defer lock.Unlock()

	tags, err := s.readAll(path)
	if err != nil {
		return model.Tag{}, err
	}
	if _, ok := tags[in.Name]; ok {
		return model.Tag{}, fmt.Errorf("%w: tag %s", storage.ErrConflict, in.Name)
	}

	tag := model.Tag{Name: in.Name, Color: in.Color, Description: in.Description}
	tags[in.Name] = tag
	if err := s.store.Write(path, tags); err != nil {
		return model.Tag{}, err
	}
	s.clock.Bump()
	return tag, nil
}

func (s *TagService) Update(ctx context.Context, name string, p model.TagPatch) (model.Tag, error) {
	color, description := "", ""
	if p.Color != nil {
		color = *p.Color
	}
	if p.Description != nil {
		description = *p.Description
	}
	if err := validateTagFields(color, description); err != nil {
		return model.Tag{}, err
	}

	path, err := s.path()
	if err != nil {
		return model.Tag{}, err
	}

	lock := s.store.Locker(path)
	lock.Lock()
	defer lock.Unlock()

	tags, err := s.readAll(path)
	if err != nil {
		return model.Tag{}, err
	}
	tag, ok := tags[name]
	if !ok {
		return model.Tag{}, fmt.Errorf("%w: tag %s", storage.ErrNotFound, name)
	}

	if p.Color != nil {
		tag.Color = *p.Color
	}
	if p.Description != nil {
		tag.Description = *p.Description
	}
	tags[name] = tag

	if err := s.store.Write(path, tags); err != nil {
		return model.Tag{}, err
	}
	s.clock.Bump()
	return tag, nil
}

// Delete отказывается удалять тег, на который ссылается хоть одна
// задача текущего файла. force сначала отцепляет тег от задач.
// Задачи других файлов каталога не проверяются.
func (s *TagService) Delete(ctx context.Context, name string, force bool) error {
	path, err := s.path()
	if err != nil {
		return err
	}

	lock := s.store.Locker(path)
	lock.Lock()
	defer lock.Unlock()

	tags, err := s.readAll(path)
	if err != nil {
		return err
	}
	if _, ok := tags[name]; !ok {
		return fmt.Errorf("%w: tag %s", storage.ErrNotFound, name)
	}

	count, err := s.countUsage(ctx, name)
	if err != nil {
		return err
	}
	if count > 0 {
		if !force {
			return &TagInUseError{Name: name, Count: count}
		}
		if err := s.tasks.RemoveTag(ctx, name); err != nil {
			return err
		}
	}

	delete(tags, name)
	if err := s.store.Write(path, tags); err != nil {
		return err
	}
	s.clock.Bump()
	return nil
}

// Usage считает ссылки на каждый определенный тег по задачам текущего
// файла. Теги без единой ссылки присутствуют со счетчиком 0.
func (s *TagService) Usage(ctx context.Context) (map[string]int, error) {
	tags, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.All(ctx)
	if err != nil {
		return nil, err
	}

	usage := make(map[string]int, len(tags))
	for name := range tags {
		usage[name] = 0
	}
	for _, t := range tasks {
		for _, tag := range t.Tags {
			if _, ok := usage[tag]; ok {
				usage[tag]++
			}
		}
	}
	return usage, nil
}

func (s *TagService) countUsage(ctx context.Context, name string) (int, error) {
	tasks, err := s.tasks.All(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, t := range tasks {
		if t.HasTag(name) {
			count++
		}
	}
	return count, nil
}

func validateTagName(name string) error {
	n := len([]rune(name))
	if n == 0 || strings.TrimSpace(name) == "" {
		return invalid("name", "must not be empty")
	}
	if n > 50 {
		return invalid("name", "must be at most 50 characters")
	}
	return nil
}

func validateTagFields(color, description string) error {
	if color != "" && !colorRe.MatchString(color) {
		return invalid("color", "must be a hex color like #RRGGBB")
	}
	if len([]rune(description)) > 200 {
		return invalid("description", "must be at most 200 characters")
	}
	return nil
}
