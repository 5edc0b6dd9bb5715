package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/cache"
	"github.com/taskdesk/taskdesk/internal/model"
	"github.com/taskdesk/taskdesk/internal/settings"
	"github.com/taskdesk/taskdesk/internal/storage"
)

var ErrValidation = errors.New("validation error")

// ValidationError несет имя поля для структурированного ответа клиенту
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// TaskService — CRUD поверх текущего task-файла. Файл разрешается через
// настройки на каждую операцию и перечитывается целиком: никакой копии
// коллекции между вызовами не живет. Мутация = read-modify-write под
// замком файла, иначе параллельные записи теряют друг друга.
type TaskService struct {
	store    *storage.Store
	settings *settings.Store
	clock    *cache.Clock
	logger   *zap.Logger
	now      func() time.Time
}

func NewTaskService(store *storage.Store, st *settings.Store, clock *cache.Clock, logger *zap.Logger) *TaskService {
	return &TaskService{
		store:    store,
		settings: st,
		clock:    clock,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *TaskService) currentPath() (string, error) {
	cfg, err := s.settings.Get()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.Storage.DataDir, cfg.Storage.CurrentTaskFile), nil
}

func (s *TaskService) readAll(path string) ([]model.Task, error) {
	return storage.Read(s.store, path, []model.Task{})
}

// All возвращает коллекцию как есть, без фильтра и ограничения размера.
// Этим читателем пользуется реестр тегов.
func (s *TaskService) All(ctx context.Context) ([]model.Task, error) {
	path, err := s.currentPath()
	if err != nil {
		return nil, err
	}
	return s.readAll(path)
}

// List фильтрует и сортирует коллекцию. Сортировка стабильная: при
// равенстве ключей сохраняется порядок вставки. Размер ответа ограничен
// app.maxTasksPerPage.
func (s *TaskService) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	cfg, err := s.settings.Get()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.Storage.DataDir, cfg.Storage.CurrentTaskFile)

	tasks, err := s.readAll(path)
	if err != nil {
		return nil, err
	}

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if matches(t, filter) {
			out = append(out, t)
		}
	}
	sortTasks(out, filter)

	if max := cfg.App.MaxTasksPerPage; max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (model.Task, error) {
	path, err := s.currentPath()
	if err != nil {
		return model.Task{}, err
	}
	tasks, err := s.readAll(path)
	if err != nil {
		return model.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Task{}, fmt.Errorf("%w: task %s", storage.ErrNotFound, id)
}

func (s *TaskService) Create(ctx context.Context, in model.TaskInput) (model.Task, error) {
	if err := validateInput(in); err != nil {
		return model.Task{}, err
	}

	path, err := s.currentPath()
	if err != nil {
		return model.Task{}, err
	}

	lock := s.store.Locker(path)
	lock.Lock()
	defer lock.Unlock()

	tasks, err := s.readAll(path)
	if err != nil {
		return model.Task{}, err
	}

	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	now := s.now().UTC()
	task := model.Task{
		ID:        freshID(tasks),
		Title:     strings.TrimSpace(in.Title),
		Completed: false,
		Priority:  priority,
		Tags:      normalizeTags(in.Tags),
		DueDate:   in.DueDate,
		Memo:      in.Memo,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tasks = append(tasks, task)
	if err := s.store.Write(path, tasks); err != nil {
		return model.Task{}, err
	}
	s.clock.Bump()
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, id uuid.UUID, p model.TaskPatch) (model.Task, error) {
	if err := validatePatch(p); err != nil {
		return model.Task{}, err
	}
	return s.mutate(ctx, id, func(t *model.Task) {
		if p.Title != nil {
			t.Title = strings.TrimSpace(*p.Title)
		}
		if p.Priority != nil {
			t.Priority = *p.Priority
		}
		if p.Tags != nil {
			t.Tags = normalizeTags(*p.Tags)
		}
		if p.DueDate != nil {
			t.DueDate = *p.DueDate
		}
		if p.Memo != nil {
			t.Memo = *p.Memo
		}
		if p.Completed != nil {
			s.setCompleted(t, *p.Completed)
		}
	})
}

func (s *TaskService) Delete(ctx context.Context, id uuid.UUID) error {
	path, err := s.currentPath()
	if err != nil {
		return err
	}

	lock := s.store.Locker(path)
	lock.Lock()
	defer lock.Unlock()

	tasks, err := s.readAll(path)
	if err != nil {
		return err
	}

	idx := -1
	for i, t := range tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: task %s", storage.ErrNotFound, id)
	}

	tasks = append(tasks[:idx], tasks[idx+1:]...)
	if err := s.store.Write(path, tasks); err != nil {
		return err
	}
	s.clock.Bump()
	return nil
}

// Toggle переключает completed; explicit задает значение напрямую.
// completedAt живет строго в паре с completed: ставится на переходе в
// true, сбрасывается на переходе в false.
func (s *TaskService) Toggle(ctx context.Context, id uuid.UUID, explicit *bool) (model.Task, error) {
	return s.mutate(ctx, id, func(t *model.Task) {
		target := !t.Completed
		if explicit != nil {
			target = *explicit
		}
		s.setCompleted(t, target)
	})
}

func (s *TaskService) SetMemo(ctx context.Context, id uuid.UUID, memo string) (model.Task, error) {
	if len([]rune(memo)) > 1000 {
		return model.Task{}, invalid("memo", "must be at most 1000 characters")
	}
	return s.mutate(ctx, id, func(t *model.Task) {
		t.Memo = memo
	})
}

// TagsInUse — множество имен тегов, встречающихся в живой коллекции.
// Отдельного индекса нет, каждый вызов сканирует файл заново.
func (s *TaskService) TagsInUse(ctx context.Context) ([]string, error) {
	tasks, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, t := range tasks {
		for _, tag := range t.Tags {
			if _, ok := seen[tag]; !ok {
				seen[tag] = struct{}{}
				names = append(names, tag)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// RemoveTag вычищает имя тега из всех задач файла. Принудительный путь
// для вызывающих, готовых отцепить тег, не трогая его определение.
func (s *TaskService) RemoveTag(ctx context.Context, name string) error {
	path, err := s.currentPath()
	if err != nil {
		return err
	}

	lock := s.store.Locker(path)
	lock.Lock()
	defer lock.Unlock()

	tasks, err := s.readAll(path)
	if err != nil {
		return err
	}

	changed := false
	now := s.now().UTC()
	for i := range tasks {
		if !tasks[i].HasTag(name) {
			continue
		}
		kept := make([]string, 0, len(tasks[i].Tags)-1)
		for _, tag := range tasks[i].Tags {
			if tag != name {
				kept = append(kept, tag)
			}
		}
		tasks[i].Tags = kept
		tasks[i].UpdatedAt = now
		changed = true
	}
	if !changed {
		return nil
	}

	if err := s.store.Write(path, tasks); err != nil {
		return err
	}
	s.clock.Bump()
	return nil
}

func (s *TaskService) mutate(ctx context.Context, id uuid.UUID, apply func(*model.Task)) (model.Task, error) {
	path, err := s.currentPath()
	if err != nil {
		return model.Task{}, err
	}

	lock := s.store.Locker(path)
	lock.Lock()
	defer lock.Unlock()

	tasks, err := s.readAll(path)
	if err != nil {
		return model.Task{}, err
	}

	for i := range tasks {
		if tasks[i].ID != id {
			continue
		}
		apply(&tasks[i])
		tasks[i].UpdatedAt = s.now().UTC()

		if err := s.store.Write(path, tasks); err != nil {
			return model.Task{}, err
		}
		s.clock.Bump()
		return tasks[i], nil
	}
	return model.Task{}, fmt.Errorf("%w: task %s", storage.ErrNotFound, id)
}

func (s *TaskService) setCompleted(t *model.Task, completed bool) {
	if completed == t.Completed {
		return
	}
	t.Completed = completed
	if completed {
		now := s.now().UTC()
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
}

// freshID перегенерирует uuid при коллизии внутри файла. Между файлами
// уникальность не гарантируется и не нужна.
func freshID(tasks []model.Task) uuid.UUID {
	for {
		id := uuid.New()
		taken := false
		for _, t := range tasks {
			if t.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func validateInput(in model.TaskInput) error {
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return invalid("priority", "must be one of high, medium, low")
	}
	if err := validateTags(in.Tags); err != nil {
		return err
	}
	if err := validateDueDate(in.DueDate); err != nil {
		return err
	}
	if len([]rune(in.Memo)) > 1000 {
		return invalid("memo", "must be at most 1000 characters")
	}
	return nil
}

func validatePatch(p model.TaskPatch) error {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return invalid("priority", "must be one of high, medium, low")
	}
	if p.Tags != nil {
		if err := validateTags(*p.Tags); err != nil {
			return err
		}
	}
	if p.DueDate != nil {
		if err := validateDueDate(*p.DueDate); err != nil {
			return err
		}
	}
	if p.Memo != nil && len([]rune(*p.Memo)) > 1000 {
		return invalid("memo", "must be at most 1000 characters")
	}
	return nil
}

func validateTitle(title string) error {
	n := len([]rune(strings.TrimSpace(title)))
	if n == 0 {
		return invalid("title", "must not be empty")
	}
	if n > 100 {
		return invalid("title", "must be at most 100 characters")
	}
	return nil
}

func validateTags(tags []string) error {
	for _, tag := range tags {
		if n := len([]rune(tag)); n == 0 || n > 50 {
			return invalid("tags", "tag names must be 1-50 characters")
		}
	}
	return nil
}

func validateDueDate(d string) error {
	if d == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", d); err != nil {
		return invalid("dueDate", "must be a date in YYYY-MM-DD format")
	}
	return nil
}

func matches(t model.Task, f model.TaskFilter) bool {
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Tag != nil && !t.HasTag(*f.Tag) {
		return false
	}
	if f.Search != nil && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(*f.Search)) {
		return false
	}
	if f.DueDate != nil && t.DueDate != *f.DueDate {
		return false
	}
	return true
}

func sortTasks(tasks []model.Task, f model.TaskFilter) {
	key := f.SortBy
	if key == "" {
		key = "createdAt"
	}

	var less func(a, b model.Task) bool
	switch key {
	case "updatedAt":
		less = func(a, b model.Task) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case "dueDate":
		less = func(a, b model.Task) bool { return a.DueDate < b.DueDate }
	case "priority":
		less = func(a, b model.Task) bool { return a.Priority.Rank() < b.Priority.Rank() }
	case "title":
		less = func(a, b model.Task) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	default:
		less = func(a, b model.Task) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if f.SortDesc {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}
