package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/cache"
	"github.com/taskdesk/taskdesk/internal/model"
	"github.com/taskdesk/taskdesk/internal/settings"
	"github.com/taskdesk/taskdesk/internal/storage"
)

func newTaskService(t *testing.T) (*TaskService, *settings.Store) {
	t.Helper()
	dir := t.TempDir()
	rec := storage.NewStore(zap.NewNop())
	st := settings.NewStore(rec,
		filepath.Join(dir, "settings.json"),
		settings.Defaults(filepath.Join(dir, "data")),
		zap.NewNop(),
	)
	return NewTaskService(rec, st, cache.NewClock(), zap.NewNop()), st
}

func TestTaskService_CreateDefaults(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	task, err := svc.Create(ctx, model.TaskInput{Title: "Buy milk"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, "Buy milk", task.Title)
	assert.False(t, task.Completed)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Empty(t, task.Tags)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)
	assert.Equal(t, now, task.CreatedAt)

	got, err := svc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task, got)
}

func TestTaskService_CreateValidation(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	long := make([]rune, 101)
	for i := range long {
		long[i] = 'x'
	}
	longMemo := make([]rune, 1001)
	for i := range longMemo {
		longMemo[i] = 'y'
	}

	tests := []struct {
		name  string
		input model.TaskInput
		field string
	}{
		{"empty title", model.TaskInput{Title: ""}, "title"},
		{"whitespace title", model.TaskInput{Title: "   "}, "title"},
		{"title too long", model.TaskInput{Title: string(long)}, "title"},
		{"bad priority", model.TaskInput{Title: "ok", Priority: "urgent"}, "priority"},
		{"bad due date", model.TaskInput{Title: "ok", DueDate: "01/03/2026"}, "dueDate"},
		{"empty tag", model.TaskInput{Title: "ok", Tags: []string{""}}, "tags"},
		{"memo too long", model.TaskInput{Title: "ok", Memo: string(longMemo)}, "memo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestTaskService_ToggleIdempotence(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, model.TaskInput{Title: "Buy milk"})
	require.NoError(t, err)

	done, err := svc.Toggle(ctx, task.ID, nil)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	require.NotNil(t, done.CompletedAt)

	// Второй toggle возвращает исходное состояние
	back, err := svc.Toggle(ctx, task.ID, nil)
	require.NoError(t, err)
	assert.False(t, back.Completed)
	assert.Nil(t, back.CompletedAt)
}

func TestTaskService_ToggleExplicit(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, model.TaskInput{Title: "explicit"})
	require.NoError(t, err)

	tr := true
	done, err := svc.Toggle(ctx, task.ID, &tr)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	stamp := done.CompletedAt

	// explicit=true на уже завершенной задаче ничего не меняет
	again, err := svc.Toggle(ctx, task.ID, &tr)
	require.NoError(t, err)
	assert.True(t, again.Completed)
	assert.Equal(t, stamp, again.CompletedAt)

	fa := false
	active, err := svc.Toggle(ctx, task.ID, &fa)
	require.NoError(t, err)
	assert.False(t, active.Completed)
	assert.Nil(t, active.CompletedAt)
}

func TestTaskService_UpdatePartial(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, model.TaskInput{
		Title:    "original",
		Priority: model.PriorityLow,
		Memo:     "keep me",
	})
	require.NoError(t, err)

	title := "renamed"
	updated, err := svc.Update(ctx, task.ID, model.TaskPatch{Title: &title})
	require.NoError(t, err)

	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, model.PriorityLow, updated.Priority, "не переданные поля не трогаем")
	assert.Equal(t, "keep me", updated.Memo)
	assert.Equal(t, task.CreatedAt, updated.CreatedAt)

	// completed через patch тоже двигает completedAt
	tr := true
	updated, err = svc.Update(ctx, task.ID, model.TaskPatch{Completed: &tr})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.NotNil(t, updated.CompletedAt)
}

func TestTaskService_UpdateMissing(t *testing.T) {
	svc, _ := newTaskService(t)

	title := "ghost"
	_, err := svc.Update(context.Background(), uuid.New(), model.TaskPatch{Title: &title})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTaskService_DeleteScenario(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, model.TaskInput{Title: "Buy milk"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, task.ID))

	_, err = svc.Get(ctx, task.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	all, err := svc.List(ctx, model.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.ErrorIs(t, svc.Delete(ctx, task.ID), storage.ErrNotFound)
}

func TestTaskService_SetMemo(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, model.TaskInput{Title: "memo"})
	require.NoError(t, err)

	updated, err := svc.SetMemo(ctx, task.ID, "some **markdown**")
	require.NoError(t, err)
	assert.Equal(t, "some **markdown**", updated.Memo)

	updated, err = svc.SetMemo(ctx, task.ID, "")
	require.NoError(t, err)
	assert.Empty(t, updated.Memo)
}

func TestTaskService_IDUniqueness(t *testing.T) {
	// Свойство генератора: 10k последовательных id без коллизий
	tasks := make([]model.Task, 0, 10_000)
	seen := make(map[uuid.UUID]struct{}, 10_000)
	for i := 0; i < 10_000; i++ {
		id := freshID(tasks)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id at %d", i)
		seen[id] = struct{}{}
		tasks = append(tasks, model.Task{ID: id})
	}

	if testing.Short() {
		t.Skip("skipping full create path in short mode")
	}

	// И путь целиком, через запись файла
	svc, _ := newTaskService(t)
	ctx := context.Background()
	ids := make(map[uuid.UUID]struct{})
	for i := 0; i < 300; i++ {
		task, err := svc.Create(ctx, model.TaskInput{Title: "dup check"})
		require.NoError(t, err)
		_, dup := ids[task.ID]
		require.False(t, dup)
		ids[task.ID] = struct{}{}
	}
}

func TestTaskService_ListFilters(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	seed := []model.TaskInput{
		{Title: "Buy milk", Priority: model.PriorityHigh, Tags: []string{"errands"}, DueDate: "2026-03-02"},
		{Title: "Write report", Priority: model.PriorityLow, Tags: []string{"work"}},
		{Title: "Buy stamps", Priority: model.PriorityMedium, Tags: []string{"errands", "post"}, DueDate: "2026-03-05"},
		{Title: "Call mom", Priority: model.PriorityHigh},
	}
	created := make([]model.Task, 0, len(seed))
	for _, in := range seed {
		task, err := svc.Create(ctx, in)
		require.NoError(t, err)
		created = append(created, task)
	}
	_, err := svc.Toggle(ctx, created[1].ID, nil)
	require.NoError(t, err)

	titles := func(tasks []model.Task) []string {
		out := make([]string, len(tasks))
		for i, task := range tasks {
			out[i] = task.Title
		}
		return out
	}

	t.Run("by tag", func(t *testing.T) {
		tag := "errands"
		got, err := svc.List(ctx, model.TaskFilter{Tag: &tag})
		require.NoError(t, err)
		assert.Equal(t, []string{"Buy milk", "Buy stamps"}, titles(got))
	})

	t.Run("by completed", func(t *testing.T) {
		completed := true
		got, err := svc.List(ctx, model.TaskFilter{Completed: &completed})
		require.NoError(t, err)
		assert.Equal(t, []string{"Write report"}, titles(got))
	})

	t.Run("by priority", func(t *testing.T) {
		high := model.PriorityHigh
		got, err := svc.List(ctx, model.TaskFilter{Priority: &high})
		require.NoError(t, err)
		assert.Equal(t, []string{"Buy milk", "Call mom"}, titles(got))
	})

	t.Run("search is case-insensitive", func(t *testing.T) {
		q := "buy"
		got, err := svc.List(ctx, model.TaskFilter{Search: &q})
		require.NoError(t, err)
		assert.Equal(t, []string{"Buy milk", "Buy stamps"}, titles(got))
	})

	t.Run("by due date", func(t *testing.T) {
		d := "2026-03-05"
		got, err := svc.List(ctx, model.TaskFilter{DueDate: &d})
		require.NoError(t, err)
		assert.Equal(t, []string{"Buy stamps"}, titles(got))
	})

	t.Run("sort by priority desc, stable ties", func(t *testing.T) {
		got, err := svc.List(ctx, model.TaskFilter{SortBy: "priority", SortDesc: true})
		require.NoError(t, err)
		// Buy milk и Call mom оба high: порядок вставки сохраняется
		assert.Equal(t, []string{"Buy milk", "Call mom", "Buy stamps", "Write report"}, titles(got))
	})

	t.Run("sort by title", func(t *testing.T) {
		got, err := svc.List(ctx, model.TaskFilter{SortBy: "title"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Buy milk", "Buy stamps", "Call mom", "Write report"}, titles(got))
	})

	t.Run("default sort is creation order", func(t *testing.T) {
		got, err := svc.List(ctx, model.TaskFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Buy milk", "Write report", "Buy stamps", "Call mom"}, titles(got))
	})
}

func TestTaskService_ListClampedByPageSize(t *testing.T) {
	svc, st := newTaskService(t)
	ctx := context.Background()

	pageSize := 2
	_, err := st.Update(model.SettingsPatch{
		App: &model.AppSettingsPatch{MaxTasksPerPage: &pageSize},
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, model.TaskInput{Title: "task"})
		require.NoError(t, err)
	}

	got, err := svc.List(ctx, model.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5, "All не ограничивается страницей")
}

func TestTaskService_RemoveTag(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, model.TaskInput{Title: "a", Tags: []string{"x", "y"}})
	require.NoError(t, err)
	b, err := svc.Create(ctx, model.TaskInput{Title: "b", Tags: []string{"x"}})
	require.NoError(t, err)
	c, err := svc.Create(ctx, model.TaskInput{Title: "c", Tags: []string{"z"}})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveTag(ctx, "x"))

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, got.Tags)

	got, err = svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	got, err = svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, got.Tags, "незадействованные задачи не трогаем")

	names, err := svc.TagsInUse(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, names)
}

func TestTaskService_SwitchingFilesIsolatesTasks(t *testing.T) {
	svc, st := newTaskService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, model.TaskInput{Title: "in default file"})
	require.NoError(t, err)

	require.NoError(t, st.SetCurrentTaskFile("other.json"))

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = svc.Create(ctx, model.TaskInput{Title: "in other file"})
	require.NoError(t, err)

	require.NoError(t, st.SetCurrentTaskFile("tasks.json"))
	all, err = svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "in default file", all[0].Title)
}
