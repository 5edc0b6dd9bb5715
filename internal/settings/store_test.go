package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/model"
	"github.com/taskdesk/taskdesk/internal/storage"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	rec := storage.NewStore(zap.NewNop())
	dataDir := filepath.Join(dir, "data")
	st := NewStore(rec, filepath.Join(dir, "settings.json"), Defaults(dataDir), zap.NewNop())
	return st, dataDir
}

func TestStore_GetMaterializesDefaults(t *testing.T) {
	st, dataDir := newTestStore(t)

	cfg, err := st.Get()
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.Storage.DataDir)
	assert.Equal(t, "tasks.json", cfg.Storage.CurrentTaskFile)
	assert.Empty(t, cfg.Storage.RecentTaskFiles)
	assert.Equal(t, 50, cfg.App.MaxTasksPerPage)
	assert.Equal(t, 10, cfg.App.MaxBackups)
}

func TestStore_UpdateMergesGroups(t *testing.T) {
	st, dataDir := newTestStore(t)

	maxBackups := 3
	cfg, err := st.Update(model.SettingsPatch{
		App: &model.AppSettingsPatch{MaxBackups: &maxBackups},
	})
	require.NoError(t, err)

	// Тронута только app-группа, storage остался дефолтным
	assert.Equal(t, 3, cfg.App.MaxBackups)
	assert.Equal(t, 50, cfg.App.MaxTasksPerPage)
	assert.Equal(t, dataDir, cfg.Storage.DataDir)

	current := "other.json"
	cfg, err = st.Update(model.SettingsPatch{
		Storage: &model.StorageSettingsPatch{CurrentTaskFile: &current},
	})
	require.NoError(t, err)
	assert.Equal(t, "other.json", cfg.Storage.CurrentTaskFile)
	assert.Equal(t, 3, cfg.App.MaxBackups, "предыдущий merge не должен потеряться")
}

func TestStore_UpdateRejectsNonPositive(t *testing.T) {
	st, _ := newTestStore(t)

	zero := 0
	cfg, err := st.Update(model.SettingsPatch{
		App: &model.AppSettingsPatch{MaxTasksPerPage: &zero, MaxBackups: &zero},
	})
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.App.MaxTasksPerPage)
	assert.Equal(t, 10, cfg.App.MaxBackups)
}

func TestStore_Reset(t *testing.T) {
	st, dataDir := newTestStore(t)

	maxBackups := 3
	_, err := st.Update(model.SettingsPatch{
		App: &model.AppSettingsPatch{MaxBackups: &maxBackups},
	})
	require.NoError(t, err)
	require.NoError(t, st.SetCurrentTaskFile("other.json"))

	cfg, err := st.Reset()
	require.NoError(t, err)
	assert.Equal(t, Defaults(dataDir), cfg)
}

func TestStore_SetCurrentTaskFileMRU(t *testing.T) {
	st, _ := newTestStore(t)

	require.NoError(t, st.SetCurrentTaskFile("a.json"))
	require.NoError(t, st.SetCurrentTaskFile("b.json"))
	require.NoError(t, st.SetCurrentTaskFile("a.json"))

	cfg, err := st.Get()
	require.NoError(t, err)
	assert.Equal(t, "a.json", cfg.Storage.CurrentTaskFile)

	recent, err := st.RecentTaskFiles()
	require.NoError(t, err)
	// Дубликат убирается, не накапливается
	assert.Equal(t, []string{"a.json", "b.json"}, recent)
}

func TestStore_RecentFilesCapped(t *testing.T) {
	st, _ := newTestStore(t)

	names := []string{"f00.json", "f01.json", "f02.json", "f03.json", "f04.json",
		"f05.json", "f06.json", "f07.json", "f08.json", "f09.json", "f10.json", "f11.json"}
	for _, n := range names {
		require.NoError(t, st.SetCurrentTaskFile(n))
	}

	recent, err := st.RecentTaskFiles()
	require.NoError(t, err)
	require.Len(t, recent, maxRecentFiles)
	assert.Equal(t, "f11.json", recent[0])
	assert.Equal(t, "f02.json", recent[len(recent)-1])
}

func TestStore_SetDataDir(t *testing.T) {
	st, _ := newTestStore(t)
	target := filepath.Join(t.TempDir(), "new-data")

	require.NoError(t, st.SetDataDir(target))

	cfg, err := st.Get()
	require.NoError(t, err)
	assert.Equal(t, target, cfg.Storage.DataDir)
}

func TestStore_SetDataDirRejectsEmpty(t *testing.T) {
	st, _ := newTestStore(t)
	assert.Error(t, st.SetDataDir("   "))
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	rec := storage.NewStore(zap.NewNop())
	path := filepath.Join(dir, "settings.json")
	defaults := Defaults(filepath.Join(dir, "data"))

	st := NewStore(rec, path, defaults, zap.NewNop())
	require.NoError(t, st.SetCurrentTaskFile("work.json"))

	// Новый инстанс читает то, что записал старый
	st2 := NewStore(rec, path, defaults, zap.NewNop())
	cfg, err := st2.Get()
	require.NoError(t, err)
	assert.Equal(t, "work.json", cfg.Storage.CurrentTaskFile)
	assert.Equal(t, []string{"work.json"}, cfg.Storage.RecentTaskFiles)
}
