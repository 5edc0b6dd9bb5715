package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/cache"
	"github.com/taskdesk/taskdesk/internal/handler"
	"github.com/taskdesk/taskdesk/internal/service"
	"github.com/taskdesk/taskdesk/internal/settings"
	"github.com/taskdesk/taskdesk/internal/storage"
)

// Env — полный стек поверх временного каталога
type Env struct {
	Server   *httptest.Server
	Store    *storage.Store
	Settings *settings.Store
	Tasks    *service.TaskService
	Tags     *service.TagService
	Clock    *cache.Clock
	DataDir  string
}

// SetupEnv поднимает сервис целиком: хранилище, настройки, сервисы,
// роутер — все поверх t.TempDir()
func SetupEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	logger := zap.NewNop()

	store := storage.NewStore(logger)
	settingsStore := settings.NewStore(store,
		filepath.Join(dir, "settings.json"),
		settings.Defaults(dataDir),
		logger,
	)

	clock := cache.NewClock()
	taskService := service.NewTaskService(store, settingsStore, clock, logger)
	tagService := service.NewTagService(store, settingsStore, taskService, clock, logger)

	r := handler.NewRouter(clock,
		handler.NewTaskHandler(taskService, logger),
		handler.NewTagHandler(tagService, logger),
		handler.NewSettingsHandler(settingsStore, logger),
		handler.NewStorageHandler(store, settingsStore, clock, logger),
	)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &Env{
		Server:   server,
		Store:    store,
		Settings: settingsStore,
		Tasks:    taskService,
		Tags:     tagService,
		Clock:    clock,
		DataDir:  dataDir,
	}
}

// DoJSON шлет запрос с JSON-телом и отдает статус и сырое тело ответа
func DoJSON(t *testing.T, method, url string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp.StatusCode, data
}

// WaitForCondition ждет выполнения условия с таймаутом
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
