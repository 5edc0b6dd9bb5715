package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/cache"
	"github.com/taskdesk/taskdesk/internal/model"
	"github.com/taskdesk/taskdesk/internal/service"
	"github.com/taskdesk/taskdesk/internal/settings"
	"github.com/taskdesk/taskdesk/internal/storage"
	"github.com/taskdesk/taskdesk/pkg/respond"
)

// Имя файла без путей и фокусов: буквы, цифры, точка, дефис,
// подчеркивание; первым — не точка
var filenameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

func normalizeFilename(name string) (string, error) {
	if name == "" {
		return "", &service.ValidationError{Field: "filename", Message: "is required"}
	}
	if !filenameRe.MatchString(name) || strings.Contains(name, "..") {
		return "", &service.ValidationError{Field: "filename", Message: "contains invalid characters"}
	}
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	return name, nil
}

// StorageHandler — листинг/создание task-файлов и операции с бэкапами
// текущего файла
type StorageHandler struct {
	store    *storage.Store
	settings *settings.Store
	clock    *cache.Clock
	logger   *zap.Logger
}

func NewStorageHandler(store *storage.Store, st *settings.Store, clock *cache.Clock, logger *zap.Logger) *StorageHandler {
	return &StorageHandler{
		store:    store,
		settings: st,
		clock:    clock,
		logger:   logger,
	}
}

func (h *StorageHandler) currentPath() (string, error) {
	cfg, err := h.settings.Get()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.Storage.DataDir, cfg.Storage.CurrentTaskFile), nil
}

func (h *StorageHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Get()
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	ext := r.URL.Query().Get("extension")
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	files, err := h.store.ListFiles(cfg.Storage.DataDir, ext)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, files)
}

func (h *StorageHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	name, err := normalizeFilename(req.Filename)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	cfg, err := h.settings.Get()
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	path := filepath.Join(cfg.Storage.DataDir, name)
	if h.store.Exists(path) {
		handleErrors(h.logger, w, r, fmt.Errorf("%w: %s", storage.ErrConflict, name))
		return
	}

	if err := h.store.Write(path, []model.Task{}); err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusCreated, map[string]string{"filename": name})
}

func (h *StorageHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	path, err := h.currentPath()
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	name, err := h.store.Backup(path)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusCreated, map[string]string{"backup": name})
}

func (h *StorageHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	path, err := h.currentPath()
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	backups, err := h.store.ListBackups(path)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, backups)
}

func (h *StorageHandler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	path, err := h.currentPath()
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	if err := h.store.Restore(path, chi.URLParam(r, "name")); err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	// Данные под клиентскими кэшами поменялись
	h.clock.Bump()
	w.WriteHeader(http.StatusNoContent)
}
