package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/model"
	"github.com/taskdesk/taskdesk/internal/service"
	"github.com/taskdesk/taskdesk/internal/settings"
	"github.com/taskdesk/taskdesk/pkg/respond"
)

type SettingsHandler struct {
	settings *settings.Store
	logger   *zap.Logger
}

func NewSettingsHandler(st *settings.Store, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: st,
		logger:   logger,
	}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Get()
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, cfg)
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	cfg, err := h.settings.Update(req)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, cfg)
}

func (h *SettingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Reset()
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, cfg)
}

func (h *SettingsHandler) SetDataDir(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DataDir string `json:"dataDir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DataDir == "" {
		handleErrors(h.logger, w, r, &service.ValidationError{Field: "dataDir", Message: "is required"})
		return
	}

	if err := h.settings.SetDataDir(req.DataDir); err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SettingsHandler) SetCurrentFile(w http.ResponseWriter, r *http.Request) {
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

	if err := h.settings.SetCurrentTaskFile(name); err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SettingsHandler) RecentFiles(w http.ResponseWriter, r *http.Request) {
	recent, err := h.settings.RecentTaskFiles()
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, recent)
}
