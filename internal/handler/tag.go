package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/model"
	"github.com/taskdesk/taskdesk/internal/service"
	"github.com/taskdesk/taskdesk/pkg/respond"
)

type TagHandler struct {
	service *service.TagService
	logger  *zap.Logger
}

func NewTagHandler(srv *service.TagService, logger *zap.Logger) *TagHandler {
	return &TagHandler{
		service: srv,
		logger:  logger,
	}
}

func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.List(r.Context())
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, tags)
}

func (h *TagHandler) Get(w http.ResponseWriter, r *http.Request) {
	tag, err := h.service.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, tag)
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var req model.TagInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	tag, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/tags/%s", tag.Name))
	respond.JSON(w, r, http.StatusCreated, tag)
}

func (h *TagHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.TagPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	tag, err := h.service.Update(r.Context(), chi.URLParam(r, "name"), req)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, tag)
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "name"), force); err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TagHandler) Usage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.service.Usage(r.Context())
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, usage)
}
