package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/model"
	"github.com/taskdesk/taskdesk/internal/service"
	"github.com/taskdesk/taskdesk/pkg/respond"
)

type TaskHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewTaskHandler(srv *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: srv,
		logger:  logger,
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var req model.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	task, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/tasks/%s", task.ID))
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, http.StatusNotFound, "not found")
		return
	}

	task, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	tasks, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	// Списку memo не отдаем, это деталь карточки
	for i := range tasks {
		tasks[i].Memo = ""
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, http.StatusNotFound, "not found")
		return
	}

	var req model.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, http.StatusNotFound, "not found")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, http.StatusNotFound, "not found")
		return
	}

	var req struct {
		Completed *bool `json:"completed"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, r, http.StatusBadRequest, "invalid json")
			return
		}
	}

	task, err := h.service.Toggle(r.Context(), id, req.Completed)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) SetMemo(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, http.StatusNotFound, "not found")
		return
	}

	var req struct {
		Memo string `json:"memo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := h.service.SetMemo(r.Context(), id, req.Memo)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) TagsInUse(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.TagsInUse(r.Context())
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, names)
}

func parseFilter(r *http.Request) (model.TaskFilter, error) {
	var filter model.TaskFilter
	q := r.URL.Query()

	switch status := q.Get("status"); status {
	case "", "all":
	case "active":
		v := false
		filter.Completed = &v
	case "completed":
		v := true
		filter.Completed = &v
	default:
		return filter, &service.ValidationError{Field: "status", Message: "must be one of all, active, completed"}
	}

	if p := q.Get("priority"); p != "" {
		priority := model.Priority(p)
		if !priority.Valid() {
			return filter, &service.ValidationError{Field: "priority", Message: "must be one of high, medium, low"}
		}
		filter.Priority = &priority
	}
	if tag := q.Get("tag"); tag != "" {
		filter.Tag = &tag
	}
	if search := q.Get("search"); search != "" {
		filter.Search = &search
	}
	if d := q.Get("dueDate"); d != "" {
		filter.DueDate = &d
	}

	switch sortBy := q.Get("sortBy"); sortBy {
	case "", "createdAt", "updatedAt", "dueDate", "priority", "title":
		filter.SortBy = sortBy
	default:
		return filter, &service.ValidationError{Field: "sortBy", Message: "unknown sort key"}
	}

	switch dir := q.Get("sortDirection"); dir {
	case "", "asc":
	case "desc":
		filter.SortDesc = true
	default:
		return filter, &service.ValidationError{Field: "sortDirection", Message: "must be asc or desc"}
	}

	return filter, nil
}
