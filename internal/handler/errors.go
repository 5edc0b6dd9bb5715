package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/service"
	"github.com/taskdesk/taskdesk/internal/storage"
	"github.com/taskdesk/taskdesk/pkg/respond"
)

// handleErrors переводит доменные ошибки в HTTP-ответы. Ошибки
// хранилища не глотаем: операция падает и уходит 500-кой в лог.
func handleErrors(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var vErr *service.ValidationError
	var tagErr *service.TagInUseError

	switch {
	case errors.As(err, &vErr):
		respond.ErrorDetail(w, r, http.StatusBadRequest, "validation error", map[string]interface{}{
			"field":  vErr.Field,
			"detail": vErr.Message,
		})
	case errors.As(err, &tagErr):
		respond.ErrorDetail(w, r, http.StatusBadRequest, "tag in use", map[string]interface{}{
			"tag":   tagErr.Name,
			"count": tagErr.Count,
		})
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, "validation error")
	case errors.Is(err, storage.ErrInvalidName):
		respond.Error(w, r, http.StatusBadRequest, "invalid name")
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, storage.ErrCorruptData):
		logger.Error("corrupt data file", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "corrupt data file")
	default:
		logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
