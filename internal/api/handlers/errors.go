package handlers

import (
	"errors"
	"net/http"

	"github.com/baharkarakas/iou-backend/internal/api/httpx"
	"github.com/baharkarakas/iou-backend/internal/api/validate"
	"github.com/baharkarakas/iou-backend/internal/directory"
	"github.com/baharkarakas/iou-backend/internal/services"
)

// writeErr maps a service failure onto a status and error code.
func writeErr(w http.ResponseWriter, err error) {
	var (
		ve   *services.ValidationError
		errs validate.Errs
	)
	switch {
	case errors.As(err, &errs):
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid request", errs)
	case errors.As(err, &ve):
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", ve.Error(),
			validate.Errs{{Field: ve.Field, Msg: ve.Message}})
	case errors.Is(err, directory.ErrInvalidUser):
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, directory.ErrUserExists):
		httpx.WriteError(w, http.StatusConflict, "user_exists", "user already exists", nil)
	case errors.Is(err, services.ErrNotFound), errors.Is(err, directory.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, services.ErrConcurrencyConflict):
		w.Header().Set("Retry-After", "1")
		httpx.WriteError(w, http.StatusConflict, "concurrency_conflict", "concurrent update, retry", nil)
	case errors.Is(err, services.ErrStoreUnavailable):
		w.Header().Set("Retry-After", "1")
		httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "store unavailable, retry", nil)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func badRequest(w http.ResponseWriter, err error) {
	httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
}
