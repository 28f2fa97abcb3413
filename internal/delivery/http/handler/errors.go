package handler

import (
	"errors"
	"net/http"

	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/response"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// writeError maps the errors shared by every usecase. fallback is the message
// for anything unexpected.
func writeError(w http.ResponseWriter, err error, fallback string) {
	var invalid *entity.InvalidTransitionError
	switch {
	case errors.Is(err, usecase.ErrBackendUnavailable):
		response.ServiceUnavailable(w, "Backend is unreachable, try again later")
	case errors.Is(err, usecase.ErrVerificationPending),
		errors.Is(err, usecase.ErrVerificationRejected),
		errors.Is(err, usecase.ErrNotDoctor),
		errors.Is(err, usecase.ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, usecase.ErrProfileNotFound):
		response.NotFound(w, "Profile not found")
	case errors.As(err, &invalid):
		response.Conflict(w, invalid.Error())
	default:
		response.InternalServerError(w, fallback)
	}
}

func pathID(r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[key])
	return id, err == nil
}

func staleReason(err error) string {
	if err == nil {
		return ""
	}
	return "backend unreachable, showing last known data"
}
