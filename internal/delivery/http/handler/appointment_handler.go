package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"clinic-booking/internal/converter"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/delivery/http/middleware"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/response"
	"clinic-booking/pkg/validator"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const streamKeepAlive = 25 * time.Second

type AppointmentHandler struct {
	log                *logrus.Logger
	appointmentUsecase usecase.AppointmentUsecase
	validator          *validator.CustomValidator
}

func NewAppointmentHandler(log *logrus.Logger, appointmentUsecase usecase.AppointmentUsecase, validator *validator.CustomValidator) *AppointmentHandler {
	return &AppointmentHandler{
		log:                log,
		appointmentUsecase: appointmentUsecase,
		validator:          validator,
	}
}

func listsToResponse(lists *usecase.AppointmentLists) *dto.AppointmentListResponse {
	return &dto.AppointmentListResponse{
		Upcoming: converter.AppointmentsToResponses(lists.Upcoming),
		Past:     converter.AppointmentsToResponses(lists.Past),
		Stale:    lists.Stale,
	}
}

func (h *AppointmentHandler) writeLists(w http.ResponseWriter, lists *usecase.AppointmentLists) {
	resp := listsToResponse(lists)
	meta := &response.Meta{
		Total:  len(resp.Upcoming) + len(resp.Past),
		Stale:  lists.Stale,
		Reason: staleReason(lists.FetchErr),
	}
	response.SuccessWithMeta(w, http.StatusOK, "Appointments retrieved successfully", resp, meta)
}

func (h *AppointmentHandler) GetMyAppointments(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	lists, err := h.appointmentUsecase.ListForPatient(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to get appointments")
		return
	}

	h.writeLists(w, lists)
}

func (h *AppointmentHandler) GetDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	lists, err := h.appointmentUsecase.ListForDoctor(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to get appointments")
		return
	}

	h.writeLists(w, lists)
}

func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req dto.BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	appointment, err := h.appointmentUsecase.Book(r.Context(), usecase.BookRequest{
		DoctorID:           req.DoctorID,
		PatientUserID:      userID,
		PatientDisplayName: req.PatientName,
		FamilyMemberID:     req.FamilyMemberID,
		Slot:               entity.Slot{Date: req.SlotDate, Time: req.SlotTime},
		Location:           req.Location,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrDoctorNotFound):
			response.NotFound(w, "Doctor not found")
		case errors.Is(err, usecase.ErrFamilyMemberNotFound):
			response.NotFound(w, "Family member not found")
		case errors.Is(err, usecase.ErrInvalidSlot):
			response.BadRequest(w, "Invalid slot, use YYYY-MM-DD and HH:MM")
		case errors.Is(err, usecase.ErrSlotInPast):
			response.BadRequest(w, "Cannot book a slot in the past")
		case errors.Is(err, usecase.ErrDoctorUnavailable):
			response.Conflict(w, "Doctor is not accepting appointments")
		case errors.Is(err, usecase.ErrSlotTaken):
			response.Conflict(w, "Slot is already booked")
		default:
			writeError(w, err, "Failed to book appointment")
		}
		return
	}

	response.Success(w, http.StatusCreated, "Appointment booked successfully", converter.AppointmentToResponse(appointment))
}

func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid appointment ID", nil)
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	role, _ := middleware.GetRoleFromContext(r.Context())

	err := h.appointmentUsecase.Cancel(r.Context(), usecase.Actor{UserID: userID, Role: role}, appointmentID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrAppointmentNotFound):
			response.NotFound(w, "Appointment not found")
		case errors.Is(err, usecase.ErrAppointmentAlreadyCancelled):
			response.Conflict(w, "Appointment is already cancelled")
		case errors.Is(err, usecase.ErrAppointmentNotUpcoming):
			response.Conflict(w, "Only upcoming appointments can be cancelled")
		default:
			writeError(w, err, "Failed to cancel appointment")
		}
		return
	}

	response.Success(w, http.StatusOK, "Appointment cancelled successfully", nil)
}

// StreamAppointments pushes the caller's appointment lists as server-sent
// events: the current lists first, then a fresh copy after every change.
// Doctors receive their own schedule, everyone else their bookings.
func (h *AppointmentHandler) StreamAppointments(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming unsupported")
		return
	}

	ctx := r.Context()
	userID, _ := middleware.GetUserIDFromContext(ctx)
	role, _ := middleware.GetRoleFromContext(ctx)

	scope := usecase.WatchScope{Field: entity.FieldUserID, ID: userID}
	list := h.appointmentUsecase.ListForPatient
	if role == entity.RoleDoctor {
		scope.Field = entity.FieldDoctorID
		list = h.appointmentUsecase.ListForDoctor
	}

	watch, err := h.appointmentUsecase.Watch(ctx, scope)
	if err != nil {
		writeError(w, err, "Failed to watch appointments")
		return
	}
	defer watch.Close()

	initial, err := list(ctx, userID)
	if err != nil {
		writeError(w, err, "Failed to get appointments")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := h.writeEvent(w, flusher, initial); err != nil {
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case lists, ok := <-watch.Updates():
			if !ok {
				return
			}
			if err := h.writeEvent(w, flusher, lists); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *AppointmentHandler) writeEvent(w http.ResponseWriter, flusher http.Flusher, lists *usecase.AppointmentLists) error {
	payload, err := json.Marshal(listsToResponse(lists))
	if err != nil {
		h.log.Warnf("Failed to encode appointment event: %+v", err)
		return err
	}
	if _, err := fmt.Fprintf(w, "event: appointments\ndata: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
