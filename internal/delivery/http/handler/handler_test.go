package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"clinic-booking/internal/delivery/http/middleware"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/validator"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) ListDoctors(ctx context.Context, filter usecase.DoctorFilter) (*usecase.DirectoryResult, error) {
	args := m.Called(ctx, filter)
	result, _ := args.Get(0).(*usecase.DirectoryResult)
	return result, args.Error(1)
}

func (m *mockDirectory) GetDoctor(ctx context.Context, id uuid.UUID) (*entity.Doctor, error) {
	args := m.Called(ctx, id)
	doctor, _ := args.Get(0).(*entity.Doctor)
	return doctor, args.Error(1)
}

func (m *mockDirectory) ListFavorites(ctx context.Context, userID uuid.UUID) (*usecase.DirectoryResult, error) {
	args := m.Called(ctx, userID)
	result, _ := args.Get(0).(*usecase.DirectoryResult)
	return result, args.Error(1)
}

func (m *mockDirectory) ListClinics(ctx context.Context) (*usecase.ClinicListResult, error) {
	args := m.Called(ctx)
	result, _ := args.Get(0).(*usecase.ClinicListResult)
	return result, args.Error(1)
}

func (m *mockDirectory) GetClinic(ctx context.Context, id uuid.UUID) (*usecase.ClinicDirectory, bool, error) {
	args := m.Called(ctx, id)
	clinic, _ := args.Get(0).(*usecase.ClinicDirectory)
	return clinic, args.Bool(1), args.Error(2)
}

type mockAppointments struct {
	mock.Mock
	usecase.AppointmentUsecase
}

func (m *mockAppointments) Book(ctx context.Context, req usecase.BookRequest) (*entity.Appointment, error) {
	args := m.Called(ctx, req)
	appointment, _ := args.Get(0).(*entity.Appointment)
	return appointment, args.Error(1)
}

func (m *mockAppointments) Cancel(ctx context.Context, actor usecase.Actor, appointmentID uuid.UUID) error {
	return m.Called(ctx, actor, appointmentID).Error(0)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Total   int    `json:"total"`
		Stale   bool   `json:"stale"`
		Reason  string `json:"reason"`
		Skipped int    `json:"skipped"`
	} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func withUser(r *http.Request, userID uuid.UUID, role string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
	ctx = context.WithValue(ctx, middleware.RoleKey, role)
	return r.WithContext(ctx)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "backend unavailable wrapped", err: fmt.Errorf("%w: %v", usecase.ErrBackendUnavailable, "dial tcp"), want: http.StatusServiceUnavailable},
		{name: "verification pending", err: usecase.ErrVerificationPending, want: http.StatusForbidden},
		{name: "verification rejected", err: usecase.ErrVerificationRejected, want: http.StatusForbidden},
		{name: "forbidden", err: usecase.ErrForbidden, want: http.StatusForbidden},
		{name: "profile not found", err: usecase.ErrProfileNotFound, want: http.StatusNotFound},
		{name: "invalid transition", err: &entity.InvalidTransitionError{From: entity.VerificationVerified, Event: entity.EventApprove}, want: http.StatusConflict},
		{name: "unexpected", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err, "fallback")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestDirectoryHandler_GetDoctorsReportsStale(t *testing.T) {
	directory := new(mockDirectory)
	filter := usecase.DoctorFilter{Specialty: "Cardiology", Search: "ali"}
	directory.On("ListDoctors", mock.Anything, filter).Return(&usecase.DirectoryResult{
		Doctors:  []entity.Doctor{{ID: uuid.New(), Name: "Dr. Alice", Specialty: "Cardiology", Source: entity.DoctorSourceBundled}},
		Stale:    true,
		FetchErr: errors.New("connection refused"),
		Skipped:  2,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors?specialty=Cardiology&q=ali", nil)
	rec := httptest.NewRecorder()
	NewDirectoryHandler(directory).GetDoctors(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.True(t, env.Meta.Stale)
	assert.NotEmpty(t, env.Meta.Reason)
	assert.Equal(t, 1, env.Meta.Total)
	assert.Equal(t, 2, env.Meta.Skipped)
	directory.AssertExpectations(t)
}

func TestDirectoryHandler_GetDoctor(t *testing.T) {
	directory := new(mockDirectory)
	known := uuid.New()
	missing := uuid.New()
	directory.On("GetDoctor", mock.Anything, known).Return(&entity.Doctor{ID: known, Name: "Dr. Bob"}, nil)
	directory.On("GetDoctor", mock.Anything, missing).Return(nil, usecase.ErrDoctorNotFound)

	h := NewDirectoryHandler(directory)
	router := mux.NewRouter()
	router.HandleFunc("/doctors/{id}", h.GetDoctor)

	tests := []struct {
		name string
		id   string
		want int
	}{
		{name: "found", id: known.String(), want: http.StatusOK},
		{name: "not found", id: missing.String(), want: http.StatusNotFound},
		{name: "bad id", id: "nope", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doctors/"+tt.id, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAppointmentHandler_Book(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	slot := entity.Slot{Date: "2026-11-02", Time: "10:30"}

	tests := []struct {
		name    string
		body    any
		bookErr error
		want    int
	}{
		{name: "booked", body: map[string]string{"doctor_id": doctorID.String(), "slot_date": slot.Date, "slot_time": slot.Time}, want: http.StatusCreated},
		{name: "slot taken", body: map[string]string{"doctor_id": doctorID.String(), "slot_date": slot.Date, "slot_time": slot.Time}, bookErr: usecase.ErrSlotTaken, want: http.StatusConflict},
		{name: "backend down", body: map[string]string{"doctor_id": doctorID.String(), "slot_date": slot.Date, "slot_time": slot.Time}, bookErr: fmt.Errorf("%w: timeout", usecase.ErrBackendUnavailable), want: http.StatusServiceUnavailable},
		{name: "bad time label", body: map[string]string{"doctor_id": doctorID.String(), "slot_date": slot.Date, "slot_time": "10.30am"}, want: http.StatusBadRequest},
		{name: "missing doctor", body: map[string]string{"slot_date": slot.Date, "slot_time": slot.Time}, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appointments := new(mockAppointments)
			want := usecase.BookRequest{DoctorID: doctorID, PatientUserID: patientID, Slot: slot}
			var booked *entity.Appointment
			if tt.bookErr == nil {
				booked = &entity.Appointment{ID: uuid.New(), DoctorID: doctorID, PatientUserID: patientID, SlotDate: slot.Date, SlotTime: slot.Time, Status: entity.AppointmentUpcoming}
			}
			appointments.On("Book", mock.Anything, want).Return(booked, tt.bookErr).Maybe()

			body, err := json.Marshal(tt.body)
			require.NoError(t, err)
			req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", bytes.NewReader(body)), patientID, entity.RolePatient)
			rec := httptest.NewRecorder()

			NewAppointmentHandler(nil, appointments, validator.NewValidator()).BookAppointment(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAppointmentHandler_CancelPassesActor(t *testing.T) {
	doctorID := uuid.New()
	appointmentID := uuid.New()
	appointments := new(mockAppointments)
	appointments.On("Cancel", mock.Anything, usecase.Actor{UserID: doctorID, Role: entity.RoleDoctor}, appointmentID).
		Return(usecase.ErrVerificationPending)

	router := mux.NewRouter()
	router.HandleFunc("/appointments/{id}/cancel", NewAppointmentHandler(nil, appointments, validator.NewValidator()).CancelAppointment)

	req := withUser(httptest.NewRequest(http.MethodPost, "/appointments/"+appointmentID.String()+"/cancel", nil), doctorID, entity.RoleDoctor)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	appointments.AssertExpectations(t)
}
