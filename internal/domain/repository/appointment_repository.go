package repository

import (
	"context"
	"time"

	"clinic-booking/internal/domain/entity"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *entity.Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)
	// FindByPatientUserID and FindByDoctorID exclude cancelled appointments
	// and order by slot ascending.
	FindByPatientUserID(ctx context.Context, userID uuid.UUID) ([]entity.Appointment, error)
	FindByDoctorID(ctx context.Context, doctorID uuid.UUID) ([]entity.Appointment, error)
	// Cancel only affects appointments that are still upcoming.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	DeleteByPatientUserID(ctx context.Context, userID uuid.UUID) error
}
