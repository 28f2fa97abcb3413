package repository

import (
	"context"
	"errors"
	"time"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type appointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) domainRepo.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *entity.Appointment) error {
	return conn(ctx, r.db).Omit("Doctor").Create(appointment).Error
}

func (r *appointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := conn(ctx, r.db).Preload("Doctor").Where("id = ?", id).First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

func (r *appointmentRepository) FindByPatientUserID(ctx context.Context, userID uuid.UUID) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	err := conn(ctx, r.db).Preload("Doctor").
		Where("patient_user_id = ? AND status <> ?", userID, entity.AppointmentCancelled).
		Order("slot_at ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *appointmentRepository) FindByDoctorID(ctx context.Context, doctorID uuid.UUID) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	err := conn(ctx, r.db).
		Where("doctor_id = ? AND status <> ?", doctorID, entity.AppointmentCancelled).
		Order("slot_at ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// Cancel atomically cancels an appointment ONLY if it's still upcoming.
// Returns affected rows: 1 = success, 0 = already cancelled or missing.
func (r *appointmentRepository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	result := conn(ctx, r.db).Model(&entity.Appointment{}).
		Where("id = ? AND status = ?", id, entity.AppointmentUpcoming).
		Updates(map[string]interface{}{
			"status":       entity.AppointmentCancelled,
			"cancelled_at": at,
		})
	return result.RowsAffected, result.Error
}

func (r *appointmentRepository) DeleteByPatientUserID(ctx context.Context, userID uuid.UUID) error {
	return conn(ctx, r.db).Where("patient_user_id = ?", userID).Delete(&entity.Appointment{}).Error
}
