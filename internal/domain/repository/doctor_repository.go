package repository

import (
	"context"

	"clinic-booking/internal/domain/entity"

	"github.com/google/uuid"
)

type DoctorRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Doctor, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Doctor, error)
	FindActive(ctx context.Context) ([]entity.Doctor, error)
	Upsert(ctx context.Context, doctor *entity.Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ClinicRepository interface {
	FindAll(ctx context.Context) ([]entity.Clinic, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Clinic, error)
}
