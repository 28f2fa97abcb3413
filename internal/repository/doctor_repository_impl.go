package repository

import (
	"context"
	"errors"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type doctorRepository struct {
	db *gorm.DB
}

func NewDoctorRepository(db *gorm.DB) domainRepo.DoctorRepository {
	return &doctorRepository{db: db}
}

func (r *doctorRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Doctor, error) {
	var doctor entity.Doctor
	err := conn(ctx, r.db).Where("id = ?", id).First(&doctor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doctor, nil
}

func (r *doctorRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Doctor, error) {
	var doctors []entity.Doctor
	if len(ids) == 0 {
		return doctors, nil
	}
	err := conn(ctx, r.db).Where("id IN ?", ids).Order("name ASC").Find(&doctors).Error
	if err != nil {
		return nil, err
	}
	return doctors, nil
}

// FindActive returns the live roster: active records whose doctor is verified.
func (r *doctorRepository) FindActive(ctx context.Context) ([]entity.Doctor, error) {
	var doctors []entity.Doctor
	err := conn(ctx, r.db).
		Where("is_active = ? AND verification_status = ?", true, entity.VerificationVerified).
		Order("name ASC").
		Find(&doctors).Error
	if err != nil {
		return nil, err
	}
	return doctors, nil
}

func (r *doctorRepository) Upsert(ctx context.Context, doctor *entity.Doctor) error {
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"profile_id", "name", "specialty", "hospital", "image_url",
			"years_experience", "is_active", "verification_status", "source", "updated_at",
		}),
	}).Create(doctor).Error
}

func (r *doctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).Where("id = ?", id).Delete(&entity.Doctor{}).Error
}

type clinicRepository struct {
	db *gorm.DB
}

func NewClinicRepository(db *gorm.DB) domainRepo.ClinicRepository {
	return &clinicRepository{db: db}
}

func (r *clinicRepository) FindAll(ctx context.Context) ([]entity.Clinic, error) {
	var clinics []entity.Clinic
	if err := conn(ctx, r.db).Order("name ASC").Find(&clinics).Error; err != nil {
		return nil, err
	}
	return clinics, nil
}

func (r *clinicRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Clinic, error) {
	var clinic entity.Clinic
	err := conn(ctx, r.db).Where("id = ?", id).First(&clinic).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &clinic, nil
}
