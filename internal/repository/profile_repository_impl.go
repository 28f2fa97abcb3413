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

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) domainRepo.ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *entity.UserProfile) error {
	return conn(ctx, r.db).Create(profile).Error
}

func (r *profileRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.UserProfile, error) {
	var profile entity.UserProfile
	err := conn(ctx, r.db).Where("id = ?", id).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.loadFavorites(ctx, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) FindByEmail(ctx context.Context, email string) (*entity.UserProfile, error) {
	var profile entity.UserProfile
	err := conn(ctx, r.db).Where("email = ?", email).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) FindByRoleAndStatus(ctx context.Context, role string, status entity.VerificationStatus) ([]entity.UserProfile, error) {
	var profiles []entity.UserProfile
	err := conn(ctx, r.db).
		Where("role = ? AND verification_status = ?", role, status).
		Order("created_at ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *entity.UserProfile) error {
	return conn(ctx, r.db).Omit(clause.Associations).Save(profile).Error
}

// UpdateVerificationStatus is a compare-and-set so two admins acting on the
// same doctor cannot both succeed.
func (r *profileRepository) UpdateVerificationStatus(ctx context.Context, id uuid.UUID, from, to entity.VerificationStatus) (int64, error) {
	result := conn(ctx, r.db).Model(&entity.UserProfile{}).
		Where("id = ? AND verification_status = ?", id, from).
		Update("verification_status", to)
	return result.RowsAffected, result.Error
}

func (r *profileRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := conn(ctx, r.db).Where("id = ?", id).Delete(&entity.UserProfile{})
	return result.RowsAffected, result.Error
}

func (r *profileRepository) loadFavorites(ctx context.Context, profile *entity.UserProfile) error {
	ids := []uuid.UUID{}
	err := conn(ctx, r.db).Model(&entity.FavoriteDoctor{}).
		Where("user_id = ?", profile.ID).
		Order("created_at ASC").
		Pluck("doctor_id", &ids).Error
	if err != nil {
		return err
	}
	profile.FavoriteDoctorIDs = ids
	return nil
}

type favoriteRepository struct {
	db *gorm.DB
}

func NewFavoriteRepository(db *gorm.DB) domainRepo.FavoriteRepository {
	return &favoriteRepository{db: db}
}

// Toggle deletes the membership row if present and inserts it otherwise.
func (r *favoriteRepository) Toggle(ctx context.Context, userID, doctorID uuid.UUID) (bool, error) {
	db := conn(ctx, r.db)
	result := db.Where("user_id = ? AND doctor_id = ?", userID, doctorID).Delete(&entity.FavoriteDoctor{})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return false, nil
	}
	fav := &entity.FavoriteDoctor{UserID: userID, DoctorID: doctorID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(fav).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *favoriteRepository) FindDoctorIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := conn(ctx, r.db).Model(&entity.FavoriteDoctor{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("doctor_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *favoriteRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return conn(ctx, r.db).Where("user_id = ?", userID).Delete(&entity.FavoriteDoctor{}).Error
}
