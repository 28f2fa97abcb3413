package repository

import (
	"context"
	"errors"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type familyMemberRepository struct {
	db *gorm.DB
}

func NewFamilyMemberRepository(db *gorm.DB) domainRepo.FamilyMemberRepository {
	return &familyMemberRepository{db: db}
}

func (r *familyMemberRepository) Create(ctx context.Context, member *entity.FamilyMember) error {
	return conn(ctx, r.db).Create(member).Error
}

func (r *familyMemberRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.FamilyMember, error) {
	var member entity.FamilyMember
	err := conn(ctx, r.db).Where("id = ?", id).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *familyMemberRepository) FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]entity.FamilyMember, error) {
	var members []entity.FamilyMember
	err := conn(ctx, r.db).Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *familyMemberRepository) Update(ctx context.Context, member *entity.FamilyMember) error {
	return conn(ctx, r.db).Save(member).Error
}

func (r *familyMemberRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := conn(ctx, r.db).Where("id = ?", id).Delete(&entity.FamilyMember{})
	return result.RowsAffected, result.Error
}

func (r *familyMemberRepository) DeleteByOwnerID(ctx context.Context, ownerID uuid.UUID) error {
	return conn(ctx, r.db).Where("owner_id = ?", ownerID).Delete(&entity.FamilyMember{}).Error
}
