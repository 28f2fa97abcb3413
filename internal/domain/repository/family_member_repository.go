package repository

import (
	"context"

	"clinic-booking/internal/domain/entity"

	"github.com/google/uuid"
)

type FamilyMemberRepository interface {
	Create(ctx context.Context, member *entity.FamilyMember) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.FamilyMember, error)
	FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]entity.FamilyMember, error)
	Update(ctx context.Context, member *entity.FamilyMember) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	DeleteByOwnerID(ctx context.Context, ownerID uuid.UUID) error
}
