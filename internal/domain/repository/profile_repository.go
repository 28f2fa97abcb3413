package repository

import (
	"context"

	"clinic-booking/internal/domain/entity"

	"github.com/google/uuid"
)

// ProfileRepository finders return (nil, nil) when no row matches.
type ProfileRepository interface {
	Create(ctx context.Context, profile *entity.UserProfile) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.UserProfile, error)
	FindByEmail(ctx context.Context, email string) (*entity.UserProfile, error)
	FindByRoleAndStatus(ctx context.Context, role string, status entity.VerificationStatus) ([]entity.UserProfile, error)
	Update(ctx context.Context, profile *entity.UserProfile) error
	// UpdateVerificationStatus only writes when the stored status still equals from.
	UpdateVerificationStatus(ctx context.Context, id uuid.UUID, from, to entity.VerificationStatus) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type FavoriteRepository interface {
	// Toggle flips membership and reports whether the doctor is now a favorite.
	Toggle(ctx context.Context, userID, doctorID uuid.UUID) (bool, error)
	FindDoctorIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}
