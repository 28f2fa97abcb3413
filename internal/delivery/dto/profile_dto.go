package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

// UpdateProfileRequest only changes the fields that are present.
type UpdateProfileRequest struct {
	FullName        *string  `json:"full_name" validate:"omitempty,min=2,max=255"`
	Phone           *string  `json:"phone" validate:"omitempty,min=10,max=20"`
	HeightCm        *float64 `json:"height_cm" validate:"omitempty,gt=0,lte=300"`
	WeightKg        *float64 `json:"weight_kg" validate:"omitempty,gt=0,lte=500"`
	Age             *int     `json:"age" validate:"omitempty,gte=0,lte=150"`
	BloodGroup      *string  `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	LicenseNumber   *string  `json:"license_number" validate:"omitempty,max=50"`
	Specialty       *string  `json:"specialty" validate:"omitempty,max=100"`
	Hospital        *string  `json:"hospital" validate:"omitempty,max=255"`
	YearsExperience *int     `json:"years_experience" validate:"omitempty,gte=0,lte=80"`
}

type ToggleFavoriteRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" validate:"required"`
}

// Response DTOs

type ProfileResponse struct {
	ID                 uuid.UUID   `json:"id"`
	Email              string      `json:"email"`
	FullName           string      `json:"full_name"`
	Phone              string      `json:"phone,omitempty"`
	Role               string      `json:"role"`
	VerificationStatus string      `json:"verification_status"`
	ImageURL           string      `json:"image_url,omitempty"`
	HeightCm           *float64    `json:"height_cm,omitempty"`
	WeightKg           *float64    `json:"weight_kg,omitempty"`
	Age                *int        `json:"age,omitempty"`
	BloodGroup         string      `json:"blood_group,omitempty"`
	LicenseNumber      string      `json:"license_number,omitempty"`
	Specialty          string      `json:"specialty,omitempty"`
	Hospital           string      `json:"hospital,omitempty"`
	YearsExperience    int         `json:"years_experience,omitempty"`
	FavoriteDoctorIDs  []uuid.UUID `json:"favorite_doctor_ids"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// SessionProfileResponse is the signed-in user's profile plus where the
// client should route them.
type SessionProfileResponse struct {
	Profile       *ProfileResponse `json:"profile"`
	Destination   string           `json:"destination"`
	Stale         bool             `json:"stale"`
	MirrorPending bool             `json:"mirror_pending,omitempty"`
}

type FavoriteResponse struct {
	DoctorID          uuid.UUID   `json:"doctor_id"`
	Favorite          bool        `json:"favorite"`
	FavoriteDoctorIDs []uuid.UUID `json:"favorite_doctor_ids"`
}

// Family member DTOs

type CreateFamilyMemberRequest struct {
	Name       string   `json:"name" validate:"required,min=2,max=255"`
	Relation   string   `json:"relation" validate:"required,max=50"`
	HeightCm   *float64 `json:"height_cm" validate:"omitempty,gt=0,lte=300"`
	WeightKg   *float64 `json:"weight_kg" validate:"omitempty,gt=0,lte=500"`
	Age        *int     `json:"age" validate:"omitempty,gte=0,lte=150"`
	BloodGroup string   `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
}

type UpdateFamilyMemberRequest struct {
	Name       *string  `json:"name" validate:"omitempty,min=2,max=255"`
	Relation   *string  `json:"relation" validate:"omitempty,max=50"`
	HeightCm   *float64 `json:"height_cm" validate:"omitempty,gt=0,lte=300"`
	WeightKg   *float64 `json:"weight_kg" validate:"omitempty,gt=0,lte=500"`
	Age        *int     `json:"age" validate:"omitempty,gte=0,lte=150"`
	BloodGroup *string  `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
}

type FamilyMemberResponse struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Name       string    `json:"name"`
	Relation   string    `json:"relation"`
	HeightCm   *float64  `json:"height_cm,omitempty"`
	WeightKg   *float64  `json:"weight_kg,omitempty"`
	Age        *int      `json:"age,omitempty"`
	BloodGroup string    `json:"blood_group,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type FamilyMemberListResponse struct {
	FamilyMembers []FamilyMemberResponse `json:"family_members"`
	Total         int                    `json:"total"`
}
