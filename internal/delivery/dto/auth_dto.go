package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Response DTOs

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	SessionID    string `json:"session_id"`
	// Destination is empty when the profile could not be synced at login.
	Destination string `json:"destination,omitempty"`
}

type UserResponse struct {
	ID                 uuid.UUID `json:"id"`
	Email              string    `json:"email"`
	FullName           string    `json:"full_name"`
	Role               string    `json:"role"`
	VerificationStatus string    `json:"verification_status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Role-specific Registration Request DTOs

// RegisterPatientRequest registers a patient account
type RegisterPatientRequest struct {
	Email      string   `json:"email" validate:"required,email"`
	Password   string   `json:"password" validate:"required,min=6"`
	FullName   string   `json:"full_name" validate:"required,min=2"`
	Phone      string   `json:"phone" validate:"omitempty,min=10,max=20"`
	HeightCm   *float64 `json:"height_cm" validate:"omitempty,gt=0,lte=300"`
	WeightKg   *float64 `json:"weight_kg" validate:"omitempty,gt=0,lte=500"`
	Age        *int     `json:"age" validate:"omitempty,gte=0,lte=150"`
	BloodGroup string   `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
}

// RegisterDoctorRequest registers a doctor account, which starts pending
type RegisterDoctorRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	FullName        string `json:"full_name" validate:"required,min=2"`
	Phone           string `json:"phone" validate:"omitempty,min=10,max=20"`
	LicenseNumber   string `json:"license_number" validate:"required,max=50"`
	Specialty       string `json:"specialty" validate:"required,max=100"`
	Hospital        string `json:"hospital" validate:"omitempty,max=255"`
	YearsExperience int    `json:"years_experience" validate:"omitempty,gte=0,lte=80"`
}
