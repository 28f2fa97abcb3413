package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Response DTOs

type DoctorResponse struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	Specialty          string          `json:"specialty"`
	Hospital           string          `json:"hospital,omitempty"`
	Address            string          `json:"address,omitempty"`
	Rating             float64         `json:"rating"`
	Fee                decimal.Decimal `json:"fee"`
	ImageURL           string          `json:"image_url,omitempty"`
	YearsExperience    int             `json:"years_experience"`
	IsActive           bool            `json:"is_active"`
	VerificationStatus string          `json:"verification_status"`
	Source             string          `json:"source"`
}

type DoctorListResponse struct {
	Doctors []DoctorResponse `json:"doctors"`
	Total   int              `json:"total"`
	Stale   bool             `json:"stale"`
	Skipped int              `json:"skipped,omitempty"`
}

type ClinicResponse struct {
	ID       uuid.UUID        `json:"id"`
	Name     string           `json:"name"`
	Address  string           `json:"address"`
	ImageURL string           `json:"image_url,omitempty"`
	Doctors  []DoctorResponse `json:"doctors"`
}

type ClinicListResponse struct {
	Clinics []ClinicResponse `json:"clinics"`
	Total   int              `json:"total"`
	Stale   bool             `json:"stale"`
}

// Verification DTOs

type RedeemActivationCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

type InvitationResponse struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerificationResponse struct {
	Profile       *ProfileResponse `json:"profile"`
	MirrorPending bool             `json:"mirror_pending"`
}

type PendingDoctorListResponse struct {
	Doctors []ProfileResponse `json:"doctors"`
	Total   int               `json:"total"`
}
