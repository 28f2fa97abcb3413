package entity

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile is the account record for patients, doctors and administrators.
// Health attributes are only meaningful for patients and professional
// attributes only for doctors.
type UserProfile struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Email              string             `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password           string             `gorm:"type:text;not null" json:"-"`
	FullName           string             `gorm:"type:varchar(255);not null" json:"full_name"`
	Phone              string             `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Role               string             `gorm:"type:varchar(20);not null;index" json:"role"`
	VerificationStatus VerificationStatus `gorm:"type:varchar(20);not null;index" json:"verification_status"`
	ImageURL           string             `gorm:"type:text" json:"image_url,omitempty"`

	// Patient health attributes
	HeightCm   *float64 `gorm:"type:numeric(5,1)" json:"height_cm,omitempty"`
	WeightKg   *float64 `gorm:"type:numeric(5,1)" json:"weight_kg,omitempty"`
	Age        *int     `json:"age,omitempty"`
	BloodGroup string   `gorm:"type:varchar(5)" json:"blood_group,omitempty"`

	// Doctor professional attributes
	LicenseNumber   string `gorm:"type:varchar(50)" json:"license_number,omitempty"`
	Specialty       string `gorm:"type:varchar(100);index" json:"specialty,omitempty"`
	Hospital        string `gorm:"type:varchar(255)" json:"hospital,omitempty"`
	YearsExperience int    `json:"years_experience,omitempty"`

	FavoriteDoctorIDs []uuid.UUID `gorm:"-" json:"favorite_doctor_ids"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "profiles"
}

func (p *UserProfile) IsDoctor() bool {
	return p.Role == RoleDoctor
}

func (p *UserProfile) IsPatient() bool {
	return p.Role == RolePatient
}

func (p *UserProfile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// HasFavorite reports whether doctorID is in the favorite set.
func (p *UserProfile) HasFavorite(doctorID uuid.UUID) bool {
	for _, id := range p.FavoriteDoctorIDs {
		if id == doctorID {
			return true
		}
	}
	return false
}

// InitialVerificationStatus returns the status a freshly created profile of
// the given role starts in.
func InitialVerificationStatus(role string) VerificationStatus {
	switch role {
	case RoleDoctor:
		return VerificationPending
	case RolePatient:
		return VerificationVerified
	default:
		return VerificationNone
	}
}

// FavoriteDoctor is a membership row of a profile's favorite set.
type FavoriteDoctor struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	DoctorID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"doctor_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (FavoriteDoctor) TableName() string {
	return "favorite_doctors"
}
