package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Directory record sources
const (
	DoctorSourceBundled = "bundled"
	DoctorSourceLive    = "live"
)

// Doctor is the publicly visible directory record of a doctor. Records with a
// ProfileID mirror the public fields of that doctor's UserProfile.
type Doctor struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID          *uuid.UUID         `gorm:"type:uuid;uniqueIndex" json:"profile_id,omitempty"`
	Name               string             `gorm:"type:varchar(255);not null;index" json:"name"`
	Specialty          string             `gorm:"type:varchar(100);index" json:"specialty"`
	Hospital           string             `gorm:"type:varchar(255)" json:"hospital,omitempty"`
	Address            string             `gorm:"type:text" json:"address,omitempty"`
	Rating             float64            `gorm:"type:numeric(2,1);default:0" json:"rating"`
	Fee                decimal.Decimal    `gorm:"type:decimal(10,2);not null;default:0" json:"fee"`
	ImageURL           string             `gorm:"type:text" json:"image_url,omitempty"`
	YearsExperience    int                `json:"years_experience"`
	IsActive           bool               `gorm:"not null;default:false;index" json:"is_active"`
	VerificationStatus VerificationStatus `gorm:"type:varchar(20);not null" json:"verification_status"`
	Source             string             `gorm:"type:varchar(20);not null;default:'live'" json:"source"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Doctor) TableName() string {
	return "doctors"
}

// Valid reports whether the record carries the minimum fields needed to be
// listed. Records that fail are skipped rather than failing a listing.
func (d *Doctor) Valid() bool {
	return d.ID != uuid.Nil && strings.TrimSpace(d.Name) != ""
}

// NormalizedName is the name-based identity key used when merging directory
// sources: lower-cased, "dr." prefix removed, whitespace collapsed.
func (d *Doctor) NormalizedName() string {
	return NormalizeDoctorName(d.Name)
}

func NormalizeDoctorName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) > 1 && (fields[0] == "dr." || fields[0] == "dr") {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

// MirrorFromProfile copies the public fields of a doctor profile onto the
// directory record.
func (d *Doctor) MirrorFromProfile(p *UserProfile) {
	profileID := p.ID
	d.ID = p.ID
	d.ProfileID = &profileID
	d.Name = p.FullName
	d.Specialty = p.Specialty
	d.Hospital = p.Hospital
	d.ImageURL = p.ImageURL
	d.YearsExperience = p.YearsExperience
	d.VerificationStatus = p.VerificationStatus
	d.IsActive = p.VerificationStatus == VerificationVerified
	d.Source = DoctorSourceLive
}
