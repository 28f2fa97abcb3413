package entity

import (
	"time"

	"github.com/google/uuid"
)

// FamilyMember is a dependant managed by a patient account.
type FamilyMember struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OwnerID    uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Relation   string    `gorm:"type:varchar(50);not null" json:"relation"`
	HeightCm   *float64  `gorm:"type:numeric(5,1)" json:"height_cm,omitempty"`
	WeightKg   *float64  `gorm:"type:numeric(5,1)" json:"weight_kg,omitempty"`
	Age        *int      `json:"age,omitempty"`
	BloodGroup string    `gorm:"type:varchar(5)" json:"blood_group,omitempty"`
	ImageURL   string    `gorm:"type:text" json:"image_url,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FamilyMember) TableName() string {
	return "family_members"
}
