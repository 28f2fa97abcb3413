package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clinic groups directory doctors by a weak relation: an explicit id
// whitelist or an address substring match.
type Clinic struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Address      string    `gorm:"type:text" json:"address"`
	AddressMatch string    `gorm:"type:varchar(255)" json:"address_match,omitempty"`
	DoctorIDs    string    `gorm:"column:doctor_ids;type:text" json:"-"`
	ImageURL     string    `gorm:"type:text" json:"image_url,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Clinic) TableName() string {
	return "clinics"
}

// DoctorWhitelist parses the comma separated id list. Unparseable entries
// are ignored.
func (c *Clinic) DoctorWhitelist() []uuid.UUID {
	var ids []uuid.UUID
	for _, raw := range strings.Split(c.DoctorIDs, ",") {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Includes reports whether the doctor belongs to the clinic.
func (c *Clinic) Includes(d *Doctor) bool {
	for _, id := range c.DoctorWhitelist() {
		if id == d.ID {
			return true
		}
	}
	if c.AddressMatch == "" {
		return false
	}
	return strings.Contains(strings.ToLower(d.Address), strings.ToLower(c.AddressMatch)) ||
		strings.Contains(strings.ToLower(d.Hospital), strings.ToLower(c.AddressMatch))
}
