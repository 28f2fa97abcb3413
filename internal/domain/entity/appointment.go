package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus represents the status of an appointment. Only upcoming and
// cancelled are stored; completed is derived from the slot at read time.
type AppointmentStatus string

const (
	AppointmentUpcoming  AppointmentStatus = "upcoming"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

const (
	SlotDateLayout = "2006-01-02"
	SlotTimeLayout = "15:04"
)

// Slot is a bookable (date, time label) pair.
type Slot struct {
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM
}

// At resolves the slot to an instant in loc.
func (s Slot) At(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(SlotDateLayout+" "+SlotTimeLayout, s.Date+" "+s.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot %q %q: %w", s.Date, s.Time, err)
	}
	return t, nil
}

// Appointment is a booking of a doctor slot by a patient account. PatientName
// may name a family member rather than the account holder.
type Appointment struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	DoctorID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"doctor_id"`
	PatientUserID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"patient_user_id"`
	FamilyMemberID *uuid.UUID        `gorm:"type:uuid" json:"family_member_id,omitempty"`
	PatientName    string            `gorm:"type:varchar(255);not null" json:"patient_name"`
	SlotDate       string            `gorm:"type:varchar(10);not null" json:"slot_date"`
	SlotTime       string            `gorm:"type:varchar(5);not null" json:"slot_time"`
	SlotAt         time.Time         `gorm:"not null;index" json:"slot_at"`
	Status         AppointmentStatus `gorm:"type:varchar(20);not null;default:'upcoming';index" json:"status"`
	Location       string            `gorm:"type:text" json:"location,omitempty"`
	Paid           bool              `gorm:"not null;default:false" json:"paid"`
	CancelledAt    *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	Doctor *Doctor `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

func (Appointment) TableName() string {
	return "appointments"
}

func (a *Appointment) IsCancelled() bool {
	return a.Status == AppointmentCancelled
}

// Cancel moves an upcoming appointment to the terminal cancelled state.
func (a *Appointment) Cancel(at time.Time) {
	a.Status = AppointmentCancelled
	a.CancelledAt = &at
}

func (a *Appointment) Slot() Slot {
	return Slot{Date: a.SlotDate, Time: a.SlotTime}
}
