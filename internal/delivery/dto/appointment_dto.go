package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type BookAppointmentRequest struct {
	DoctorID       uuid.UUID  `json:"doctor_id" validate:"required"`
	FamilyMemberID *uuid.UUID `json:"family_member_id" validate:"omitempty"`
	PatientName    string     `json:"patient_name" validate:"omitempty,max=255"`
	SlotDate       string     `json:"slot_date" validate:"required,datetime=2006-01-02"` // Format: YYYY-MM-DD
	SlotTime       string     `json:"slot_time" validate:"required,datetime=15:04"`      // Format: HH:MM
	Location       string     `json:"location" validate:"omitempty,max=500"`
}

// Response DTOs

type AppointmentResponse struct {
	ID             uuid.UUID       `json:"id"`
	DoctorID       uuid.UUID       `json:"doctor_id"`
	PatientUserID  uuid.UUID       `json:"patient_user_id"`
	FamilyMemberID *uuid.UUID      `json:"family_member_id,omitempty"`
	PatientName    string          `json:"patient_name"`
	SlotDate       string          `json:"slot_date"`
	SlotTime       string          `json:"slot_time"`
	SlotAt         time.Time       `json:"slot_at"`
	Status         string          `json:"status"`
	Location       string          `json:"location,omitempty"`
	Paid           bool            `json:"paid"`
	Doctor         *DoctorResponse `json:"doctor,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AppointmentListResponse carries both halves of the partition. Stale is set
// when the lists come from the last good fetch instead of the backend.
type AppointmentListResponse struct {
	Upcoming []AppointmentResponse `json:"upcoming"`
	Past     []AppointmentResponse `json:"past"`
	Stale    bool                  `json:"stale"`
}
