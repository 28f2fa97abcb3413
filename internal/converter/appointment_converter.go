package converter

import (
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
)

// AppointmentToResponse converts an Appointment entity to AppointmentResponse DTO
func AppointmentToResponse(appointment *entity.Appointment) *dto.AppointmentResponse {
	if appointment == nil {
		return nil
	}

	response := &dto.AppointmentResponse{
		ID:             appointment.ID,
		DoctorID:       appointment.DoctorID,
		PatientUserID:  appointment.PatientUserID,
		FamilyMemberID: appointment.FamilyMemberID,
		PatientName:    appointment.PatientName,
		SlotDate:       appointment.SlotDate,
		SlotTime:       appointment.SlotTime,
		SlotAt:         appointment.SlotAt,
		Status:         string(appointment.Status),
		Location:       appointment.Location,
		Paid:           appointment.Paid,
		CancelledAt:    appointment.CancelledAt,
		CreatedAt:      appointment.CreatedAt,
	}

	// Include doctor info if loaded
	if appointment.Doctor != nil {
		response.Doctor = DoctorToResponse(appointment.Doctor)
	}

	return response
}

// AppointmentsToResponses converts a slice of Appointment entities to slice of AppointmentResponse DTOs
func AppointmentsToResponses(appointments []entity.Appointment) []dto.AppointmentResponse {
	responses := make([]dto.AppointmentResponse, len(appointments))
	for i := range appointments {
		responses[i] = *AppointmentToResponse(&appointments[i])
	}
	return responses
}
