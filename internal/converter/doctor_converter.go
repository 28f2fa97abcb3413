package converter

import (
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
)

// DoctorToResponse converts a directory Doctor to DoctorResponse DTO
func DoctorToResponse(doctor *entity.Doctor) *dto.DoctorResponse {
	if doctor == nil {
		return nil
	}

	return &dto.DoctorResponse{
		ID:                 doctor.ID,
		Name:               doctor.Name,
		Specialty:          doctor.Specialty,
		Hospital:           doctor.Hospital,
		Address:            doctor.Address,
		Rating:             doctor.Rating,
		Fee:                doctor.Fee,
		ImageURL:           doctor.ImageURL,
		YearsExperience:    doctor.YearsExperience,
		IsActive:           doctor.IsActive,
		VerificationStatus: string(doctor.VerificationStatus),
		Source:             doctor.Source,
	}
}

func DoctorsToResponses(doctors []entity.Doctor) []dto.DoctorResponse {
	responses := make([]dto.DoctorResponse, len(doctors))
	for i := range doctors {
		responses[i] = *DoctorToResponse(&doctors[i])
	}
	return responses
}

// ClinicToResponse converts a clinic and its resolved doctors
func ClinicToResponse(clinic *entity.Clinic, doctors []entity.Doctor) *dto.ClinicResponse {
	if clinic == nil {
		return nil
	}

	return &dto.ClinicResponse{
		ID:       clinic.ID,
		Name:     clinic.Name,
		Address:  clinic.Address,
		ImageURL: clinic.ImageURL,
		Doctors:  DoctorsToResponses(doctors),
	}
}
