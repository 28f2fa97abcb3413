package converter

import (
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"

	"github.com/google/uuid"
)

// ProfileToResponse converts a UserProfile entity to ProfileResponse DTO
func ProfileToResponse(profile *entity.UserProfile) *dto.ProfileResponse {
	if profile == nil {
		return nil
	}

	favorites := profile.FavoriteDoctorIDs
	if favorites == nil {
		favorites = []uuid.UUID{}
	}

	return &dto.ProfileResponse{
		ID:                 profile.ID,
		Email:              profile.Email,
		FullName:           profile.FullName,
		Phone:              profile.Phone,
		Role:               profile.Role,
		VerificationStatus: string(profile.VerificationStatus),
		ImageURL:           profile.ImageURL,
		HeightCm:           profile.HeightCm,
		WeightKg:           profile.WeightKg,
		Age:                profile.Age,
		BloodGroup:         profile.BloodGroup,
		LicenseNumber:      profile.LicenseNumber,
		Specialty:          profile.Specialty,
		Hospital:           profile.Hospital,
		YearsExperience:    profile.YearsExperience,
		FavoriteDoctorIDs:  favorites,
		CreatedAt:          profile.CreatedAt,
		UpdatedAt:          profile.UpdatedAt,
	}
}

func ProfilesToResponses(profiles []entity.UserProfile) []dto.ProfileResponse {
	responses := make([]dto.ProfileResponse, len(profiles))
	for i := range profiles {
		responses[i] = *ProfileToResponse(&profiles[i])
	}
	return responses
}

// UserToResponse converts a UserProfile entity to the compact UserResponse DTO
func UserToResponse(profile *entity.UserProfile) *dto.UserResponse {
	if profile == nil {
		return nil
	}

	return &dto.UserResponse{
		ID:                 profile.ID,
		Email:              profile.Email,
		FullName:           profile.FullName,
		Role:               profile.Role,
		VerificationStatus: string(profile.VerificationStatus),
		CreatedAt:          profile.CreatedAt,
		UpdatedAt:          profile.UpdatedAt,
	}
}

// FamilyMemberToResponse converts a FamilyMember entity to FamilyMemberResponse DTO
func FamilyMemberToResponse(member *entity.FamilyMember) *dto.FamilyMemberResponse {
	if member == nil {
		return nil
	}

	return &dto.FamilyMemberResponse{
		ID:         member.ID,
		OwnerID:    member.OwnerID,
		Name:       member.Name,
		Relation:   member.Relation,
		HeightCm:   member.HeightCm,
		WeightKg:   member.WeightKg,
		Age:        member.Age,
		BloodGroup: member.BloodGroup,
		ImageURL:   member.ImageURL,
		CreatedAt:  member.CreatedAt,
		UpdatedAt:  member.UpdatedAt,
	}
}

func FamilyMembersToResponses(members []entity.FamilyMember) []dto.FamilyMemberResponse {
	responses := make([]dto.FamilyMemberResponse, len(members))
	for i := range members {
		responses[i] = *FamilyMemberToResponse(&members[i])
	}
	return responses
}
