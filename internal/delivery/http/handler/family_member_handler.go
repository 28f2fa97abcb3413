package handler

import (
	"errors"
	"net/http"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/delivery/http/middleware"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/response"
	"clinic-booking/pkg/validator"

	"github.com/goccy/go-json"
)

type FamilyMemberHandler struct {
	familyUsecase usecase.FamilyMemberUsecase
	validator     *validator.CustomValidator
}

func NewFamilyMemberHandler(familyUsecase usecase.FamilyMemberUsecase, validator *validator.CustomValidator) *FamilyMemberHandler {
	return &FamilyMemberHandler{
		familyUsecase: familyUsecase,
		validator:     validator,
	}
}

func (h *FamilyMemberHandler) writeFamilyError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, usecase.ErrFamilyMemberNotFound):
		response.NotFound(w, "Family member not found")
	case errors.Is(err, usecase.ErrUnsupportedImage):
		response.BadRequest(w, err.Error())
	default:
		writeError(w, err, fallback)
	}
}

func (h *FamilyMemberHandler) GetFamilyMembers(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.GetUserIDFromContext(r.Context())

	members, err := h.familyUsecase.List(r.Context(), ownerID)
	if err != nil {
		h.writeFamilyError(w, err, "Failed to get family members")
		return
	}

	response.SuccessWithMeta(w, http.StatusOK, "Family members retrieved successfully", members, &response.Meta{Total: members.Total})
}

func (h *FamilyMemberHandler) CreateFamilyMember(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateFamilyMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	ownerID, _ := middleware.GetUserIDFromContext(r.Context())
	member, err := h.familyUsecase.Create(r.Context(), ownerID, &req)
	if err != nil {
		h.writeFamilyError(w, err, "Failed to create family member")
		return
	}

	response.Success(w, http.StatusCreated, "Family member created successfully", member)
}

func (h *FamilyMemberHandler) UpdateFamilyMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid family member ID", nil)
		return
	}

	var req dto.UpdateFamilyMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	ownerID, _ := middleware.GetUserIDFromContext(r.Context())
	member, err := h.familyUsecase.Update(r.Context(), ownerID, memberID, &req)
	if err != nil {
		h.writeFamilyError(w, err, "Failed to update family member")
		return
	}

	response.Success(w, http.StatusOK, "Family member updated successfully", member)
}

func (h *FamilyMemberHandler) DeleteFamilyMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid family member ID", nil)
		return
	}

	ownerID, _ := middleware.GetUserIDFromContext(r.Context())
	if err := h.familyUsecase.Delete(r.Context(), ownerID, memberID); err != nil {
		h.writeFamilyError(w, err, "Failed to delete family member")
		return
	}

	response.Success(w, http.StatusOK, "Family member deleted successfully", nil)
}

func (h *FamilyMemberHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid family member ID", nil)
		return
	}

	image, closeImage, ok := readImage(w, r)
	if !ok {
		response.BadRequest(w, "Expected a multipart form with an image file up to 5MB")
		return
	}
	defer closeImage()

	ownerID, _ := middleware.GetUserIDFromContext(r.Context())
	member, err := h.familyUsecase.UploadImage(r.Context(), ownerID, memberID, image)
	if err != nil {
		h.writeFamilyError(w, err, "Failed to upload image")
		return
	}

	response.Success(w, http.StatusOK, "Image uploaded successfully", member)
}
