package handler

import (
	"context"
	"errors"
	"net/http"

	"clinic-booking/internal/converter"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/delivery/http/middleware"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/response"
	"clinic-booking/pkg/validator"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type VerificationHandler struct {
	verificationUsecase usecase.VerificationUsecase
	validator           *validator.CustomValidator
}

func NewVerificationHandler(verificationUsecase usecase.VerificationUsecase, validator *validator.CustomValidator) *VerificationHandler {
	return &VerificationHandler{
		verificationUsecase: verificationUsecase,
		validator:           validator,
	}
}

func (h *VerificationHandler) writeVerificationError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, usecase.ErrNotDoctor):
		response.BadRequest(w, "Account is not a doctor")
	case errors.Is(err, usecase.ErrVerificationConflict):
		response.Conflict(w, err.Error())
	case errors.Is(err, usecase.ErrInvalidActivationCode):
		response.BadRequest(w, err.Error())
	case errors.Is(err, usecase.ErrActivationCodeUsed):
		response.Conflict(w, err.Error())
	default:
		writeError(w, err, fallback)
	}
}

func resultToResponse(result *usecase.VerificationResult) *dto.VerificationResponse {
	return &dto.VerificationResponse{
		Profile:       converter.ProfileToResponse(result.Profile),
		MirrorPending: result.MirrorPending,
	}
}

// GetPendingDoctors lists doctors waiting for review
// @Summary List pending doctors
// @Tags Verification
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response
// @Router /admin/doctors/pending [get]
func (h *VerificationHandler) GetPendingDoctors(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.verificationUsecase.ListPending(r.Context())
	if err != nil {
		writeError(w, err, "Failed to get pending doctors")
		return
	}

	doctors := converter.ProfilesToResponses(profiles)
	response.SuccessWithMeta(w, http.StatusOK, "Pending doctors retrieved successfully",
		&dto.PendingDoctorListResponse{Doctors: doctors, Total: len(doctors)}, &response.Meta{Total: len(doctors)})
}

type transitionFunc func(ctx context.Context, adminID, doctorID uuid.UUID) (*usecase.VerificationResult, error)

func (h *VerificationHandler) transition(w http.ResponseWriter, r *http.Request, apply transitionFunc, message string) {
	doctorID, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid doctor ID", nil)
		return
	}
	adminID, _ := middleware.GetUserIDFromContext(r.Context())

	result, err := apply(r.Context(), adminID, doctorID)
	if err != nil {
		h.writeVerificationError(w, err, "Failed to update verification status")
		return
	}

	response.Success(w, http.StatusOK, message, resultToResponse(result))
}

// ApproveDoctor moves a pending doctor to verified and publishes them to the
// directory.
// @Summary Approve doctor
// @Tags Verification
// @Security BearerAuth
// @Produce json
// @Param id path string true "Doctor profile ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/doctors/{id}/approve [post]
func (h *VerificationHandler) ApproveDoctor(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.verificationUsecase.Approve, "Doctor approved successfully")
}

// @Router /admin/doctors/{id}/reject [post]
func (h *VerificationHandler) RejectDoctor(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.verificationUsecase.Reject, "Doctor rejected")
}

// @Router /admin/doctors/{id}/reapply [post]
func (h *VerificationHandler) ReapplyDoctor(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.verificationUsecase.Reapply, "Doctor moved back to pending")
}

func (h *VerificationHandler) IssueInvitation(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid doctor ID", nil)
		return
	}
	adminID, _ := middleware.GetUserIDFromContext(r.Context())

	invitation, err := h.verificationUsecase.IssueInvitation(r.Context(), adminID, doctorID)
	if err != nil {
		h.writeVerificationError(w, err, "Failed to issue activation code")
		return
	}

	response.Success(w, http.StatusCreated, "Activation code issued successfully", &dto.InvitationResponse{
		DoctorID:  invitation.DoctorID,
		Code:      invitation.Code,
		ExpiresAt: invitation.ExpiresAt,
	})
}

// RedeemActivationCode verifies the calling doctor with a code issued by an
// administrator.
func (h *VerificationHandler) RedeemActivationCode(w http.ResponseWriter, r *http.Request) {
	var req dto.RedeemActivationCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	doctorID, _ := middleware.GetUserIDFromContext(r.Context())
	result, err := h.verificationUsecase.RedeemActivationCode(r.Context(), doctorID, req.Code)
	if err != nil {
		h.writeVerificationError(w, err, "Failed to redeem activation code")
		return
	}

	response.Success(w, http.StatusOK, "Doctor verified successfully", resultToResponse(result))
}
