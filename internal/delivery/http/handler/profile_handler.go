package handler

import (
	"errors"
	"net/http"

	"clinic-booking/internal/converter"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/delivery/http/middleware"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/response"
	"clinic-booking/pkg/validator"

	"github.com/goccy/go-json"
)

// ProfileHandler serves the signed-in user's own profile through the
// session's profile cache.
type ProfileHandler struct {
	sessionSync usecase.SessionSyncUsecase
	directory   usecase.DirectoryUsecase
	authUsecase usecase.AuthUsecase
	validator   *validator.CustomValidator
}

func NewProfileHandler(
	sessionSync usecase.SessionSyncUsecase,
	directory usecase.DirectoryUsecase,
	authUsecase usecase.AuthUsecase,
	validator *validator.CustomValidator,
) *ProfileHandler {
	return &ProfileHandler{
		sessionSync: sessionSync,
		directory:   directory,
		authUsecase: authUsecase,
		validator:   validator,
	}
}

func syncedToResponse(synced *usecase.SyncedProfile) *dto.SessionProfileResponse {
	return &dto.SessionProfileResponse{
		Profile:       converter.ProfileToResponse(synced.Profile),
		Destination:   string(synced.Destination),
		Stale:         synced.Stale,
		MirrorPending: synced.MirrorPending,
	}
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	sessionID, _ := middleware.GetSessionIDFromContext(r.Context())

	synced, err := h.sessionSync.HydrateProfile(r.Context(), sessionID, userID)
	if err != nil {
		writeError(w, err, "Failed to get profile")
		return
	}

	meta := &response.Meta{Stale: synced.Stale, Reason: staleReason(synced.SyncErr)}
	response.SuccessWithMeta(w, http.StatusOK, "Profile retrieved successfully", syncedToResponse(synced), meta)
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	sessionID, _ := middleware.GetSessionIDFromContext(r.Context())

	synced, err := h.sessionSync.Persist(r.Context(), sessionID, userID, &req)
	if err != nil {
		writeError(w, err, "Failed to update profile")
		return
	}

	response.Success(w, http.StatusOK, "Profile updated successfully", syncedToResponse(synced))
}

func (h *ProfileHandler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	result, err := h.directory.ListFavorites(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to get favorite doctors")
		return
	}

	writeDoctorList(w, "Favorite doctors retrieved successfully", result)
}

func (h *ProfileHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req dto.ToggleFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	sessionID, _ := middleware.GetSessionIDFromContext(r.Context())

	result, err := h.sessionSync.ToggleFavorite(r.Context(), sessionID, userID, req.DoctorID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrDoctorNotFound):
			response.NotFound(w, "Doctor not found")
		default:
			writeError(w, err, "Failed to update favorites")
		}
		return
	}

	response.Success(w, http.StatusOK, "Favorites updated successfully", &dto.FavoriteResponse{
		DoctorID:          result.DoctorID,
		Favorite:          result.Favorite,
		FavoriteDoctorIDs: result.FavoriteDoctorIDs,
	})
}

func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	image, closeImage, ok := readImage(w, r)
	if !ok {
		response.BadRequest(w, "Expected a multipart form with an image file up to 5MB")
		return
	}
	defer closeImage()

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	sessionID, _ := middleware.GetSessionIDFromContext(r.Context())

	synced, err := h.sessionSync.UploadAvatar(r.Context(), sessionID, userID, image)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrUnsupportedImage):
			response.BadRequest(w, err.Error())
		default:
			writeError(w, err, "Failed to upload avatar")
		}
		return
	}

	response.Success(w, http.StatusOK, "Avatar uploaded successfully", syncedToResponse(synced))
}

// DeleteAccount removes the profile and signs the user out everywhere.
func (h *ProfileHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	sessionID, _ := middleware.GetSessionIDFromContext(r.Context())

	if err := h.sessionSync.DeleteAccount(r.Context(), sessionID, userID); err != nil {
		writeError(w, err, "Failed to delete account")
		return
	}

	if err := h.authUsecase.RevokeAllUserTokens(r.Context(), userID); err != nil {
		writeError(w, err, "Account deleted but tokens could not be revoked")
		return
	}

	response.Success(w, http.StatusOK, "Account deleted successfully", nil)
}
