package handler

import (
	"errors"
	"net/http"

	"clinic-booking/internal/converter"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/response"
)

// DirectoryHandler serves the merged doctor and clinic directory. Listings
// never fail because the live roster is down; they report stale instead.
type DirectoryHandler struct {
	directory usecase.DirectoryUsecase
}

func NewDirectoryHandler(directory usecase.DirectoryUsecase) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

func writeDoctorList(w http.ResponseWriter, message string, result *usecase.DirectoryResult) {
	doctors := converter.DoctorsToResponses(result.Doctors)
	meta := &response.Meta{
		Total:   len(doctors),
		Stale:   result.Stale,
		Reason:  staleReason(result.FetchErr),
		Skipped: result.Skipped,
	}
	response.SuccessWithMeta(w, http.StatusOK, message, &dto.DoctorListResponse{
		Doctors: doctors,
		Total:   len(doctors),
		Stale:   result.Stale,
		Skipped: result.Skipped,
	}, meta)
}

// GetDoctors lists doctors
// @Summary List doctors
// @Description Bundled and live doctors merged, optionally filtered by specialty or a search term
// @Tags Directory
// @Produce json
// @Param specialty query string false "Specialty"
// @Param q query string false "Search by name, specialty or hospital"
// @Success 200 {object} response.Response
// @Router /doctors [get]
func (h *DirectoryHandler) GetDoctors(w http.ResponseWriter, r *http.Request) {
	filter := usecase.DoctorFilter{
		Specialty: r.URL.Query().Get("specialty"),
		Search:    r.URL.Query().Get("q"),
	}

	result, err := h.directory.ListDoctors(r.Context(), filter)
	if err != nil {
		writeError(w, err, "Failed to get doctors")
		return
	}

	writeDoctorList(w, "Doctors retrieved successfully", result)
}

// GetDoctor gets a doctor by ID
// @Summary Get doctor by ID
// @Tags Directory
// @Produce json
// @Param id path string true "Doctor ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /doctors/{id} [get]
func (h *DirectoryHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid doctor ID", nil)
		return
	}

	doctor, err := h.directory.GetDoctor(r.Context(), doctorID)
	if err != nil {
		if errors.Is(err, usecase.ErrDoctorNotFound) {
			response.NotFound(w, "Doctor not found")
			return
		}
		writeError(w, err, "Failed to get doctor")
		return
	}

	response.Success(w, http.StatusOK, "Doctor retrieved successfully", converter.DoctorToResponse(doctor))
}

func (h *DirectoryHandler) GetClinics(w http.ResponseWriter, r *http.Request) {
	result, err := h.directory.ListClinics(r.Context())
	if err != nil {
		writeError(w, err, "Failed to get clinics")
		return
	}

	clinics := make([]dto.ClinicResponse, 0, len(result.Clinics))
	for i := range result.Clinics {
		c := &result.Clinics[i]
		clinics = append(clinics, *converter.ClinicToResponse(&c.Clinic, c.Doctors))
	}

	meta := &response.Meta{Total: len(clinics), Stale: result.Stale}
	response.SuccessWithMeta(w, http.StatusOK, "Clinics retrieved successfully", &dto.ClinicListResponse{
		Clinics: clinics,
		Total:   len(clinics),
		Stale:   result.Stale,
	}, meta)
}

func (h *DirectoryHandler) GetClinic(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := pathID(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid clinic ID", nil)
		return
	}

	clinic, stale, err := h.directory.GetClinic(r.Context(), clinicID)
	if err != nil {
		if errors.Is(err, usecase.ErrClinicNotFound) {
			response.NotFound(w, "Clinic not found")
			return
		}
		writeError(w, err, "Failed to get clinic")
		return
	}

	response.SuccessWithMeta(w, http.StatusOK, "Clinic retrieved successfully",
		converter.ClinicToResponse(&clinic.Clinic, clinic.Doctors), &response.Meta{Total: 1, Stale: stale})
}
