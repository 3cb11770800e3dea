package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/matching"
)

// maxPrescriptionUpload bounds the multipart body of a prescription upload.
const maxPrescriptionUpload = 10 << 20

type uploadResponse struct {
	Prescription *domain.Prescription `json:"prescription"`
	Error        string               `json:"error,omitempty"`
	Reason       string               `json:"reason,omitempty"`
}

// uploadPrescription stores the image's extraction. A failed extraction still
// returns the rejected prescription, with the failure reason, as 422.
func (h *Handler) uploadPrescription(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePatient) {
		return
	}
	if err := r.ParseMultipartForm(maxPrescriptionUpload); err != nil {
		respondError(w, http.StatusBadRequest, "expected multipart form with an image field")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil || len(image) == 0 {
		respondError(w, http.StatusBadRequest, "unable to read image")
		return
	}

	p, err := h.Service.UploadPrescription(r.Context(), userID(r), image, header.Filename)
	if err != nil {
		if p == nil {
			h.fail(w, r, err)
			return
		}
		respondJSON(w, http.StatusUnprocessableEntity, uploadResponse{
			Prescription: p,
			Error:        err.Error(),
			Reason:       p.FailureReason,
		})
		return
	}
	respondJSON(w, http.StatusCreated, uploadResponse{Prescription: p})
}

func (h *Handler) getPrescription(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetPrescription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if roleOf(r) == domain.RolePatient && p.PatientID != userID(r) {
		respondError(w, http.StatusForbidden, "prescription belongs to another account")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type matchResponse struct {
	matching.Report
	ManualVerification bool `json:"manual_verification"`
}

func (h *Handler) matchPrescription(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePatient, domain.RolePharmacy, domain.RoleAdmin) {
		return
	}
	id := chi.URLParam(r, "id")
	if roleOf(r) == domain.RolePatient {
		p, err := h.Service.GetPrescription(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if p.PatientID != userID(r) {
			respondError(w, http.StatusForbidden, "prescription belongs to another account")
			return
		}
	}

	report, err := h.Service.MatchPrescription(r.Context(), id)
	switch {
	case errors.Is(err, matching.ErrNoMatchesFound):
		respondJSON(w, http.StatusOK, matchResponse{Report: report, ManualVerification: true})
	case err != nil:
		h.fail(w, r, err)
	default:
		respondJSON(w, http.StatusOK, matchResponse{Report: report})
	}
}
