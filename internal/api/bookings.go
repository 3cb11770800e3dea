package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/fulfillment"
	"medeasy/marketplace/internal/lifecycle"
)

func (h *Handler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePatient) {
		return
	}
	var req fulfillment.BookAppointmentInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.PatientID = userID(r)
	appt, err := h.Service.BookAppointment(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, appt)
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.Service.GetAppointment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !isParty(r, appt.PatientID, appt.DoctorID, domain.RoleDoctor) {
		respondError(w, http.StatusForbidden, "appointment belongs to another account")
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

func (h *Handler) transitionAppointment(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDoctor, domain.RoleAdmin, domain.RolePatient) {
		return
	}
	var req fulfillment.TransitionInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	appt, err := h.Service.GetAppointment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !isParty(r, appt.PatientID, appt.DoctorID, domain.RoleDoctor) {
		respondError(w, http.StatusForbidden, "appointment belongs to another account")
		return
	}
	if roleOf(r) == domain.RolePatient && !patientAction(req.Action) {
		respondError(w, http.StatusForbidden, "patients may only cancel or reschedule")
		return
	}

	appt, err = h.Service.TransitionAppointment(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

func (h *Handler) bookLabTest(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePatient) {
		return
	}
	var req fulfillment.BookLabTestInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.PatientID = userID(r)
	booking, err := h.Service.BookLabTest(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, booking)
}

func (h *Handler) getLabBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.Service.GetLabBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !isParty(r, booking.PatientID, booking.LaboratoryID, domain.RoleLaboratory) {
		respondError(w, http.StatusForbidden, "lab booking belongs to another account")
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

func (h *Handler) transitionLabBooking(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleLaboratory, domain.RoleAdmin, domain.RolePatient) {
		return
	}
	var req fulfillment.TransitionInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	booking, err := h.Service.GetLabBooking(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !isParty(r, booking.PatientID, booking.LaboratoryID, domain.RoleLaboratory) {
		respondError(w, http.StatusForbidden, "lab booking belongs to another account")
		return
	}
	if roleOf(r) == domain.RolePatient && req.Action != lifecycle.ActionCancel {
		respondError(w, http.StatusForbidden, "patients may only cancel")
		return
	}

	booking, err = h.Service.TransitionLabBooking(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

// isParty reports whether the caller is the booking's patient, its provider
// (when the caller holds providerRole) or an admin.
func isParty(r *http.Request, patientID, providerID int64, providerRole string) bool {
	switch roleOf(r) {
	case domain.RoleAdmin:
		return true
	case domain.RolePatient:
		return patientID == userID(r)
	case providerRole:
		return providerID == userID(r)
	}
	return false
}

func patientAction(a lifecycle.Action) bool {
	return a == lifecycle.ActionCancel || a == lifecycle.ActionReschedule
}
