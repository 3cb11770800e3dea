package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/fulfillment"
)

func (h *Handler) openDeliveries(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDeliveryPartner, domain.RoleAdmin) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	deliveries, err := h.Service.OpenDeliveries(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, deliveries)
}

func (h *Handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDeliveryPartner, domain.RoleAdmin, domain.RolePharmacy, domain.RolePatient) {
		return
	}
	d, err := h.Service.GetDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if roleOf(r) == domain.RolePatient || roleOf(r) == domain.RolePharmacy {
		order, err := h.Service.GetOrder(r.Context(), d.OrderID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !canSeeOrder(r, order) {
			respondError(w, http.StatusForbidden, "delivery belongs to another account")
			return
		}
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) acceptDelivery(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDeliveryPartner) {
		return
	}
	d, err := h.Deliveries.Accept(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) acceptNextDelivery(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDeliveryPartner) {
		return
	}
	d, err := h.Deliveries.AcceptNext(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// transitionDelivery drives a claimed delivery. Partners may only move their
// own deliveries; admins act without an actor.
func (h *Handler) transitionDelivery(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDeliveryPartner, domain.RoleAdmin) {
		return
	}
	var req fulfillment.TransitionInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if roleOf(r) == domain.RoleDeliveryPartner {
		req.ActorID = userID(r)
	}
	d, err := h.Service.TransitionDelivery(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) getPartnerProfile(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDeliveryPartner) {
		return
	}
	p, err := h.Deliveries.Partner(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type availabilityRequest struct {
	Available               bool `json:"available"`
	MaxConcurrentDeliveries int  `json:"max_concurrent_deliveries"`
}

func (h *Handler) updatePartnerProfile(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDeliveryPartner) {
		return
	}
	var req availabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.Deliveries.SetAvailability(r.Context(), userID(r), req.Available, req.MaxConcurrentDeliveries)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
