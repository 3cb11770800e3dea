package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/commission"
	"medeasy/marketplace/internal/fulfillment"
	"medeasy/marketplace/internal/lifecycle"
)

type quoteRequest struct {
	Kind        commission.Kind `json:"kind"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
}

func (h *Handler) quoteCommission(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Kind == "" {
		req.Kind = commission.KindOrder
	}
	split, err := h.Service.QuoteSplit(req.Kind, req.GrossAmount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, split)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePatient) {
		return
	}
	var req fulfillment.PlaceOrderInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.PatientID = userID(r)
	order, err := h.Service.PlaceOrder(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !canSeeOrder(r, order) {
		respondError(w, http.StatusForbidden, "order belongs to another account")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) getOrderDelivery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := h.Service.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !canSeeOrder(r, order) {
		respondError(w, http.StatusForbidden, "order belongs to another account")
		return
	}
	d, err := h.Service.OrderDelivery(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// transitionOrder lets the order's pharmacy drive it. A patient may only
// cancel their own order.
func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePharmacy, domain.RoleAdmin, domain.RolePatient) {
		return
	}
	var req fulfillment.TransitionInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	order, err := h.Service.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	switch roleOf(r) {
	case domain.RolePatient:
		if order.PatientID != userID(r) || req.Action != lifecycle.ActionCancel {
			respondError(w, http.StatusForbidden, "patients may only cancel their own orders")
			return
		}
	case domain.RolePharmacy:
		if order.PharmacyID != pharmacyIDFromContext(r) {
			respondError(w, http.StatusForbidden, "order does not belong to your pharmacy")
			return
		}
	}

	order, err = h.Service.TransitionOrder(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func canSeeOrder(r *http.Request, o *domain.Order) bool {
	switch roleOf(r) {
	case domain.RolePatient:
		return o.PatientID == userID(r)
	case domain.RolePharmacy:
		return o.PharmacyID == pharmacyIDFromContext(r)
	case domain.RoleAdmin, domain.RoleDeliveryPartner:
		return true
	}
	return false
}
