package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/inventory"
)

func (h *Handler) listPharmacies(w http.ResponseWriter, r *http.Request) {
	pharmacies, err := h.Inventory.Pharmacies(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pharmacies)
}

func (h *Handler) searchMedicines(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.Inventory.Medicines(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, medicines)
}

// searchInventory lists in-stock entries of one pharmacy. Pharmacy users
// search their own stock; everyone else names the pharmacy.
func (h *Handler) searchInventory(w http.ResponseWriter, r *http.Request) {
	pharmacyID := pharmacyIDFromContext(r)
	if pharmacyID == 0 {
		var err error
		pharmacyID, err = strconv.ParseInt(r.URL.Query().Get("pharmacy_id"), 10, 64)
		if err != nil || pharmacyID <= 0 {
			respondError(w, http.StatusBadRequest, "pharmacy_id is required")
			return
		}
	}
	entries, err := h.Inventory.Search(r.Context(), pharmacyID, r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) addInventory(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePharmacy, domain.RoleAdmin) {
		return
	}
	var req inventory.AddInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if roleOf(r) == domain.RolePharmacy {
		req.PharmacyID = pharmacyIDFromContext(r)
	}
	id, err := h.Inventory.Add(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Catalog.Invalidate(r.Context())
	respondJSON(w, http.StatusCreated, map[string]any{"status": "inventory added", "id": id})
}

// ownedEntry loads the entry named in the path and checks a pharmacy user
// owns it. It writes the error response itself.
func (h *Handler) ownedEntry(w http.ResponseWriter, r *http.Request) (*domain.InventoryEntry, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid inventory id")
		return nil, false
	}
	entry, err := h.Inventory.Entry(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if roleOf(r) == domain.RolePharmacy && entry.PharmacyID != pharmacyIDFromContext(r) {
		respondError(w, http.StatusForbidden, "inventory does not belong to your pharmacy")
		return nil, false
	}
	return entry, true
}

func (h *Handler) updateInventory(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePharmacy, domain.RoleAdmin) {
		return
	}
	entry, ok := h.ownedEntry(w, r)
	if !ok {
		return
	}
	var req inventory.UpdateInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Inventory.Update(r.Context(), entry.ID, req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Catalog.Invalidate(r.Context())
	updated, err := h.Inventory.Entry(r.Context(), entry.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePharmacy, domain.RoleAdmin) {
		return
	}
	entry, ok := h.ownedEntry(w, r)
	if !ok {
		return
	}
	var payload struct {
		Quantity int64 `json:"quantity"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Inventory.UpdateStock(r.Context(), entry.ID, payload.Quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Catalog.Invalidate(r.Context())
	respondJSON(w, http.StatusOK, map[string]string{"status": "stock updated"})
}
