package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/assignment"
	"medeasy/marketplace/internal/commission"
	"medeasy/marketplace/internal/fulfillment"
	"medeasy/marketplace/internal/inventory"
	"medeasy/marketplace/internal/lifecycle"
	"medeasy/marketplace/internal/ocr"
)

// fail maps a use-case error onto a status code. Caller-facing errors keep
// their message; anything unrecognised is logged and hidden.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var failure *ocr.Failure
	if errors.As(err, &failure) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  err.Error(),
			"reason": string(failure.Reason),
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, commission.ErrInvalidAmount),
		errors.Is(err, commission.ErrInvalidRate),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, fulfillment.ErrAssignmentRequired),
		errors.Is(err, fulfillment.ErrDeliveryDriven):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, fulfillment.ErrInvalidRequest),
		errors.Is(err, inventory.ErrInvalidEntry),
		errors.Is(err, assignment.ErrInvalidCapacity):
		status = http.StatusBadRequest
	case errors.Is(err, assignment.ErrNoOpenDeliveries),
		errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, assignment.ErrAlreadyAssigned),
		errors.Is(err, assignment.ErrPartnerUnavailable),
		errors.Is(err, domain.ErrConcurrentUpdate),
		errors.Is(err, fulfillment.ErrInsufficientStock),
		errors.Is(err, fulfillment.ErrExpiredStock),
		errors.Is(err, fulfillment.ErrDeliveryUnderway),
		errors.Is(err, fulfillment.ErrNotProcessed):
		status = http.StatusConflict
	case errors.Is(err, fulfillment.ErrNotYourDelivery):
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, err.Error())
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
