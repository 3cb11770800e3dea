package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"medeasy/marketplace/domain"
)

// defaultPartnerCapacity is the concurrent delivery limit given to new
// delivery partners.
const defaultPartnerCapacity = 3

type registerRequest struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	Role             string `json:"role"`
	PharmacyName     string `json:"pharmacy_name,omitempty"`
	PharmacyAddress  string `json:"pharmacy_address,omitempty"`
	PharmacyLocation string `json:"pharmacy_location,omitempty"`
}

type authResponse struct {
	Token    string           `json:"token"`
	User     domain.User      `json:"user"`
	Pharmacy *domain.Pharmacy `json:"pharmacy,omitempty"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "username, email, password and role are required")
		return
	}
	if !domain.ValidRole(req.Role) || req.Role == domain.RoleAdmin {
		respondError(w, http.StatusBadRequest, "role must be patient, pharmacy, doctor, laboratory or delivery_partner")
		return
	}
	if req.Role == domain.RolePharmacy && strings.TrimSpace(req.PharmacyName) == "" {
		respondError(w, http.StatusBadRequest, "pharmacy_name is required for pharmacies")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	tx, err := h.db.BeginTxx(r.Context(), nil)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to start registration")
		return
	}
	defer tx.Rollback()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var uid int64
	err = tx.QueryRowxContext(r.Context(), `INSERT INTO users (username, email, password, role) VALUES (?, ?, ?, ?) RETURNING id`,
		req.Username, email, string(hashed), req.Role).Scan(&uid)
	if err != nil {
		respondError(w, http.StatusConflict, "email already exists")
		return
	}

	var pharmacy *domain.Pharmacy
	switch req.Role {
	case domain.RolePharmacy:
		var pharmacyID int64
		err = tx.QueryRowxContext(r.Context(), `INSERT INTO pharmacies (name, address, location, owner_id) VALUES (?, ?, ?, ?) RETURNING id`,
			req.PharmacyName, req.PharmacyAddress, req.PharmacyLocation, uid).Scan(&pharmacyID)
		if err != nil {
			h.Logger.Error("failed to create pharmacy", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "unable to create pharmacy")
			return
		}
		pharmacy = &domain.Pharmacy{
			ID:       pharmacyID,
			Name:     req.PharmacyName,
			Address:  req.PharmacyAddress,
			Location: req.PharmacyLocation,
			OwnerID:  &uid,
		}
	case domain.RoleDeliveryPartner:
		_, err = tx.ExecContext(r.Context(), `INSERT INTO delivery_partners (user_id, max_concurrent_deliveries, available) VALUES (?, ?, 1)`,
			uid, defaultPartnerCapacity)
		if err != nil {
			h.Logger.Error("failed to create delivery partner profile", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "unable to create delivery partner profile")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to complete registration")
		return
	}

	var pharmacyID int64
	if pharmacy != nil {
		pharmacyID = pharmacy.ID
	}
	token, err := h.generateToken(uid, req.Role, pharmacyID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{
		Token:    token,
		User:     domain.User{ID: uid, Username: req.Username, Email: email, Role: req.Role},
		Pharmacy: pharmacy,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user domain.User
	err := h.db.GetContext(r.Context(), &user, `SELECT id, username, email, password, role FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	var pharmacyID int64
	if user.Role == domain.RolePharmacy {
		err = h.db.GetContext(r.Context(), &pharmacyID, `SELECT id FROM pharmacies WHERE owner_id = ? ORDER BY id LIMIT 1`, user.ID)
		if err != nil {
			respondError(w, http.StatusForbidden, "user is not linked to a pharmacy")
			return
		}
	}

	token, err := h.generateToken(user.ID, user.Role, pharmacyID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}
