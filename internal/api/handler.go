package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/assignment"
	"medeasy/marketplace/internal/fulfillment"
	"medeasy/marketplace/internal/inventory"
)

type ctxKey string

const (
	ctxUserID     ctxKey = "userID"
	ctxRole       ctxKey = "role"
	ctxPharmacyID ctxKey = "pharmacyID"
)

// Dependencies are the collaborators behind the HTTP handlers.
type Dependencies struct {
	Service      *fulfillment.Service
	Deliveries   *assignment.Controller
	Inventory    *inventory.Repository
	Catalog      *inventory.CachedProvider
	Logger       *zap.Logger
	AllowOrigins []string
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db     *sqlx.DB
	secret string
	Dependencies
}

// New constructs a Handler.
func New(db *sqlx.DB, secret string, deps Dependencies) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Catalog == nil && deps.Inventory != nil {
		deps.Catalog = inventory.NewCachedProvider(deps.Inventory, nil, 0, deps.Logger)
	}
	if len(deps.AllowOrigins) == 0 {
		deps.AllowOrigins = []string{"*"}
	}
	return &Handler{db: db, secret: secret, Dependencies: deps}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Post("/commission/quote", h.quoteCommission)

		pr.Route("/orders", func(r chi.Router) {
			r.Post("/", h.placeOrder)
			r.Get("/{id}", h.getOrder)
			r.Get("/{id}/delivery", h.getOrderDelivery)
			r.Post("/{id}/transitions", h.transitionOrder)
		})

		pr.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.bookAppointment)
			r.Get("/{id}", h.getAppointment)
			r.Post("/{id}/transitions", h.transitionAppointment)
		})

		pr.Route("/lab-bookings", func(r chi.Router) {
			r.Post("/", h.bookLabTest)
			r.Get("/{id}", h.getLabBooking)
			r.Post("/{id}/transitions", h.transitionLabBooking)
		})

		pr.Route("/deliveries", func(r chi.Router) {
			r.Get("/open", h.openDeliveries)
			r.Post("/accept-next", h.acceptNextDelivery)
			r.Get("/{id}", h.getDelivery)
			r.Post("/{id}/accept", h.acceptDelivery)
			r.Post("/{id}/transitions", h.transitionDelivery)
		})

		pr.Route("/delivery-partners/me", func(r chi.Router) {
			r.Get("/", h.getPartnerProfile)
			r.Put("/", h.updatePartnerProfile)
		})

		pr.Route("/prescriptions", func(r chi.Router) {
			r.Post("/", h.uploadPrescription)
			r.Get("/{id}", h.getPrescription)
			r.Post("/{id}/match", h.matchPrescription)
		})

		pr.Get("/pharmacies", h.listPharmacies)
		pr.Get("/medicines", h.searchMedicines)

		pr.Route("/inventory", func(r chi.Router) {
			r.Post("/", h.addInventory)
			r.Put("/{id}", h.updateInventory)
			r.Post("/{id}/stock", h.updateStock)
			r.Get("/search", h.searchInventory)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.Logger.Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Authentication helpers

type authClaims struct {
	UserID     int64  `json:"user_id"`
	Role       string `json:"role"`
	PharmacyID int64  `json:"pharmacy_id,omitempty"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64, role string, pharmacyID int64) (string, error) {
	claims := authClaims{
		UserID:     userID,
		Role:       role,
		PharmacyID: pharmacyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok || !domain.ValidRole(claims.Role) {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		if claims.Role == domain.RolePharmacy {
			if claims.PharmacyID <= 0 {
				respondError(w, http.StatusForbidden, "user is not linked to a pharmacy")
				return
			}
			ctx = context.WithValue(ctx, ctxPharmacyID, claims.PharmacyID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxUserID).(int64)
	return id
}

func pharmacyIDFromContext(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxPharmacyID).(int64)
	return id
}

func roleOf(r *http.Request) string {
	role, _ := r.Context().Value(ctxRole).(string)
	return role
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	current := roleOf(r)
	if current == "" {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}
