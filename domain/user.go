package domain

// Marketplace roles carried in the JWT role claim.
const (
	RolePatient         = "patient"
	RolePharmacy        = "pharmacy"
	RoleDoctor          = "doctor"
	RoleLaboratory      = "laboratory"
	RoleDeliveryPartner = "delivery_partner"
	RoleAdmin           = "admin"
)

// ValidRole reports whether role is one of the marketplace roles.
func ValidRole(role string) bool {
	switch role {
	case RolePatient, RolePharmacy, RoleDoctor, RoleLaboratory, RoleDeliveryPartner, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        int64  `json:"id" db:"id"`
	Username  string `json:"username" db:"username"`
	Email     string `json:"email" db:"email"`
	Password  string `json:"password,omitempty" db:"password"`
	Role      string `json:"role" db:"role"`
	CreatedAt string `json:"created_at,omitempty" db:"created_at"`
}

// DeliveryPartner is the capacity profile of a delivery_partner user.
type DeliveryPartner struct {
	UserID                  int64 `db:"user_id" json:"user_id"`
	MaxConcurrentDeliveries int   `db:"max_concurrent_deliveries" json:"max_concurrent_deliveries"`
	Available               bool  `db:"available" json:"available"`
}
