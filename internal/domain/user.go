package domain

import "time"

// Roles stored in the users table.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the profile row kept in the public users table. The role column is
// the only source of truth for admin access.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidRole reports whether role can be stored on a user.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// Principal is the authenticated identity resolved for one request.
type Principal struct {
	ID   string
	Role string
}
