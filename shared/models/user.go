package models

// User is the identity bids and orders are attributed to.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Role gates the admin dashboards.
type Role string

// Roles.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// The two fixed identities the marketplace switches between.
var (
	DemoUser = User{
		ID:    "user-1",
		Name:  "Demo User",
		Email: "user@example.com",
		Role:  RoleUser,
	}
	DemoAdmin = User{
		ID:    "admin-1",
		Name:  "Admin User",
		Email: "admin@example.com",
		Role:  RoleAdmin,
	}
)
