package model

import "time"

// User roles.
const (
	RoleUser      = "user"
	RoleDeveloper = "developer"
)

// User is an account that can browse, download and publish applications.
// PasswordHash never leaves the process.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}
