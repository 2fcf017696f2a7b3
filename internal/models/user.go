package models

import "time"

// Role grants access to administrative operations.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a registered user account.
// Pledges reference users through Pledge.SubmitterID.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `json:"id"`

	// DisplayName is the name shown on the profile page.
	DisplayName string `json:"displayName"`

	// Email is the user's login, unique and stored lowercase.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string `json:"-"`

	Role Role `json:"role"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUser creates a user with the given details. The store assigns the ID.
func NewUser(email, displayName, passwordHash string, role Role, now time.Time) *User {
	return &User{
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAdmin reports whether the user may maintain the statistic catalog.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
