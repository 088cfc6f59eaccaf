package model

import (
	"time"

	"github.com/iliyamo/cafe-backend/internal/permission"
)

// User represents an account row in the `users` table. PasswordHash
// never leaves the server: it has no JSON representation and handlers
// render users through this struct directly.
//
// Fields:
//  ID                  - primary key identifier.
//  Email               - unique, stored lower-cased and trimmed.
//  FirstName, LastName - display names, capitalised on registration.
//  Phone               - optional contact number.
//  PasswordHash        - bcrypt hash of the current password.
//  Role                - customer, staff or admin; drives permissions.
//  IsActive            - false once the account is deactivated.
//  DietaryRestrictions - free-form preference tags.
//  CreatedAt           - creation timestamp.
//  UpdatedAt           - last update timestamp.
type User struct {
	ID                  uint64          `json:"id"`                  // users.id
	Email               string          `json:"email"`               // users.email
	FirstName           string          `json:"firstName"`           // users.first_name
	LastName            string          `json:"lastName"`            // users.last_name
	Phone               string          `json:"phone,omitempty"`     // users.phone
	PasswordHash        string          `json:"-"`                   // users.password_hash
	Role                permission.Role `json:"role"`                // users.role
	IsActive            bool            `json:"isActive"`            // users.is_active
	DietaryRestrictions []string        `json:"dietaryRestrictions"` // users.dietary_restrictions (JSON)
	CreatedAt           time.Time       `json:"createdAt"`           // users.created_at
	UpdatedAt           time.Time       `json:"updatedAt"`           // users.updated_at
}

// NewUser is what the credential store needs to create an account. The
// plaintext password is hashed by the store and never kept.
type NewUser struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      permission.Role
}

// Address types accepted in `user_addresses.type`.
const (
	AddressHome  = "home"
	AddressWork  = "work"
	AddressOther = "other"
)

// Address is a saved delivery address (`user_addresses`).
type Address struct {
	ID        uint64 `json:"id"`
	Type      string `json:"type"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	IsDefault bool   `json:"isDefault"`
}

// FavoriteItem is the slice of a menu item shown on a profile.
type FavoriteItem struct {
	ID       uint64  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl,omitempty"`
}
