package entities

import (
	"strings"
	"time"
)

type UserRole string

const (
	UserRoleAdmin      UserRole = "Admin"
	UserRoleTeacher    UserRole = "Teacher"
	UserRoleAccountant UserRole = "Accountant"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleTeacher, UserRoleAccountant:
		return true
	}
	return false
}

// User is an account that can sign in either with local credentials
// (PasswordHash set) or through the hosted identity provider.
// ID is assigned once and never updated.
type User struct {
	ID              string    `gorm:"primaryKey;size:64" json:"id"`
	Email           *string   `gorm:"uniqueIndex;size:255" json:"email"`
	PasswordHash    *string   `gorm:"size:255" json:"-"`
	FirstName       *string   `gorm:"size:128" json:"firstName"`
	LastName        *string   `gorm:"size:128" json:"lastName"`
	ProfileImageURL *string   `gorm:"size:2048" json:"profileImageUrl"`
	Role            UserRole  `gorm:"size:32;not null;default:Admin" json:"role"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasPassword reports whether the account can use the local credential flow.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// EmailAddress returns the email or "" when none is set.
func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// Sanitized returns a shallow copy without the password hash.
func (u *User) Sanitized() *User {
	cp := *u
	cp.PasswordHash = nil
	return &cp
}

// NormalizeEmail lower-cases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StringPtr returns nil for empty strings, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
