package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType is the closed set of account roles on the marketplace
type RoleType string

const (
	RoleStudent    RoleType = "student"    // Browses, enrols and learns
	RoleInstructor RoleType = "instructor" // Authors and publishes courses
)

// Roles lists every valid role
var Roles = []RoleType{RoleStudent, RoleInstructor}

// Valid reports whether r is one of the known roles
func (r RoleType) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor:
		return true
	}
	return false
}

func (r RoleType) String() string {
	return string(r)
}

// ParseRole normalises a role claim. Unknown values return ok=false.
func ParseRole(s string) (RoleType, bool) {
	role := RoleType(strings.ToLower(strings.TrimSpace(s)))
	return role, role.Valid()
}

type User struct {
	ID           string    `json:"id,omitempty"`          // Unique identifier for the user
	Email        string    `json:"email,omitempty"`       // User's email address
	PasswordHash string    `json:"-"`                     // Hashed version of the user's password - never serialize
	FirstName    string    `json:"first_name,omitempty"`  // First name of the user
	LastName     string    `json:"last_name,omitempty"`   // Last name of the user
	UserType     RoleType  `json:"user_type,omitempty"`   // student or instructor
	Provider     string    `json:"provider,omitempty"`    // External identity provider (e.g. google), empty for password accounts
	ProviderID   string    `json:"providerId,omitempty"`  // Subject at the external identity provider
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
	LastLogin    time.Time `json:"last_login,omitempty"`  // Last time the user logged in
	Blocked      bool      `json:"blocked,omitempty"`     // Blocked, has the user been blocked from logging in
}

// DisplayName joins first and last name
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasProvider reports whether the account is linked to the given external identity
func (u *User) HasProvider(provider, providerID string) bool {
	return u.Provider != "" && u.Provider == provider && u.ProviderID == providerID
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
