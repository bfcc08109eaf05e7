package domain

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UnknownUser is the display label used when a connection or actor has no identity.
const UnknownUser = "Unknown User"

type User struct {
	ID             string
	OrganizationID string
	FullName       string
	Email          string
	HashedPassword string
	CreatedAt      time.Time
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword compares a plaintext password with the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) == nil
}

// Identity describes who is behind a connection or a change.
// Only UserID is trusted, and only when it comes from a validated session.
type Identity struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

// DisplayName returns the best human label for the identity.
func (i Identity) DisplayName() string {
	switch {
	case i.UserName != "":
		return i.UserName
	case i.UserEmail != "":
		return i.UserEmail
	default:
		return UnknownUser
	}
}

// MergeIdentity fills the empty fields of trusted with values announced by the client.
// A non-empty trusted UserID is never replaced.
func MergeIdentity(trusted, announced Identity) Identity {
	merged := trusted
	if merged.UserID == "" {
		merged.UserID = announced.UserID
	}
	if merged.UserName == "" {
		merged.UserName = announced.UserName
	}
	if merged.UserEmail == "" {
		merged.UserEmail = announced.UserEmail
	}
	return merged
}
