// Package users holds the accounts the reference API signs in.
package users

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           string     `json:"id,omitempty"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	Permissions  []string   `json:"permissions"`
	Roles        []string   `json:"roles"`
	DateJoined   time.Time  `json:"date_joined,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	Blocked      bool       `json:"blocked,omitempty"`
}

// NormalizeEmail is the form e-mails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// SetPassword replaces the stored hash.
func (u *User) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// Authenticate reports whether password opens this account. Blocked accounts never authenticate.
func (u *User) Authenticate(password string) bool {
	if u.Blocked || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Active reports whether the account may keep using issued tokens.
func (u *User) Active() bool {
	return !u.Blocked
}
