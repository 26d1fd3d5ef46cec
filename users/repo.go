package users

import "time"

// UserRepo stores accounts. Lookups by e-mail are case-insensitive and return copies,
// so callers must Upsert to persist a change.
type UserRepo interface {
	Upsert(user *User) error
	Delete(id string) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	RecordLogin(id string, at time.Time) error
	List() ([]*User, error)
}
