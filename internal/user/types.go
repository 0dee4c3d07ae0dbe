package user

import "time"

// User represents an account that can authenticate against the API.
//
// PasswordHash is never serialised to JSON; handlers return users directly
// and rely on the `json:"-"` tag to keep the hash off the wire.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
