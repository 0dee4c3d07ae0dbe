package user

import "errors"

var (
	// ErrUserNotFound is returned when a user ID or email does not exist.
	ErrUserNotFound = errors.New("user: not found")

	// ErrEmailExists is returned when creating or updating a user with an
	// email address that another account already uses.
	ErrEmailExists = errors.New("user: email already exists")

	// ErrInvalidEmail is returned when an empty email is supplied.
	ErrInvalidEmail = errors.New("user: invalid email")
)
