package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when a password does not match its
	// stored hash. Deliberately indistinguishable from an unknown user at
	// the API surface.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidHash is returned when a stored hash cannot be parsed.
	ErrInvalidHash = errors.New("auth: invalid password hash")

	// ErrIncompatibleVersion is returned when a hash was produced by an
	// unsupported Argon2 version.
	ErrIncompatibleVersion = errors.New("auth: incompatible argon2 version")

	// ErrInvalidToken is returned when a JWT fails validation for any
	// reason (signature, expiry, malformed claims).
	ErrInvalidToken = errors.New("auth: invalid token")
)
