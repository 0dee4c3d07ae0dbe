// Package user provides account persistence for the HTTP API.
//
// Accounts are keyed by UUID and by unique email address. Password hashes
// are stored verbatim; hashing and verification live in the auth package so
// the repository never sees a plaintext password.
package user
