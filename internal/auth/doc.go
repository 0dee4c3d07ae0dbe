// Package auth handles credential verification and API token issuance.
//
// Passwords are hashed with Argon2id and stored in PHC string format, so
// parameters travel with the hash and can be tuned without invalidating
// existing credentials. API access uses short-lived HS256 JWTs.
package auth
