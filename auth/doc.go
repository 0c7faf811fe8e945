// Package auth is the authorization collaborator and account layer.
//
// Tokens are HS256 JWTs carrying the user id and role with a bounded
// lifetime. Accounts live in a NATS KV bucket: registration leaves the
// account pending until an admin approves it, login is by email with a
// bcrypt password check, and password recovery uses a short-lived
// urlsafe reset token delivered through a pluggable Mailer.
package auth
