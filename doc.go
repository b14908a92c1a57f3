// Package auth implements an OTP-verified authentication backend: user
// registration with email verification, login with signed session tokens,
// and session validation for protected routes.
//
// Account lifecycle:
//   - Accounts move from unregistered through pending verification to
//     verified; verified is terminal. Registration creates an unverified
//     user, seeds a short-lived one-time password challenge, and mails the
//     code. Only verified accounts can log in.
//   - OTP challenges live in redis under a per-user key with a storage
//     enforced TTL. The plaintext code is returned once for delivery and
//     only its bcrypt digest is persisted.
//
// Sessions:
//   - TokenService signs and validates HS256 JWTs carrying the user id.
//     Validation distinguishes expired tokens from malformed ones so the
//     HTTP layer can answer each differently.
//   - SessionManager handles the HTTP-only session cookie and guards
//     protected routes, decoding claims into a SessionObject.
package auth
