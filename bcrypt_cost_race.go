//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// Race-enabled builds run the suite with a cheaper work factor so the
// OTP round trips stay inside strict test timeouts.
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
