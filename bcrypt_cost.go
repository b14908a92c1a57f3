//go:build !race

package auth

// Fixed work factor shared by password and OTP digests.
func passwordHashCost() int {
	return 14
}
