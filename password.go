package novaauth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHashCost is the bcrypt work factor.
const PasswordHashCost = 12

// MinPasswordLength is the minimum accepted password length on signup.
const MinPasswordLength = 6

// HashPassword runs the plaintext through bcrypt. Callers invoke this
// exactly once, when a password is first set or changed - never when
// re-saving an account - otherwise stored digests get re-hashed into
// garbage.
func HashPassword(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), PasswordHashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// VerifyPassword compares the plaintext against the stored digest.
// Returns false (never an error) when the account has no digest, which is
// the normal state for federated-only accounts.
func VerifyPassword(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
