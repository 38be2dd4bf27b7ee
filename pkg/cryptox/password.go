// Package cryptox wraps the hashing and random-token primitives shared by
// the services. Passwords and card CVVs are stored only as bcrypt hashes.
package cryptox

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// hashCost is tuned so a verify takes on the order of 100ms on current
// hardware.
const hashCost = bcrypt.DefaultCost

var ErrMismatch = errors.New("cryptox: hash does not match")

// HashPassword returns the bcrypt hash of a plaintext password. bcrypt
// embeds a per-password random salt in the encoded hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password against a bcrypt hash.
// Returns ErrMismatch when the password is wrong.
func VerifyPassword(encodedHash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	if err != nil {
		return ErrMismatch
	}
	return nil
}
