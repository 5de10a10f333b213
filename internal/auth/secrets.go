package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ResponseTokenBytes is the entropy of a borrow request response token.
const ResponseTokenBytes = 32

// NewResponseToken returns a random, URL-safe token for a response link.
func NewResponseToken() (string, error) {
	buf := make([]byte, ResponseTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating response token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyHash is compared against when a login names an unknown user, so both
// paths take about as long.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("posoja-timing-equaliser"), bcrypt.DefaultCost)

// CheckNoUser burns the same bcrypt work as CheckPassword and always fails.
func CheckNoUser(password string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	return false
}
