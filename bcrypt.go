package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest password registration accepts.
	MinPasswordLength = 8
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

// BcryptHasher is the bcrypt PasswordHasher.
type BcryptHasher struct {
	cost int
}

var _ PasswordHasher = BcryptHasher{}

// NewBcryptHasher returns a hasher using cost, clamped to the bcrypt range.
// A zero cost selects the package default.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost == 0 {
		cost = passwordHashCost()
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return BcryptHasher{cost: clampCost(cost)}
}

// Cost returns the work factor new hashes are generated with.
func (b BcryptHasher) Cost() int { return b.cost }

// Hash returns the bcrypt digest of plaintext.
func (b BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", BadRequest(FailureMissingFields, "password must not be empty")
	}
	if len(plaintext) > MaxPasswordLength {
		return "", BadRequest(FailureInvalidInput, "password must be at most 72 bytes")
	}

	cost := b.cost
	if cost == 0 {
		cost = passwordHashCost()
	}

	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", errInternal(err, "failed to hash password")
	}
	return string(h), nil
}

// Verify reports whether plaintext matches hash. A mismatch is not an error;
// only a malformed stored hash is.
func (b BcryptHasher) Verify(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, errInternal(err, "stored password hash is invalid")
}
