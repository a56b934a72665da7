package auth

import (
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TokenClass identifies the purpose a token was minted for.
type TokenClass string

const (
	TokenAccess            TokenClass = "access"
	TokenRefresh           TokenClass = "refresh"
	TokenEmailVerification TokenClass = "email_verification"
	TokenPasswordReset     TokenClass = "password_reset"
)

// TokenClasses lists every class a SecretStore must configure.
func TokenClasses() []TokenClass {
	return []TokenClass{TokenAccess, TokenRefresh, TokenEmailVerification, TokenPasswordReset}
}

func (c TokenClass) String() string { return string(c) }

// ClassSecret is the signing material and lifetime for one token class.
type ClassSecret struct {
	Secret string
	TTL    time.Duration
}

// SecretStore holds one secret and TTL per token class. It is immutable after
// construction and safe for concurrent use.
type SecretStore struct {
	classes map[TokenClass]ClassSecret
}

// NewSecretStore validates that every class has a non-empty secret, that no
// two classes share a secret, and that every TTL is positive.
func NewSecretStore(classes map[TokenClass]ClassSecret) (*SecretStore, error) {
	seen := map[string]TokenClass{}
	store := &SecretStore{classes: make(map[TokenClass]ClassSecret, len(classes))}

	for _, class := range TokenClasses() {
		cs, ok := classes[class]
		if !ok || cs.Secret == "" {
			return nil, secretError(class, "missing secret for token class")
		}
		if cs.TTL <= 0 {
			return nil, secretError(class, "token ttl must be positive")
		}
		if other, dup := seen[cs.Secret]; dup {
			return nil, secretError(class, fmt.Sprintf("secret shared with token class %s", other))
		}
		seen[cs.Secret] = class
		store.classes[class] = cs
	}

	return store, nil
}

// MustSecretStore is like NewSecretStore but panics on error.
func MustSecretStore(classes map[TokenClass]ClassSecret) *SecretStore {
	store, err := NewSecretStore(classes)
	if err != nil {
		panic(err)
	}
	return store
}

func secretError(class TokenClass, msg string) error {
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithMetadata(map[string]any{"class": string(class)})
}

func (s *SecretStore) lookup(class TokenClass) (ClassSecret, error) {
	if s == nil {
		return ClassSecret{}, secretError(class, "secret store not configured")
	}
	cs, ok := s.classes[class]
	if !ok {
		return ClassSecret{}, secretError(class, "unknown token class")
	}
	return cs, nil
}

// Secret returns the signing key of class.
func (s *SecretStore) Secret(class TokenClass) ([]byte, error) {
	cs, err := s.lookup(class)
	if err != nil {
		return nil, err
	}
	return []byte(cs.Secret), nil
}

// TTL returns the lifetime of tokens of class, or zero for unknown classes.
func (s *SecretStore) TTL(class TokenClass) time.Duration {
	cs, err := s.lookup(class)
	if err != nil {
		return 0
	}
	return cs.TTL
}
