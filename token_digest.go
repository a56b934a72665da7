package auth

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest returns the keyed BLAKE2b-256 digest of a token of class. Refresh
// and password reset tokens are persisted only in this form. The digest is
// deterministic so it can be matched inside a conditional UPDATE.
func (s *SecretStore) Digest(class TokenClass, token string) (string, error) {
	secret, err := s.Secret(class)
	if err != nil {
		return "", err
	}

	key := blake2b.Sum256(secret)
	h, err := blake2b.New256(key[:])
	if err != nil {
		return "", errInternal(err, "failed to initialize token digest")
	}
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MatchDigest reports whether token hashes to stored. A nil stored digest
// never matches.
func (s *SecretStore) MatchDigest(class TokenClass, token string, stored *string) bool {
	if stored == nil || *stored == "" || token == "" {
		return false
	}
	digest, err := s.Digest(class, token)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(digest), []byte(*stored)) == 1
}
