package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenSubject describes who a token is minted for.
type TokenSubject struct {
	AccountID uuid.UUID
	Email     string
	Origin    string
}

// TokenClaims is the payload of every token class.
type TokenClaims struct {
	Email  string     `json:"email,omitempty"`
	Class  TokenClass `json:"cls"`
	Origin string     `json:"origin,omitempty"`
	jwt.RegisteredClaims
}

// AccountID parses the subject claim.
func (c *TokenClaims) AccountID() (uuid.UUID, error) {
	if c == nil || c.Subject == "" {
		return uuid.Nil, ErrTokenInvalid()
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrTokenInvalid()
	}
	return id, nil
}

// TokenID returns the jti claim.
func (c *TokenClaims) TokenID() string {
	if c == nil {
		return ""
	}
	return c.ID
}
