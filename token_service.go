package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer mints and verifies signed tokens of the four classes.
type TokenIssuer interface {
	Issue(class TokenClass, subject TokenSubject) (string, *TokenClaims, error)
	Verify(class TokenClass, raw string) (*TokenClaims, error)
}

// TokenService is the HS256 TokenIssuer backed by a SecretStore.
type TokenService struct {
	secrets *SecretStore
	issuer  string
	now     func() time.Time
	logger  Logger
}

var _ TokenIssuer = (*TokenService)(nil)

// TokenServiceOption configures a TokenService.
type TokenServiceOption func(*TokenService)

// WithTokenClock overrides the time source used for iat, exp and validation.
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenIssuer sets the iss claim and requires it on verification.
func WithTokenIssuer(issuer string) TokenServiceOption {
	return func(s *TokenService) {
		s.issuer = strings.TrimSpace(issuer)
	}
}

// WithTokenLogger sets the logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(s *TokenService) {
		s.logger = normalizeLogger(logger)
	}
}

// NewTokenService returns a TokenService signing with secrets.
func NewTokenService(secrets *SecretStore, opts ...TokenServiceOption) *TokenService {
	s := &TokenService{
		secrets: secrets,
		now:     time.Now,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Issue signs a token of class for subject.
func (s *TokenService) Issue(class TokenClass, subject TokenSubject) (string, *TokenClaims, error) {
	secret, err := s.secrets.Secret(class)
	if err != nil {
		return "", nil, err
	}

	now := s.now().UTC()
	claims := &TokenClaims{
		Email:  subject.Email,
		Class:  class,
		Origin: subject.Origin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        newTokenID(now),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.secrets.TTL(class))),
		},
	}
	if subject.AccountID != uuid.Nil {
		claims.Subject = subject.AccountID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", nil, errInternal(err, "failed to sign token")
	}

	return signed, claims, nil
}

// Verify checks the signature of raw with the secret of class, its expiry,
// and that its cls claim names class. Expired tokens fail with
// FailureTokenExpired, every other problem with FailureTokenInvalid.
func (s *TokenService) Verify(class TokenClass, raw string) (*TokenClaims, error) {
	secret, err := s.secrets.Secret(class)
	if err != nil {
		return nil, err
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired().
				WithMetadata(map[string]any{"class": string(class)})
		}
		s.logger.Debug("token verification failed", "class", class, "error", err)
		return nil, ErrTokenInvalid().
			WithMetadata(map[string]any{"class": string(class)})
	}

	if !token.Valid || claims.Class != class {
		return nil, ErrTokenInvalid().
			WithMetadata(map[string]any{"class": string(class)})
	}

	return claims, nil
}
