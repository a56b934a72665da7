package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SessionManager issues access/refresh pairs and keeps the single stored
// refresh digest per account in step with the token the client holds.
type SessionManager struct {
	accounts Accounts
	tokens   TokenIssuer
	secrets  *SecretStore
	now      func() time.Time
	logger   Logger
}

// NewSessionManager returns a SessionManager.
func NewSessionManager(accounts Accounts, tokens TokenIssuer, secrets *SecretStore, logger Logger) *SessionManager {
	return &SessionManager{
		accounts: accounts,
		tokens:   tokens,
		secrets:  secrets,
		now:      time.Now,
		logger:   normalizeLogger(logger),
	}
}

// Login mints a new pair for account and overwrites any previous refresh
// digest, which ends every earlier session.
func (s *SessionManager) Login(ctx context.Context, account *Account) (*TokenPair, error) {
	subject := TokenSubject{AccountID: account.ID, Email: account.Email}

	refresh, _, err := s.tokens.Issue(TokenRefresh, subject)
	if err != nil {
		return nil, err
	}
	digest, err := s.secrets.Digest(TokenRefresh, refresh)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.StoreRefreshDigest(ctx, account.ID, digest, s.now().UTC()); err != nil {
		return nil, normalizeError(err, "failed to persist refresh token")
	}

	access, _, err := s.tokens.Issue(TokenAccess, subject)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges presented for a new pair. The stored digest is rotated
// with a compare-and-swap, so presented can be used at most once and of two
// concurrent refreshes with the same token only one succeeds.
func (s *SessionManager) Refresh(ctx context.Context, accountID uuid.UUID, presented string) (*TokenPair, error) {
	claims, err := s.tokens.Verify(TokenRefresh, presented)
	if err != nil {
		return nil, ErrAccessDenied()
	}
	if sub, err := claims.AccountID(); err != nil || sub != accountID {
		return nil, ErrAccessDenied()
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if IsAccountNotFound(err) {
			return nil, ErrAccessDenied()
		}
		return nil, normalizeError(err, "failed to load account for refresh")
	}
	if !s.secrets.MatchDigest(TokenRefresh, presented, account.RefreshTokenHash) {
		return nil, ErrAccessDenied()
	}

	subject := TokenSubject{AccountID: account.ID, Email: account.Email}
	refresh, _, err := s.tokens.Issue(TokenRefresh, subject)
	if err != nil {
		return nil, err
	}
	next, err := s.secrets.Digest(TokenRefresh, refresh)
	if err != nil {
		return nil, err
	}

	swapped, err := s.accounts.RotateRefreshDigest(ctx, account.ID, *account.RefreshTokenHash, next)
	if err != nil {
		return nil, normalizeError(err, "failed to rotate refresh token")
	}
	if !swapped {
		s.logger.Info("refresh token lost rotation race", "account_id", account.ID)
		return nil, ErrAccessDenied()
	}

	access, _, err := s.tokens.Issue(TokenAccess, subject)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout clears the refresh digest. It is idempotent.
func (s *SessionManager) Logout(ctx context.Context, accountID uuid.UUID) error {
	if err := s.accounts.ClearRefreshDigest(ctx, accountID); err != nil {
		return normalizeError(err, "failed to clear refresh token")
	}
	return nil
}
