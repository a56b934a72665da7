package auth

import (
	"context"
	"sync"
)

// CredentialValidator checks an email and password pair against the stored
// bcrypt hash.
type CredentialValidator struct {
	accounts AccountFinder
	hasher   PasswordHasher
	logger   Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialValidator returns a validator reading accounts through finder.
func NewCredentialValidator(finder AccountFinder, hasher PasswordHasher, logger Logger) *CredentialValidator {
	return &CredentialValidator{
		accounts: finder,
		hasher:   hasher,
		logger:   normalizeLogger(logger),
	}
}

// Validate returns the account owning email when password matches. An
// unknown email and a wrong password produce the same error.
func (v *CredentialValidator) Validate(ctx context.Context, email, password string) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials()
	}

	account, err := v.accounts.FindByEmail(ctx, email)
	if err != nil {
		if IsAccountNotFound(err) {
			v.burnHash(password)
			return nil, ErrInvalidCredentials()
		}
		return nil, normalizeError(err, "failed to load account for login")
	}

	ok, err := v.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		v.logger.Error("stored password hash rejected", "account_id", account.ID, "error", err)
		return nil, normalizeError(err, "failed to verify password")
	}
	if !ok {
		return nil, ErrInvalidCredentials()
	}

	return account, nil
}

// burnHash spends one bcrypt verification on unknown emails.
func (v *CredentialValidator) burnHash(password string) {
	v.dummyOnce.Do(func() {
		v.dummyHash, _ = v.hasher.Hash("rideshare-unknown-account")
	})
	if v.dummyHash != "" {
		_, _ = v.hasher.Verify(password, v.dummyHash)
	}
}
