package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Token      string                 `json:"token"`
	Password   string                 `json:"password"`
	OnResponse func(account *Account) `json:"-"`
}

func (m FinalizePasswordResetMessage) Type() string { return "account.password_reset.finalize" }

func (m FinalizePasswordResetMessage) Validate() error {
	if m.Token == "" || m.Password == "" {
		return BadRequest(FailureMissingFields, "token and password are required")
	}
	err := validation.ValidateStruct(&m,
		validation.Field(&m.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
	)
	if err != nil {
		return BadRequest(FailureInvalidInput, "invalid password").
			WithMetadata(map[string]any{"fields": err.Error()})
	}
	return nil
}

// FinalizePasswordResetHandler consumes a reset token exactly once. The new
// hash is written, and the reset and refresh digests cleared, by a single
// conditional update keyed on the presented token digest.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   TokenIssuer
	secrets  *SecretStore
	hasher   PasswordHasher
	logger   Logger
	activity activityRecorder
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return err
	}

	claims, err := h.tokens.Verify(TokenPasswordReset, event.Token)
	if err != nil {
		h.recordFailure(ctx, "", FailureOf(err))
		return asBadRequest(err)
	}

	accountID, err := claims.AccountID()
	if err != nil {
		return asBadRequest(err)
	}

	email := NormalizeEmail(claims.Email)
	if email == "" {
		return BadRequest(FailureTokenInvalid, msgTokenInvalid)
	}

	account, err := h.repo.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if IsAccountNotFound(err) {
			return BadRequest(FailureUserNotFound, msgUserNotFound)
		}
		return normalizeError(err, "failed to retrieve account for password reset")
	}

	// sub and email must name the same account
	if account.ID != accountID {
		h.recordFailure(ctx, account.ID.String(), FailureTokenInvalid)
		return BadRequest(FailureTokenInvalid, msgTokenInvalid)
	}

	if !h.secrets.MatchDigest(TokenPasswordReset, event.Token, account.ResetPasswordTokenHash) {
		h.recordFailure(ctx, account.ID.String(), FailureTokenInvalid)
		return BadRequest(FailureTokenInvalid, msgTokenInvalid)
	}

	hash, err := h.hasher.Hash(event.Password)
	if err != nil {
		return err
	}

	consumed, err := h.repo.Accounts().ConsumeResetDigest(ctx, account.ID, *account.ResetPasswordTokenHash, hash)
	if err != nil {
		return normalizeError(err, "failed to reset password")
	}
	if !consumed {
		h.recordFailure(ctx, account.ID.String(), FailureTokenInvalid)
		return BadRequest(FailureTokenInvalid, msgTokenInvalid)
	}

	updated, err := h.repo.Accounts().FindByID(ctx, account.ID)
	if err != nil {
		return normalizeError(err, "failed to reload account after password reset")
	}

	h.activity.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		AccountID: updated.ID.String(),
		Email:     updated.Email,
	})

	if event.OnResponse != nil {
		event.OnResponse(updated)
	}

	return nil
}

func (h *FinalizePasswordResetHandler) recordFailure(ctx context.Context, accountID string, kind Failure) {
	h.activity.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetFailure,
		AccountID: accountID,
		Failure:   kind,
	})
}
