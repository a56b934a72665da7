package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string                                      `json:"email"`
	Origin     string                                      `json:"redirectUri"`
	OnResponse func(resp *InitializePasswordResetResponse) `json:"-"`
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset.initialize" }

type InitializePasswordResetResponse struct {
	AccountID string
	ExpiresAt time.Time
}

// InitializePasswordResetHandler mints a reset token, stores its digest in
// place of any earlier one, and mails the reset link.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   TokenIssuer
	secrets  *SecretStore
	notifier Notifier
	messages messageBuilder
	logger   Logger
	activity activityRecorder
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().FindByEmail(ctx, event.Email)
	if err != nil {
		if IsAccountNotFound(err) {
			return BadRequest(FailureUserNotFound, msgUserNotFound)
		}
		return normalizeError(err, "failed to retrieve account for password reset")
	}

	if !account.IsEmailVerified {
		return BadRequest(FailureEmailNotVerified, "email not verified")
	}

	token, claims, err := h.tokens.Issue(TokenPasswordReset, TokenSubject{
		AccountID: account.ID,
		Email:     account.Email,
		Origin:    event.Origin,
	})
	if err != nil {
		return err
	}

	digest, err := h.secrets.Digest(TokenPasswordReset, token)
	if err != nil {
		return err
	}
	if err := h.repo.Accounts().StoreResetDigest(ctx, account.ID, digest); err != nil {
		return normalizeError(err, "failed to store password reset token")
	}

	h.activity.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		AccountID: account.ID.String(),
		Email:     account.Email,
	})

	if err := h.notifier.Send(ctx, h.messages.passwordReset(account, token, event.Origin)); err != nil {
		return errInternal(err, "failed to deliver password reset email").
			WithMetadata(map[string]any{"account_id": account.ID.String()})
	}

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			AccountID: account.ID.String(),
			ExpiresAt: claims.ExpiresAt.Time,
		})
	}

	return nil
}
