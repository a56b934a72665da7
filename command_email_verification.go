package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RequestEmailVerificationMessage struct {
	Email      string                                       `json:"email"`
	Origin     string                                       `json:"redirectUri"`
	OnResponse func(resp *RequestEmailVerificationResponse) `json:"-"`
}

func (m RequestEmailVerificationMessage) Type() string { return "account.email_verification.request" }

type RequestEmailVerificationResponse struct {
	// Sent is false when the email is unknown or already verified. Callers
	// must not expose it to clients.
	Sent bool
}

// RequestEmailVerificationHandler mails a verification link. Unknown and
// already verified emails are silently ignored.
type RequestEmailVerificationHandler struct {
	repo     RepositoryManager
	tokens   TokenIssuer
	notifier Notifier
	messages messageBuilder
	logger   Logger
	activity activityRecorder
}

func (h *RequestEmailVerificationHandler) Execute(ctx context.Context, event RequestEmailVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestEmailVerificationHandler) execute(ctx context.Context, event RequestEmailVerificationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &RequestEmailVerificationResponse{}
	defer func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}()

	email := NormalizeEmail(event.Email)
	account, err := h.repo.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if IsAccountNotFound(err) {
			h.logger.Debug("verification requested for unknown email")
			return nil
		}
		return normalizeError(err, "failed to load account for verification")
	}
	if account.IsEmailVerified {
		return nil
	}

	token, _, err := h.tokens.Issue(TokenEmailVerification, TokenSubject{
		AccountID: account.ID,
		Email:     account.Email,
		Origin:    event.Origin,
	})
	if err != nil {
		return err
	}

	if err := h.notifier.Send(ctx, h.messages.verification(account, token, event.Origin)); err != nil {
		return errInternal(err, "failed to deliver verification email").
			WithMetadata(map[string]any{"account_id": account.ID.String()})
	}

	resp.Sent = true
	h.activity.record(ctx, ActivityEvent{
		EventType: ActivityEventVerificationRequested,
		AccountID: account.ID.String(),
		Email:     account.Email,
	})

	return nil
}

type ConfirmEmailMessage struct {
	Token      string                           `json:"token"`
	OnResponse func(resp *ConfirmEmailResponse) `json:"-"`
}

func (m ConfirmEmailMessage) Type() string { return "account.email_verification.confirm" }

type ConfirmEmailResponse struct {
	Account *Account
	// Origin is the redirect target captured when the token was issued.
	Origin string
}

// ConfirmEmailHandler consumes a verification token. The first successful
// confirmation flips the flag; any later attempt reports already verified.
type ConfirmEmailHandler struct {
	repo     RepositoryManager
	tokens   TokenIssuer
	logger   Logger
	activity activityRecorder
}

func (h *ConfirmEmailHandler) Execute(ctx context.Context, event ConfirmEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email confirmation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailHandler) execute(ctx context.Context, event ConfirmEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	claims, err := h.tokens.Verify(TokenEmailVerification, event.Token)
	if err != nil {
		return asBadRequest(err)
	}

	account, err := h.repo.Accounts().FindByEmail(ctx, claims.Email)
	if err != nil {
		if IsAccountNotFound(err) {
			return BadRequest(FailureUserNotFound, msgUserNotFound)
		}
		return normalizeError(err, "failed to load account for email confirmation")
	}

	if claims.Subject != "" && claims.Subject != account.ID.String() {
		return BadRequest(FailureTokenInvalid, msgTokenInvalid)
	}

	if account.IsEmailVerified {
		return BadRequest(FailureAlreadyVerified, "already verified")
	}

	flipped, err := h.repo.Accounts().MarkEmailVerified(ctx, account.ID)
	if err != nil {
		return normalizeError(err, "failed to mark email verified")
	}
	if !flipped {
		return BadRequest(FailureAlreadyVerified, "already verified")
	}
	account.IsEmailVerified = true

	h.activity.record(ctx, ActivityEvent{
		EventType: ActivityEventEmailVerified,
		AccountID: account.ID.String(),
		Email:     account.Email,
	})

	if event.OnResponse != nil {
		event.OnResponse(&ConfirmEmailResponse{Account: account, Origin: claims.Origin})
	}

	return nil
}
