package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	Password  string `json:"password"`
	// Origin is where the verification link should send the user back to.
	Origin     string                 `json:"-"`
	OnResponse func(account *Account) `json:"-"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate checks required fields first so a missing email or password is
// reported the same way regardless of the other fields.
func (e RegisterAccountMessage) Validate() error {
	if strings.TrimSpace(e.Email) == "" || e.Password == "" {
		return BadRequest(FailureMissingFields, "email and password are required")
	}

	e.Email = NormalizeEmail(e.Email)
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
		validation.Field(&e.FirstName, validation.Length(0, 200)),
		validation.Field(&e.LastName, validation.Length(0, 200)),
		validation.Field(&e.Role, validation.By(validateSelfAssignableRole)),
	)
	if err != nil {
		return BadRequest(FailureInvalidInput, "invalid registration").
			WithMetadata(map[string]any{"fields": err.Error()})
	}
	return nil
}

func validateSelfAssignableRole(value any) error {
	s, _ := value.(string)
	role, ok := ParseRole(s)
	if !ok || !role.SelfAssignable() {
		return errors.New("must be passenger or driver")
	}
	return nil
}

// emailVerificationRequester is the part of the verification flow that
// registration triggers once the account is stored.
type emailVerificationRequester interface {
	Execute(ctx context.Context, event RequestEmailVerificationMessage) error
}

type RegisterAccountHandler struct {
	repo         RepositoryManager
	hasher       PasswordHasher
	settings     Settings
	verification emailVerificationRequester
	logger       Logger
	activity     activityRecorder
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	phone, err := NormalizePhone(event.Phone, h.settings.PhoneRegion)
	if err != nil {
		return err
	}

	role, _ := ParseRole(event.Role)
	account := &Account{
		FirstName: strings.TrimSpace(event.FirstName),
		LastName:  strings.TrimSpace(event.LastName),
		Email:     NormalizeEmail(event.Email),
		Phone:     phone,
		Role:      role,
	}

	if h.settings.UseHashid {
		if id, err := hashid.NewUUID(account.Email); err == nil {
			account.ID = id
		}
	}

	txCtx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.repo.RunInTx(txCtx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Accounts().FindByEmailTx(ctx, tx, account.Email); err == nil {
			return errAccountExists(account.Email)
		} else if !IsAccountNotFound(err) {
			return err
		}

		hash, err := h.hasher.Hash(event.Password)
		if err != nil {
			return err
		}
		account.PasswordHash = hash

		created, err := h.repo.Accounts().RegisterTx(ctx, tx, account)
		if err != nil {
			return err
		}
		account = created
		return nil
	})

	if err != nil {
		return normalizeError(err, "account registration transaction failed")
	}

	h.activity.record(ctx, ActivityEvent{
		EventType: ActivityEventRegistered,
		AccountID: account.ID.String(),
		Email:     account.Email,
		Metadata:  map[string]any{"role": string(account.Role)},
	})

	if h.verification != nil {
		verr := h.verification.Execute(ctx, RequestEmailVerificationMessage{
			Email:  account.Email,
			Origin: event.Origin,
		})
		if verr != nil {
			h.logger.Warn("verification email not sent after registration",
				"account_id", account.ID,
				"error", verr,
			)
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
