package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Auther wires the credential components together and is the entry point
// used by the HTTP controller.
type Auther struct {
	settings Settings
	repo     RepositoryManager
	notifier Notifier
	logger   Logger
	sink     ActivitySink
	hasher   PasswordHasher
	now      func() time.Time

	tokens      *TokenService
	credentials *CredentialValidator
	sessions    *SessionManager
	guards      *Guards

	register           *RegisterAccountHandler
	verificationIssue  *RequestEmailVerificationHandler
	verificationVerify *ConfirmEmailHandler
	resetInitialize    *InitializePasswordResetHandler
	resetFinalize      *FinalizePasswordResetHandler
}

// AutherOption configures an Auther.
type AutherOption func(*Auther)

// WithLogger sets the logger shared by every component.
func WithLogger(logger Logger) AutherOption {
	return func(a *Auther) {
		a.logger = normalizeLogger(logger)
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) AutherOption {
	return func(a *Auther) {
		a.sink = normalizeActivitySink(sink)
	}
}

// WithPasswordHasher replaces the bcrypt hasher built from settings.
func WithPasswordHasher(hasher PasswordHasher) AutherOption {
	return func(a *Auther) {
		if hasher != nil {
			a.hasher = hasher
		}
	}
}

// WithClock overrides the time source used for tokens and timestamps.
func WithClock(now func() time.Time) AutherOption {
	return func(a *Auther) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAuther returns an Auther. settings must have passed Validate.
func NewAuther(settings Settings, repo RepositoryManager, notifier Notifier, opts ...AutherOption) *Auther {
	a := &Auther{
		settings: settings,
		repo:     repo,
		notifier: normalizeNotifier(notifier),
		logger:   defLogger{},
		sink:     noopActivitySink{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.hasher == nil {
		a.hasher = NewBcryptHasher(settings.BcryptCost)
	}

	a.tokens = NewTokenService(settings.Secrets,
		WithTokenIssuer(settings.Issuer),
		WithTokenClock(a.now),
		WithTokenLogger(a.logger),
	)

	accounts := repo.Accounts()
	a.credentials = NewCredentialValidator(accounts, a.hasher, a.logger)
	a.sessions = NewSessionManager(accounts, a.tokens, settings.Secrets, a.logger)
	a.sessions.now = a.now
	a.guards = NewGuards(a.tokens, accounts, settings.Secrets)

	recorder := activityRecorder{sink: a.sink, logger: a.logger, now: a.now}
	messages := messageBuilder{settings: settings, now: a.now}

	a.verificationIssue = &RequestEmailVerificationHandler{
		repo:     repo,
		tokens:   a.tokens,
		notifier: a.notifier,
		messages: messages,
		logger:   a.logger,
		activity: recorder,
	}
	a.verificationVerify = &ConfirmEmailHandler{
		repo:     repo,
		tokens:   a.tokens,
		logger:   a.logger,
		activity: recorder,
	}
	a.register = &RegisterAccountHandler{
		repo:         repo,
		hasher:       a.hasher,
		settings:     settings,
		verification: a.verificationIssue,
		logger:       a.logger,
		activity:     recorder,
	}
	a.resetInitialize = &InitializePasswordResetHandler{
		repo:     repo,
		tokens:   a.tokens,
		secrets:  settings.Secrets,
		notifier: a.notifier,
		messages: messages,
		logger:   a.logger,
		activity: recorder,
	}
	a.resetFinalize = &FinalizePasswordResetHandler{
		repo:     repo,
		tokens:   a.tokens,
		secrets:  settings.Secrets,
		hasher:   a.hasher,
		logger:   a.logger,
		activity: recorder,
	}

	return a
}

func (a *Auther) Settings() Settings {
	return a.settings
}

func (a *Auther) Tokens() TokenIssuer {
	return a.tokens
}

func (a *Auther) Guards() *Guards {
	return a.guards
}

func (a *Auther) Sessions() *SessionManager {
	return a.sessions
}

func (a *Auther) recorder() activityRecorder {
	return activityRecorder{sink: a.sink, logger: a.logger, now: a.now}
}

// Register creates an account and mails a verification link.
func (a *Auther) Register(ctx context.Context, msg RegisterAccountMessage) (*Account, error) {
	var account *Account
	msg.OnResponse = func(acc *Account) { account = acc }
	if err := a.register.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return account, nil
}

// Login validates credentials and starts a session.
func (a *Auther) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	account, err := a.credentials.Validate(ctx, email, password)
	if err != nil {
		a.recorder().record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Email:     NormalizeEmail(email),
			Failure:   FailureOf(err),
		})
		return nil, err
	}

	if a.settings.RequireVerifiedEmailForLogin && !account.IsEmailVerified {
		a.recorder().record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			AccountID: account.ID.String(),
			Email:     account.Email,
			Failure:   FailureEmailNotVerified,
		})
		return nil, ErrEmailNotVerified()
	}

	pair, err := a.sessions.Login(ctx, account)
	if err != nil {
		return nil, err
	}

	a.recorder().record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		AccountID: account.ID.String(),
		Email:     account.Email,
	})
	return pair, nil
}

// Refresh rotates the session of accountID.
func (a *Auther) Refresh(ctx context.Context, accountID uuid.UUID, refreshToken string) (*TokenPair, error) {
	pair, err := a.sessions.Refresh(ctx, accountID, refreshToken)
	if err != nil {
		a.recorder().record(ctx, ActivityEvent{
			EventType: ActivityEventRefreshDenied,
			AccountID: accountID.String(),
			Failure:   FailureOf(err),
		})
		return nil, err
	}
	a.recorder().record(ctx, ActivityEvent{
		EventType: ActivityEventRefreshSuccess,
		AccountID: accountID.String(),
	})
	return pair, nil
}

// Logout ends the session of accountID.
func (a *Auther) Logout(ctx context.Context, accountID uuid.UUID) error {
	if err := a.sessions.Logout(ctx, accountID); err != nil {
		return err
	}
	a.recorder().record(ctx, ActivityEvent{
		EventType: ActivityEventLogout,
		AccountID: accountID.String(),
	})
	return nil
}

// RequestEmailVerification mails a verification link to email. Unknown and
// verified emails are ignored without error.
func (a *Auther) RequestEmailVerification(ctx context.Context, email, origin string) error {
	return a.verificationIssue.Execute(ctx, RequestEmailVerificationMessage{
		Email:  email,
		Origin: origin,
	})
}

// ConfirmEmail consumes a verification token.
func (a *Auther) ConfirmEmail(ctx context.Context, token string) (*ConfirmEmailResponse, error) {
	var resp *ConfirmEmailResponse
	err := a.verificationVerify.Execute(ctx, ConfirmEmailMessage{
		Token:      token,
		OnResponse: func(r *ConfirmEmailResponse) { resp = r },
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// InitializePasswordReset mails a reset link to a verified account.
func (a *Auther) InitializePasswordReset(ctx context.Context, email, origin string) error {
	return a.resetInitialize.Execute(ctx, InitializePasswordResetMessage{
		Email:  email,
		Origin: origin,
	})
}

// FinalizePasswordReset consumes a reset token and sets a new password.
func (a *Auther) FinalizePasswordReset(ctx context.Context, token, password string) (*Account, error) {
	var account *Account
	err := a.resetFinalize.Execute(ctx, FinalizePasswordResetMessage{
		Token:      token,
		Password:   password,
		OnResponse: func(acc *Account) { account = acc },
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Account loads an account by id.
func (a *Auther) Account(ctx context.Context, id uuid.UUID) (*Account, error) {
	return a.repo.Accounts().FindByID(ctx, id)
}
