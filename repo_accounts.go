package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

const accountsTable = "accounts"

// AccountFinder is the read side CredentialValidator and the guards need.
type AccountFinder interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
}

// Accounts persists Account records. Every credential mutation is a single
// conditional UPDATE so concurrent requests cannot both win.
type Accounts interface {
	repository.Repository[*Account]
	AccountFinder

	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)

	// StoreRefreshDigest overwrites the refresh digest and records the login.
	StoreRefreshDigest(ctx context.Context, id uuid.UUID, digest string, at time.Time) error
	// RotateRefreshDigest swaps previous for next. It reports false when
	// previous is no longer the stored digest.
	RotateRefreshDigest(ctx context.Context, id uuid.UUID, previous, next string) (bool, error)
	// ClearRefreshDigest removes the refresh digest. Clearing an empty
	// digest is not an error.
	ClearRefreshDigest(ctx context.Context, id uuid.UUID) error

	// StoreResetDigest overwrites any outstanding password reset digest.
	StoreResetDigest(ctx context.Context, id uuid.UUID, digest string) error
	// ConsumeResetDigest sets passwordHash and clears both the reset and the
	// refresh digests, provided digest is still the stored reset digest.
	ConsumeResetDigest(ctx context.Context, id uuid.UUID, digest, passwordHash string) (bool, error)

	// MarkEmailVerified flips is_email_verified. It reports false when the
	// account was already verified.
	MarkEmailVerified(ctx context.Context, id uuid.UUID) (bool, error)
}

type accounts struct {
	repository.Repository[*Account]
	db  bun.IDB
	now func() time.Time
}

var _ Accounts = (*accounts)(nil)

// NewAccountsRepository returns the bun backed Accounts repository.
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (a *accounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *accounts) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	email = NormalizeEmail(email)
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, errAccountNotFound(map[string]any{"email": email})
		}
		return nil, errInternal(err, "failed to load account by email")
	}
	return record, nil
}

func (a *accounts) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *accounts) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, errAccountNotFound(map[string]any{"id": id.String()})
		}
		return nil, errInternal(err, "failed to load account by id")
	}
	return record, nil
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account, a.now().UTC())
	created, err := a.Repository.CreateTx(ctx, tx, account)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errAccountExists(account.Email)
		}
		return nil, errInternal(err, "failed to create account")
	}
	return created, nil
}

func (a *accounts) StoreRefreshDigest(ctx context.Context, id uuid.UUID, digest string, at time.Time) error {
	res, err := a.db.NewUpdate().
		Table(accountsTable).
		Set("refresh_token_hash = ?", digest).
		Set("logged_in_at = ?", at).
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errInternal(err, "failed to store refresh token digest")
	}
	if affected(res) == 0 {
		return errAccountNotFound(map[string]any{"id": id.String()})
	}
	return nil
}

func (a *accounts) RotateRefreshDigest(ctx context.Context, id uuid.UUID, previous, next string) (bool, error) {
	res, err := a.db.NewUpdate().
		Table(accountsTable).
		Set("refresh_token_hash = ?", next).
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id).
		Where("refresh_token_hash = ?", previous).
		Exec(ctx)
	if err != nil {
		return false, errInternal(err, "failed to rotate refresh token digest")
	}
	return affected(res) == 1, nil
}

func (a *accounts) ClearRefreshDigest(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewUpdate().
		Table(accountsTable).
		Set("refresh_token_hash = NULL").
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errInternal(err, "failed to clear refresh token digest")
	}
	return nil
}

func (a *accounts) StoreResetDigest(ctx context.Context, id uuid.UUID, digest string) error {
	res, err := a.db.NewUpdate().
		Table(accountsTable).
		Set("reset_password_token_hash = ?", digest).
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errInternal(err, "failed to store password reset digest")
	}
	if affected(res) == 0 {
		return errAccountNotFound(map[string]any{"id": id.String()})
	}
	return nil
}

func (a *accounts) ConsumeResetDigest(ctx context.Context, id uuid.UUID, digest, passwordHash string) (bool, error) {
	res, err := a.db.NewUpdate().
		Table(accountsTable).
		Set("password_hash = ?", passwordHash).
		Set("reset_password_token_hash = NULL").
		Set("refresh_token_hash = NULL").
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id).
		Where("reset_password_token_hash = ?", digest).
		Exec(ctx)
	if err != nil {
		return false, errInternal(err, "failed to consume password reset digest")
	}
	return affected(res) == 1, nil
}

func (a *accounts) MarkEmailVerified(ctx context.Context, id uuid.UUID) (bool, error) {
	return a.markVerified(ctx, id, "is_email_verified")
}

func (a *accounts) markVerified(ctx context.Context, id uuid.UUID, column string) (bool, error) {
	res, err := a.db.NewUpdate().
		Table(accountsTable).
		Set("? = ?", bun.Ident(column), true).
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id).
		Where("? = ?", bun.Ident(column), false).
		Exec(ctx)
	if err != nil {
		return false, errInternal(err, "failed to mark account verified").
			WithMetadata(map[string]any{"column": column})
	}
	return affected(res) == 1, nil
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func affected(res rowsAffecter) int64 {
	if res == nil {
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

func errAccountNotFound(meta map[string]any) *goerrors.Error {
	return goerrors.New("account not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(string(FailureUserNotFound)).
		WithMetadata(meta)
}

func errAccountExists(email string) *goerrors.Error {
	return BadRequest(FailureAlreadyExists, "account already exists").
		WithMetadata(map[string]any{"email": email})
}

// IsAccountNotFound reports whether err is a missing account lookup.
func IsAccountNotFound(err error) bool {
	return FailureOf(err) == FailureUserNotFound
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
