package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

const (
	localsClaims       = "auth.claims"
	localsAccount      = "auth.account"
	localsRefreshToken = "auth.refresh_token"
)

var accountCtxKey = &contextKey{"account"}

type contextKey struct {
	name string
}

// WithContext sets the Account in the given context
func WithContext(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountCtxKey, account)
}

// FromContext finds the account in the context.
func FromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok && raw != nil
}

// ClaimsFromCtx returns the token claims a guard stored on the request.
func ClaimsFromCtx(c router.Context) (*TokenClaims, bool) {
	claims, ok := c.Locals(localsClaims).(*TokenClaims)
	return claims, ok && claims != nil
}

// AccountFromCtx returns the account a guard resolved for the request.
func AccountFromCtx(c router.Context) (*Account, bool) {
	account, ok := c.Locals(localsAccount).(*Account)
	return account, ok && account != nil
}

func setClaims(c router.Context, claims *TokenClaims) {
	c.Locals(localsClaims, claims)
}

func setAccount(c router.Context, account *Account) {
	c.Locals(localsAccount, account)
	c.SetContext(WithContext(c.Context(), account))
}

func refreshTokenFromCtx(c router.Context) string {
	raw, _ := c.Locals(localsRefreshToken).(string)
	return raw
}
