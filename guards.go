package auth

import (
	"github.com/goliatone/go-router"

	"github.com/rideshare/go-rideshare-auth/middleware/jwtware"
)

// Guard is a named precondition a route requires. Check returns nil to let
// the request through.
type Guard struct {
	Name  string
	Check func(c router.Context) error
}

// GuardChain is evaluated in order; the first failing guard wins.
type GuardChain []Guard

// Public is the empty chain.
var Public = GuardChain{}

// Run evaluates every guard until one fails.
func (g GuardChain) Run(c router.Context) error {
	for _, guard := range g {
		if guard.Check == nil {
			continue
		}
		if err := guard.Check(c); err != nil {
			return err
		}
	}
	return nil
}

// Names lists the guard names, in order.
func (g GuardChain) Names() []string {
	names := make([]string, 0, len(g))
	for _, guard := range g {
		names = append(names, guard.Name)
	}
	return names
}

// Guards builds the guards protecting the auth routes.
type Guards struct {
	tokens     TokenIssuer
	accounts   AccountFinder
	secrets    *SecretStore
	extractors []jwtware.JWTExtractor
}

// NewGuards returns guards reading bearer tokens from the Authorization
// header.
func NewGuards(tokens TokenIssuer, accounts AccountFinder, secrets *SecretStore) *Guards {
	return &Guards{
		tokens:     tokens,
		accounts:   accounts,
		secrets:    secrets,
		extractors: jwtware.GetExtractors("header:"+router.HeaderAuthorization, "Bearer"),
	}
}

// Authenticated requires a valid, unexpired access token.
func (g *Guards) Authenticated() Guard {
	return Guard{
		Name: "authenticated",
		Check: func(c router.Context) error {
			raw, err := jwtware.ExtractRawToken(c, g.extractors)
			if err != nil {
				return ErrTokenInvalid()
			}
			claims, err := g.tokens.Verify(TokenAccess, raw)
			if err != nil {
				return err
			}
			if _, err := claims.AccountID(); err != nil {
				return err
			}
			setClaims(c, claims)
			return nil
		},
	}
}

// EmailVerified requires the authenticated account to have confirmed its
// email. It must follow Authenticated in a chain.
func (g *Guards) EmailVerified() Guard {
	return Guard{
		Name: "email_verified",
		Check: func(c router.Context) error {
			account, err := g.resolveAccount(c)
			if err != nil {
				return err
			}
			if !account.IsEmailVerified {
				return ErrEmailNotVerified()
			}
			return nil
		},
	}
}

// FreshRefresh requires a valid refresh token whose digest matches the one
// stored for its account. Every failure is reported as access denied.
func (g *Guards) FreshRefresh() Guard {
	return Guard{
		Name: "fresh_refresh",
		Check: func(c router.Context) error {
			raw, err := jwtware.ExtractRawToken(c, g.extractors)
			if err != nil {
				return ErrAccessDenied()
			}
			claims, err := g.tokens.Verify(TokenRefresh, raw)
			if err != nil {
				return ErrAccessDenied()
			}
			id, err := claims.AccountID()
			if err != nil {
				return ErrAccessDenied()
			}
			account, err := g.accounts.FindByID(c.Context(), id)
			if err != nil {
				if IsAccountNotFound(err) {
					return ErrAccessDenied()
				}
				return normalizeError(err, "failed to load account for refresh")
			}
			if !g.secrets.MatchDigest(TokenRefresh, raw, account.RefreshTokenHash) {
				return ErrAccessDenied()
			}
			setClaims(c, claims)
			setAccount(c, account)
			c.Locals(localsRefreshToken, raw)
			return nil
		},
	}
}

func (g *Guards) resolveAccount(c router.Context) (*Account, error) {
	if account, ok := AccountFromCtx(c); ok {
		return account, nil
	}
	claims, ok := ClaimsFromCtx(c)
	if !ok {
		return nil, ErrTokenInvalid()
	}
	id, err := claims.AccountID()
	if err != nil {
		return nil, err
	}
	account, err := g.accounts.FindByID(c.Context(), id)
	if err != nil {
		if IsAccountNotFound(err) {
			return nil, ErrTokenInvalid()
		}
		return nil, normalizeError(err, "failed to load account")
	}
	setAccount(c, account)
	return account, nil
}

// Middleware admits requests carrying a valid access token and stores its
// claims. It protects routes owned by other services mounted on the same
// router.
func (g *Guards) Middleware() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ContextKey: localsClaims,
		TokenValidator: jwtware.TokenValidatorFunc(func(raw string) (any, error) {
			claims, err := g.tokens.Verify(TokenAccess, raw)
			if err != nil {
				return nil, err
			}
			return claims, nil
		}),
		ErrorHandler: func(_ router.Context, err error) error {
			if FailureOf(err) == FailureNone {
				return ErrTokenInvalid()
			}
			return err
		},
	})
}
