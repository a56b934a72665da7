package jwtware_test

import (
	"errors"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"

	"github.com/rideshare/go-rideshare-auth/middleware/jwtware"
)

var errRejected = errors.New("rejected")

func staticValidator(valid string) jwtware.TokenValidator {
	return jwtware.TokenValidatorFunc(func(raw string) (any, error) {
		if raw != valid {
			return nil, errRejected
		}
		return map[string]any{"sub": "rider-1"}, nil
	})
}

// passthrough returns the errors it is given so tests can inspect them.
func passthrough(_ router.Context, err error) error {
	return err
}

type nextRecorder struct {
	called bool
}

func (n *nextRecorder) handler(router.Context) error {
	n.called = true
	return nil
}

func withHeader(ctx *router.MockContext, key, value string) {
	ctx.HeadersM[key] = value
	ctx.On("Header", key).Return(value).Maybe()
}

func TestJWTWare_BasicHeaderExtraction(t *testing.T) {
	middleware := jwtware.New(jwtware.Config{
		TokenValidator: staticValidator("good"),
		ErrorHandler:   passthrough,
	})

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "valid bearer", header: "Bearer good"},
		{name: "case insensitive scheme", header: "bearer good"},
		{name: "missing header", header: "", wantErr: jwtware.ErrJWTMissingOrMalformed},
		{name: "wrong scheme", header: "Basic good", wantErr: jwtware.ErrJWTMissingOrMalformed},
		{name: "scheme without separator", header: "Bearergood", wantErr: jwtware.ErrJWTMissingOrMalformed},
		{name: "rejected token", header: "Bearer bad", wantErr: errRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := router.NewMockContext()
			withHeader(ctx, "Authorization", tt.header)
			ctx.On("Locals", "user", mock.Anything).Return(nil).Maybe()

			next := &nextRecorder{}
			err := middleware(next.handler)(ctx)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if next.called {
					t.Fatal("next handler ran for a rejected request")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error for valid token: %v", err)
			}
			if !next.called {
				t.Fatal("expected next handler to run")
			}
		})
	}
}

func TestJWTWare_LookupSources(t *testing.T) {
	middleware := jwtware.New(jwtware.Config{
		TokenValidator: staticValidator("good"),
		TokenLookup:    "header:Authorization,query:token,cookie:jwt",
		ContextKey:     "claims",
		ErrorHandler:   passthrough,
	})

	t.Run("query", func(t *testing.T) {
		ctx := router.NewMockContext()
		withHeader(ctx, "Authorization", "")
		ctx.QueriesM["token"] = "good"
		ctx.On("Query", "token", "").Return("good").Maybe()
		ctx.On("Locals", "claims", mock.Anything).Return(nil).Maybe()

		next := &nextRecorder{}
		if err := middleware(next.handler)(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !next.called {
			t.Fatal("expected next handler to run for a query token")
		}
	})

	t.Run("cookie", func(t *testing.T) {
		ctx := router.NewMockContext()
		withHeader(ctx, "Authorization", "")
		ctx.On("Query", "token", "").Return("").Maybe()
		ctx.CookiesM["jwt"] = "good"
		ctx.On("Cookies", "jwt").Return("good").Maybe()
		ctx.On("Locals", "claims", mock.Anything).Return(nil).Maybe()

		next := &nextRecorder{}
		if err := middleware(next.handler)(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !next.called {
			t.Fatal("expected next handler to run for a cookie token")
		}
	})
}

// customPathMock overrides Path() on the router mock.
type customPathMock struct {
	*router.MockContext
	pathOverride string
}

func (m *customPathMock) Path() string {
	return m.pathOverride
}

func TestJWTWare_FilterAndListeners(t *testing.T) {
	var seen any
	middleware := jwtware.New(jwtware.Config{
		TokenValidator: staticValidator("good"),
		ErrorHandler:   passthrough,
		Filter: func(c router.Context) bool {
			return c.Path() == "/healthz"
		},
		ValidationListeners: []jwtware.ValidationListener{
			func(_ router.Context, claims any) error {
				seen = claims
				return nil
			},
			func(c router.Context, _ any) error {
				if c.Header("X-Block") != "" {
					return errRejected
				}
				return nil
			},
		},
	})

	filtered := &customPathMock{MockContext: router.NewMockContext(), pathOverride: "/healthz"}

	next := &nextRecorder{}
	if err := middleware(next.handler)(filtered); err != nil {
		t.Fatalf("filtered request returned %v", err)
	}
	if !next.called {
		t.Fatal("filtered request should skip straight to the handler")
	}
	if seen != nil {
		t.Fatal("listeners ran for a filtered request")
	}

	blocked := &customPathMock{MockContext: router.NewMockContext(), pathOverride: "/rides"}
	withHeader(blocked.MockContext, "Authorization", "Bearer good")
	withHeader(blocked.MockContext, "X-Block", "yes")

	next = &nextRecorder{}
	err := middleware(next.handler)(blocked)
	if !errors.Is(err, errRejected) {
		t.Fatalf("expected listener rejection, got %v", err)
	}
	if seen == nil {
		t.Fatal("expected the first listener to observe the claims")
	}
	if next.called {
		t.Fatal("next handler ran after a listener rejected the token")
	}
}

func TestJWTWare_SuccessHandlerReplacesNext(t *testing.T) {
	var handled bool
	middleware := jwtware.New(jwtware.Config{
		TokenValidator: staticValidator("good"),
		ErrorHandler:   passthrough,
		SuccessHandler: func(router.Context) error {
			handled = true
			return nil
		},
	})

	ctx := router.NewMockContext()
	withHeader(ctx, "Authorization", "Bearer good")
	ctx.On("Locals", "user", mock.Anything).Return(nil).Maybe()

	next := &nextRecorder{}
	if err := middleware(next.handler)(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handled || next.called {
		t.Fatalf("expected only the success handler to run, handled=%v next=%v", handled, next.called)
	}
}

func TestGetExtractors(t *testing.T) {
	if got := len(jwtware.GetExtractors("header:Authorization,query:t,param:p,cookie:c,bogus")); got != 4 {
		t.Fatalf("expected 4 extractors, got %d", got)
	}
	if got := len(jwtware.GetExtractors("")); got != 0 {
		t.Fatalf("expected no extractors, got %d", got)
	}
}

func TestNewRequiresValidator(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected New to panic without a TokenValidator")
		}
	}()
	jwtware.New(jwtware.Config{})
}
