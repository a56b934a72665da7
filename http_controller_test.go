package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/rideshare/go-rideshare-auth"
)

type httpEnv struct {
	*testEnv
	app *fiber.App
}

// newServer builds a go-router server over fiber and returns the wrapped
// app so requests can go through app.Test.
func newServer() (router.Server[*fiber.App], *fiber.App) {
	var app *fiber.App
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app = fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler(testLogger{})})
		return app
	})
	return srv, app
}

func newHTTPEnv(t *testing.T, mutate ...func(*auth.Settings)) *httpEnv {
	t.Helper()
	env := newTestEnv(t, mutate...)

	srv, app := newServer()
	auth.RegisterAuthRoutes(srv.Router().Group("/auth"),
		auth.NewAuthController(env.auther, auth.WithControllerLogger(testLogger{})))

	return &httpEnv{testEnv: env, app: app}
}

func (e *httpEnv) do(t *testing.T, method, path string, body any, bearer string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func credentials(email string) map[string]string {
	return map[string]string{"email": email, "password": testPassword}
}

func TestHTTPAliceScenario(t *testing.T) {
	env := newHTTPEnv(t)

	resp := env.do(t, fiber.MethodPost, "/auth/register", credentials("alice@example.com"), "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"email":"alice@example.com"`)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), "refresh")

	resp = env.do(t, fiber.MethodPost, "/auth/login", credentials("Alice@Example.com "), "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	alice := decode[auth.TokenPair](t, resp)
	assert.NotEmpty(t, alice.AccessToken)
	assert.NotEmpty(t, alice.RefreshToken)

	resp = env.do(t, fiber.MethodPost, "/auth/register", credentials("bob@example.com"), "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp = env.do(t, fiber.MethodPost, "/auth/login", credentials("bob@example.com"), "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	bob := decode[auth.TokenPair](t, resp)

	_, err = env.auther.Refresh(context.Background(), env.account(t, "alice@example.com").ID, bob.RefreshToken)
	assert.Equal(t, auth.FailureAccessDenied, auth.FailureOf(err))

	resp = env.do(t, fiber.MethodGet, "/auth/refresh", nil, alice.AccessToken)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	body := decode[auth.ErrorResponse](t, resp)
	assert.Equal(t, "access denied", body.Error)
	assert.Equal(t, string(auth.FailureAccessDenied), body.Code)

	resp = env.do(t, fiber.MethodGet, "/auth/reset-password/"+url.PathEscape("alice@example.com"), nil, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body = decode[auth.ErrorResponse](t, resp)
	assert.Equal(t, "email not verified", body.Error)
	assert.Equal(t, string(auth.FailureEmailNotVerified), body.Code)
}

func TestHTTPDuplicateRegistration(t *testing.T) {
	env := newHTTPEnv(t)

	resp := env.do(t, fiber.MethodPost, "/auth/register", credentials("alice@example.com"), "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.do(t, fiber.MethodPost, "/auth/register", credentials(" ALICE@example.com"), "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decode[auth.ErrorResponse](t, resp)
	assert.Equal(t, string(auth.FailureAlreadyExists), body.Code)

	resp = env.do(t, fiber.MethodPost, "/auth/register", map[string]string{"email": "x@example.com"}, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body = decode[auth.ErrorResponse](t, resp)
	assert.Equal(t, "email and password are required", body.Error)
}

func TestHTTPLoginFailure(t *testing.T) {
	env := newHTTPEnv(t)
	env.register(t, "alice@example.com")

	resp := env.do(t, fiber.MethodPost, "/auth/login", map[string]string{"email": "alice@example.com", "password": "nope-nope"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	body := decode[auth.ErrorResponse](t, resp)
	assert.Equal(t, "invalid email or password", body.Error)
}

func TestHTTPSessionLifecycle(t *testing.T) {
	env := newHTTPEnv(t)
	env.register(t, "alice@example.com")

	resp := env.do(t, fiber.MethodPost, "/auth/login", credentials("alice@example.com"), "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	first := decode[auth.TokenPair](t, resp)

	resp = env.do(t, fiber.MethodGet, "/auth/refresh", nil, first.RefreshToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	second := decode[auth.TokenPair](t, resp)

	resp = env.do(t, fiber.MethodGet, "/auth/refresh", nil, first.RefreshToken)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode, "rotated refresh tokens are rejected")

	resp = env.do(t, fiber.MethodGet, "/auth/logout", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, fiber.MethodGet, "/auth/logout", nil, second.RefreshToken)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "logout needs an access token")

	resp = env.do(t, fiber.MethodGet, "/auth/logout", nil, second.AccessToken)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = env.do(t, fiber.MethodGet, "/auth/refresh", nil, second.RefreshToken)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestHTTPEmailVerificationFlow(t *testing.T) {
	env := newHTTPEnv(t, func(s *auth.Settings) {
		s.AllowedRedirectHosts = []string{"app.rides.test"}
	})
	env.register(t, "alice@example.com")

	resp := env.do(t, fiber.MethodPost, "/auth/login", credentials("alice@example.com"), "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	pair := decode[auth.TokenPair](t, resp)

	resp = env.do(t, fiber.MethodGet, "/auth/me", nil, pair.AccessToken)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	body := decode[auth.ErrorResponse](t, resp)
	assert.Equal(t, string(auth.FailureEmailNotVerified), body.Code)

	resp = env.do(t, fiber.MethodPost, "/auth/verify-email", map[string]string{
		"email":       "alice@example.com",
		"redirectUri": "https://evil.example.net/",
	}, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body = decode[auth.ErrorResponse](t, resp)
	assert.Equal(t, string(auth.FailureRedirectNotAllowed), body.Code)

	resp = env.do(t, fiber.MethodPost, "/auth/verify-email", map[string]string{
		"email":       "alice@example.com",
		"redirectUri": "https://app.rides.test/welcome",
	}, "")
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.do(t, fiber.MethodPost, "/auth/verify-email", map[string]string{"email": "nobody@example.com"}, "")
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode, "unknown emails look the same as known ones")

	token := env.notifier.lastToken(t, auth.MessageEmailVerification, "alice@example.com")

	resp = env.do(t, fiber.MethodGet, "/auth/verify-email?token=garbage", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body = decode[auth.ErrorResponse](t, resp)
	assert.Equal(t, "invalid token", body.Error)

	resp = env.do(t, fiber.MethodGet, "/auth/verify-email?token="+url.QueryEscape(token), nil, "")
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "app.rides.test", location.Host)
	assert.Equal(t, "/welcome", location.Path)
	assert.Equal(t, "true", location.Query().Get("verified"))

	resp = env.do(t, fiber.MethodGet, "/auth/verify-email?token="+url.QueryEscape(token), nil, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body = decode[auth.ErrorResponse](t, resp)
	assert.Equal(t, "already verified", body.Error)

	resp = env.do(t, fiber.MethodGet, "/auth/me", nil, pair.AccessToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	me := decode[map[string]any](t, resp)
	assert.Equal(t, "alice@example.com", me["email"])
	assert.Equal(t, true, me["isEmailVerified"])
	assert.NotContains(t, me, "passwordHash")
}

func TestHTTPVerificationConfirmWithoutRedirect(t *testing.T) {
	env := newHTTPEnv(t)
	env.register(t, "alice@example.com")
	token := env.notifier.lastToken(t, auth.MessageEmailVerification, "alice@example.com")

	resp := env.do(t, fiber.MethodGet, "/auth/verify-email?token="+url.QueryEscape(token), nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := decode[map[string]any](t, resp)
	assert.Equal(t, true, out["verified"])
}

func TestHTTPPasswordResetFlow(t *testing.T) {
	env := newHTTPEnv(t)
	env.register(t, "alice@example.com")
	env.verify(t, "alice@example.com")

	resp := env.do(t, fiber.MethodGet, "/auth/reset-password/"+url.PathEscape("nobody@example.com"), nil, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decode[auth.ErrorResponse](t, resp)
	assert.Equal(t, "user not found", body.Error)

	resp = env.do(t, fiber.MethodGet, "/auth/reset-password/"+url.PathEscape("alice@example.com"), nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	token := env.notifier.lastToken(t, auth.MessagePasswordReset, "alice@example.com")

	payload := map[string]string{"token": token, "password": newPassword}
	resp = env.do(t, fiber.MethodPost, "/auth/reset-password", payload, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	account := decode[map[string]any](t, resp)
	assert.Equal(t, "alice@example.com", account["email"])

	resp = env.do(t, fiber.MethodPost, "/auth/reset-password", payload, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body = decode[auth.ErrorResponse](t, resp)
	assert.Equal(t, "invalid token", body.Error)

	resp = env.do(t, fiber.MethodPost, "/auth/login", map[string]string{"email": "alice@example.com", "password": newPassword}, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHTTPRouteTable(t *testing.T) {
	env := newTestEnv(t)
	routes := auth.NewAuthController(env.auther).RouteTable()

	byName := map[string]auth.Route{}
	for _, r := range routes {
		byName[r.Name] = r
	}

	assert.Empty(t, byName["auth.register"].Guards.Names())
	assert.Equal(t, []string{"fresh_refresh"}, byName["auth.refresh"].Guards.Names())
	assert.Equal(t, []string{"authenticated"}, byName["auth.logout"].Guards.Names())
	assert.Equal(t, []string{"authenticated", "email_verified"}, byName["auth.me"].Guards.Names())
}

func TestNewAuthControllerRequiresAuther(t *testing.T) {
	assert.Panics(t, func() { auth.NewAuthController(nil) })
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	srv, app := newServer()
	srv.Router().Get("/boom", func(router.Context) error {
		return io.ErrUnexpectedEOF
	})
	srv.Router().Get("/missing", func(router.Context) error {
		return fiber.ErrNotFound
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body := decode[auth.ErrorResponse](t, resp)
	assert.Equal(t, "internal server error", body.Error)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGuardsMiddlewareProtectsGroups(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com")
	pair, err := env.auther.Login(context.Background(), "alice@example.com", testPassword)
	require.NoError(t, err)

	srv, app := newServer()
	srv.Router().Group("/api").Get("/whoami", func(c router.Context) error {
		claims, ok := auth.ClaimsFromCtx(c)
		if !ok {
			return auth.ErrTokenInvalid()
		}
		return c.SendString(claims.Email)
	}, env.auther.Guards().Middleware())

	req := httptest.NewRequest(fiber.MethodGet, "/api/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+pair.AccessToken)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "alice@example.com", string(raw))

	req = httptest.NewRequest(fiber.MethodGet, "/api/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+pair.RefreshToken)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestMetricsSinkAndHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	sink := auth.NewMetricsSink(registry)

	env := newTestEnv(t)
	env.auther = auth.NewAuther(testSettings(t), env.repo, env.notifier,
		auth.WithLogger(testLogger{}),
		auth.WithActivitySink(auth.ActivitySinks(sink, env.sink)),
	)
	env.register(t, "alice@example.com")
	_, err := env.auther.Login(context.Background(), "alice@example.com", "wrong-password")
	require.Error(t, err)

	app := fiber.New()
	app.Get("/metrics", auth.MetricsHandler(registry))
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.Contains(text, `rideshare_auth_events_total{event="auth.account.registered",failure=""} 1`), text)
	assert.True(t, strings.Contains(text, `rideshare_auth_events_total{event="auth.login.failure",failure="INVALID_CREDENTIALS"} 1`), text)
	assert.Len(t, env.sink.find(auth.ActivityEventLoginFailure), 1)
}
