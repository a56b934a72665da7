package auth

import (
	"net/http"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

type AuthControllerRoutes struct {
	Register      string
	Login         string
	Refresh       string
	Logout        string
	VerifyEmail   string
	PasswordReset string
	Me            string
}

type AuthController struct {
	Debug  bool
	Logger Logger
	Auther *Auther
	Routes *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

// WithControllerDebug dumps request payloads to the debug log. Passwords
// are masked.
func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(auther *Auther, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Auther: auther,
		Routes: &AuthControllerRoutes{
			Register:      "/register",
			Login:         "/login",
			Refresh:       "/refresh",
			Logout:        "/logout",
			VerifyEmail:   "/verify-email",
			PasswordReset: "/reset-password",
			Me:            "/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Auther in auth controller...")
	}

	return c
}

// RouteTable declares every auth route together with its guard chain.
func (a *AuthController) RouteTable() []Route {
	guards := a.Auther.Guards()
	authenticated := GuardChain{guards.Authenticated()}

	return []Route{
		{Method: http.MethodPost, Path: a.Routes.Register, Name: "auth.register", Guards: Public, Handler: a.Register},
		{Method: http.MethodPost, Path: a.Routes.Login, Name: "auth.login", Guards: Public, Handler: a.Login},
		{Method: http.MethodGet, Path: a.Routes.Refresh, Name: "auth.refresh", Guards: GuardChain{guards.FreshRefresh()}, Handler: a.Refresh},
		{Method: http.MethodGet, Path: a.Routes.Logout, Name: "auth.logout", Guards: authenticated, Handler: a.Logout},
		{Method: http.MethodPost, Path: a.Routes.VerifyEmail, Name: "auth.verify-email.request", Guards: Public, Handler: a.VerificationRequest},
		{Method: http.MethodGet, Path: a.Routes.VerifyEmail, Name: "auth.verify-email.confirm", Guards: Public, Handler: a.VerificationConfirm},
		{Method: http.MethodGet, Path: a.Routes.PasswordReset + "/:email", Name: "auth.reset-password.request", Guards: Public, Handler: a.PasswordResetRequest},
		{Method: http.MethodPost, Path: a.Routes.PasswordReset, Name: "auth.reset-password.finalize", Guards: Public, Handler: a.PasswordResetFinalize},
		{Method: http.MethodGet, Path: a.Routes.Me, Name: "auth.me", Guards: GuardChain{guards.Authenticated(), guards.EmailVerified()}, Handler: a.Me},
	}
}

// RegisterRoutes mounts the route table on r.
func (a *AuthController) RegisterRoutes(r RouteRegistrar) {
	RegisterRoutes(r, a.RouteTable())
}

// RegisterAuthRoutes mounts the auth controller on app.
func RegisterAuthRoutes[T any](app router.Router[T], controller *AuthController) {
	controller.RegisterRoutes(app)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerificationRequestPayload struct {
	Email       string `json:"email"`
	RedirectURI string `json:"redirectUri"`
}

func (r VerificationRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.RedirectURI, is.URL),
	)
}

type PasswordResetPayload struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (a *AuthController) Register(c router.Context) error {
	payload := RegisterAccountMessage{}
	if err := c.Bind(&payload); err != nil {
		return BadRequest(FailureInvalidInput, "invalid request body")
	}
	a.debug("register", payload)

	payload.Origin = a.origin(c, "")
	account, err := a.Auther.Register(c.Context(), payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, account)
}

func (a *AuthController) Login(c router.Context) error {
	payload := LoginRequest{}
	if err := c.Bind(&payload); err != nil {
		return BadRequest(FailureInvalidInput, "invalid request body")
	}
	a.debug("login", payload)

	pair, err := a.Auther.Login(c.Context(), payload.Email, payload.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (a *AuthController) Refresh(c router.Context) error {
	account, ok := AccountFromCtx(c)
	if !ok {
		return ErrAccessDenied()
	}

	pair, err := a.Auther.Refresh(c.Context(), account.ID, refreshTokenFromCtx(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (a *AuthController) Logout(c router.Context) error {
	claims, ok := ClaimsFromCtx(c)
	if !ok {
		return ErrTokenInvalid()
	}
	id, err := claims.AccountID()
	if err != nil {
		return err
	}
	if err := a.Auther.Logout(c.Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *AuthController) VerificationRequest(c router.Context) error {
	payload := VerificationRequestPayload{}
	if err := c.Bind(&payload); err != nil {
		return BadRequest(FailureInvalidInput, "invalid request body")
	}
	if err := payload.Validate(); err != nil {
		return BadRequest(FailureInvalidInput, "invalid verification request").
			WithMetadata(map[string]any{"fields": err.Error()})
	}
	if payload.RedirectURI != "" && !a.Auther.Settings().RedirectAllowed(payload.RedirectURI) {
		return BadRequest(FailureRedirectNotAllowed, "redirect not allowed")
	}

	origin := a.origin(c, payload.RedirectURI)
	if err := a.Auther.RequestEmailVerification(c.Context(), payload.Email, origin); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, messageResponse{
		Message: "if the account exists and is not verified, a verification email has been sent",
	})
}

func (a *AuthController) VerificationConfirm(c router.Context) error {
	redirectURI := c.Query("redirectUri", "")
	if redirectURI != "" && !a.Auther.Settings().RedirectAllowed(redirectURI) {
		return BadRequest(FailureRedirectNotAllowed, "redirect not allowed")
	}

	resp, err := a.Auther.ConfirmEmail(c.Context(), c.Query("token", ""))
	if err != nil {
		return err
	}

	target := redirectURI
	if target == "" && a.Auther.Settings().RedirectAllowed(resp.Origin) {
		target = resp.Origin
	}
	if target == "" {
		return c.JSON(http.StatusOK, map[string]any{"verified": true, "account": resp.Account})
	}
	return c.Redirect(withVerifiedFlag(target), http.StatusFound)
}

func (a *AuthController) PasswordResetRequest(c router.Context) error {
	email, err := url.PathUnescape(c.Param("email"))
	if err != nil || strings.TrimSpace(email) == "" {
		return BadRequest(FailureMissingFields, "email is required")
	}

	redirectURI := c.Query("redirectUri", "")
	if redirectURI != "" && !a.Auther.Settings().RedirectAllowed(redirectURI) {
		return BadRequest(FailureRedirectNotAllowed, "redirect not allowed")
	}

	if err := a.Auther.InitializePasswordReset(c.Context(), email, a.origin(c, redirectURI)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "password reset email sent"})
}

func (a *AuthController) PasswordResetFinalize(c router.Context) error {
	payload := PasswordResetPayload{}
	if err := c.Bind(&payload); err != nil {
		return BadRequest(FailureInvalidInput, "invalid request body")
	}
	a.debug("reset-password", payload)

	account, err := a.Auther.FinalizePasswordReset(c.Context(), payload.Token, payload.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, account)
}

func (a *AuthController) Me(c router.Context) error {
	account, ok := AccountFromCtx(c)
	if !ok {
		return ErrTokenInvalid()
	}
	return c.JSON(http.StatusOK, account)
}

// origin picks the redirect target for emailed links: an explicit value
// first, then the request Origin header when it is an allowed host.
func (a *AuthController) origin(c router.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if header := c.Header("Origin"); a.Auther.Settings().RedirectAllowed(header) {
		return header
	}
	return ""
}

func (a *AuthController) debug(action string, payload any) {
	if !a.Debug {
		return
	}
	a.Logger.Debug("auth request", "action", action, "payload", print.MaybePrettyJSON(maskPayload(payload)))
}

func maskPayload(payload any) any {
	switch p := payload.(type) {
	case LoginRequest:
		p.Password = "***"
		return p
	case RegisterAccountMessage:
		p.Password = "***"
		p.OnResponse = nil
		return p
	case PasswordResetPayload:
		p.Password = "***"
		p.Token = "***"
		return p
	}
	return payload
}

func withVerifiedFlag(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("verified", "true")
	u.RawQuery = q.Encode()
	return u.String()
}
