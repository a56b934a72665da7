package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Failure is the closed set of reasons a credential operation can fail.
// It travels in the TextCode of the returned *goerrors.Error.
type Failure string

const (
	FailureNone               Failure = ""
	FailureTokenExpired       Failure = "TOKEN_EXPIRED"
	FailureTokenInvalid       Failure = "TOKEN_INVALID"
	FailureUserNotFound       Failure = "USER_NOT_FOUND"
	FailureAlreadyVerified    Failure = "ALREADY_VERIFIED"
	FailureAlreadyExists      Failure = "ALREADY_EXISTS"
	FailureMissingFields      Failure = "MISSING_FIELDS"
	FailureInvalidInput       Failure = "INVALID_INPUT"
	FailureEmailNotVerified   Failure = "EMAIL_NOT_VERIFIED"
	FailureInvalidCredentials Failure = "INVALID_CREDENTIALS"
	FailureAccessDenied       Failure = "ACCESS_DENIED"
	FailureRedirectNotAllowed Failure = "REDIRECT_NOT_ALLOWED"
)

const (
	msgTokenExpired       = "token expired"
	msgTokenInvalid       = "invalid token"
	msgInvalidCredentials = "invalid email or password"
	msgAccessDenied       = "access denied"
	msgEmailNotVerified   = "email is not verified"
	msgUserNotFound       = "user not found"
)

func failure(kind Failure, category goerrors.Category, code int, msg string) *goerrors.Error {
	return goerrors.New(msg, category).
		WithCode(code).
		WithTextCode(string(kind))
}

// BadRequest builds a 400 error of the given kind.
func BadRequest(kind Failure, msg string) *goerrors.Error {
	return failure(kind, goerrors.CategoryBadInput, goerrors.CodeBadRequest, msg)
}

// Unauthorized builds a 401 error of the given kind.
func Unauthorized(kind Failure, msg string) *goerrors.Error {
	return failure(kind, goerrors.CategoryAuth, goerrors.CodeUnauthorized, msg)
}

// Forbidden builds a 403 error of the given kind.
func Forbidden(kind Failure, msg string) *goerrors.Error {
	return failure(kind, goerrors.CategoryAuth, goerrors.CodeForbidden, msg)
}

// ErrTokenExpired is returned by token verification when the signature is
// valid but the exp claim is in the past.
func ErrTokenExpired() *goerrors.Error {
	return Unauthorized(FailureTokenExpired, msgTokenExpired)
}

// ErrTokenInvalid covers every other verification failure: bad signature,
// wrong class, malformed token, missing claims.
func ErrTokenInvalid() *goerrors.Error {
	return Unauthorized(FailureTokenInvalid, msgTokenInvalid)
}

// ErrInvalidCredentials is shared by the unknown email and wrong password
// paths so callers cannot tell them apart.
func ErrInvalidCredentials() *goerrors.Error {
	return Unauthorized(FailureInvalidCredentials, msgInvalidCredentials)
}

// ErrAccessDenied is returned for refresh token mismatches.
func ErrAccessDenied() *goerrors.Error {
	return Forbidden(FailureAccessDenied, msgAccessDenied)
}

// ErrEmailNotVerified guards routes that need a confirmed email address.
func ErrEmailNotVerified() *goerrors.Error {
	return Unauthorized(FailureEmailNotVerified, msgEmailNotVerified)
}

func errInternal(err error, msg string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithCode(http.StatusInternalServerError)
}

// asBadRequest rewrites a token verification failure into the 400 shape used
// by the email verification and password reset flows.
func asBadRequest(err error) error {
	switch kind := FailureOf(err); kind {
	case FailureTokenExpired:
		return BadRequest(kind, msgTokenExpired)
	case FailureTokenInvalid:
		return BadRequest(kind, msgTokenInvalid)
	}
	return err
}

// FailureOf returns the failure kind carried by err, or FailureNone.
func FailureOf(err error) Failure {
	if err == nil {
		return FailureNone
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return Failure(richErr.TextCode)
	}
	return FailureNone
}

// StatusCode maps an error to the HTTP status it should be rendered with.
func StatusCode(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}
	if richErr.Code != 0 {
		return richErr.Code
	}
	switch richErr.Category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func normalizeError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return errInternal(err, msg)
}
