package auth

import (
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Settings is the immutable configuration shared by every component. It is
// built once at startup and passed into constructors.
type Settings struct {
	Secrets *SecretStore

	AppName     string
	Issuer      string
	BaseURL     string
	FromName    string
	FromAddress string

	// VerificationURL is the link target embedded in verification emails.
	// Defaults to BaseURL + "/auth/verify-email".
	VerificationURL string
	// PasswordResetURL is the page that collects the new password.
	// Defaults to BaseURL + "/reset-password".
	PasswordResetURL string

	BcryptCost int
	// PhoneRegion is the default region used to parse national numbers.
	PhoneRegion string
	// UseHashid derives account ids from the email address.
	UseHashid bool
	// RequireVerifiedEmailForLogin refuses login for unverified accounts.
	RequireVerifiedEmailForLogin bool
	// AllowedRedirectHosts lists hosts, besides the BaseURL host, that the
	// verification flow may redirect to.
	AllowedRedirectHosts []string
}

// Validate checks the settings are usable and fills defaults.
func (s *Settings) Validate() error {
	if s.Secrets == nil {
		return goerrors.New("settings require a secret store", goerrors.CategoryValidation)
	}
	if s.AppName == "" {
		s.AppName = "Rideshare"
	}
	if s.Issuer == "" {
		s.Issuer = strings.ToLower(strings.ReplaceAll(s.AppName, " ", "-"))
	}
	if s.PhoneRegion == "" {
		s.PhoneRegion = "US"
	}

	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if s.BaseURL != "" {
		if _, err := url.ParseRequestURI(s.BaseURL); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid base url")
		}
	}
	if s.VerificationURL == "" {
		s.VerificationURL = s.BaseURL + "/auth/verify-email"
	}
	if s.PasswordResetURL == "" {
		s.PasswordResetURL = s.BaseURL + "/reset-password"
	}
	return nil
}

func (s Settings) fromHeader() string {
	if s.FromAddress == "" {
		return ""
	}
	if s.FromName == "" {
		return s.FromAddress
	}
	return s.FromName + " <" + s.FromAddress + ">"
}

// RedirectAllowed reports whether target is an absolute http(s) URL pointing
// at the BaseURL host or one of AllowedRedirectHosts.
func (s Settings) RedirectAllowed(target string) bool {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if base, err := url.Parse(s.BaseURL); err == nil && base.Host != "" {
		if strings.EqualFold(base.Hostname(), host) {
			return true
		}
	}
	for _, allowed := range s.AllowedRedirectHosts {
		if strings.EqualFold(strings.TrimSpace(allowed), host) {
			return true
		}
	}
	return false
}
