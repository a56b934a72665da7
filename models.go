package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the credential-bearing record of a rider, driver or admin.
// Secret material never leaves the package through JSON.
type Account struct {
	bun.BaseModel          `bun:"table:accounts,alias:acc"`
	ID                     uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	FirstName              string     `bun:"first_name" json:"firstName,omitempty"`
	LastName               string     `bun:"last_name" json:"lastName,omitempty"`
	Email                  string     `bun:"email,notnull,unique" json:"email"`
	Phone                  string     `bun:"phone" json:"phone,omitempty"`
	Role                   Role       `bun:"role,notnull" json:"role"`
	PasswordHash           string     `bun:"password_hash,notnull" json:"-"`
	IsEmailVerified        bool       `bun:"is_email_verified,notnull" json:"isEmailVerified"`
	IsPhoneVerified        bool       `bun:"is_phone_verified,notnull" json:"isPhoneVerified"`
	RefreshTokenHash       *string    `bun:"refresh_token_hash" json:"-"`
	ResetPasswordTokenHash *string    `bun:"reset_password_token_hash" json:"-"`
	LoggedInAt             *time.Time `bun:"logged_in_at" json:"loggedInAt,omitempty"`
	CreatedAt              time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt              time.Time  `bun:"updated_at,notnull" json:"updatedAt"`
}

// HasSession reports whether a refresh token digest is stored.
func (a *Account) HasSession() bool {
	return a != nil && a.RefreshTokenHash != nil && *a.RefreshTokenHash != ""
}

// HasPendingReset reports whether a password reset digest is stored.
func (a *Account) HasPendingReset() bool {
	return a != nil && a.ResetPasswordTokenHash != nil && *a.ResetPasswordTokenHash != ""
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	if a == nil {
		return ""
	}
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// NormalizeEmail trims and lower-cases an email address. Every lookup and
// every stored email goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func prepareAccountDefaults(a *Account, now time.Time) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Email = NormalizeEmail(a.Email)
	if a.Role == "" {
		a.Role = DefaultRole
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}
