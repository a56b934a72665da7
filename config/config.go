// Package config loads service configuration from an optional file, a .env
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	auth "github.com/rideshare/go-rideshare-auth"
)

type AppCfg struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	Issuer  string `mapstructure:"issuer"`
	Debug   bool   `mapstructure:"debug"`
}

type ServerCfg struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseCfg struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Expiration is a token lifetime written either as a duration ("15m") or
// as a whole number of seconds ("900").
type Expiration time.Duration

// ParseExpiration parses s as a duration, falling back to seconds.
func ParseExpiration(s string) (Expiration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return Expiration(d), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid expiration %q: want a duration such as 15m or a number of seconds", s)
	}
	return Expiration(time.Duration(n) * time.Second), nil
}

var expirationType = reflect.TypeOf(Expiration(0))

func expirationHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != expirationType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return ParseExpiration(v)
	case int:
		return Expiration(time.Duration(v) * time.Second), nil
	case int64:
		return Expiration(time.Duration(v) * time.Second), nil
	case float64:
		return Expiration(time.Duration(v * float64(time.Second))), nil
	}
	return data, nil
}

type TokenCfg struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	// Expiration overrides TTL when set. Existing deployments express it in
	// seconds.
	Expiration Expiration `mapstructure:"expiration"`
}

func (t TokenCfg) lifetime() time.Duration {
	if t.Expiration > 0 {
		return time.Duration(t.Expiration)
	}
	return t.TTL
}

type TokensCfg struct {
	Access            TokenCfg `mapstructure:"access"`
	Refresh           TokenCfg `mapstructure:"refresh"`
	EmailVerification TokenCfg `mapstructure:"email_verification"`
	PasswordReset     TokenCfg `mapstructure:"password_reset"`
}

type SecurityCfg struct {
	BcryptCost                   int      `mapstructure:"bcrypt_cost"`
	RequireVerifiedEmailForLogin bool     `mapstructure:"require_verified_email_for_login"`
	AllowedRedirectHosts         []string `mapstructure:"allowed_redirect_hosts"`
	UseHashid                    bool     `mapstructure:"use_hashid"`
	PhoneRegion                  string   `mapstructure:"phone_region"`
}

type MailCfg struct {
	FromName         string `mapstructure:"from_name"`
	FromAddress      string `mapstructure:"from_address"`
	VerificationURL  string `mapstructure:"verification_url"`
	PasswordResetURL string `mapstructure:"password_reset_url"`
}

type BreakerCfg struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type NotifierCfg struct {
	// Driver is "log" or "kafka".
	Driver     string     `mapstructure:"driver"`
	Brokers    []string   `mapstructure:"brokers"`
	Topic      string     `mapstructure:"topic"`
	AuditTopic string     `mapstructure:"audit_topic"`
	Breaker    BreakerCfg `mapstructure:"breaker"`
}

type LogCfg struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

type Config struct {
	App      AppCfg      `mapstructure:"app"`
	Server   ServerCfg   `mapstructure:"server"`
	Database DatabaseCfg `mapstructure:"database"`
	Tokens   TokensCfg   `mapstructure:"tokens"`
	Security SecurityCfg `mapstructure:"security"`
	Mail     MailCfg     `mapstructure:"mail"`
	Notifier NotifierCfg `mapstructure:"notifier"`
	Log      LogCfg      `mapstructure:"log"`
}

// envBindings maps config keys to the variable names used by existing
// deployments.
var envBindings = map[string]string{
	"app.name":                             "APP_NAME",
	"app.base_url":                         "APP_BASE_URL",
	"database.driver":                      "DATABASE_DRIVER",
	"database.dsn":                         "DATABASE_URL",
	"tokens.access.secret":                 "JWT_ACCESS_TOKEN_SECRET",
	"tokens.access.expiration":             "JWT_ACCESS_TOKEN_EXPIRATION_TIME",
	"tokens.refresh.secret":                "JWT_REFRESH_TOKEN_SECRET",
	"tokens.refresh.expiration":            "JWT_REFRESH_TOKEN_EXPIRATION_TIME",
	"tokens.email_verification.secret":     "JWT_EMAIL_VERIFICATION_TOKEN_SECRET",
	"tokens.email_verification.expiration": "JWT_EMAIL_VERIFICATION_TOKEN_EXPIRATION_TIME",
	"tokens.password_reset.secret":         "JWT_PASSWORD_RESET_TOKEN_SECRET",
	"tokens.password_reset.expiration":     "JWT_PASSWORD_RESET_TOKEN_EXPIRATION_TIME",
	"security.bcrypt_cost":                 "BCRYPT_SALT_ROUNDS",
	"mail.verification_url":                "EMAIL_VERIFICATION_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Rideshare")
	v.SetDefault("app.base_url", "http://localhost:3000")
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("database.driver", auth.DriverSQLite)
	v.SetDefault("database.dsn", "file:rideshare.db?cache=shared")
	v.SetDefault("tokens.access.ttl", 15*time.Minute)
	v.SetDefault("tokens.refresh.ttl", 7*24*time.Hour)
	v.SetDefault("tokens.email_verification.ttl", 24*time.Hour)
	v.SetDefault("tokens.password_reset.ttl", time.Hour)
	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.phone_region", "US")
	v.SetDefault("notifier.driver", "log")
	v.SetDefault("notifier.topic", "rideshare.auth.notifications")
	v.SetDefault("notifier.audit_topic", "rideshare.auth.activity")
	v.SetDefault("notifier.breaker.max_failures", 5)
	v.SetDefault("notifier.breaker.interval", time.Minute)
	v.SetDefault("notifier.breaker.timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
}

// Load reads configuration. path may be empty, in which case only defaults,
// .env and the environment are used. Env vars take the RIDESHARE_ prefix
// with dots replaced by underscores (RIDESHARE_SERVER_ADDR), in addition to
// the legacy names in envBindings.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RIDESHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "RIDESHARE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		expirationHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Settings builds the immutable auth settings, validating the secrets.
func (c *Config) Settings() (auth.Settings, error) {
	secrets, err := auth.NewSecretStore(map[auth.TokenClass]auth.ClassSecret{
		auth.TokenAccess:            {Secret: c.Tokens.Access.Secret, TTL: c.Tokens.Access.lifetime()},
		auth.TokenRefresh:           {Secret: c.Tokens.Refresh.Secret, TTL: c.Tokens.Refresh.lifetime()},
		auth.TokenEmailVerification: {Secret: c.Tokens.EmailVerification.Secret, TTL: c.Tokens.EmailVerification.lifetime()},
		auth.TokenPasswordReset:     {Secret: c.Tokens.PasswordReset.Secret, TTL: c.Tokens.PasswordReset.lifetime()},
	})
	if err != nil {
		return auth.Settings{}, err
	}

	settings := auth.Settings{
		Secrets:                      secrets,
		AppName:                      c.App.Name,
		Issuer:                       c.App.Issuer,
		BaseURL:                      c.App.BaseURL,
		FromName:                     c.Mail.FromName,
		FromAddress:                  c.Mail.FromAddress,
		VerificationURL:              c.Mail.VerificationURL,
		PasswordResetURL:             c.Mail.PasswordResetURL,
		BcryptCost:                   c.Security.BcryptCost,
		PhoneRegion:                  c.Security.PhoneRegion,
		UseHashid:                    c.Security.UseHashid,
		RequireVerifiedEmailForLogin: c.Security.RequireVerifiedEmailForLogin,
		AllowedRedirectHosts:         c.Security.AllowedRedirectHosts,
	}
	if err := settings.Validate(); err != nil {
		return auth.Settings{}, err
	}
	return settings, nil
}
