package auth

import (
	"net/url"
	"time"
)

// Keys of Message.Data available to notification templates.
const (
	MessageDataURL     = "url"
	MessageDataAppName = "app_name"
	MessageDataEmail   = "email"
	MessageDataName    = "name"
)

type messageBuilder struct {
	settings Settings
	now      func() time.Time
}

func (b messageBuilder) verification(account *Account, token, origin string) Message {
	q := url.Values{}
	q.Set("token", token)
	if origin != "" {
		q.Set("redirectUri", origin)
	}
	link := b.settings.VerificationURL + "?" + q.Encode()

	return b.message(MessageEmailVerification, account, link,
		b.settings.AppName+" - Email verification",
		"Welcome to "+b.settings.AppName+". To confirm your email address, open this link: "+link,
	)
}

func (b messageBuilder) passwordReset(account *Account, token, origin string) Message {
	q := url.Values{}
	q.Set("token", token)
	if origin != "" {
		q.Set("redirectUri", origin)
	}
	link := b.settings.PasswordResetURL + "?" + q.Encode()

	return b.message(MessagePasswordReset, account, link,
		b.settings.AppName+" - Password reset",
		"A password reset was requested for your "+b.settings.AppName+" account. To choose a new password, open this link: "+link,
	)
}

func (b messageBuilder) message(kind MessageKind, account *Account, link, subject, text string) Message {
	return Message{
		Kind:    kind,
		To:      account.Email,
		From:    b.settings.fromHeader(),
		Subject: subject,
		Text:    text,
		Data: map[string]string{
			MessageDataURL:     link,
			MessageDataAppName: b.settings.AppName,
			MessageDataEmail:   account.Email,
			MessageDataName:    account.FullName(),
		},
		QueuedAt: b.now().UTC(),
	}
}
