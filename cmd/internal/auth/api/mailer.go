package authapi

import (
	"context"
	"log/slog"
	"time"
)

// LogMailer writes reset links to the log instead of sending mail. It is the
// delivery channel for local development.
type LogMailer struct {
	Log     *slog.Logger
	URLBase string
}

// SendPasswordReset logs the reset link a real mailer would deliver.
func (m LogMailer) SendPasswordReset(ctx context.Context, email, tokenPlain string, expiresAt time.Time) error {
	log := m.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "mail.password_reset",
		"email", email,
		"link", m.URLBase+"?token="+tokenPlain,
		"expires_at", expiresAt,
	)
	return nil
}
