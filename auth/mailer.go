package auth

import (
	"context"
	"log/slog"
)

// Mailer delivers password-reset messages. Deployments plug in their
// own transport; the default logs the reset token so single-node dev
// setups still work end to end.
type Mailer interface {
	SendPasswordReset(ctx context.Context, user User, resetToken string) error
}

// LogMailer writes the reset token to the service log instead of
// sending mail.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, user User, resetToken string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("password reset requested",
		"email", user.Email, "reset_token", resetToken)
	return nil
}
