package mailer

import (
	"context"

	"github.com/rs/zerolog"
)

// LogMailer records that a reset email would have been sent. Used when no relay is configured.
// The link is only logged at debug level so it stays out of production logs.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendResetEmail(_ context.Context, address, link string) error {
	m.log.Info().Str("to", address).Msg("password reset email (log only)")
	m.log.Debug().Str("to", address).Str("link", link).Msg("password reset link")
	return nil
}
