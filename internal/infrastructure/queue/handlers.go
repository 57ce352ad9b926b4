package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

// AuditLogHandler records every auth event as a structured log line. It is
// the default subscriber; mailers and webhooks register alongside it.
func AuditLogHandler(log zerolog.Logger) Handler {
	return func(_ context.Context, event domain.AuthEvent) error {
		log.Info().
			Str("event", event.Name).
			Int64("account_id", event.AccountID).
			Str("username", event.Username).
			Str("ip", event.IPAddress).
			Time("at", event.At).
			Msg("auth event")
		return nil
	}
}
