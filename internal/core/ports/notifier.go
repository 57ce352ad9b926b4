package ports

import "github.com/portalcms/account-gateway/internal/core/domain"

// Notifier publishes auth lifecycle events to the notification bus.
// Publication is fire-and-forget: implementations must not block the caller
// on delivery and must never fail the triggering operation.
type Notifier interface {
	Notify(event domain.AuthEvent)
}
