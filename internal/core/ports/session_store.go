package ports

import (
	"context"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

// SessionStore persists session records keyed by their opaque token.
type SessionStore interface {
	// Find returns domain.ErrSessionNotFound when no live record exists.
	Find(ctx context.Context, token string) (*domain.SessionRecord, error)
	// Insert stores a new record. The token must not already exist; a
	// collision is an error, never a silent overwrite.
	Insert(ctx context.Context, record *domain.SessionRecord) error
	// Delete removes a record; deleting an absent token is a no-op.
	Delete(ctx context.Context, token string) error
}
