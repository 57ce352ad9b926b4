package ports

import (
	"context"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

// IdentityResolver turns a transport-level credential and client IP into the
// request's Identity. Every failure short of a fatal provisioning error
// degrades to the guest identity; the returned error is non-nil only when no
// consistent identity could be produced at all.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential, clientIP string) (*domain.Identity, error)
}
