package ports

import (
	"context"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

// GroupRepository persists account groups and the canonical permission-key
// list.
type GroupRepository interface {
	// FindGroup returns domain.ErrGroupNotFound for unknown group ids.
	FindGroup(ctx context.Context, groupID int64) (*domain.AccountGroup, error)
	// UpdateGroupPermissions rewrites a group's stored permission blob.
	UpdateGroupPermissions(ctx context.Context, groupID int64, blob []byte) error
	// ListPermissionKeys returns every permission key known to the system.
	ListPermissionKeys(ctx context.Context) ([]string, error)
}
