package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/portalcms/account-gateway/internal/core/domain"
	"github.com/portalcms/account-gateway/internal/core/ports"
)

// PermissionCache resolves a group's stored permission blob against the
// canonical permission-key list. The canonical list decides which keys can
// exist; the group's blob decides which of those are granted. Stored keys
// that left the canonical list are pruned and the pruned blob is written
// back, so groups self-heal after schema drift.
type PermissionCache struct {
	groups ports.GroupRepository
	log    zerolog.Logger
}

func NewPermissionCache(groups ports.GroupRepository, log zerolog.Logger) *PermissionCache {
	return &PermissionCache{groups: groups, log: log}
}

// Resolve returns the pruned grant set for a group. Re-running on an
// already-pruned blob performs no write.
func (c *PermissionCache) Resolve(ctx context.Context, groupID int64, blob []byte) (map[string]bool, error) {
	stored := domain.DecodePermissions(blob)

	canonical, err := c.groups.ListPermissionKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}

	pruned, dropped := prunePermissions(stored, canonical)
	if len(dropped) > 0 {
		if err := c.groups.UpdateGroupPermissions(ctx, groupID, domain.EncodePermissions(pruned)); err != nil {
			return nil, fmt.Errorf("resolve permissions: persist pruned blob: %w", err)
		}
		c.log.Info().
			Int64("group_id", groupID).
			Strs("dropped", dropped).
			Msg("pruned stale permission keys from group")
	}

	return pruned, nil
}

// prunePermissions intersects the stored grant set with the canonical key
// list. Pure: returns the surviving grants and the keys that were dropped.
func prunePermissions(stored map[string]bool, canonical []string) (map[string]bool, []string) {
	known := make(map[string]struct{}, len(canonical))
	for _, key := range canonical {
		known[key] = struct{}{}
	}

	pruned := make(map[string]bool, len(stored))
	var dropped []string
	for key, granted := range stored {
		if !granted {
			continue
		}
		if _, ok := known[key]; ok {
			pruned[key] = true
		} else {
			dropped = append(dropped, key)
		}
	}
	return pruned, dropped
}
