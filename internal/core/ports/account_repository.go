package ports

import (
	"context"
	"time"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

// AccountRepository persists the local account mirror rows.
type AccountRepository interface {
	// FindWithGroup loads an account joined with its group. Returns
	// domain.ErrAccountNotFound when the mirror row is absent.
	FindWithGroup(ctx context.Context, accountID int64) (*domain.AccountRecord, *domain.AccountGroup, error)
	// Insert provisions a mirror row. Returns domain.ErrAccountExists when
	// the row was concurrently provisioned by another request.
	Insert(ctx context.Context, account *domain.AccountRecord) error
	UpdateLastSeen(ctx context.Context, accountID int64, seen time.Time) error
	SetActivated(ctx context.Context, accountID int64, activated bool) error
}
