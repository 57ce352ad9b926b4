package ports

import (
	"context"
	"time"
)

// AccountHandle is a live handle on a realm account. Mutations are staged
// with the setters and written back with Save.
type AccountHandle interface {
	ID() int64
	Username() string
	Email() string
	// JoinDate returns the realm-side registration time, zero when the realm
	// does not track it.
	JoinDate() time.Time
	SetLocked(locked bool)
	Save(ctx context.Context) error
}

// RealmAdapter is the external account authority. It owns credential
// validation and password storage; this module never sees password hashes.
type RealmAdapter interface {
	ValidateCredentials(ctx context.Context, username, password string) (bool, error)
	AccountExists(ctx context.Context, username string) (bool, error)
	IPBanned(ctx context.Context, ip string) (bool, error)
	// CreateAccount returns the new realm account id.
	CreateAccount(ctx context.Context, username, password, email, ip string) (int64, error)
	// FetchAccountByID returns domain.ErrAccountNotFound when the realm has
	// no such account.
	FetchAccountByID(ctx context.Context, id int64) (AccountHandle, error)
	FetchAccountByUsername(ctx context.Context, username string) (AccountHandle, error)
}
