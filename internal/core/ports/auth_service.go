package ports

import (
	"context"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

// RegisterInput carries the register operation's fields. SecretQuestionID
// and SecretAnswer are optional; when both are supplied an account recovery
// blob is stored with the mirror row.
type RegisterInput struct {
	Username         string
	Password         string
	Email            string
	SecretQuestionID int64
	SecretAnswer     string
	IPAddress        string
}

// AuthService exposes the account lifecycle operations.
type AuthService interface {
	// Login returns the authenticated identity plus the opaque transport
	// credential (accountId::token, base64) for the caller to persist.
	Login(ctx context.Context, username, password, clientIP string) (*domain.Identity, string, error)
	// Register returns the new realm account id.
	Register(ctx context.Context, input RegisterInput) (int64, error)
	// Logout invalidates the identity's session. When startNewSession is
	// true the returned identity is a freshly resolved guest; otherwise it
	// is nil. Logging out a guest is a no-op.
	Logout(ctx context.Context, identity *domain.Identity, startNewSession bool) (*domain.Identity, error)
	// Activate consumes an activation token minted at registration.
	Activate(ctx context.Context, token string) error
}
