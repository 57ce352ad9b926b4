package domain

// GuestUsername is the display name of the unauthenticated identity.
const GuestUsername = "Guest"

// PermAccountAccess must be granted (or bypassed by super admin) for an
// account to resolve as authenticated at all.
const PermAccountAccess = "account_access"

// GroupFlags are the coarse role bits carried by an account group.
type GroupFlags struct {
	IsBanned     bool `json:"is_banned"`
	IsUser       bool `json:"is_user"`
	IsAdmin      bool `json:"is_admin"`
	IsSuperAdmin bool `json:"is_super_admin"`
}

// Identity is the resolved view of who is making a request. It is built
// fresh per request and replaced wholesale on login/logout, never mutated
// in place.
type Identity struct {
	Authenticated bool   `json:"authenticated"`
	AccountID     int64  `json:"account_id"`
	Username      string `json:"username"`
	Email         string `json:"email,omitempty"`
	IPAddress     string `json:"ip_address"`
	GroupID       int64  `json:"group_id"`
	GroupTitle    string `json:"group_title,omitempty"`

	Flags       GroupFlags      `json:"flags"`
	Permissions map[string]bool `json:"permissions"`

	// SessionToken is the opaque token backing an authenticated identity.
	// Empty for guests, never serialized.
	SessionToken string `json:"-"`

	// Attributes carries extensible account fields sourced from the realm
	// and the local mirror (registration date, theme, vote counters, ...).
	// Core fields live on the struct so the compiler catches typos.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// HasPermission reports whether the identity holds the given permission key.
// Super admins hold every permission.
func (id *Identity) HasPermission(key string) bool {
	if id == nil {
		return false
	}
	if id.Flags.IsSuperAdmin {
		return true
	}
	return id.Permissions[key]
}

// Guest returns the baseline unauthenticated identity for the given client
// IP. Group data is filled in by the resolver from the guest group.
func Guest(ip string) *Identity {
	return &Identity{
		Authenticated: false,
		AccountID:     0,
		Username:      GuestUsername,
		IPAddress:     ip,
		Permissions:   map[string]bool{},
		Attributes:    map[string]any{},
	}
}
