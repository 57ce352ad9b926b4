package domain

import "time"

// Auth lifecycle event names published to the notification bus.
const (
	EventUserLoggedIn   = "user_logged_in"
	EventUserLoggedOut  = "user_logged_out"
	EventAccountCreated = "account_created"
)

// AuthEvent is a fire-and-forget notification about an account lifecycle
// transition. Password and ActivationToken are only populated on
// account_created, for downstream welcome/verification mailers; they are
// never serialized.
type AuthEvent struct {
	Name      string    `json:"name"`
	AccountID int64     `json:"account_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	At        time.Time `json:"at"`

	Password        string `json:"-"`
	ActivationToken string `json:"-"`
}
