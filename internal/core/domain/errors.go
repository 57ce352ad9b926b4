package domain

import "errors"

// User-correctable failures returned by the auth operations.
var (
	ErrInvalidField        = errors.New("empty or malformed input field")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrIPBanned            = errors.New("ip address is banned")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrAccessDenied        = errors.New("account lacks access permission")
	ErrAccountNotActivated = errors.New("account not activated")
)

// External / storage failures.
var (
	// ErrRealmCreateFailed means the realm rejected account creation.
	ErrRealmCreateFailed = errors.New("realm account creation failed")

	// ErrProvisioningFailed is fatal: the local account mirror was inserted
	// but a re-fetch still returned nothing. No consistent identity can be
	// produced from a store in that state.
	ErrProvisioningFailed = errors.New("account provisioning failed")

	ErrActivationInvalid = errors.New("activation token invalid or expired")
)

// Storage-level sentinels shared by the repository implementations.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrGroupNotFound   = errors.New("account group not found")
)
