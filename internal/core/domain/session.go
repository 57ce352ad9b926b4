package domain

import "time"

// TokenLength is the fixed length of a minted session token.
const TokenLength = 40

// SessionRecord is a server-side proof of prior authentication. Records are
// created on login and deleted on logout or on any validation failure; a
// re-login always mints a fresh token, records are never updated in place.
type SessionRecord struct {
	Token     string    `json:"token"`
	AccountID int64     `json:"account_id"`
	BoundIP   string    `json:"bound_ip"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record has passed its expiry at the given time.
func (r *SessionRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// BoundTo reports whether the record is bound to the given client IP.
func (r *SessionRecord) BoundTo(ip string) bool {
	return r.BoundIP == ip
}
