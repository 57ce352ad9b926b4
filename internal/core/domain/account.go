package domain

import (
	"strings"
	"time"
)

// AccountRecord is the locally mirrored subset of a realm account plus the
// local-only fields the realm knows nothing about. Rows are provisioned on
// first resolution of a realm account and never deleted by this core.
type AccountRecord struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	GroupID        int64     `json:"group_id"`
	Activated      bool      `json:"activated"`
	Registered     time.Time `json:"registered"`
	RegistrationIP string    `json:"registration_ip"`
	LastSeen       time.Time `json:"last_seen"`

	Language      string `json:"language,omitempty"`
	SelectedTheme string `json:"selected_theme,omitempty"`

	Votes            int `json:"votes"`
	VotePoints       int `json:"vote_points"`
	VotePointsEarned int `json:"vote_points_earned"`
	VotePointsSpent  int `json:"vote_points_spent"`
	Donations        int `json:"donations"`

	// RecoveryBlob is the opaque encoded secret question/answer payload.
	// Only its presence is ever exposed to callers.
	RecoveryBlob string `json:"-"`
}

// AccountGroup is an account group row: flags plus the stored (possibly
// stale) permission blob.
type AccountGroup struct {
	ID          int64      `json:"group_id"`
	Title       string     `json:"title"`
	Flags       GroupFlags `json:"flags"`
	Permissions []byte     `json:"-"`
}

// NormalizeUsername applies the canonical username form: lowercased with the
// first letter capitalized.
func NormalizeUsername(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
