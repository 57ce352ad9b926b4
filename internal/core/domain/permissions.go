package domain

import (
	"encoding/json"
	"sort"
)

// permissionBlobVersion is the current encoding version of a stored
// permission blob. Decoders accept only versions they know; anything else is
// treated as an empty grant set and healed on the next prune.
const permissionBlobVersion = 1

type permissionBlob struct {
	Version int      `json:"v"`
	Granted []string `json:"granted"`
}

// EncodePermissions serializes the granted keys of a permission set into the
// versioned blob stored on an account group. Keys are sorted so equal sets
// encode identically.
func EncodePermissions(perms map[string]bool) []byte {
	granted := make([]string, 0, len(perms))
	for key, ok := range perms {
		if ok {
			granted = append(granted, key)
		}
	}
	sort.Strings(granted)

	raw, err := json.Marshal(permissionBlob{Version: permissionBlobVersion, Granted: granted})
	if err != nil {
		// A map[string]bool of plain strings cannot fail to marshal.
		return nil
	}
	return raw
}

// DecodePermissions parses a stored permission blob into a grant set. An
// absent, corrupt, or unknown-version blob decodes as empty: the prune pass
// rewrites it from canonical data, so corruption is self-healing.
func DecodePermissions(raw []byte) map[string]bool {
	perms := map[string]bool{}
	if len(raw) == 0 {
		return perms
	}

	var blob permissionBlob
	if err := json.Unmarshal(raw, &blob); err != nil || blob.Version != permissionBlobVersion {
		return perms
	}
	for _, key := range blob.Granted {
		perms[key] = true
	}
	return perms
}
