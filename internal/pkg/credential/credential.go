// Package credential mints session tokens and encodes/decodes the transport
// credential handed to clients.
//
// The credential wire form is base64url(accountId + "::" + token). The token
// itself is a fixed-length hex string derived from CSPRNG material; it is
// the only proof of authentication the server stores.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

const separator = "::"

// MintToken returns a new high-entropy session token of domain.TokenLength
// hex characters.
func MintToken() (string, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	sum := sha256.Sum256(seed[:])
	return hex.EncodeToString(sum[:])[:domain.TokenLength], nil
}

// Encode packs an account id and session token into the client credential.
func Encode(accountID int64, token string) string {
	raw := strconv.FormatInt(accountID, 10) + separator + token
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode unpacks a client credential. Any structural defect (bad base64,
// missing separator, non-numeric id, wrong token length) is an error; the
// caller treats a malformed credential as no credential at all.
func Decode(credential string) (int64, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(credential)
	if err != nil {
		return 0, "", fmt.Errorf("decode credential: %w", err)
	}

	id, token, found := strings.Cut(string(raw), separator)
	if !found {
		return 0, "", fmt.Errorf("decode credential: missing separator")
	}

	accountID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || accountID <= 0 {
		return 0, "", fmt.Errorf("decode credential: invalid account id")
	}
	if len(token) != domain.TokenLength {
		return 0, "", fmt.Errorf("decode credential: invalid token length")
	}

	return accountID, token, nil
}
