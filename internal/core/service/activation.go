package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

// activationCodec mints and verifies the account activation tokens handed to
// the notification bus at registration and redeemed by Activate.
type activationCodec struct {
	secret []byte
	ttl    time.Duration
}

func newActivationCodec(secret string, ttl time.Duration) *activationCodec {
	return &activationCodec{secret: []byte(secret), ttl: ttl}
}

func (c *activationCodec) Mint(accountID int64, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(accountID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("mint activation token: %w", err)
	}
	return token, nil
}

func (c *activationCodec) Parse(token string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, domain.ErrActivationInvalid
	}

	accountID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || accountID <= 0 {
		return 0, domain.ErrActivationInvalid
	}
	return accountID, nil
}
