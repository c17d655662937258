package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const Issuer = "piecework"

var (
	ErrTokenExpired = errors.New("session token expired")
	ErrTokenInvalid = errors.New("session token invalid")
)

// SessionIdentity is the user state carried in a session token.
type SessionIdentity struct {
	UserID    string `json:"nameid"`
	Username  string `json:"unique_name"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CompanyID string `json:"cid"`
	// ValidatedAt is the unix time the user was last checked against the store.
	ValidatedAt int64 `json:"vat"`
}

type SessionClaims struct {
	SessionIdentity
	jwt.RegisteredClaims
}

// DecodeSecret accepts a base64 secret and falls back to the raw string.
func DecodeSecret(secret string) []byte {
	if b, err := base64.StdEncoding.DecodeString(secret); err == nil && len(b) >= 16 {
		return b
	}
	return []byte(secret)
}

func CreateSessionToken(identity SessionIdentity, secret []byte, issuedAt, expiresAt time.Time) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("empty signing secret")
	}
	claims := SessionClaims{
		SessionIdentity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseSessionToken(tokenStr string, secret []byte, now time.Time) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}
