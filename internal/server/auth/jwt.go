// Package auth holds the credential primitives of the game server: input
// rules for usernames and passwords, argon2id password hashing, and signed
// session tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jimzhouzzy/klotski-server/internal/common"
)

// Claims is the token payload: the registered claims plus the username.
// RegisteredClaims.ID carries the random session id.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// GenerateToken signs an HS256 token for username. sessionID must be
// unpredictable; it is what makes two tokens for the same user distinct.
func GenerateToken(username, sessionID string, secretKey []byte, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: username,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

// ParseToken verifies the signature and expiry of tokenString against now.
// It returns common.ErrorTokenExpired for expired tokens and
// common.ErrorInvalidToken for anything else that fails.
func ParseToken(tokenString string, secretKey []byte, now time.Time) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrorTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInvalidToken, err)
	}

	if !token.Valid || claims.Username == "" || claims.ID == "" {
		return nil, common.ErrorInvalidToken
	}

	return claims, nil
}
