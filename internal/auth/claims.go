package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors for token verification. Check with errors.Is().
var (
	// ErrTokenInvalid covers bad signatures, expiry, wrong algorithms
	// and missing required claims.
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// CallerClaims are the claims Junction reads from a bearer token.
//
// Tokens are issued by the external auth service; Junction only
// verifies them. Kind mirrors the broker's caller kinds ("object",
// "service") plus "user" for browser sessions.
type CallerClaims struct {
	jwt.RegisteredClaims
	Kind string `json:"kind"`
}

// ParseToken verifies a bearer token and returns its claims.
// Signature, expiry and algorithm (HS256 only) are checked, plus the
// required subject and kind claims.
func ParseToken(tokenString, secret string) (*CallerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CallerClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CallerClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Kind == "" {
		return nil, fmt.Errorf("%w: missing kind", ErrTokenInvalid)
	}

	return claims, nil
}
