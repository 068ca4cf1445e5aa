package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// secretExpiry reads the exp claim of a JWT secret without verifying it.
// The client cannot verify the service's signature; the value only drives
// when to rotate. Opaque secrets report false.
func secretExpiry(secret string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(secret, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
