package session

import (
	"time"

	"github.com/dgrijalva/jwt-go"
)

var nowFunc = time.Now // mockable

// TokenInfo is what the client can read from a JWT without holding the signing key.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that has passed at `now`.
func (ti TokenInfo) Expired(now time.Time) bool {
	return !ti.ExpiresAt.IsZero() && !now.Before(ti.ExpiresAt)
}

// InspectToken decodes the claims of a JWT without verifying its signature.
// ok is false for opaque (non JWT) tokens, which only the backend can judge.
func InspectToken(token string) (info TokenInfo, ok bool) {
	claims := new(jwt.StandardClaims)
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, false
	}
	info.Subject = claims.Subject
	if claims.ExpiresAt > 0 {
		info.ExpiresAt = time.Unix(claims.ExpiresAt, 0)
	}
	return info, true
}
