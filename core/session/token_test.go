package session

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectToken(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   "alice@test.cd",
		ExpiresAt: exp.Unix(),
	}).SignedString([]byte("unknown-to-the-client"))
	require.NoError(t, err)

	info, ok := InspectToken(signed)
	require.True(t, ok)
	assert.Equal(t, "alice@test.cd", info.Subject)
	assert.True(t, exp.Equal(info.ExpiresAt))
	assert.False(t, info.Expired(time.Now()))
	assert.True(t, info.Expired(exp.Add(time.Second)))

	_, ok = InspectToken("tok-1")
	assert.False(t, ok)

	assert.False(t, TokenInfo{}.Expired(time.Now()), "no expiry never expires")
}

func TestDecide(t *testing.T) {
	usr := alice
	tests := []struct {
		name string
		sess Session
		want Decision
	}{
		{name: "fresh", sess: Session{Token: "tok-1", IsLoading: true}, want: Pending},
		{name: "no token resolved", sess: Session{}, want: RedirectToLogin},
		{name: "failed", sess: Session{Err: "Login failed"}, want: RedirectToLogin},
		{name: "authenticated", sess: Session{Token: "tok-1", User: &usr, IsAuthenticated: true}, want: Render},
		{name: "inconsistent flags", sess: Session{IsAuthenticated: true}, want: RedirectToLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.sess), tt.want.String())
		})
	}
}
