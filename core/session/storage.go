package session

import (
	"context"

	"github.com/trezcool/perception/core/user"
)

// StorageKey is the fixed key of the durable session record.
const StorageKey = "auth-storage"

// TokenStorage is the durable record of the session token. Only the token survives a restart;
// the profile is always fetched again.
type TokenStorage interface {
	// Load returns the stored token, or "" if there is none.
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// AuthAPI is the part of the backend the store talks to.
type AuthAPI interface {
	RequestToken(ctx context.Context, creds user.Credentials) (string, error)
	GoogleToken(ctx context.Context, credential string) (string, error)
	Me(ctx context.Context) (user.User, error)
	Signup(ctx context.Context, nu user.NewUser) (user.User, error)

	// SetBearer makes every later request carry `Authorization: Bearer <token>`.
	SetBearer(token string)
	ClearBearer()
}
