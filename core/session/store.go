package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/user"
)

// Fallback notices, used when the backend supplied no detail.
const (
	LoginFailedMsg       = "Login failed"
	GoogleLoginFailedMsg = "Google login failed"
	SignupFailedMsg      = "Signup failed"
)

// ErrTokenExpired is returned by CheckAuth when the stored token expired; no request is made.
var ErrTokenExpired = errors.New("session token expired")

// Store owns the session state. It is the only writer: callers read snapshots
// and go through its actions. The mutex is never held across a network call.
type Store struct {
	api     AuthAPI
	storage TokenStorage
	logger  core.Logger

	mu   sync.RWMutex
	sess Session
}

// NewStore rehydrates the token from `storage`. The session starts loading:
// CheckAuth resolves it.
func NewStore(api AuthAPI, storage TokenStorage, logger ...core.Logger) (*Store, error) {
	token, err := storage.Load()
	if err != nil {
		return nil, errors.Wrap(err, "loading session token")
	}
	s := &Store{
		api:     api,
		storage: storage,
		sess:    Session{Token: token, IsLoading: true},
	}
	if len(logger) > 0 {
		s.logger = logger[0]
	}
	return s, nil
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.copy()
}

// Token returns the current token ("" if none).
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.Token
}

// User returns the authenticated user.
func (s *Store) User() (user.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.sess.IsAuthenticated || s.sess.User == nil {
		return user.User{}, false
	}
	return *s.sess.User, true
}

// Login exchanges credentials for a token, then fetches the profile it belongs to.
// On failure the session is left empty, Err is set and the error is returned.
func (s *Store) Login(ctx context.Context, creds user.Credentials) error {
	s.begin()
	token, err := s.api.RequestToken(ctx, creds)
	if err != nil {
		return s.fail(err, LoginFailedMsg)
	}
	return s.authenticate(ctx, token, LoginFailedMsg)
}

// LoginWithGoogle is Login for a Google Identity Services credential.
func (s *Store) LoginWithGoogle(ctx context.Context, credential string) error {
	s.begin()
	token, err := s.api.GoogleToken(ctx, credential)
	if err != nil {
		return s.fail(err, GoogleLoginFailedMsg)
	}
	return s.authenticate(ctx, token, GoogleLoginFailedMsg)
}

// Signup registers a new account. It never authenticates nor touches the token.
func (s *Store) Signup(ctx context.Context, nu user.NewUser) (user.User, error) {
	s.mu.Lock()
	s.sess.IsLoading = true
	s.sess.Err = ""
	s.mu.Unlock()

	usr, err := s.api.Signup(ctx, nu)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess.IsLoading = false
	if err != nil {
		s.sess.Err = core.UserMessage(err, SignupFailedMsg)
		return user.User{}, err
	}
	return usr, nil
}

// Logout clears the session, the adapter's bearer header and the durable record.
// Calling it again is a no-op.
func (s *Store) Logout() {
	s.mu.Lock()
	s.sess = Session{}
	s.mu.Unlock()

	s.api.ClearBearer()
	if err := s.storage.Clear(); err != nil {
		s.logError("clearing session token", err)
	}
}

// CheckAuth validates the stored token against the backend.
// It is safe to call on every protected view: repeated calls only cost extra requests.
// Without a token, the session resolves unauthenticated and nil is returned.
// Any failure leaves the session as Logout does and is returned.
func (s *Store) CheckAuth(ctx context.Context) error {
	token := s.Token()
	if token == "" {
		s.mu.Lock()
		s.sess.IsLoading = false
		s.sess.IsAuthenticated = false
		s.sess.User = nil
		s.mu.Unlock()
		return nil
	}

	if info, ok := InspectToken(token); ok && info.Expired(nowFunc()) {
		s.Logout()
		return ErrTokenExpired
	}

	s.api.SetBearer(token)
	usr, err := s.api.Me(ctx)
	if err != nil {
		s.Logout()
		return errors.Wrap(err, "checking session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess.Token != token {
		// logged out (or in again) meanwhile
		return nil
	}
	s.sess.User = &usr
	s.sess.IsAuthenticated = true
	s.sess.IsLoading = false
	return nil
}

func (s *Store) begin() {
	s.mu.Lock()
	s.sess.IsLoading = true
	s.sess.Err = ""
	s.mu.Unlock()
}

// authenticate makes `token` current, fetches its profile and persists it.
func (s *Store) authenticate(ctx context.Context, token, fallback string) error {
	s.api.SetBearer(token)
	s.mu.Lock()
	s.sess.Token = token // transient until the profile is fetched
	s.mu.Unlock()

	usr, err := s.api.Me(ctx)
	if err != nil {
		return s.fail(err, fallback)
	}
	if err := s.storage.Save(token); err != nil {
		return s.fail(errors.Wrap(err, "saving session token"), fallback)
	}

	s.mu.Lock()
	s.sess = Session{Token: token, User: &usr, IsAuthenticated: true}
	s.mu.Unlock()
	return nil
}

// fail resets the session to the unauthenticated baseline and records the notice for `err`.
func (s *Store) fail(err error, fallback string) error {
	s.Logout()
	s.mu.Lock()
	s.sess.Err = core.UserMessage(err, fallback)
	s.mu.Unlock()
	return err
}

func (s *Store) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, err)
	}
}
