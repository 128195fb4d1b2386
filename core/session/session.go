// Package session holds the client-side authentication state: the bearer token,
// the profile it resolves to and the flags the route guard decides on.
package session

import "github.com/trezcool/perception/core/user"

// Session is a snapshot of a Store's state.
// IsAuthenticated implies Token and User are both set.
type Session struct {
	Token           string
	User            *user.User
	IsAuthenticated bool
	IsLoading       bool
	Err             string
}

// copy returns a Session that shares nothing with s.
func (s Session) copy() Session {
	if s.User != nil {
		usr := *s.User
		s.User = &usr
	}
	return s
}
