package session

// Decision is what a protected view does with the current session.
type Decision int

const (
	// Pending: rehydration is still in flight; show a loading indicator, do not redirect.
	Pending Decision = iota
	// RedirectToLogin: rehydration resolved without an authenticated user.
	RedirectToLogin
	// Render: the session is authenticated.
	Render
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case RedirectToLogin:
		return "redirect-to-login"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Decide maps the session flags to a Decision. It only looks at the current flags,
// so callers evaluate it again after every state change.
func Decide(sess Session) Decision {
	switch {
	case sess.IsAuthenticated && sess.Token != "" && sess.User != nil:
		return Render
	case sess.IsLoading:
		return Pending
	default:
		return RedirectToLogin
	}
}
