package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/user"
)

// Notices
const (
	loggedInMsg = "Login successful!"
	signedUpMsg = "Signup successful! Please login."
)

// Google Identity Services posts its credential along with a double submit token.
const (
	googleCredentialParam = "credential"
	googleCSRFName        = "g_csrf_token"
)

func (s *server) loginPage(ctx echo.Context) error {
	if getStore(ctx).Token() != "" {
		return ctx.Redirect(http.StatusFound, "/dashboard")
	}
	return ctx.Render(http.StatusOK, "login", s.newPage(ctx, "Login"))
}

func (s *server) login(ctx echo.Context) error {
	var creds user.Credentials
	if err := ctx.Bind(&creds); err != nil {
		return err
	}

	p := s.newPage(ctx, "Login")
	p.Form = &creds
	if err := creds.Validate(s.deps.Validate, s.deps.Translator); err != nil {
		if !core.IsValidationError(err) {
			return err
		}
		p.Errors = fieldErrors(err)
		return ctx.Render(http.StatusUnprocessableEntity, "login", p)
	}

	store := getStore(ctx)
	if err := store.Login(ctx.Request().Context(), creds); err != nil {
		s.deps.Logger.Info("login failed", err, map[string]interface{}{"username": creds.Username})
		p.notice(flashError, store.Snapshot().Err)
		return ctx.Render(failureStatus(err), "login", p)
	}

	setFlash(ctx, flashSuccess, loggedInMsg)
	return ctx.Redirect(http.StatusSeeOther, "/dashboard")
}

func (s *server) loginWithGoogle(ctx echo.Context) error {
	cookie, err := ctx.Cookie(googleCSRFName)
	if err != nil || cookie.Value == "" || cookie.Value != ctx.FormValue(googleCSRFName) {
		return errDoubleSubmit
	}
	credential := ctx.FormValue(googleCredentialParam)
	if credential == "" {
		return errMissingGoogleID
	}

	store := getStore(ctx)
	if err := store.LoginWithGoogle(ctx.Request().Context(), credential); err != nil {
		s.deps.Logger.Info("google login failed", err)
		p := s.newPage(ctx, "Login")
		p.notice(flashError, store.Snapshot().Err)
		return ctx.Render(failureStatus(err), "login", p)
	}

	setFlash(ctx, flashSuccess, loggedInMsg)
	return ctx.Redirect(http.StatusSeeOther, "/dashboard")
}

func (s *server) signupPage(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "signup", s.newPage(ctx, "Sign up"))
}

func (s *server) signup(ctx echo.Context) error {
	var nu user.NewUser
	if err := ctx.Bind(&nu); err != nil {
		return err
	}

	p := s.newPage(ctx, "Sign up")
	p.Form = &nu
	if err := nu.Validate(s.deps.Validate, s.deps.Translator); err != nil {
		if !core.IsValidationError(err) {
			return err
		}
		p.Errors = fieldErrors(err)
		return ctx.Render(http.StatusUnprocessableEntity, "signup", p)
	}

	store := getStore(ctx)
	if _, err := store.Signup(ctx.Request().Context(), nu); err != nil {
		p.notice(flashError, store.Snapshot().Err)
		return ctx.Render(failureStatus(err), "signup", p)
	}

	setFlash(ctx, flashSuccess, signedUpMsg)
	return ctx.Redirect(http.StatusSeeOther, "/login")
}

func (s *server) logout(ctx echo.Context) error {
	getStore(ctx).Logout()
	return ctx.Redirect(http.StatusSeeOther, "/login")
}
