package echoportal

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
)

const flashCookie = "flash"

// Flash levels
const (
	flashSuccess = "success"
	flashError   = "error"
)

type flash struct {
	Level   string
	Message string
}

// setFlash keeps a notice for the next page rendered (after a redirect).
func setFlash(c echo.Context, level, msg string) {
	v := url.Values{"level": {level}, "msg": {msg}}
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    v.Encode(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending notice, if any, and clears it.
func popFlash(c echo.Context) *flash {
	cookie, err := c.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	c.SetCookie(&http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	v, err := url.ParseQuery(cookie.Value)
	if err != nil || v.Get("msg") == "" {
		return nil
	}
	return &flash{Level: v.Get("level"), Message: v.Get("msg")}
}
