package echoportal

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/perception/core/session"
	"github.com/trezcool/perception/services/backend"
)

const (
	contextStoreKey  = "session"
	contextClientKey = "backend"

	// seconds before a loading page asks again
	loadingRetryAfter = 1
)

// withSession gives every request its own backend client and session store,
// rehydrated from the session cookie. The client sends the request id along.
func (s *server) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		client := backend.New(s.deps.Conf.API.BaseURL, backend.WithHTTPClient(s.deps.HTTPClient))
		storage := &cookieStorage{ctx: ctx, sealer: s.sealer, opts: s.cookie, logger: s.deps.Logger}
		store, err := session.NewStore(client, storage, s.deps.Logger)
		if err != nil {
			return errors.Wrap(err, "loading session")
		}
		client.SetTokenSource(store)

		req := ctx.Request()
		reqID := ctx.Response().Header().Get(echo.HeaderXRequestID)
		ctx.SetRequest(req.WithContext(backend.WithRequestID(req.Context(), reqID)))

		ctx.Set(contextStoreKey, store)
		ctx.Set(contextClientKey, client)
		return next(ctx)
	}
}

// requireSession validates the session against the backend before protected pages.
func (s *server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		store := getStore(ctx)
		if err := store.CheckAuth(ctx.Request().Context()); err != nil {
			s.deps.Logger.Debug("session check failed", err)
		}

		switch session.Decide(store.Snapshot()) {
		case session.Render:
			return next(ctx)
		case session.Pending:
			ctx.Response().Header().Set("Retry-After", strconv.Itoa(loadingRetryAfter))
			return ctx.Render(http.StatusOK, "loading", s.newPage(ctx, "Loading"))
		default:
			return ctx.Redirect(http.StatusFound, "/login")
		}
	}
}

// requireRole only lets users with `role` through.
func requireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if usr, ok := getStore(ctx).User(); ok && usr.Role == role {
				return next(ctx)
			}
			return errAccessDenied
		}
	}
}

func getStore(ctx echo.Context) *session.Store {
	store, _ := ctx.Get(contextStoreKey).(*session.Store)
	return store
}

func getClient(ctx echo.Context) *backend.Client {
	client, _ := ctx.Get(contextClientKey).(*backend.Client)
	return client
}
