package echoportal

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		// HTTPClient sends the requests to the backend (http.DefaultClient if nil).
		HTTPClient     *http.Client
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		sealer   *sealer
		cookie   cookieOptions
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) (Server, error) {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	sealer, err := newSealer(deps.Conf.SecretKey)
	if err != nil {
		return nil, err
	}
	renderer, err := newRenderer()
	if err != nil {
		return nil, err
	}

	s := &server{
		deps:   deps,
		app:    echo.New(),
		sealer: sealer,
		cookie: cookieOptions{
			name:   deps.Conf.Session.CookieName,
			secure: deps.Conf.Session.CookieSecure,
			maxAge: deps.Conf.Session.CookieMaxAge,
		},
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.app.Renderer = renderer
	s.setup()
	return s, nil
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: newRequestID}))
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))
	s.app.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   s.cookie.secure,
		// Google posts its credential from its own page: checked against g_csrf_token instead
		Skipper: func(c echo.Context) bool { return c.Path() == "/login/google" },
	}))
	s.app.Use(s.withSession)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.newPage, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/healthz", healthz)
	s.app.GET("/", s.home)
	s.app.GET("/about", s.about)

	s.app.GET("/login", s.loginPage)
	s.app.POST("/login", s.login)
	s.app.POST("/login/google", s.loginWithGoogle)
	s.app.GET("/signup", s.signupPage)
	s.app.POST("/signup", s.signup)
	s.app.POST("/logout", s.logout)

	dash := s.app.Group("/dashboard", s.requireSession)
	dash.GET("", s.dashboard)
	dash.POST("/submissions", s.submitAnswer, requireRole(user.RoleStudent))
	dash.POST("/question-sets", s.createQuestionSet, requireRole(user.RoleTeacher))
	dash.POST("/submissions/:id/finalize", s.finalizeSubmission, requireRole(user.RoleTeacher))
	dash.POST("/evaluate", s.evaluateSample, requireRole(user.RoleTeacher))
}

func (s *server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "starting server")
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func healthz(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "ok")
}

func (s *server) home(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "home", s.newPage(ctx, ""))
}

func (s *server) about(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "about", s.newPage(ctx, "About"))
}

// newPage returns the base data of a page, consuming the pending flash notice.
func (s *server) newPage(ctx echo.Context, title string) *page {
	p := &page{
		AppName:        s.deps.Conf.AppName,
		Title:          title,
		Flash:          popFlash(ctx),
		GoogleClientID: s.deps.Conf.Google.ClientID,
		Roles:          user.Roles,
	}
	if token, ok := ctx.Get(middleware.DefaultCSRFConfig.ContextKey).(string); ok {
		p.CSRF = token
	}
	if store := getStore(ctx); store != nil {
		if usr, ok := store.User(); ok {
			p.User = &usr
		}
	}
	return p
}

func newRequestID() string {
	return uuid.New().String()
}
