package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/darasa/shule/core"
	"github.com/darasa/shule/core/course"
	"github.com/darasa/shule/core/notification"
	"github.com/darasa/shule/core/ratelimit"
	"github.com/darasa/shule/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool

		UserSvc   *user.Service
		CourseSvc *course.Service
		NotifSvc  *notification.Service

		Limiter  ratelimit.Limiter
		Policies map[ratelimit.Operation]ratelimit.Config

		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		deps ServerDeps
		app  *echo.Echo

		serverErrors chan error
		shutdown     chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	if deps.Policies == nil {
		deps.Policies = ratelimit.DefaultPolicies()
	}

	validate = deps.Validate

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	s := &Server{
		deps:         deps,
		app:          echo.New(),
		serverErrors: make(chan error, 1),
		shutdown:     shutdown,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	rl := &rateLimiter{
		limiter:   s.deps.Limiter,
		policies:  s.deps.Policies,
		logger:    s.deps.Logger,
		skipRoles: []string{user.RoleAdmin},
	}

	registerUserAPI(v1, jwt, s.deps.Conf, s.deps.UserSvc)
	registerNotificationAPI(v1, jwt, s.deps.NotifSvc)
	registerCourseAPI(v1, jwt, s.deps.Conf, s.deps.CourseSvc, rl)
}

// Start runs the listener; it blocks until the server stops.
func (s *Server) Start() {
	s.serverErrors <- s.app.Start(s.deps.Conf.Server.Host)
}

// Errors reports a failed listener.
func (s *Server) Errors() <-chan error {
	return s.serverErrors
}

// ShutdownSignal delivers SIGINT/SIGTERM, or the shutdown requested by the
// error handler on an integrity error.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown requests a graceful shutdown without an OS signal.
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Shule API!")
}
