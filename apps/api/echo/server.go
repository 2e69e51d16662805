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

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/analytics"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/enrollment"
	"github.com/trezcool/somesha/core/grading"
	"github.com/trezcool/somesha/core/integration"
	"github.com/trezcool/somesha/core/messaging"
	"github.com/trezcool/somesha/core/user"
)

// Deps are the services the API exposes.
type Deps struct {
	Validate       *validator.Validate
	Translator     ut.Translator
	UserSvc        *user.Service
	CatalogSvc     *catalog.Service
	EnrollmentSvc  *enrollment.Service
	GradingSvc     *grading.Service
	MessagingSvc   *messaging.Service
	IntegrationSvc *integration.Service
	AnalyticsSvc   *analytics.Service
}

type Server struct {
	conf     *core.Config
	logger   core.Logger
	deps     *Deps
	auth     *authenticator
	app      *echo.Echo
	errors   chan error
	shutdown chan os.Signal
}

var _ http.Handler = (*Server)(nil)

func NewServer(conf *core.Config, logger core.Logger, deps *Deps) *Server {
	s := &Server{
		conf:     conf,
		logger:   logger,
		deps:     deps,
		auth:     newAuthenticator(conf, deps.UserSvc),
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.Logger.SetLevel(log.INFO)
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestID())
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	authed := s.auth.required()
	optional := s.auth.optional()

	registerUserAPI(v1, authed, s.auth, s.deps)
	registerCatalogAPI(v1, authed, optional, s.deps)
	registerEnrollmentAPI(v1, authed, s.deps)
	registerGradingAPI(v1, authed, s.deps)
	registerMessagingAPI(v1, authed, s.deps)
	registerIntegrationAPI(v1, authed, s.deps)
	registerAnalyticsAPI(v1, authed, s.deps)
}

// Start listens until the server is shut down; listener errors are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
