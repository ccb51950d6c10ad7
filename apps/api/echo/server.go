package echoapi

import (
	"context"
	"net/http"

	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
	"github.com/bangkihwa/studylink/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		Users          user.Repository
		Assessment     *assessment.Service
		Logger         core.Logger
		SignalShutdown func()
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Users, "Users"),
		vala.IsNotNil(opts.Assessment, "Assessment"),
		vala.IsNotNil(opts.Logger, "Logger"),
	).CheckAndPanic()

	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	debug := core.Conf.Debug

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(requestIDConfig))
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if debug {
		s.app.Logger.SetLevel(log.DEBUG)
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.SignalShutdown)
	s.app.Debug = debug && !core.Conf.TestMode

	s.app.GET("/", home)

	v1 := s.app.Group("/v1", middleware.JWTWithConfig(appJWTConfig))
	registerAssessmentAPI(v1, s.opts.Users, s.opts.Assessment)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}
