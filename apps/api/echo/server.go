package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/aviso"
	"github.com/trezcool/janus/core/chave"
	"github.com/trezcool/janus/core/emailconfig"
	"github.com/trezcool/janus/core/polo"
	"github.com/trezcool/janus/core/projetista"
	"github.com/trezcool/janus/core/user"
	"github.com/trezcool/janus/services/ratelimit"
)

const basePath = "/janus"

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Sessions   core.SessionStore
		Limiter    *ratelimit.Store // optional, login & password reset
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc        *user.Service
		ProjetistaSvc  *projetista.Service
		PoloSvc        *polo.Service
		AvisoSvc       *aviso.Service
		EmailConfigSvc *emailconfig.Service
		ChaveSvc       *chave.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		address  string
		shutdown chan os.Signal
		deps     *Deps
		app      *echo.Echo
		auth     *authenticator
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API. shutdown may be nil, it is signaled when a handler hits a core shutdown error.
func NewServer(address string, shutdown chan os.Signal, deps *Deps) Server {
	s := &server{
		address:  address,
		shutdown: shutdown,
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.Sessions, deps.UserSvc),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if conf.Server.MaxUploadSize != "" {
		s.app.Use(middleware.BodyLimit(conf.Server.MaxUploadSize))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	g := s.app.Group(basePath)
	authed := s.auth.middleware()
	limited := rateLimitMiddleware(s.deps.Limiter)

	registerAccountAPI(g, authed, limited, s.auth, s.deps)
	registerChaveAPI(g, authed, s.deps)
	registerAdminAPI(g.Group("/admin", authed, staffMiddleware(user.GroupSupervisor)), s.deps)
}

func (s *server) signalShutdown() {
	if s.shutdown != nil {
		s.shutdown <- syscall.SIGTERM
	}
}

func (s *server) Start() error {
	return s.app.Start(s.address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
