package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/janus/apps/api/echo"
	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/aviso"
	"github.com/trezcool/janus/core/chave"
	"github.com/trezcool/janus/core/emailconfig"
	"github.com/trezcool/janus/core/polo"
	"github.com/trezcool/janus/core/projetista"
	"github.com/trezcool/janus/core/user"
	emailsvc "github.com/trezcool/janus/services/email"
	logsvc "github.com/trezcool/janus/services/logger"
	"github.com/trezcool/janus/services/params"
	"github.com/trezcool/janus/services/ratelimit"
	"github.com/trezcool/janus/services/session"
	storagesvc "github.com/trezcool/janus/services/storage"
	"github.com/trezcool/janus/storage/database"
	sqlxrepos "github.com/trezcool/janus/storage/database/sqlx"
)

const sessionCleanupEvery = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Printf("error: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// =========================================================================
	// Configuration

	conf, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	// =========================================================================
	// Database

	db, err := setUpDB(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// =========================================================================
	// Services

	sessions, closeSessions, err := newSessionStore(ctx, conf)
	if err != nil {
		return err
	}
	defer closeSessions()

	var limiter *ratelimit.Store
	if conf.Server.RateLimitRPS > 0 {
		limiter = ratelimit.NewStore(conf.Server.RateLimitRPS, conf.Server.RateLimitBurst)
		limiter.StartJanitor(ctx)
	}

	var files core.FileStore
	if conf.AWS.S3Bucket != "" {
		if files, err = storagesvc.NewS3Store(ctx, conf); err != nil {
			return errors.Wrap(err, "setting up S3")
		}
	}

	var mailSvc core.EmailService
	if conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, log.New(os.Stdout, "MAIL : ", log.LstdFlags))
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	validate, translator := newValidator()
	projetistaSvc := projetista.NewService(sqlxrepos.NewProjetistaRepository(db))
	poloSvc := polo.NewService(sqlxrepos.NewPoloRepository(db))
	emailConfigSvc := emailconfig.NewService(sqlxrepos.NewEmailConfigRepository(db))

	deps := &echoapi.Deps{
		Conf:       conf,
		Logger:     logger,
		Sessions:   sessions,
		Limiter:    limiter,
		Validate:   validate,
		Translator: translator,
		UserSvc: user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, validate, translator, user.Options{
			DefaultFromEmail: conf.DefaultFromEmail,
			FrontendBaseURL:  conf.FrontendBaseURL,
			SecretKey:        conf.SecretKey,
			ResetTimeout:     conf.PasswordResetTimeoutDelta,
		}),
		ProjetistaSvc:  projetistaSvc,
		PoloSvc:        poloSvc,
		AvisoSvc:       aviso.NewService(sqlxrepos.NewAvisoRepository(db)),
		EmailConfigSvc: emailConfigSvc,
		ChaveSvc: chave.NewService(chave.Deps{
			Repo:        sqlxrepos.NewChaveRepository(db),
			Polos:       poloSvc,
			Projetistas: projetistaSvc,
			Recipients:  emailConfigSvc,
			MailSvc:     mailSvc,
			Logger:      logger,
			Files:       files,
			Validate:    validate,
			Translator:  translator,
		}, chave.Options{PageSize: conf.Server.PageSize, FrontendBaseURL: conf.FrontendBaseURL}),
	}

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(conf.Server.Address, shutdown, deps)
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return errors.Wrap(err, "server error")

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
	}
	return nil
}

// loadConfig reads the configuration, exporting the SSM parameters of aws.ssmPath first when it is set.
func loadConfig(ctx context.Context) (*core.Config, error) {
	conf := core.NewConfig()
	if conf.AWS.SSMPath == "" {
		return conf, nil
	}
	n, err := params.LoadFromAWS(ctx, conf.AWS.Region, conf.AWS.SSMPath, conf.Env)
	if err != nil {
		return nil, errors.Wrap(err, "loading SSM parameters")
	}
	log.Printf("loaded %d parameters from %s", n, conf.AWS.SSMPath)
	return core.NewConfig(), nil
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	// provisioning needs the postgres admin account
	if conf.Database.AdminUser != "" {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	chave.InitValidators(validate, translator)
	return validate, translator
}

// newSessionStore uses Redis when configured, otherwise sessions live in memory.
func newSessionStore(ctx context.Context, conf *core.Config) (core.SessionStore, func(), error) {
	if conf.Redis.Address == "" {
		store := session.NewMemoryStore()
		store.StartJanitor(ctx, sessionCleanupEvery)
		return store, func() {}, nil
	}
	rdb, err := session.NewRedisClient(ctx, conf)
	if err != nil {
		return nil, nil, err
	}
	return session.NewRedisStore(rdb, conf.Redis.Prefix), func() { _ = rdb.Close() }, nil
}
