package testutil

import (
	"io"
	"log"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/aviso"
	"github.com/trezcool/janus/core/chave"
	"github.com/trezcool/janus/core/emailconfig"
	"github.com/trezcool/janus/core/polo"
	"github.com/trezcool/janus/core/projetista"
	"github.com/trezcool/janus/core/user"
	emailsvc "github.com/trezcool/janus/services/email"
	logsvc "github.com/trezcool/janus/services/logger"
	sqlxrepos "github.com/trezcool/janus/storage/database/sqlx"
)

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	chave.InitValidators(validate, translator)
	return validate, translator
}

// NewLogger returns a logger that discards its output, unless -v is set.
func NewLogger(conf *core.Config) core.Logger {
	var w io.Writer = io.Discard
	if testing.Verbose() {
		w = log.Writer()
	}
	return logsvc.NewRollbarLogger(log.New(w, "TEST : ", log.LstdFlags), conf)
}

// Services holds every domain service over one database, sending emails through a mock.
type Services struct {
	Conf         *core.Config
	DB           *sqlx.DB
	Repos        Repos
	Mail         *emailsvc.ConsoleServiceMock
	Logger       core.Logger
	Validate     *validator.Validate
	Translator   ut.Translator
	Users        *user.Service
	Projetistas  *projetista.Service
	Polos        *polo.Service
	Avisos       *aviso.Service
	EmailConfigs *emailconfig.Service
	Chaves       *chave.Service
}

// NewServices wires the services over a fresh database. files may be nil.
func NewServices(t testing.TB, files core.FileStore) Services {
	t.Helper()
	conf := core.NewTestConfig()
	db := PrepareDB(t)
	validate, translator := NewValidator()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	logger := NewLogger(conf)

	projetistaSvc := projetista.NewService(sqlxrepos.NewProjetistaRepository(db))
	poloSvc := polo.NewService(sqlxrepos.NewPoloRepository(db))
	emailConfigSvc := emailconfig.NewService(sqlxrepos.NewEmailConfigRepository(db))

	return Services{
		Conf:       conf,
		DB:         db,
		Repos:      NewRepos(db),
		Mail:       mailSvc,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Users: user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, validate, translator, user.Options{
			DefaultFromEmail: conf.DefaultFromEmail,
			FrontendBaseURL:  conf.FrontendBaseURL,
			SecretKey:        conf.SecretKey,
			ResetTimeout:     conf.PasswordResetTimeoutDelta,
		}),
		Projetistas:  projetistaSvc,
		Polos:        poloSvc,
		Avisos:       aviso.NewService(sqlxrepos.NewAvisoRepository(db)),
		EmailConfigs: emailConfigSvc,
		Chaves: chave.NewService(chave.Deps{
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
}
