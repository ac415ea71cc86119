package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/janus/core"
	"github.com/trezcool/janus/core/chave"
	"github.com/trezcool/janus/core/emailconfig"
	"github.com/trezcool/janus/core/polo"
	"github.com/trezcool/janus/core/projetista"
	"github.com/trezcool/janus/core/user"
	emailsvc "github.com/trezcool/janus/services/email"
	logsvc "github.com/trezcool/janus/services/logger"
	"github.com/trezcool/janus/storage/database"
	sqlxrepos "github.com/trezcool/janus/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(database.Ping(context.Background(), db.DB))

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	chave.InitValidators(validate, translator)

	mailSvc := emailsvc.NewConsoleService(conf, logger)
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	projetistaSvc := projetista.NewService(sqlxrepos.NewProjetistaRepository(db))

	// start CLI
	cli := commandLine{
		db: db,
		users: user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, validate, translator, user.Options{
			DefaultFromEmail: conf.DefaultFromEmail,
			FrontendBaseURL:  conf.FrontendBaseURL,
			SecretKey:        conf.SecretKey,
			ResetTimeout:     conf.PasswordResetTimeoutDelta,
		}),
		chaves: chave.NewService(chave.Deps{
			Repo:        sqlxrepos.NewChaveRepository(db),
			Polos:       polo.NewService(sqlxrepos.NewPoloRepository(db)),
			Projetistas: projetistaSvc,
			Recipients:  emailconfig.NewService(sqlxrepos.NewEmailConfigRepository(db)),
			MailSvc:     mailSvc,
			Logger:      appLogger,
			Validate:    validate,
			Translator:  translator,
		}, chave.Options{PageSize: conf.Server.PageSize, FrontendBaseURL: conf.FrontendBaseURL}),
		translator: translator,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
