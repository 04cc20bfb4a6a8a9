package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/school"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf.Database)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}

	validate, translator := core.NewValidator()
	account.InitValidators(validate, translator, conf.Auth.InstitutionDomain)

	// the CLI never logs in: pending second factor state stays in memory
	accRepo := sqlxrepos.NewAccountRepository(db)
	accSvc := account.NewService(
		accRepo,
		dummydb.NewPendingStore(dummydb.Open()),
		emailsvc.NewConsoleService(conf, logger),
		conf.Auth,
	)

	// start CLI
	cli := newCommandLine(db, accRepo, accSvc, school.NewService(sqlxrepos.NewSchoolRepository(db), validate))
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			if vErr, ok := errors.Cause(err).(validator.ValidationErrors); ok {
				for fld, msg := range core.TranslateErrors(vErr, translator) {
					logger.Error(fld + ": " + msg)
				}
			} else {
				logger.Error("error: "+err.Error(), err)
			}
		}
		os.Exit(1)
	}
}
