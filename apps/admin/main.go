package main

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/user"
	emailsvc "github.com/trezcool/somesha/services/email"
	logsvc "github.com/trezcool/somesha/services/logger"
	"github.com/trezcool/somesha/storage/database"
	sqlxrepos "github.com/trezcool/somesha/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	conf.Server.DisableReqLogs = true

	base, err := logsvc.NewZap(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}
	logsvc.InitRollbar(conf)
	logger := logsvc.NewLogger(base, "ADMIN", conf)
	defer logger.Sync()

	if conf.Database.Storage != core.StoragePostgres {
		logger.Fatal(fmt.Sprintf("the admin CLI needs the postgres storage, got %q", conf.Database.Storage))
	}

	cli := commandLine{conf: conf}

	// createdb runs before the app database exists
	if len(os.Args) < 2 || os.Args[1] != "createdb" {
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer closeDB(db, logger)

		cli.db = db.DB
		cli.usrSvc = user.NewService(sqlxrepos.NewUserRepository(db), emailsvc.NewConsoleService(conf, logger), conf)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		logger.Sync()
		os.Exit(1)
	}
}

func closeDB(db *sqlx.DB, logger core.Logger) {
	if err := db.Close(); err != nil {
		logger.Error(fmt.Sprintf("closing database: %v", err), err)
	}
}
