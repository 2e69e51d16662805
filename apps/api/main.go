package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/somesha/apps/api/di"
	echoapi "github.com/trezcool/somesha/apps/api/echo"
	"github.com/trezcool/somesha/assets"
	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/integration"
	"github.com/trezcool/somesha/core/user"
	logsvc "github.com/trezcool/somesha/services/logger"
)

func main() {
	c := di.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger *logsvc.Logger,
		dbLoggerParam di.DBLoggerParam,
		db *sqlx.DB,
		events core.EventPublisher,
		validate *validator.Validate,
		translator ut.Translator,
		server *echoapi.Server,
	) {
		defer apiLogger.Sync()

		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : %s", conf))

		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		catalog.InitValidators(validate, translator)
		integration.InitValidators(validate, translator)

		core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, conf.Debug, apiLogger)
		user.LoadCommonPasswords(assets.FS, assets.CommonPasswordsFile, apiLogger)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if db == nil {
				return
			}
			if err := db.Close(); err != nil {
				dbLogger.Error(fmt.Sprintf("failed to close: %v", err), err)
			}
		}()
		defer func() {
			if err := events.Close(); err != nil {
				apiLogger.Error(fmt.Sprintf("failed to close event publisher: %v", err), err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start API Service

		go server.Start()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
