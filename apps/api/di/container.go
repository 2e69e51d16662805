// Package di wires the API's dependencies with a dig container.
package di

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/somesha/apps/api/echo"
	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/analytics"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/enrollment"
	"github.com/trezcool/somesha/core/grading"
	"github.com/trezcool/somesha/core/integration"
	"github.com/trezcool/somesha/core/messaging"
	"github.com/trezcool/somesha/core/user"
	cachesvc "github.com/trezcool/somesha/services/cache"
	emailsvc "github.com/trezcool/somesha/services/email"
	eventsvc "github.com/trezcool/somesha/services/events"
	logsvc "github.com/trezcool/somesha/services/logger"
	"github.com/trezcool/somesha/storage/database"
	inmemdb "github.com/trezcool/somesha/storage/database/inmem"
	sqlxrepos "github.com/trezcool/somesha/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger *logsvc.Logger `name:"dbLogger"`
}

// Storage holds the repositories of the configured backend.
// DB is nil in memory mode.
type Storage struct {
	dig.Out

	DB              *sqlx.DB
	UserRepo        user.Repository
	CatalogRepo     catalog.Repository
	EnrollmentRepo  enrollment.Repository
	GradingRepo     grading.Repository
	MessagingRepo   messaging.Repository
	IntegrationRepo integration.Repository
	AnalyticsSource analytics.Source
}

func newLogger(base *zap.Logger, conf *core.Config) *logsvc.Logger {
	logsvc.InitRollbar(conf)
	return logsvc.NewLogger(base, "API", conf)
}

func newDBLogger(base *zap.Logger, conf *core.Config) *logsvc.Logger {
	return logsvc.NewLogger(base, "DB", conf)
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) (Storage, error) {
	logger := loggerParam.Logger

	if conf.Database.Storage == core.StorageMemory {
		logger.Warn("using in-memory storage: data is lost on shutdown")
		db := inmemdb.NewDB()
		return Storage{
			UserRepo:        inmemdb.NewUserRepository(db),
			CatalogRepo:     inmemdb.NewCatalogRepository(db),
			EnrollmentRepo:  inmemdb.NewEnrollmentRepository(db),
			GradingRepo:     inmemdb.NewGradingRepository(db),
			MessagingRepo:   inmemdb.NewMessagingRepository(db),
			IntegrationRepo: inmemdb.NewIntegrationRepository(db),
			AnalyticsSource: inmemdb.NewAnalyticsSource(db),
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return Storage{}, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return Storage{}, errors.Wrap(err, "opening database")
	}
	if err := database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return Storage{}, errors.Wrap(err, "migrating database")
	}
	logger.Info(fmt.Sprintf("connected to %s", conf.Database.Address()))

	return Storage{
		DB:              db,
		UserRepo:        sqlxrepos.NewUserRepository(db),
		CatalogRepo:     sqlxrepos.NewCatalogRepository(db),
		EnrollmentRepo:  sqlxrepos.NewEnrollmentRepository(db),
		GradingRepo:     sqlxrepos.NewGradingRepository(db),
		MessagingRepo:   sqlxrepos.NewMessagingRepository(db),
		IntegrationRepo: sqlxrepos.NewIntegrationRepository(db),
		AnalyticsSource: sqlxrepos.NewAnalyticsSource(db),
	}, nil
}

func newEmailService(conf *core.Config, logger *logsvc.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newEventPublisher(conf *core.Config, logger *logsvc.Logger) core.EventPublisher {
	return eventsvc.NewPublisher(conf, logger)
}

// newCache falls back to the in-process cache when redis is disabled or unreachable.
func newCache(conf *core.Config, logger *logsvc.Logger) core.Cache {
	if !conf.Redis.Enabled {
		return cachesvc.NewMemoryCache()
	}
	rdb, err := cachesvc.NewRedisClient(context.Background(), conf.Redis)
	if err != nil {
		logger.Warn(fmt.Sprintf("redis unavailable, caching in memory: %v", err), err)
		return cachesvc.NewMemoryCache()
	}
	return cachesvc.NewRedisCache(rdb, logger)
}

func newUserService(repo user.Repository, mailSvc core.EmailService, conf *core.Config) *user.Service {
	return user.NewService(repo, mailSvc, conf)
}

func newCatalogService(repo catalog.Repository, enrollments enrollment.Repository) *catalog.Service {
	return catalog.NewService(repo, enrollments)
}

func newEnrollmentService(
	repo enrollment.Repository,
	catSvc *catalog.Service,
	events core.EventPublisher,
	logger *logsvc.Logger,
) *enrollment.Service {
	return enrollment.NewService(repo, catSvc, events, logger)
}

func newGradingService(
	repo grading.Repository,
	catSvc *catalog.Service,
	usrSvc *user.Service,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger *logsvc.Logger,
) *grading.Service {
	return grading.NewService(repo, catSvc, usrSvc, mailSvc, events, logger)
}

func newMessagingService(
	repo messaging.Repository,
	catSvc *catalog.Service,
	enrSvc *enrollment.Service,
	events core.EventPublisher,
	logger *logsvc.Logger,
) *messaging.Service {
	return messaging.NewService(repo, catSvc, enrSvc, events, logger)
}

func newIntegrationService(repo integration.Repository, catSvc *catalog.Service, enrSvc *enrollment.Service) *integration.Service {
	return integration.NewService(repo, catSvc, enrSvc)
}

func newAnalyticsService(
	source analytics.Source,
	usrSvc *user.Service,
	cache core.Cache,
	conf *core.Config,
	logger *logsvc.Logger,
) *analytics.Service {
	return analytics.NewService(source, usrSvc, cache, conf.Redis.AnalyticsTTL, logger)
}

type serverDeps struct {
	dig.In

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

func newServer(conf *core.Config, logger *logsvc.Logger, d serverDeps) *echoapi.Server {
	return echoapi.NewServer(conf, logger, &echoapi.Deps{
		Validate:       d.Validate,
		Translator:     d.Translator,
		UserSvc:        d.UserSvc,
		CatalogSvc:     d.CatalogSvc,
		EnrollmentSvc:  d.EnrollmentSvc,
		GradingSvc:     d.GradingSvc,
		MessagingSvc:   d.MessagingSvc,
		IntegrationSvc: d.IntegrationSvc,
		AnalyticsSvc:   d.AnalyticsSvc,
	})
}

// New returns the API's dependency injection container.
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(logsvc.NewZap))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(newEventPublisher))
	must(c.Provide(newCache))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newUserService))
	must(c.Provide(newCatalogService))
	must(c.Provide(newEnrollmentService))
	must(c.Provide(newGradingService))
	must(c.Provide(newMessagingService))
	must(c.Provide(newIntegrationService))
	must(c.Provide(newAnalyticsService))
	must(c.Provide(newServer))

	return c
}

// must exits the program if a provider could not be registered
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
