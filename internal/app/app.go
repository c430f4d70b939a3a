// Package app assembles repositories, services and transports into the clover
// processes: the HTTP api, the qualification worker and the migration runner.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Ramsey-B/clover/config"
	fielddefinitionrepo "github.com/Ramsey-B/clover/internal/repositories/fielddefinition"
	fieldoverlayrepo "github.com/Ramsey-B/clover/internal/repositories/fieldoverlay"
	qualificationrulerepo "github.com/Ramsey-B/clover/internal/repositories/qualificationrule"
	typedvaluerepo "github.com/Ramsey-B/clover/internal/repositories/typedvalue"
	"github.com/Ramsey-B/clover/internal/services/fielddefinition"
	"github.com/Ramsey-B/clover/internal/services/qualificationrule"
	"github.com/Ramsey-B/clover/internal/services/typedvalue"
	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/health"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/qualification"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/resolver"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

const (
	depTracing    = "tracing"
	depDatabase   = "database"
	depMigrations = "migrations"
	depCache      = "cache"
	depProducer   = "kafka-producer"
	depServices   = "services"
)

// Services holds everything the transports need once startup has completed.
type Services struct {
	Database    database.DB
	Resolver    *resolver.Resolver
	Definitions *fielddefinition.Service
	Values      *typedvalue.Service
	Rules       *qualificationrule.Service
	Evaluator   *qualification.Evaluator
	Emitter     events.Emitter
}

type App struct {
	cfg     *config.Config
	logger  ectologger.Logger
	version string
	startup *startup.Startup
	health  *health.Checker

	db       *sqlx.DB
	redis    *redis.Client
	cache    cache.DefinitionCache
	producer *kafka.Producer
	services *Services
}

func New(cfg *config.Config, logger ectologger.Logger, version string) *App {
	return &App{
		cfg:     cfg,
		logger:  logger,
		version: version,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
		health:  health.NewChecker(version),
	}
}

// Services is only valid after Start has returned without error.
func (a *App) Services() *Services {
	return a.services
}

func (a *App) Health() *health.Checker {
	return a.health
}

// Start brings up every dependency. withProducer is false for processes that never publish.
func (a *App) Start(ctx context.Context, withProducer bool) error {
	a.addTracing()
	a.addDatabase()
	if a.cfg.DatabaseMigrateOnStart {
		a.addMigrations()
	}
	a.addCache()
	serviceDeps := []string{depDatabase, depCache}
	if withProducer && a.cfg.KafkaEnabled() {
		a.addProducer()
		serviceDeps = append(serviceDeps, depProducer)
	}
	if a.cfg.DatabaseMigrateOnStart {
		serviceDeps = append(serviceDeps, depMigrations)
	}
	a.startup.AddDependency(&startup.Func{
		Name:     depServices,
		Requires: serviceDeps,
		OnStart: func(ctx context.Context) error {
			return a.buildServices()
		},
	})

	return a.startup.Start(ctx)
}

// Migrate runs the schema migrations and nothing else.
func (a *App) Migrate(ctx context.Context) error {
	a.addDatabase()
	a.addMigrations()
	return a.startup.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	a.health.SetReady(false)
	return a.startup.Stop(ctx)
}

func (a *App) addTracing() {
	var shutdown func(context.Context) error
	a.startup.AddDependency(&startup.Func{
		Name: depTracing,
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = tracing.Setup(ctx, tracing.Config{
				ServiceName: a.cfg.AppName,
				Exporter:    a.cfg.TracingExporter,
				SampleRatio: a.cfg.TracingSampleRatio,
				OTLP: exporters.OTLPConfig{
					Endpoint: a.cfg.OTLPEndpoint,
					Protocol: a.cfg.OTLPProtocol,
					Insecure: a.cfg.OTLPInsecure,
					Timeout:  10 * time.Second,
				},
			})
			return err
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	})
}

func (a *App) addDatabase() {
	a.startup.AddDependency(&startup.Func{
		Name: depDatabase,
		OnStart: func(ctx context.Context) error {
			db, err := sqlx.Open("postgres", a.cfg.DatabaseDSN())
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			db.SetMaxOpenConns(a.cfg.DatabaseMaxOpenConns)
			db.SetMaxIdleConns(a.cfg.DatabaseMaxIdleConns)
			db.SetConnMaxLifetime(a.cfg.DatabaseConnMaxLifetime)

			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := db.PingContext(pingCtx); err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to connect to database at %s:%s: %w", a.cfg.DatabaseHost, a.cfg.DatabasePort, err)
			}

			a.db = db
			a.health.AddCheck(depDatabase, true, db.PingContext)
			a.logger.WithContext(ctx).Infof("Connected to database %s", a.cfg.DatabaseName)
			return nil
		},
		OnStop: func(context.Context) error {
			if a.db == nil {
				return nil
			}
			return a.db.Close()
		},
	})
}

func (a *App) addMigrations() {
	a.startup.AddDependency(&startup.Func{
		Name:     depMigrations,
		Requires: []string{depDatabase},
		OnStart: func(context.Context) error {
			migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
				MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
				Version:             uint(a.cfg.DatabaseMigrationVersion),
				Force:               a.cfg.DatabaseMigrationForce,
				AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
			})
			return migrations.MigratePostgres(a.db, a.cfg.DatabaseName)
		},
	})
}

// addCache selects the shared Redis cache when a host is configured and the
// in-process cache otherwise.
func (a *App) addCache() {
	a.startup.AddDependency(&startup.Func{
		Name: depCache,
		OnStart: func(ctx context.Context) error {
			if a.cfg.RedisHost == "" {
				a.cache = cache.NewMemory(a.cfg.DefinitionCacheTTL())
				return nil
			}

			client, err := redis.NewClient(ctx, redis.Config{
				Host:     a.cfg.RedisHost,
				Port:     a.cfg.RedisPort,
				Password: a.cfg.RedisPassword,
				DB:       a.cfg.RedisDB,
			}, a.logger)
			if err != nil {
				return err
			}
			a.redis = client
			a.cache = cache.NewRedis(client, a.cfg.DefinitionCacheTTL(), a.logger)
			a.health.AddCheck("redis", false, client.Ping)
			return nil
		},
		OnStop: func(context.Context) error {
			if a.redis == nil {
				return nil
			}
			return a.redis.Close()
		},
	})
}

func (a *App) addProducer() {
	a.startup.AddDependency(&startup.Func{
		Name: depProducer,
		OnStart: func(context.Context) error {
			producerConfig := kafka.DefaultProducerConfig()
			producerConfig.Brokers = a.cfg.KafkaBrokers
			producerConfig.BatchSize = a.cfg.KafkaBatchSize
			producerConfig.BatchTimeout = time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond
			producerConfig.RequiredAcks = a.cfg.KafkaRequiredAcks
			producerConfig.Compression = a.cfg.KafkaCompression

			producer, err := kafka.NewProducer(producerConfig, a.logger)
			if err != nil {
				return err
			}
			a.producer = producer
			return nil
		},
		OnStop: func(context.Context) error {
			if a.producer == nil {
				return nil
			}
			return a.producer.Close()
		},
	})
}

func (a *App) buildServices() error {
	catalog, err := resolver.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("failed to load system field catalog: %w", err)
	}

	var emitter events.Emitter = events.Noop{}
	if a.producer != nil {
		emitter = events.NewKafkaEmitter(a.producer, events.Topics{
			ValuesChanged:          a.cfg.KafkaValuesTopic,
			QualificationEvaluated: a.cfg.KafkaQualificationTopic,
		}, a.logger)
	}

	db := database.NewDatabaseInstance(a.db, a.logger)

	valueRepo := typedvaluerepo.NewRepository(db, a.logger)
	definitions := fielddefinition.NewService(fielddefinitionrepo.NewRepository(db, a.logger), a.cache, a.logger)
	fieldResolver := resolver.NewResolver(catalog, fieldoverlayrepo.NewRepository(db, a.logger), definitions, a.logger)
	rules := qualificationrule.NewService(qualificationrulerepo.NewRepository(db, a.logger), definitions, catalog, a.logger)
	values := typedvalue.NewService(valueRepo, definitions, fieldResolver, db, emitter, a.logger)

	a.services = &Services{
		Database:    db,
		Resolver:    fieldResolver,
		Definitions: definitions,
		Values:      values,
		Rules:       rules,
		Evaluator:   qualification.NewEvaluator(rules, definitions, valueRepo, qualification.ContextRecords{}, catalog, a.logger),
		Emitter:     emitter,
	}
	return nil
}
