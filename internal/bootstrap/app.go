package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paperbrain/internal/app"
	"paperbrain/internal/cache"
	"paperbrain/internal/config"
	"paperbrain/internal/pkg/pdfinspect"
	"paperbrain/internal/platform/blob"
	mysqlClient "paperbrain/internal/platform/mysql"
	rabbitmqClient "paperbrain/internal/platform/rabbitmq"
	redisClient "paperbrain/internal/platform/redis"
	sqliteClient "paperbrain/internal/platform/sqlite"
	"paperbrain/internal/repository"
	"paperbrain/internal/retrieval"
	"paperbrain/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Core             *app.Core
	Orchestrator     *app.QueryOrchestrator
	Uploads          *app.UploadService
	Auth             *app.AuthService
	ExtractionWorker *worker.ExtractionResultWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return Build(ctx, cfg, logger)
}

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.App.Env == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}
	return logger.With(zap.String("app", cfg.App.Name)), nil
}

// Build connects every dependency enabled in cfg and wires the services.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	a.DB = db

	var historyCache app.HistoryCache
	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		historyCache = cache.NewHistoryCache(
			a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}

	blobs, err := blob.NewFileStore(cfg.Blob.Root)
	if err != nil {
		return err
	}

	a.Core = app.NewCore(db, app.CoreOptions{
		Cache:  historyCache,
		Blobs:  blobs,
		Logger: a.Logger,
	})

	var publisher app.ExtractionPublisher
	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL,
			cfg.RabbitMQ.ExtractionRequestQueue,
			cfg.RabbitMQ.ExtractionResultQueue,
		)
		if err != nil {
			return err
		}
		publisher = rabbitmqClient.NewExtractionPublisher(a.MQConn, cfg.RabbitMQ.ExtractionRequestQueue)

		a.ExtractionWorker = worker.NewExtractionResultWorker(a.MQConn, a.Core.Documents, cfg.RabbitMQ.ExtractionResultQueue, a.Logger)
		if err := a.ExtractionWorker.Start(ctx); err != nil {
			return fmt.Errorf("start extraction worker failed: %w", err)
		}
	}

	gateway := retrieval.NewHTTPGateway(cfg.Retrieval.BaseURL, cfg.Retrieval.APIKey, &http.Client{})
	a.Orchestrator = app.NewQueryOrchestrator(a.Core, gateway, cfg.RetrievalTimeout(), a.Logger)
	a.Uploads = app.NewUploadService(a.Core, blobs, pdfinspect.Inspector{}, publisher, cfg.MaxUploadBytes(), a.Logger)
	a.Auth = NewAuth(cfg, db)
	return nil
}

func NewAuth(cfg *config.Config, db *gorm.DB) *app.AuthService {
	return app.NewAuthService(
		repository.NewUserRepository(db),
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
}

// OpenDatabase opens the configured database and brings the schema up to date.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		return sqliteClient.New(ctx, cfg.Database.SQLitePath)
	default:
		return mysqlClient.New(ctx, cfg.MySQLDSN())
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.ExtractionWorker != nil {
		a.ExtractionWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}
