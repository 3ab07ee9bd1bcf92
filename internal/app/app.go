package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/visual-search/internal/cfg"
	v1Grpc "github.com/DRSN-tech/visual-search/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/visual-search/internal/delivery/v1/http"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/visual-search/internal/infrastructure/minio"
	ml_service "github.com/DRSN-tech/visual-search/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/visual-search/internal/repository/memory"
	s3Repo "github.com/DRSN-tech/visual-search/internal/repository/minio"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/visual-search/internal/repository/qdrant"
	"github.com/DRSN-tech/visual-search/internal/repository/redis"
	redisConv "github.com/DRSN-tech/visual-search/internal/repository/redis/converter"
	"github.com/DRSN-tech/visual-search/internal/repository/sqlite"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/closer"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/DRSN-tech/visual-search/pkg/postgres"
	"github.com/DRSN-tech/visual-search/pkg/sqlitedb"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	initTimeout     = 10 * time.Second
	shutdownTimeout = 15 * time.Second
	cleanupWait     = 5 * time.Second
)

// App собирает все зависимости сервиса. Глобальных синглтонов нет:
// клиенты создаются здесь и передаются в репозитории и usecase.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	productUC *usecase.ProductUseCase
	searchUC  *usecase.SearchUseCase

	index        usecase.VectorIndex
	outboxWorker *kafka.OutboxWorker
	memoryIndex  bool

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// stores — каталог и история поиска выбранного драйвера.
type stores struct {
	products usecase.ProductRepository
	history  usecase.SearchHistoryRepository
	pg       *postgres.PgDatabase // nil, если каталог не в PostgreSQL
}

func NewApp(ctx context.Context, cfg *config.Config, logger logger.Logger) (*App, error) {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	app := &App{
		cfg:            cfg,
		logger:         logger,
		closer:         closer.NewCloser(0),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	if err := app.init(ctx); err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := app.Close(closeCtx); closeErr != nil {
			logger.Warnf("partial init cleanup: %v", closeErr)
		}
		return nil, err
	}

	return app, nil
}

func (a *App) init(ctx context.Context) error {
	st, err := a.initStores()
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	index, err := a.initIndex(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	a.index = index

	images, err := a.initImages(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	model, err := ml_service.NewGeminiModel(ctx, a.cfg.Gemini, a.cfg.Index.VectorSize)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	ml := ml_service.NewMLService(model, a.cfg.Ml, a.cfg.Minio, a.logger)

	cache, err := a.initCache(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	events := a.initEvents(st)

	a.productUC = usecase.NewProductUC(st.products, index, ml, images, events, a.logger, a.cfg.Index, a.cfg.Ingest)
	a.searchUC = usecase.NewSearchUC(st.products, st.history, index, ml, images, cache, a.logger, a.cfg.Index, a.cfg.Search)

	if a.memoryIndex {
		n, err := a.productUC.RebuildIndex(ctx)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		a.logger.Infof("in-memory index rebuilt from catalog: %d vectors", n)
	}

	return nil
}

func (a *App) initStores() (*stores, error) {
	switch a.cfg.Catalog.Driver {
	case config.CatalogPostgres:
		db, err := initPGDB(a.logger, a.cfg)
		if err != nil {
			return nil, err
		}
		a.closer.AddSimple("postgres", func() error {
			db.Close()
			return nil
		})

		return &stores{
			products: pgdb.NewProductRepo(db.Pool, pgdbConv.ProductConverter{}),
			history:  pgdb.NewSearchHistoryRepo(db.Pool, pgdbConv.SearchHistoryConverter{}),
			pg:       db,
		}, nil

	case config.CatalogSQLite:
		db, err := initSQLite(a.logger, a.cfg)
		if err != nil {
			return nil, err
		}
		a.closer.AddSimple("sqlite", db.Close)

		return &stores{
			products: sqlite.NewProductRepo(db.DB, pgdbConv.ProductConverter{}),
			history:  sqlite.NewSearchHistoryRepo(db.DB, pgdbConv.SearchHistoryConverter{}),
		}, nil

	default:
		a.logger.Warnf("catalog driver is %q: products are lost on restart", a.cfg.Catalog.Driver)
		return &stores{
			products: memory.NewProductRepo(),
			history:  memory.NewSearchHistoryRepo(),
		}, nil
	}
}

func (a *App) initIndex(ctx context.Context) (usecase.VectorIndex, error) {
	if a.cfg.Index.Driver == config.IndexMemory {
		a.memoryIndex = true
		return memory.NewVectorIndex(a.cfg.Index.VectorSize), nil
	}

	qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddSimple("qdrant", qdrantClient.Close)

	qdrantCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()
	if err := clients.EnsureCollection(qdrantCtx, qdrantClient, uint64(a.cfg.Index.VectorSize)); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return qdrantRepo.NewVectorIndex(qdrantClient.Client, a.cfg.Qdrant.QdrantCollectionName, a.cfg.Index.VectorSize), nil
}

func (a *App) initImages(ctx context.Context) (*minioInfra.MinioInfrastructure, error) {
	minioClient, err := clients.NewMinIOClient(a.cfg.Minio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()
	if err := clients.EnsureBucket(minioCtx, minioClient, a.cfg.Minio.BucketName); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	images := minioInfra.NewMinioInfrastructure(s3Repo.NewImageRepo(minioClient), a.cfg.Minio, a.logger, a.shutdownCtx)
	a.closer.Add("minio cleanup", func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, cleanupWait)
		defer cancel()
		return images.WaitForCleanup(waitCtx)
	})

	return images, nil
}

// initCache возвращает nil, если Redis выключен.
func (a *App) initCache(ctx context.Context) (usecase.CacheRepository, error) {
	if !a.cfg.Redis.Enabled {
		return nil, nil
	}

	redisClient := clients.NewRedisClient(a.cfg.Redis)
	a.closer.AddSimple("redis", redisClient.Close)

	redisCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()
	if err := redisClient.Ping(redisCtx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return redis.NewCacheRepo(redisClient.Client, redisConv.ProductConverter{}, a.cfg.Redis, a.logger), nil
}

// initEvents выбирает способ публикации событий каталога. С PostgreSQL события идут
// через outbox-таблицу и OutboxWorker, без него прямо в Kafka. Возвращает nil,
// если Kafka выключена.
func (a *App) initEvents(st *stores) usecase.EventPublisher {
	if !a.cfg.Kafka.Enabled {
		return nil
	}

	producer := kafka.NewProducer(a.logger, a.cfg.Kafka)
	if err := producer.EnsureTopic(initTimeout); err != nil {
		a.logger.Warnf("kafka topic %s is not ready: %v", a.cfg.Kafka.Topic, err)
	}
	a.closer.AddSimple("kafka producer", producer.Close)

	if st.pg == nil {
		return producer
	}

	outbox := pgdb.NewOutboxEventRepo(st.pg.Pool, pgdbConv.OutboxEventConverter{})
	a.outboxWorker = kafka.NewOutboxWorker(outbox, a.logger, producer, st.pg.Dsn)

	return outbox
}

// Run запускает HTTP и gRPC серверы и ждёт сигнала завершения или ошибки сервера.
func (a *App) Run() error {
	if a.outboxWorker != nil {
		a.outboxWorker.Start(a.shutdownCtx)
		a.closer.AddSimple("outbox worker", func() error {
			a.outboxWorker.Stop()
			return nil
		})
	}

	grpcSrv := v1Grpc.NewGRPCServer(a.cfg.Grpc, a.logger)
	grpcSrv.RegisterServices(a.productUC, a.searchUC)

	grpcErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := grpcSrv.Start(); err != nil {
			grpcErrCh <- err
		}
	}()
	a.closer.Add("grpc server", grpcSrv.Stop)

	r := chi.NewRouter()
	v1Http.NewRouter(r, a.logger).Init(a.productUC, a.searchUC)
	httpSrv := v1Http.NewServer(r, a.cfg.Http)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := httpSrv.Run(); err != nil {
			errCh <- err
		}
	}()
	a.closer.Add("http server", httpSrv.Stop)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case appErr = <-grpcErrCh:
		a.logger.Errorf(appErr, "gRPC server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
	}

	a.logger.Infof("Application shutdown complete")

	return appErr
}

// Close освобождает ресурсы в порядке, обратном созданию. Серверы
// регистрируются последними и поэтому останавливаются первыми.
func (a *App) Close(ctx context.Context) error {
	err := a.closer.Close(ctx)
	a.shutdownCancel()
	return err
}

// Reindex заново записывает векторы каталога в индекс. Возвращает число
// записанных векторов и размер индекса после перестроения.
func (a *App) Reindex(ctx context.Context) (int, int, error) {
	indexed, err := a.productUC.RebuildIndex(ctx)
	if err != nil {
		return indexed, 0, e.Wrap(whereami.WhereAmI(), err)
	}

	total, err := a.index.Count(ctx)
	if err != nil {
		return indexed, 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return indexed, total, nil
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		db.Close()
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

func initSQLite(logger logger.Logger, cfg *config.Config) (*sqlitedb.SQLiteDatabase, error) {
	db, err := sqlitedb.Open(cfg.SQLite)
	if err != nil {
		logger.Errorf(err, "failed to open sqlite database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		_ = db.Close()
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

// Migrate применяет миграции выбранного каталога без запуска сервиса.
func Migrate(cfg *config.Config, logger logger.Logger) error {
	switch cfg.Catalog.Driver {
	case config.CatalogPostgres:
		db, err := initPGDB(logger, cfg)
		if err != nil {
			return err
		}
		db.Close()
	case config.CatalogSQLite:
		db, err := initSQLite(logger, cfg)
		if err != nil {
			return err
		}
		return db.Close()
	default:
		logger.Infof("catalog driver %q has no schema to migrate", cfg.Catalog.Driver)
	}

	return nil
}

// ShutdownContext ограничивает время остановки приложения.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), shutdownTimeout)
}
