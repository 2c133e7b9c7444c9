// Package server wires the EstateKeeper components together and runs the
// gRPC and metrics endpoints until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/estatekeeper/internal/access"
	"github.com/dmitrijs2005/estatekeeper/internal/audit"
	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/estatekeeper/internal/encryption"
	"github.com/dmitrijs2005/estatekeeper/internal/events"
	"github.com/dmitrijs2005/estatekeeper/internal/logging"
	"github.com/dmitrijs2005/estatekeeper/internal/metrics"
	"github.com/dmitrijs2005/estatekeeper/internal/objectstore"
	"github.com/dmitrijs2005/estatekeeper/internal/retry"
	"github.com/dmitrijs2005/estatekeeper/internal/scan"
	"github.com/dmitrijs2005/estatekeeper/internal/server/config"
	"github.com/dmitrijs2005/estatekeeper/internal/server/lifecycle"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/delegates"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/repomanager"

	gs "github.com/dmitrijs2005/estatekeeper/internal/server/grpc"
)

// memoryEncryptDelay is how long the memory backend takes to report an
// object as encrypted.
const memoryEncryptDelay = 200 * time.Millisecond

// memoryKeySalt salts passphrase-derived master keys of the memory backend.
const memoryKeySalt = "estatekeeper/memory-objectstore/v1"

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) }

type App struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics
	manager *lifecycle.Manager
	grpc    *gs.GRPCServer
	closers []func() error
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	return newApp(context.Background(), c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (_ *App, err error) {
	app := &App{config: c, logger: logger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			app.close(ctx)
		}
	}()

	store, err := app.initStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	delegateRepo, err := app.initDelegateCache(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	objects, err := newObjectStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	publisher, err := app.initPublisher()
	if err != nil {
		return nil, fmt.Errorf("nats init error: %w", err)
	}

	var scanner scan.Scanner = scan.NopScanner{}
	if c.ClamdAddr != "" {
		scanner = scan.NewClamdScanner(c.ClamdAddr)
	}

	engine := access.NewEngine(delegateRepo, store.AccessEntries(), nil)
	pipeline := audit.NewPipeline(store.Audit(), publisher, logger)
	monitor := encryption.NewMonitor(objects, logger, app.metrics.ObserveEncryptionWait)
	retries := retry.NewController(func(a retry.Attempt) { app.metrics.ObserveRetry(a.Operation) })

	app.manager = lifecycle.NewManager(lifecycle.Deps{
		Store:      store,
		Delegates:  delegateRepo,
		Authorizer: engine,
		Audit:      pipeline,
		Objects:    objects,
		Encryption: monitor,
		Retry:      retries,
		Scanner:    scanner,
		Events:     publisher,
		Observer:   app.metrics,
		Logger:     logger,
	}, lifecycleConfig(c))

	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, app.manager, c.SecretKey)
	return app, nil
}

func lifecycleConfig(c *config.Config) lifecycle.Config {
	return lifecycle.Config{
		MaxFileSize:            c.MaxFileSize,
		RetryAttempts:          c.RetryAttempts,
		RetryBaseDelay:         c.RetryBaseDelay,
		EncryptionPollInterval: c.EncryptionPollInterval,
		EncryptionTimeout:      c.EncryptionTimeout,
		EncryptionAttempts:     c.EncryptionAttempts,
		OperationTimeout:       c.OperationTimeout,
	}
}

// initStore opens PostgreSQL and migrates it, or falls back to the memory
// repositories when no DSN is configured.
func (app *App) initStore(ctx context.Context) (*repomanager.Store, error) {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database configured, using in-memory repositories")
		return repomanager.NewStore(repomanager.NewMemoryRepositoryManager(), nil), nil
	}

	db, err := openDB(app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return repomanager.NewStore(rm, db), nil
}

func (app *App) initDelegateCache(ctx context.Context, store *repomanager.Store) (delegates.Repository, error) {
	if app.config.RedisAddr == "" {
		return store.Delegates(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
	app.closers = append(app.closers, client.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	return delegates.NewCachedRepository(store.Delegates(), client, app.config.DelegateCacheTTL, app.logger), nil
}

func (app *App) initPublisher() (events.Publisher, error) {
	if app.config.NATSURL == "" {
		return events.NopPublisher{}, nil
	}
	p, err := events.NewNATSPublisher(app.config.NATSURL, app.logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, p.Close)
	return p, nil
}

func newObjectStore(ctx context.Context, c *config.Config) (objectstore.Store, error) {
	switch c.StorageBackend {
	case config.StorageMemory, "":
		return objectstore.NewMemoryStore(memoryMasterKey(c.StorageMasterKey), memoryEncryptDelay), nil
	case config.StorageS3:
		return objectstore.NewS3Store(ctx, objectstore.S3Config{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	case config.StorageMinio:
		return objectstore.NewMinioStore(ctx, objectstore.MinioConfig{
			Endpoint:  c.S3BaseEndpoint,
			AccessKey: c.S3RootUser,
			SecretKey: c.S3RootPassword,
			Bucket:    c.S3Bucket,
			UseSSL:    c.MinioUseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

// memoryMasterKey accepts a hex-encoded key of cryptox.KeySize bytes or a
// passphrase stretched with argon2id. An empty setting yields a random key,
// so stored objects do not survive a restart.
func memoryMasterKey(setting string) []byte {
	if setting == "" {
		return common.GenerateRandByteArray(cryptox.KeySize)
	}
	if key, err := hex.DecodeString(setting); err == nil && len(key) == cryptox.KeySize {
		return key
	}
	return cryptox.DeriveMasterKey([]byte(setting), []byte(memoryKeySalt))
}

func (app *App) startMetricsServer(ctx context.Context) error {
	if app.config.MetricsAddr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(ctx, "close failed", "error", err)
		}
	}
	app.closers = nil
}

// Run serves until ctx is cancelled, a termination signal arrives or one of
// the servers fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	defer app.close(ctx)

	app.logger.Info(ctx, "Starting app...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.grpc.Run(gctx) })
	g.Go(func() error { return app.startMetricsServer(gctx) })

	err := g.Wait()
	app.logger.Info(ctx, "App stopped")
	return err
}
