// Package server wires configuration, storage and services together and runs
// the HTTP and gRPC endpoints until the process is signalled to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/snaptrack/internal/dbx"
	"github.com/dmitrijs2005/snaptrack/internal/logging"
	"github.com/dmitrijs2005/snaptrack/internal/server/auth"
	"github.com/dmitrijs2005/snaptrack/internal/server/blobstore"
	"github.com/dmitrijs2005/snaptrack/internal/server/blobstore/local"
	"github.com/dmitrijs2005/snaptrack/internal/server/blobstore/miniostore"
	"github.com/dmitrijs2005/snaptrack/internal/server/blobstore/s3store"
	"github.com/dmitrijs2005/snaptrack/internal/server/config"
	"github.com/dmitrijs2005/snaptrack/internal/server/httpapi"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/snaptrack/internal/server/services"

	gs "github.com/dmitrijs2005/snaptrack/internal/server/grpc"
)

type App struct {
	config           *config.Config
	logger           logging.Logger
	db               *sql.DB
	sessionService   *services.SessionService
	userService      *services.UserService
	invoiceService   *services.InvoiceService
	referenceService *services.ReferenceService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(c.LogLevel, os.Stdout)

	db, err := dbx.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := newBlobStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("attachment store init error: %w", err)
	}

	verifier := auth.NewBcryptVerifier(c.BcryptCost)

	return &App{
		config:           c,
		logger:           logger,
		db:               db,
		sessionService:   services.NewSessionService(db, rm, c, verifier, logger),
		userService:      services.NewUserService(db, rm, verifier, logger),
		invoiceService:   services.NewInvoiceService(db, rm, store, c, logger),
		referenceService: services.NewReferenceService(db, rm, logger),
	}, nil
}

// newBlobStore builds the attachment store selected by c.StorageBackend.
func newBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	switch c.StorageBackend {
	case config.StorageLocal:
		return local.New(c.StoragePath)
	case config.StorageS3:
		return s3store.New(ctx, s3store.Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			UsePathStyle: c.S3UsePathStyle,
		})
	case config.StorageMinio:
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  c.S3BaseEndpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			UseSSL:    c.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewServer(app.config.EndpointAddrHTTP, httpapi.Deps{
		Sessions:  app.sessionService,
		Users:     app.userService,
		Invoices:  app.invoiceService,
		Catalogue: app.referenceService,
	}, app.config.MaxUploadSize, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.sessionService)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
