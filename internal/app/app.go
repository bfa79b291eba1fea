// Package app initializes and runs the registration service.
// It configures logging, storage, metrics, the HTTP router and the optional
// gRPC server, and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/patric-chuzhbe/regform/internal/config"
	"github.com/patric-chuzhbe/regform/internal/db/jsondb"
	"github.com/patric-chuzhbe/regform/internal/db/memorystorage"
	"github.com/patric-chuzhbe/regform/internal/db/postgresdb"
	"github.com/patric-chuzhbe/regform/internal/db/storage"
	"github.com/patric-chuzhbe/regform/internal/grpcserver"
	"github.com/patric-chuzhbe/regform/internal/logger"
	"github.com/patric-chuzhbe/regform/internal/metrics"
	"github.com/patric-chuzhbe/regform/internal/models"
	"github.com/patric-chuzhbe/regform/internal/router"
	"github.com/patric-chuzhbe/regform/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App encapsulates the configuration, HTTP handler, storage backend
// and gRPC server needed to run the registration service.
type App struct {
	cfg          *config.Config
	db           storage.Storage
	metrics      *metrics.Metrics
	httpHandler  http.Handler
	grpcServer   *grpc.Server
	grpcListener net.Listener
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - setting up the router, metrics and the gRPC server
func New(configOptions ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(configOptions...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.metrics = metrics.New()

	app.db, err = getStorageByType(app.cfg, app.metrics)
	if err != nil {
		return nil, err
	}

	svc := service.New(app.db, app.metrics, models.Schema(app.cfg.Schema))

	routerOptions := []router.InitOption{
		router.WithMetricsHandler(app.metrics.Handler()),
	}
	if app.cfg.StaticDir != "" {
		routerOptions = append(routerOptions, router.WithStatic(os.DirFS(app.cfg.StaticDir)))
	}
	app.httpHandler = router.New(svc, routerOptions...)

	if app.cfg.GRPCAddr != "" {
		app.grpcServer, app.grpcListener, err = grpcserver.NewGRPCServer(
			app.cfg.GRPCAddr,
			grpcserver.NewRegistrationHandler(svc),
		)
		if err != nil {
			_ = app.db.Close()
			return nil,
				fmt.Errorf("in internal/app/app.go/New(): error while `grpcserver.NewGRPCServer()` calling: %w", err)
		}
	}

	logger.Log.Infoln(
		"registration service configured",
		"schema", app.cfg.Schema,
		"storage", storageTypeName(getAvailableStorageType(app.cfg)),
	)

	return app, nil
}

// Run starts the servers and blocks until SIGINT/SIGTERM or a server failure.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.RunContext(ctx)
}

// RunContext starts the servers and shuts them down when ctx is done.
// The store is closed on return.
func (a *App) RunContext(ctx context.Context) error {
	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 2)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	if a.grpcServer != nil {
		logger.Log.Infoln("gRPC server running", "GRPCAddr", a.grpcListener.Addr().String())
		go func() {
			serverErrCh <- a.grpcServer.Serve(a.grpcListener)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing storage and exiting...")
	case err := <-serverErrCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("server shutdown error: %w", err)
	}

	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}

	if err := a.db.Close(); err != nil && runErr == nil {
		runErr = err
	}

	return runErr
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Fprintln(os.Stderr, "Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func storageTypeName(storageType int) string {
	switch storageType {
	case models.StorageTypePostgresql:
		return "postgresql"
	case models.StorageTypeFile:
		return "file"
	case models.StorageTypeMemory:
		return "memory"
	}
	return "unknown"
}

func getStorageByType(cfg *config.Config, m *metrics.Metrics) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DBConnectionTimeout)
		defer cancel()

		return postgresdb.New(
			ctx,
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypeFile:
		return jsondb.New(
			cfg.DBFileName,
			jsondb.WithRecoveryHook(m.ObserveRecovery),
		)
	}

	return memorystorage.New()
}
