// Package app initializes and runs the vault service.
// It configures logging, storage, authentication, and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/securevault/internal/auth"
	"github.com/patric-chuzhbe/securevault/internal/config"
	"github.com/patric-chuzhbe/securevault/internal/db/jsondb"
	"github.com/patric-chuzhbe/securevault/internal/db/memorystorage"
	"github.com/patric-chuzhbe/securevault/internal/db/postgresdb"
	"github.com/patric-chuzhbe/securevault/internal/db/sqlitedb"
	"github.com/patric-chuzhbe/securevault/internal/db/storage"
	"github.com/patric-chuzhbe/securevault/internal/ipchecker"
	"github.com/patric-chuzhbe/securevault/internal/logger"
	"github.com/patric-chuzhbe/securevault/internal/models"
	"github.com/patric-chuzhbe/securevault/internal/router"
	"github.com/patric-chuzhbe/securevault/internal/sessionsweeper"
	"github.com/patric-chuzhbe/securevault/internal/viewstate"
)

const sweeperErrorChannelCapacity = 16

// App encapsulates the configuration, HTTP handler, storage backend,
// and the background session sweeper.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	sweeper     *sessionsweeper.SessionSweeper
	stopSweeper context.CancelFunc
	httpHandler http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - starting the expired sessions sweeper
// - setting up the router and middleware
func New(options ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(options...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	authCookieSigningSecretKey, err := base64.URLEncoding.DecodeString(app.cfg.AuthCookieSigningSecretKey)
	if err != nil {
		return nil, errors.Join(err, app.db.Close())
	}

	ipChecker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, errors.Join(err, app.db.Close())
	}

	states := viewstate.New()

	app.sweeper = sessionsweeper.New(
		app.db,
		states,
		app.cfg.SessionSweepInterval,
		sweeperErrorChannelCapacity,
	)
	sweeperRunCtx, stopSweeper := context.WithCancel(context.Background())
	app.stopSweeper = stopSweeper

	app.sweeper.Run(sweeperRunCtx)
	app.sweeper.ListenErrors(func(err error) {
		logger.Log.Errorw("Error passed from the `app.sweeper.ListenErrors()`", zap.Error(err))
	})

	app.httpHandler, err = router.New(
		app.db,
		auth.New(
			app.db,
			app.cfg.AuthCookieName,
			authCookieSigningSecretKey,
			auth.WithSessionTTL(app.cfg.SessionTTL),
			auth.WithSecureCookie(app.cfg.EnableHTTPS),
		),
		states,
		ipChecker,
	)
	if err != nil {
		stopSweeper()
		return nil, errors.Join(err, app.db.Close())
	}

	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpHandler
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr, "HTTPS", a.cfg.EnableHTTPS)

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if a.cfg.EnableHTTPS {
			serverErrCh <- server.ListenAndServeTLS(a.cfg.TLSCertFile, a.cfg.TLSKeyFile)
			return
		}
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing storage and exiting...")
		a.stopSweeper()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		a.stopSweeper()
		return errors.Join(fmt.Errorf("server error: %w", err), a.db.Close())
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.SQLiteDSN != "" {
		return models.StorageTypeSQLite
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypeSQLite:
		return sqlitedb.New(
			context.Background(),
			cfg.SQLiteDSN,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
