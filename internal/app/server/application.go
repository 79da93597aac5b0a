package serverapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/nolancloud/ncp/internal/adapter/httpserver"
	"github.com/nolancloud/ncp/internal/auth"
	"github.com/nolancloud/ncp/internal/config"
	"github.com/nolancloud/ncp/internal/infra/blob"
	"github.com/nolancloud/ncp/internal/infra/docker"
	"github.com/nolancloud/ncp/internal/infra/store"
	"github.com/nolancloud/ncp/internal/usecase/lifecycle"
	"github.com/nolancloud/ncp/internal/usecase/reconcile"
	storageuc "github.com/nolancloud/ncp/internal/usecase/storage"
	"github.com/nolancloud/ncp/internal/usecase/usage"
)

type Application struct {
	cfg        *config.Config
	logger     *slog.Logger
	db         *store.DB
	api        *httpserver.API
	reconciler *reconcile.Reconciler
	usage      *usage.Reporter
}

func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	db, err := store.Open(filepath.Join(cfg.DataDir, "db"))
	if err != nil {
		return nil, err
	}

	instances := store.NewInstanceStore(db)
	users := store.NewUserStore(db)
	apiKeys := store.NewAPIKeyStore(db)
	buckets := store.NewBucketStore(db)
	objects := store.NewObjectStore(db)

	blobs := blob.NewFilesystemStore(filepath.Join(cfg.DataDir, "storage"))
	runtime := docker.NewClient(cfg.DockerHost)

	accounts := auth.NewAccountService(users, apiKeys, []byte(cfg.AuthSecret), logger)
	capabilities := auth.NewCapabilitySigner([]byte(cfg.CapabilitySecret))
	resolver := auth.NewChain(
		auth.NewAPIKeyResolver(apiKeys, users, logger),
		auth.NewBearerResolver([]byte(cfg.AuthSecret)),
	)

	containers := lifecycle.NewService(runtime, instances, logger)
	storageSvc := storageuc.NewService(buckets, objects, blobs, capabilities, cfg.PresignTTL, logger)
	reconciler := reconcile.New(runtime, instances, logger, cfg.ReconcileInterval)
	usageReporter := usage.New(users, buckets, objects, logger, cfg.UsageInterval)

	api := httpserver.NewAPI(accounts, resolver, containers, storageSvc)

	return &Application{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		api:        api,
		reconciler: reconciler,
		usage:      usageReporter,
	}, nil
}

// Run starts the background loops and the HTTP server, then blocks until
// the context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	defer a.db.Close()

	a.reconciler.Start(ctx)
	a.usage.Start(ctx)

	server := httpserver.NewServer(a.cfg.ListenPort, a.api, a.logger)
	a.logger.Info("server starting", "port", a.cfg.ListenPort, "version", config.Version)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown failed", "error", err)
		return err
	}

	a.logger.Info("server stopped")
	return nil
}
