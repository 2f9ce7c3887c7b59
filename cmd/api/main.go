package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buildpulse/buildpulse-go/internal/config"
	"github.com/buildpulse/buildpulse-go/internal/crypto"
	"github.com/buildpulse/buildpulse-go/internal/handler"
	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/provider"
	"github.com/buildpulse/buildpulse-go/internal/repository"
	"github.com/buildpulse/buildpulse-go/internal/repository/memstore"
	"github.com/buildpulse/buildpulse-go/internal/repository/mongostore"
	"github.com/buildpulse/buildpulse-go/internal/service"
	"github.com/joho/godotenv"
)

type stores struct {
	projects  repository.ProjectStore
	pipelines repository.PipelineStore
	builds    repository.BuildStore
	close     func(context.Context) error
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	codec, err := newCodec(cfg)
	if err != nil {
		slog.Error("invalid encryption configuration", "error", err)
		os.Exit(1)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("store initialization failed", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	pipelines := repository.NewEncryptedPipelineStore(st.pipelines, codec)

	client := provider.NewClient(nil, provider.ClientOptions{
		Timeout: cfg.Provider.Timeout,
		RPS:     cfg.Provider.RPS,
		Burst:   cfg.Provider.Burst,
	})
	registry := provider.NewRegistry()
	registry.Register(model.PipelineTypeJenkins, provider.NewJenkins(client))
	registry.Register(model.PipelineTypeBamboo, provider.NewBamboo(client, cfg.Provider.PageSize))

	pipelineService := service.NewPipelineService(st.projects, pipelines, st.builds, registry)
	projectService := service.NewProjectService(st.projects, pipelineService)
	syncService := service.NewSyncService(st.projects, pipelines, st.builds, registry, service.SyncOptions{
		Lookback:    cfg.Sync.Lookback,
		Concurrency: cfg.Sync.Concurrency,
	}, slog.Default())
	deploymentService := service.NewDeploymentService(pipelines, st.builds)

	router := handler.NewRouter(handler.Routes{
		Projects:    handler.NewProjectHandler(projectService),
		Pipelines:   handler.NewPipelineHandler(pipelineService),
		Sync:        handler.NewSyncHandler(syncService),
		Deployments: handler.NewDeploymentHandler(deploymentService),
		JWTSecret:   cfg.JWTSecret,
		SyncRPS:     cfg.Sync.TriggerRPS,
		SyncBurst:   cfg.Sync.TriggerBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
		os.Exit(1)
	}
	if err := st.close(shutdownCtx); err != nil {
		slog.Warn("closing store", "error", err)
	}

	slog.Info("server stopped")
}

// newCodec builds the field codec from an explicit key, or derives one from
// a passphrase and salt.
func newCodec(cfg config.Config) (*crypto.AESCodec, error) {
	var key []byte
	if cfg.EncryptionPassphrase != "" {
		derived, err := crypto.DeriveKey(cfg.EncryptionPassphrase, []byte(cfg.EncryptionSalt), crypto.DefaultKeyParams())
		if err != nil {
			return nil, err
		}
		key = derived
	} else {
		decoded, err := crypto.DecodeKey(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		key = decoded
	}
	return crypto.NewAESCodec(key)
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.StoreDriver {
	case "mysql":
		db, err := repository.NewDB(ctx, cfg.DatabaseDSN)
		if err != nil {
			return stores{}, err
		}
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return stores{}, err
		}
		return stores{
			projects:  repository.NewProjectRepository(db),
			pipelines: repository.NewPipelineRepository(db),
			builds:    repository.NewBuildRepository(db),
			close:     func(context.Context) error { return db.Close() },
		}, nil

	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return stores{}, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			client.Disconnect(ctx)
			return stores{}, err
		}
		return stores{
			projects:  mongostore.NewProjectStore(db),
			pipelines: mongostore.NewPipelineStore(db),
			builds:    mongostore.NewBuildStore(db),
			close:     client.Disconnect,
		}, nil

	case "memory":
		slog.Warn("using in-memory store, data is lost on restart")
		return stores{
			projects:  memstore.NewProjectStore(),
			pipelines: memstore.NewPipelineStore(),
			builds:    memstore.NewBuildStore(),
			close:     func(context.Context) error { return nil },
		}, nil

	default:
		return stores{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
