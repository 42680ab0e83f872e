package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	appsvc "github.com/turtacn/pushgate/internal/application/service"
	"github.com/turtacn/pushgate/internal/config"
	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/internal/domain/repository"
	domainsvc "github.com/turtacn/pushgate/internal/domain/service"
	"github.com/turtacn/pushgate/internal/infrastructure/apns"
	"github.com/turtacn/pushgate/internal/infrastructure/crypto"
	"github.com/turtacn/pushgate/internal/infrastructure/monitoring"
	"github.com/turtacn/pushgate/internal/infrastructure/persistence/boltdb"
	"github.com/turtacn/pushgate/internal/infrastructure/persistence/memory"
	"github.com/turtacn/pushgate/internal/infrastructure/persistence/redis"
	"github.com/turtacn/pushgate/internal/infrastructure/persistence/sqlstore"
	"github.com/turtacn/pushgate/internal/interfaces/http/handlers"
	"github.com/turtacn/pushgate/internal/interfaces/http/middleware"
	"github.com/turtacn/pushgate/internal/interfaces/http/router"
	"github.com/turtacn/pushgate/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST server and the dispatch engine.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: /etc/pushgate/config.yaml or ./config.yaml)")
	return cmd
}

// serve wires every component from cfg and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	log, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	tracing, err := monitoring.NewTracingManager(cfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	// Credential signer
	keys, err := newKeySource(cfg.Key)
	if err != nil {
		return err
	}
	signer := crypto.NewSigner(crypto.SignerConfig{
		TeamID:   cfg.APNs.TeamID,
		KeyID:    cfg.APNs.KeyID,
		Validity: cfg.APNs.CredentialValidity,
	}, keys, log, crypto.WithMetrics(metrics))

	// Protocol client
	var transportOpts []apns.HTTP2TransportOption
	if cfg.APNs.CABundle != "" {
		pool, err := apns.LoadCABundle(cfg.APNs.CABundle)
		if err != nil {
			return err
		}
		transportOpts = append(transportOpts, apns.WithRootCAs(pool))
	}
	client := apns.NewClient(apns.Config{
		BundleID:     cfg.APNs.BundleID,
		MaxRounds:    cfg.APNs.PollRounds,
		PollInterval: cfg.APNs.PollInterval,
	}, signer, apns.NewHTTP2Transport(cfg.APNs.DialTimeout, transportOpts...), log, apns.WithClientMetrics(metrics))

	// Token registry
	store, redisClient, err := openBackend(ctx, cfg.Registry, log)
	if err != nil {
		return err
	}
	defer store.Close()

	var registry domainsvc.TokenRegistry = appsvc.NewRegistryService(store, log, metrics)
	if cfg.Registry.Locked {
		registry = appsvc.NewLockedRegistry(registry)
	}

	// Dispatch coordinator
	dispatcher := appsvc.NewDispatcher(appsvc.DispatcherConfig{
		TaskBudget:        cfg.Dispatch.TaskBudget,
		BroadcastWeight:   cfg.Dispatch.BroadcastWeight,
		PruneUnregistered: cfg.Dispatch.PruneUnregistered,
	}, client, signer, registry, log, metrics)

	if cfg.Key.Source == "file" && cfg.Key.Watch {
		watcher, err := crypto.NewKeyWatcher(cfg.Key.Path, dispatcher.InvalidateCredential, log)
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	// REST adapter
	var idem middleware.IdempotencyStore = middleware.NewMemoryIdempotencyStore()
	if redisClient != nil {
		idem = middleware.NewRedisIdempotencyStore(redisClient, cfg.Registry.Redis.KeyPrefix)
	}
	r := router.NewRouter(cfg, log, router.Deps{
		Health: handlers.NewHealthHandler(map[string]handlers.HealthCheckFunc{
			"registry": func(ctx context.Context) error {
				sandbox := models.EnvironmentSandbox
				_, err := registry.Enumerate(ctx, models.ListAllow, &sandbox)
				return err
			},
		}, log),
		Tokens:      handlers.NewTokenHandler(registry, log),
		Push:        handlers.NewPushHandler(dispatcher, log),
		Metrics:     metrics,
		Gatherer:    reg,
		Idempotency: idem,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- r.Start() }()

	select {
	case err = <-errCh:
		if err != nil {
			log.Error(context.Background(), "HTTP server failed", err)
		}
	case <-ctx.Done():
	}

	log.Info(context.Background(), "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if stopErr := r.Stop(shutdownCtx); stopErr != nil {
		log.Error(shutdownCtx, "Server forced to shutdown", stopErr)
	}
	if drainErr := dispatcher.Shutdown(shutdownCtx); drainErr != nil {
		log.Error(context.Background(), "dispatch units abandoned at shutdown", drainErr)
	}
	// The drain may have used up shutdownCtx; spans still get their own flush window.
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFlush()
	_ = tracing.Shutdown(flushCtx)
	return err
}

func newKeySource(cfg config.KeyConfig) (crypto.KeySource, error) {
	if cfg.Source == "vault" {
		return crypto.NewVaultKeySource(cfg.Vault.Address, cfg.Vault.Token, cfg.Vault.MountPath, cfg.Vault.SecretPath, cfg.Vault.Field)
	}
	return crypto.NewFileKeySource(cfg.Path), nil
}

// openBackend opens the configured registry storage. The redis client is
// returned as well so other components can share the connection.
func openBackend(ctx context.Context, cfg config.RegistryConfig, log logger.Logger) (repository.KVBackend, goredis.UniversalClient, error) {
	switch cfg.Backend {
	case "memory":
		log.Warn(ctx, "memory registry selected, tokens are lost on restart")
		return memory.NewStore(), nil, nil
	case "redis":
		client, err := redis.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		return redis.NewStore(client, cfg.Redis.KeyPrefix), client, nil
	case "sqlite":
		s, err := sqlstore.OpenSQLite(ctx, cfg.Path, log)
		return s, nil, err
	case "postgres":
		s, err := sqlstore.OpenPostgres(ctx, cfg.DSN, log)
		return s, nil, err
	default:
		s, err := boltdb.Open(ctx, cfg.Path, log)
		return s, nil, err
	}
}
