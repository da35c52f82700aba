package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/sunbalance/internal/domain/session"
	"github.com/yanqian/sunbalance/internal/infra/config"
	"github.com/yanqian/sunbalance/internal/infra/kvstore"
	"github.com/yanqian/sunbalance/internal/infra/transport"
	"github.com/yanqian/sunbalance/pkg/metrics"
	"github.com/yanqian/sunbalance/pkg/telemetry"
)

func provideTransportClient(cfg *config.Config, bearer *transport.Bearer, recorder *metrics.Recorder, logger *slog.Logger) *transport.Client {
	opts := transport.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Metrics: recorder,
	}
	if cfg.API.RateLimit.Enabled {
		opts.RequestsPerSecond = cfg.API.RateLimit.RequestsPerSecond
		opts.Burst = cfg.API.RateLimit.Burst
	}
	return transport.NewClient(opts, bearer, logger)
}

func provideSessionOptions(cfg *config.Config, recorder *metrics.Recorder) session.Options {
	return session.Options{
		StorageKey: cfg.Session.StorageKey,
		Metrics:    recorder,
	}
}

// provideCredentialStore opens the configured backend. A backend that cannot be opened
// falls back to the memory store so commands still run, without a persisted session.
func provideCredentialStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) session.Store {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		logger.Info("credential store is in memory, sessions will not survive this process")
		return kvstore.NewMemoryStore()
	case config.StorageSQLite:
		store, err := kvstore.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			logger.Error("failed to open sqlite credential store, falling back to memory store", "path", cfg.Storage.Path, "error", err)
			return kvstore.NewMemoryStore()
		}
		logger.Debug("sqlite credential store enabled", "path", cfg.Storage.Path)
		return store
	case config.StorageValkey:
		return provideValkeyStore(ctx, cfg, logger)
	default:
		store, err := kvstore.NewFileStore(cfg.Storage.Path)
		if err != nil {
			logger.Error("failed to open credential file, falling back to memory store", "path", cfg.Storage.Path, "error", err)
			return kvstore.NewMemoryStore()
		}
		logger.Debug("file credential store enabled", "path", store.Path())
		return store
	}
}

func provideValkeyStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) session.Store {
	opt, err := kvstore.ValkeyOptions(cfg.Storage.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
		return kvstore.NewMemoryStore()
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory store", "error", err)
		return kvstore.NewMemoryStore()
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory store", "error", err)
		client.Close()
		return kvstore.NewMemoryStore()
	}
	logger.Debug("valkey credential store enabled", "addr", cfg.Storage.Valkey.Addr)
	return kvstore.NewValkeyStore(client, cfg.Storage.Valkey.Prefix)
}

func provideTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (telemetry.ShutdownFunc, error) {
	return telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
	}, logger)
}
