package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yanqian/sunbalance/internal/domain/profiles"
	"github.com/yanqian/sunbalance/internal/domain/recommendation"
	"github.com/yanqian/sunbalance/internal/domain/session"
	"github.com/yanqian/sunbalance/internal/infra/config"
	"github.com/yanqian/sunbalance/pkg/metrics"
	"github.com/yanqian/sunbalance/pkg/telemetry"
)

// Runtime bundles the stores shared by the CLI commands and the local facade.
type Runtime struct {
	Config          *config.Config
	Logger          *slog.Logger
	Session         *session.Manager
	Profiles        *profiles.Directory
	Recommendations *recommendation.Cache
	Metrics         *metrics.Recorder

	store    session.Store
	shutdown telemetry.ShutdownFunc
}

// NewRuntime is used by Wire to assemble the stores. shutdown comes before the stores so
// that a telemetry failure aborts startup before any credential store is opened.
func NewRuntime(
	cfg *config.Config,
	logger *slog.Logger,
	shutdown telemetry.ShutdownFunc,
	sess *session.Manager,
	dir *profiles.Directory,
	cache *recommendation.Cache,
	recorder *metrics.Recorder,
	store session.Store,
) *Runtime {
	return &Runtime{
		Config:          cfg,
		Logger:          logger,
		Session:         sess,
		Profiles:        dir,
		Recommendations: cache,
		Metrics:         recorder,
		store:           store,
		shutdown:        shutdown,
	}
}

// Close flushes traces and releases the credential store.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.shutdown != nil {
		if err := r.shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if closer, ok := r.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
