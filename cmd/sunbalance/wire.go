//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/yanqian/sunbalance/internal/bootstrap"
	"github.com/yanqian/sunbalance/internal/domain/profiles"
	"github.com/yanqian/sunbalance/internal/domain/recommendation"
	"github.com/yanqian/sunbalance/internal/domain/session"
	"github.com/yanqian/sunbalance/internal/infra/config"
	"github.com/yanqian/sunbalance/internal/infra/transport"
	httpiface "github.com/yanqian/sunbalance/internal/interface/http"
	"github.com/yanqian/sunbalance/pkg/logger"
	"github.com/yanqian/sunbalance/pkg/metrics"
)

var runtimeSet = wire.NewSet(
	config.Load,
	logger.New,
	metrics.NewRecorder,
	transport.NewBearer,
	provideTransportClient,
	provideSessionOptions,
	provideCredentialStore,
	provideTelemetry,
	session.NewManager,
	profiles.NewDirectory,
	recommendation.NewCache,
	wire.Bind(new(session.APIClient), new(*transport.Client)),
	wire.Bind(new(profiles.APIClient), new(*transport.Client)),
	wire.Bind(new(recommendation.APIClient), new(*transport.Client)),
	bootstrap.NewRuntime,
)

func initializeRuntime(ctx context.Context) (*bootstrap.Runtime, error) {
	wire.Build(runtimeSet)
	return nil, nil
}

func initializeApp(ctx context.Context) (*bootstrap.App, error) {
	wire.Build(
		runtimeSet,
		httpiface.NewHandler,
		httpiface.NewRouter,
		wire.Bind(new(httpiface.SessionService), new(*session.Manager)),
		wire.Bind(new(httpiface.ProfileService), new(*profiles.Directory)),
		wire.Bind(new(httpiface.RecommendationService), new(*recommendation.Cache)),
		bootstrap.NewApp,
	)
	return nil, nil
}
