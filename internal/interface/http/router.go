package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanqian/sunbalance/internal/infra/config"
	"github.com/yanqian/sunbalance/pkg/metrics"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, recorder *metrics.Recorder, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	logger = logger.With("component", "http.router")

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(logger),
		facadeMetrics(recorder),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(logger),
	)

	if registry := recorder.Registry(); registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/session", handler.Session)
		api.POST("/session/login", handler.Login)
		api.POST("/session/refresh", handler.Refresh)
		api.POST("/session/logout", handler.Logout)

		api.POST("/profiles/sync", handler.SyncProfiles)
		api.GET("/profiles", handler.ListProfiles)
		api.POST("/profiles/select", handler.SelectProfile)
		api.GET("/profiles/current", handler.CurrentProfile)
		api.POST("/profiles", handler.CreateProfile)
		api.PATCH("/profiles/user", handler.UpdateUserProfile)
		api.PATCH("/profiles/:profileId", handler.UpdateProfile)
		api.DELETE("/profiles/:profileId", handler.DeleteProfile)

		api.POST("/recommendations/:profileId/fetch", handler.FetchRecommendation)
		api.GET("/recommendations/:profileId", handler.Recommendation)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
