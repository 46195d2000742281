// Package api — публичный REST для чтения рыночных данных.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"ict_bot/internal/cache"
	"ict_bot/internal/feed"
	"ict_bot/internal/modules/config"
	"ict_bot/internal/modules/health"
	"ict_bot/internal/storage/candles"
)

type Config struct {
	Addr string
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: fmt.Sprintf(":%d", cfg.Service.PublicPort)}
}

func NewRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	v1.GET("/candles", h.Candles)
	v1.GET("/candles/latest", h.LatestCandles)
	v1.GET("/sessions", h.Sessions)
	v1.GET("/stats", h.Stats)

	return r
}

func NewHandler(
	repo *candles.Repository,
	cacheMgr *cache.Manager,
	status *health.Status,
	streamer *feed.Streamer,
	cfg *config.Config,
) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cacheMgr,
		status:    status,
		streamer:  streamer,
		accountID: cfg.Bridge.AccountID,
	}
}

func RunHTTP(lc fx.Lifecycle, cfg Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(
			NewConfig,
			NewHandler,
			NewRouter,
		),
		fx.Invoke(RunHTTP),
	)
}
