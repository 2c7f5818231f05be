package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/drive-api/api/swagger"
	"github.com/noah-isme/drive-api/internal/app"
	"github.com/noah-isme/drive-api/internal/handler"
	"github.com/noah-isme/drive-api/internal/middleware"
	"github.com/noah-isme/drive-api/pkg/config"
	"github.com/noah-isme/drive-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/drive-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/drive-api/pkg/middleware/requestid"
)

// @title Drive API
// @version 0.1.0
// @description Node graph and delta-sync file storage service
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	drive, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to wire engine", "error", err)
	}
	defer drive.Close(context.Background())

	nodeHandler := handler.NewNodeHandler(drive.Signer, cfg.APIPrefix+"/download", nil, logr)
	metricsHandler := handler.NewMetricsHandler(drive.Metrics)
	adminHandler := handler.NewAdminHandler(drive.Filesystem, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(drive.Metrics))
	r.Use(middleware.ClientInfo())
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/download/:token", middleware.Session(drive.Filesystem), nodeHandler.Download)

	secured := api.Group("", middleware.JWT(drive.Tokens), middleware.Session(drive.Filesystem))
	handler.RegisterNodeRoutes(secured, nodeHandler)

	admin := secured.Group("/admin", middleware.RequireAdmin())
	admin.GET("/metrics", metricsHandler.Snapshot)
	admin.POST("/gc", adminHandler.CollectExpired)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
