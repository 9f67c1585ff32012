package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"

	"github.com/stwalsh4118/fieldwatch/internal/config"
	"github.com/stwalsh4118/fieldwatch/internal/database"
	"github.com/stwalsh4118/fieldwatch/internal/datasource"
	"github.com/stwalsh4118/fieldwatch/internal/datasource/geoserver"
	"github.com/stwalsh4118/fieldwatch/internal/datasource/store"
	"github.com/stwalsh4118/fieldwatch/internal/handlers"
	"github.com/stwalsh4118/fieldwatch/internal/logger"
	"github.com/stwalsh4118/fieldwatch/internal/middleware"
	"github.com/stwalsh4118/fieldwatch/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables and the optional .env file
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env).WithLevel(cfg.Server.LogLevel)
	log.Info("Starting FieldWatch API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"backend":     cfg.Backend,
	})

	if err := handlers.RegisterValidators(); err != nil {
		log.Fatal("Failed to register validators", err, nil)
	}

	ctx := context.Background()
	source, closeSource := newDataSource(ctx, cfg, log)
	defer closeSource()

	svc := services.NewDashboardService(source, services.OptionsFromConfig(cfg.Dashboard), log)

	// An unreachable data source is not fatal; the dashboard degrades to empty panels
	if svc.Healthy(ctx) {
		log.Info("Data source reachable", map[string]interface{}{"backend": svc.Backend()})
	} else {
		log.Warn("Data source unreachable at startup", map[string]interface{}{"backend": svc.Backend()})
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	handlers.Register(router, svc, cfg.Server.Env)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           gzhttp.GzipHandler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	// Let in-flight raster refreshes finish before the data source closes
	if err := svc.Wait(shutdownCtx); err != nil {
		log.Warn("Raster refreshes still running at shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Server exited", nil)
}

// newDataSource builds the configured backend. The returned func releases
// its resources.
func newDataSource(ctx context.Context, cfg *config.Config, log *logger.Logger) (datasource.ParcelDataSource, func()) {
	switch cfg.Backend {
	case config.BackendStore:
		db, err := database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			log.Fatal("Failed to create database pool", err, map[string]interface{}{
				"host": cfg.Database.Host,
				"port": cfg.Database.Port,
				"name": cfg.Database.Name,
			})
		}
		log.Info("Database pool created", map[string]interface{}{
			"host":     cfg.Database.Host,
			"port":     cfg.Database.Port,
			"database": cfg.Database.Name,
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})
		return store.New(db, log), db.Close

	default:
		gsCfg := geoserver.ConfigFromApp(cfg.GeoServer)
		log.Info("Using GeoServer data source", map[string]interface{}{
			"geoserver_url":   gsCfg.GeoServerURL,
			"parcel_server":   gsCfg.ParcelServerURL,
			"workspace":       gsCfg.Workspace,
			"value_layers":    len(gsCfg.ValueLayers),
			"local_data_dir":  gsCfg.DataDir,
			"csv_cache_ttl":   gsCfg.CacheTTL.String(),
			"request_timeout": gsCfg.RequestTimeout.String(),
		})
		return geoserver.New(gsCfg, log), func() {}
	}
}
