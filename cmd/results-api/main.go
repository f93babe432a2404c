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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/ibsadiq/scms-backend-sub000/api/swagger"
	"github.com/ibsadiq/scms-backend-sub000/internal/handler"
	"github.com/ibsadiq/scms-backend-sub000/internal/middleware"
	"github.com/ibsadiq/scms-backend-sub000/internal/models"
	"github.com/ibsadiq/scms-backend-sub000/internal/repository"
	"github.com/ibsadiq/scms-backend-sub000/internal/service"
	"github.com/ibsadiq/scms-backend-sub000/pkg/cache"
	"github.com/ibsadiq/scms-backend-sub000/pkg/config"
	"github.com/ibsadiq/scms-backend-sub000/pkg/database"
	"github.com/ibsadiq/scms-backend-sub000/pkg/events"
	"github.com/ibsadiq/scms-backend-sub000/pkg/logger"
	corsmiddleware "github.com/ibsadiq/scms-backend-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/ibsadiq/scms-backend-sub000/pkg/middleware/requestid"
)

// @title SCMS Results API
// @version 1.0.0
// @description Term result computation, ranking and publication
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := events.Connect(cfg.NATS, logr)
	if err != nil {
		logr.Warn("nats unavailable, result events disabled", zap.Error(err))
		natsConn = nil
	}
	var publisher events.Publisher = events.NopPublisher{}
	if natsConn != nil {
		defer natsConn.Drain() //nolint:errcheck
		publisher = events.NewNATSPublisher(natsConn, cfg.NATS.SubjectPrefix, logr)
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Results.CacheTTL, logr, redisClient != nil)

	scales := service.NewGradeScaleService(repository.NewGradeScaleRepository(db), cacheSvc, validator.New(), logr)
	if cfg.Results.SeedDefaultScale {
		if _, err := scales.EnsureDefault(ctx); err != nil {
			logr.Fatal("failed to seed default grade scale", zap.Error(err))
		}
	}

	results := service.NewResultService(service.ResultStores{
		Terms:       repository.NewTermRepository(db),
		Enrollments: repository.NewEnrollmentRepository(db),
		Allocations: repository.NewAllocationRepository(db),
		Marks:       repository.NewMarkRepository(db),
		Results:     repository.NewResultRepository(db),
	}, scales, cacheSvc, publisher, metrics, logr)

	dispatcher := service.NewComputeDispatcher(results, cfg.Results.DispatchBuffer, metrics, logr)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	tokens := service.NewTokenService(service.TokenConfig{AccessTokenSecret: cfg.JWT.Secret})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	metricsHandler := handler.NewMetricsHandler(metrics, readinessChecks(db, cacheRepo, natsConn))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokens))
	registerRoutes(api, routeDeps{
		results:       handler.NewResultHandler(dispatcher, results, logr),
		scales:        handler.NewGradeScaleHandler(scales),
		metrics:       metricsHandler,
		enableExports: cfg.Results.EnableExports,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routeDeps struct {
	results       *handler.ResultHandler
	scales        *handler.GradeScaleHandler
	metrics       *handler.MetricsHandler
	enableExports bool
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	admins := middleware.RequireRoles(models.ResultManagerRoles...)
	readers := middleware.RequireRoles(models.ResultViewerRoles...)

	res := api.Group("/results")
	res.POST("/compute", admins, deps.results.Compute)
	res.POST("/compute/student", admins, deps.results.ComputeStudent)
	res.POST("/recompute", admins, deps.results.Recompute)
	res.POST("/publish", admins, deps.results.Publish)
	res.POST("/unpublish", admins, deps.results.Unpublish)
	res.GET("/status", readers, deps.results.Status)
	res.GET("/classrooms/:classroomId/terms/:termId", readers, deps.results.Broadsheet)
	if deps.enableExports {
		res.GET("/classrooms/:classroomId/terms/:termId/export", readers, deps.results.ExportBroadsheet)
	}
	res.GET("/students/:studentId/terms/:termId", readers, deps.results.StudentReport)

	api.GET("/grade-scale", readers, deps.scales.Get)
	api.PUT("/grade-scale", admins, deps.scales.Replace)
	api.GET("/metrics/summary", admins, deps.metrics.Summary)
}

func readinessChecks(db *sqlx.DB, cacheRepo *repository.CacheRepository, natsConn *nats.Conn) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis":    cacheRepo.Ping,
	}
	if natsConn != nil {
		checks["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats status %s", natsConn.Status())
			}
			return nil
		}
	}
	return checks
}
