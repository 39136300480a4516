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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-master-scheduler/api/swagger"
	"github.com/noah-isme/sma-master-scheduler/internal/engine"
	"github.com/noah-isme/sma-master-scheduler/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-master-scheduler/internal/middleware"
	"github.com/noah-isme/sma-master-scheduler/internal/models"
	"github.com/noah-isme/sma-master-scheduler/internal/repository"
	"github.com/noah-isme/sma-master-scheduler/internal/service"
	"github.com/noah-isme/sma-master-scheduler/pkg/cache"
	"github.com/noah-isme/sma-master-scheduler/pkg/config"
	"github.com/noah-isme/sma-master-scheduler/pkg/database"
	"github.com/noah-isme/sma-master-scheduler/pkg/jobs"
	"github.com/noah-isme/sma-master-scheduler/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-master-scheduler/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-master-scheduler/pkg/middleware/requestid"
)

// @title Master Scheduler API
// @version 1.0.0
// @description Generates high school master schedules and seats students into sections
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checks []handler.ReadinessCheck

	var db *sqlx.DB
	if cfg.RunStore.Enabled {
		db, err = database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer db.Close()
		if err := database.EnsureSchema(ctx, db); err != nil {
			logr.Fatal("failed to prepare run store schema", zap.Error(err))
		}
		checks = append(checks, handler.ReadinessCheck{Name: "postgres", Check: db.PingContext})
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		var redisClient *redis.Client
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, result cache disabled", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(redisClient, "", logr)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
			checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}})
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cacheRepo != nil)

	eng := engine.New(logr)
	validate := validator.New()
	svcCfg := service.MasterScheduleServiceConfig{
		DefaultSeed:  cfg.Engine.DefaultSeed,
		RunTimeout:   cfg.Engine.RunTimeout,
		MaxSections:  cfg.Engine.MaxSections,
		VariantLimit: cfg.Engine.VariantLimit,
	}

	var (
		masterSvc *service.MasterScheduleService
		queue     *jobs.Queue
	)
	if db != nil {
		runRepo := repository.NewScheduleRunRepository(db)
		worker := service.NewRunWorker(runRepo, eng, cacheSvc, metricsSvc, cfg.Engine.WorkerRetries, logr)
		queue = jobs.NewQueue(service.JobTypeMasterSchedule, worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Engine.Workers,
			MaxRetries: cfg.Engine.WorkerRetries,
			RetryDelay: time.Second,
			JobTimeout: cfg.Engine.RunTimeout,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		masterSvc = service.NewMasterScheduleService(eng, runRepo, queue, cacheSvc, metricsSvc, validate, logr, svcCfg)
		masterSvc.RecoverPendingRuns(ctx)
	} else {
		masterSvc = service.NewMasterScheduleService(eng, nil, nil, cacheSvc, metricsSvc, validate, logr, svcCfg)
	}
	studentSvc := service.NewStudentScheduleService(masterSvc, validate, logr)
	tokens := service.NewTokenValidator(cfg.JWT.Secret)

	masterHandler := handler.NewMasterScheduleHandler(masterSvc, cfg.APIPrefix)
	studentHandler := handler.NewStudentScheduleHandler(studentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks...)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	planners := internalmiddleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin))
	readers := internalmiddleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin), string(models.RoleTeacher))

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokens))
	{
		api.POST("/master-schedules/generate", planners, masterHandler.Generate)
		api.POST("/master-schedules/variants", planners, masterHandler.Variants)

		api.POST("/runs", planners, masterHandler.SubmitRun)
		api.GET("/runs", readers, masterHandler.ListRuns)
		api.GET("/runs/:id", readers, masterHandler.GetRun)
		api.DELETE("/runs/:id", planners, masterHandler.DeleteRun)
		api.POST("/runs/:id/regenerate", planners, masterHandler.Regenerate)

		api.POST("/student-schedules", planners, studentHandler.Schedule)

		api.GET("/metrics/summary", planners, metricsHandler.Snapshot)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "run_store", db != nil, "result_cache", cacheSvc.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
