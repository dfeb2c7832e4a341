package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/attendance-core/api/swagger"
	"github.com/noah-isme/attendance-core/internal/handler"
	"github.com/noah-isme/attendance-core/internal/middleware"
	"github.com/noah-isme/attendance-core/internal/repository"
	"github.com/noah-isme/attendance-core/internal/service"
	"github.com/noah-isme/attendance-core/pkg/cache"
	"github.com/noah-isme/attendance-core/pkg/config"
	"github.com/noah-isme/attendance-core/pkg/database"
	"github.com/noah-isme/attendance-core/pkg/logger"
	corsmiddleware "github.com/noah-isme/attendance-core/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/attendance-core/pkg/middleware/requestid"
	"github.com/noah-isme/attendance-core/pkg/storage"
)

// @title Attendance Core API
// @version 1.0.0
// @description Class attendance tracking: users, groups, subjects, sessions, marks and reports.
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

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("storage unavailable", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	checks := map[string]handler.Pinger{"database": db}

	// The interface must stay nil when the cache is off, not hold a nil *redis.Client.
	var redisClient redis.UniversalClient
	if cfg.Reports.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("report cache disabled", zap.Error(err))
		} else {
			redisClient = client
			defer client.Close()
		}
	}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		repo := repository.NewCacheRepository(redisClient, "attendance", logr)
		cacheRepo = repo
		checks["cache"] = handler.PingFunc(repo.Ping)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Reports.CacheTTL, logr, redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	reportRepo := repository.NewReportRepository(db)
	validate := service.NewValidator()

	exportDir, err := storage.NewLocalStorage(cfg.Reports.ExportDir)
	if err != nil {
		logr.Fatal("export directory unavailable", zap.String("dir", cfg.Reports.ExportDir), zap.Error(err))
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	reportSvc := service.NewReportService(reportRepo, cacheSvc, cfg.Reports.CacheTTL, logr)

	handlers := handler.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Users:    handler.NewUserHandler(service.NewUserService(userRepo, cacheSvc, validate, logr)),
		Groups:   handler.NewGroupHandler(service.NewGroupService(groupRepo, userRepo, cacheSvc, validate, logr)),
		Subjects: handler.NewSubjectHandler(service.NewSubjectService(repository.NewSubjectRepository(db), cacheSvc, validate, logr)),
		Sessions: handler.NewSessionHandler(
			service.NewSessionService(sessionRepo, reportRepo, userRepo, cacheSvc, validate, logr),
			service.NewAttendanceService(repository.NewAttendanceRepository(db), sessionRepo, cacheSvc, metrics, logr),
		),
		Reports: handler.NewReportHandler(reportSvc, service.NewExportService(reportSvc, exportDir, logr)),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.RegisterSystemRoutes(r, handler.NewMetricsHandler(metrics, checks, logr))
	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handlers, authSvc)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(fmt.Errorf("shutdown: %w", err)))
	}
}
